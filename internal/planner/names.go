package planner

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// nameSet is a case-insensitive set of directory entry names.
type nameSet map[string]struct{}

func (s nameSet) has(name string) bool {
	_, ok := s[strings.ToLower(name)]
	return ok
}

func (s nameSet) add(name string) {
	s[strings.ToLower(name)] = struct{}{}
}

// snapshotNames reads the entry names of dir once. A directory that cannot
// be listed yields an empty set; the move will surface any real conflict.
func snapshotNames(dir string, list Lister) nameSet {
	set := make(nameSet)
	entries, err := list(dir)
	if err != nil {
		return set
	}
	for _, entry := range entries {
		set.add(entry.Name())
	}
	return set
}

// UniqueName returns desired if taken reports it free, otherwise desired_N
// with the smallest N >= 1 that is free. The second result reports whether a
// suffix was needed.
//
// Examples:
//   - "photos" -> "photos" (free)
//   - "photos" -> "photos_1" (photos taken)
//   - "photos" -> "photos_2" (photos, photos_1 taken)
func UniqueName(desired string, taken func(name string) bool) (string, bool) {
	if !taken(desired) {
		return desired, false
	}
	for n := 1; ; n++ {
		candidate := desired + "_" + strconv.Itoa(n)
		if !taken(candidate) {
			return candidate, true
		}
	}
}

// prefixedName flattens the relative parent path into the folder name, so
// "a/b" under root becomes "a_b".
func prefixedName(relParent, name string) string {
	if relParent == "" {
		return name
	}
	flat := strings.ReplaceAll(filepath.ToSlash(relParent), "/", "_")
	return flat + "_" + name
}

// readDir is the default Lister.
func readDir(dir string) ([]os.DirEntry, error) {
	return os.ReadDir(dir)
}
