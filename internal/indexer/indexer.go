// Package indexer walks a directory tree once and buckets every descendant
// folder by its depth below the scan root.
package indexer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScanErrorType represents the type of scanning error.
type ScanErrorType string

const (
	// DirectoryNotFound indicates the root does not exist.
	DirectoryNotFound ScanErrorType = "DIRECTORY_NOT_FOUND"
	// NotADirectory indicates the root exists but is not a directory.
	NotADirectory ScanErrorType = "NOT_A_DIRECTORY"
	// PermissionDenied indicates the root itself could not be read.
	PermissionDenied ScanErrorType = "PERMISSION_DENIED"
)

// ErrNotFound matches any ScanError that means the root is unusable as a
// directory (missing or not a directory).
var ErrNotFound = errors.New("root directory not found")

// ScanError represents an error that occurred while scanning the root.
type ScanError struct {
	Type ScanErrorType
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return string(e.Type) + ": " + e.Path + " (" + e.Err.Error() + ")"
	}
	return string(e.Type) + ": " + e.Path
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Is reports NotFound-class errors as ErrNotFound.
func (e *ScanError) Is(target error) bool {
	if target != ErrNotFound {
		return false
	}
	return e.Type == DirectoryNotFound || e.Type == NotADirectory
}

// FolderRecord describes one folder found below the root.
type FolderRecord struct {
	Path      string // Absolute path
	RelPath   string // Path relative to the root
	Name      string // Base name
	Depth     int    // Segments below the root; immediate children are 1
	RelParent string // Relative parent path, empty for depth 1
}

// SkippedPath is a subtree the walk could not enter.
type SkippedPath struct {
	Path string
	Err  error
}

// HierarchyIndex maps depth to the folders found at that depth.
// It is built once per scan and never mutated afterwards.
type HierarchyIndex struct {
	root    string
	byDepth map[int][]FolderRecord
	total   int
	skipped []SkippedPath
}

// Root returns the absolute root the index was built from.
func (x *HierarchyIndex) Root() string {
	return x.root
}

// Folders returns a copy of the records at the given depth in traversal order.
func (x *HierarchyIndex) Folders(depth int) []FolderRecord {
	records := x.byDepth[depth]
	out := make([]FolderRecord, len(records))
	copy(out, records)
	return out
}

// Count returns the number of folders at the given depth.
func (x *HierarchyIndex) Count(depth int) int {
	return len(x.byDepth[depth])
}

// Depths returns the populated depths in ascending order.
func (x *HierarchyIndex) Depths() []int {
	depths := make([]int, 0, len(x.byDepth))
	for d := range x.byDepth {
		depths = append(depths, d)
	}
	sort.Ints(depths)
	return depths
}

// MaxDepth returns the deepest populated depth, or 0 for an empty tree.
func (x *HierarchyIndex) MaxDepth() int {
	max := 0
	for d := range x.byDepth {
		if d > max {
			max = d
		}
	}
	return max
}

// Total returns the number of folders in the index.
func (x *HierarchyIndex) Total() int {
	return x.total
}

// All returns every record, ascending by depth then traversal order.
func (x *HierarchyIndex) All() []FolderRecord {
	out := make([]FolderRecord, 0, x.total)
	for _, d := range x.Depths() {
		out = append(out, x.byDepth[d]...)
	}
	return out
}

// Skipped returns the subtrees the walk could not read.
func (x *HierarchyIndex) Skipped() []SkippedPath {
	out := make([]SkippedPath, len(x.skipped))
	copy(out, x.skipped)
	return out
}

// ResolveRoot returns the target of path when path itself is a symlink, and
// path otherwise. Symlinks further down are left alone.
func ResolveRoot(path string) string {
	info, err := os.Lstat(path)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		return path
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return target
}

// Scan indexes every folder below rootPath.
// Unreadable subtrees are skipped and listed on the index rather than
// failing the scan. A symlinked root is resolved to its target; symlinked
// directories below it are not followed.
func Scan(rootPath string) (*HierarchyIndex, error) {
	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		absRoot = rootPath
	}
	absRoot = filepath.Clean(absRoot)

	info, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ScanError{Type: DirectoryNotFound, Path: absRoot, Err: err}
		}
		if os.IsPermission(err) {
			return nil, &ScanError{Type: PermissionDenied, Path: absRoot, Err: err}
		}
		return nil, &ScanError{Type: DirectoryNotFound, Path: absRoot, Err: err}
	}
	if !info.IsDir() {
		return nil, &ScanError{
			Type: NotADirectory,
			Path: absRoot,
			Err:  errors.New("path is not a directory"),
		}
	}

	absRoot = ResolveRoot(absRoot)

	index := &HierarchyIndex{
		root:    absRoot,
		byDepth: make(map[int][]FolderRecord),
	}

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == absRoot {
				return err
			}
			index.skipped = append(index.skipped, SkippedPath{Path: path, Err: err})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if path == absRoot || !d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			index.skipped = append(index.skipped, SkippedPath{Path: path, Err: err})
			return filepath.SkipDir
		}

		index.add(newRecord(path, rel))
		return nil
	})
	if walkErr != nil {
		if os.IsPermission(walkErr) {
			return nil, &ScanError{Type: PermissionDenied, Path: absRoot, Err: walkErr}
		}
		return nil, &ScanError{Type: DirectoryNotFound, Path: absRoot, Err: walkErr}
	}

	return index, nil
}

func (x *HierarchyIndex) add(rec FolderRecord) {
	x.byDepth[rec.Depth] = append(x.byDepth[rec.Depth], rec)
	x.total++
}

// newRecord builds a FolderRecord; depth is the segment count of rel.
func newRecord(abs, rel string) FolderRecord {
	parent := filepath.Dir(rel)
	if parent == "." {
		parent = ""
	}
	return FolderRecord{
		Path:      abs,
		RelPath:   rel,
		Name:      filepath.Base(rel),
		Depth:     Depth(rel),
		RelParent: parent,
	}
}

// Depth returns the number of path segments in a root-relative path.
func Depth(rel string) int {
	rel = filepath.Clean(rel)
	if rel == "." || rel == "" {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}
