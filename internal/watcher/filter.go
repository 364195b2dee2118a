package watcher

import (
	"path/filepath"
	"strings"
)

// DefaultIgnorePatterns returns the base-name patterns of temporary files
// whose churn does not count as a tree change.
func DefaultIgnorePatterns() []string {
	return []string{
		"*.tmp",
		"*.swp",
		"*.part",
		"*.crdownload", // Chrome partial downloads
		".~*",          // Office lock files
		".DS_Store",
	}
}

// PathFilter decides which event paths a ChangeMonitor ignores: temp file
// names, and anything under an excluded directory (such as the journal when
// it lives inside the watched tree).
type PathFilter struct {
	patterns []string
	excluded []string
}

// NewPathFilter creates a PathFilter. Nil or empty patterns use
// DefaultIgnorePatterns.
func NewPathFilter(patterns []string, excludedDirs ...string) *PathFilter {
	if len(patterns) == 0 {
		patterns = DefaultIgnorePatterns()
	}
	f := &PathFilter{patterns: patterns}
	for _, dir := range excludedDirs {
		if dir != "" {
			f.excluded = append(f.excluded, filepath.Clean(dir))
		}
	}
	return f
}

// ShouldIgnore reports whether path matches a pattern by base name or lies
// in an excluded directory.
func (f *PathFilter) ShouldIgnore(path string) bool {
	clean := filepath.Clean(path)
	for _, dir := range f.excluded {
		if clean == dir || strings.HasPrefix(clean, dir+string(filepath.Separator)) {
			return true
		}
	}

	name := filepath.Base(clean)
	for _, pattern := range f.patterns {
		if matched, err := filepath.Match(pattern, name); err == nil && matched {
			return true
		}
	}
	return false
}
