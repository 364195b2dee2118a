// Package backup snapshots a directory tree into a timestamped sibling and
// restores it.
package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/otiai10/copy"
)

// TimestampLayout is the timestamp format embedded in backup names.
const TimestampLayout = "20060102_150405"

// ErrorType represents the type of backup error.
type ErrorType string

const (
	// SourceNotFound indicates the tree to back up does not exist.
	SourceNotFound ErrorType = "SOURCE_NOT_FOUND"
	// BackupNotFound indicates the backup to restore does not exist.
	BackupNotFound ErrorType = "BACKUP_NOT_FOUND"
	// CopyFailed indicates the recursive copy (or the removal before it) failed.
	CopyFailed ErrorType = "COPY_FAILED"
)

// Error represents a failed backup, restore or verification.
type Error struct {
	Type ErrorType
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Path)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Record describes one backup directory.
type Record struct {
	Path      string
	Timestamp time.Time // Parsed from the name
	ModTime   time.Time
}

// Manager creates, finds and restores backups.
type Manager struct {
	now func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now for naming backups.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// New creates a Manager.
func New(opts ...Option) *Manager {
	m := &Manager{now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func copyOptions() copy.Options {
	return copy.Options{
		OnSymlink: func(string) copy.SymlinkAction {
			return copy.Shallow
		},
		PreserveTimes: true,
	}
}

// Backup copies src to a new sibling named <name>_backup_<timestamp> and
// returns its path. A partial copy is removed before the error is returned.
func (m *Manager) Backup(src string) (string, error) {
	src, err := filepath.Abs(src)
	if err != nil {
		return "", &Error{Type: SourceNotFound, Path: src, Err: err}
	}
	info, err := os.Stat(src)
	if err != nil {
		return "", &Error{Type: SourceNotFound, Path: src, Err: err}
	}
	if !info.IsDir() {
		return "", &Error{Type: SourceNotFound, Path: src, Err: fmt.Errorf("not a directory")}
	}

	parent := filepath.Dir(src)
	desired := filepath.Base(src) + "_backup_" + m.now().Format(TimestampLayout)
	dest := uniquePath(parent, desired)

	if err := copy.Copy(src, dest, copyOptions()); err != nil {
		os.RemoveAll(dest)
		return "", &Error{Type: CopyFailed, Path: dest, Err: err}
	}
	return dest, nil
}

// uniquePath returns dir/name, or dir/name_N with the smallest free N when
// name is taken.
func uniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if !exists(path) {
		return path
	}
	for n := 1; ; n++ {
		candidate := filepath.Join(dir, name+"_"+strconv.Itoa(n))
		if !exists(candidate) {
			return candidate
		}
	}
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// List returns every backup of original, newest first.
func (m *Manager) List(original string) ([]Record, error) {
	original, err := filepath.Abs(original)
	if err != nil {
		return nil, err
	}
	parent := filepath.Dir(original)
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(filepath.Base(original)) + `_backup_(\d{8}_\d{6})(_\d+)?$`)

	entries, err := os.ReadDir(parent)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", parent, err)
	}

	var records []Record
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		match := pattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		ts, _ := time.ParseInLocation(TimestampLayout, match[1], time.Local)
		records = append(records, Record{
			Path:      filepath.Join(parent, entry.Name()),
			Timestamp: ts,
			ModTime:   info.ModTime(),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].ModTime.Equal(records[j].ModTime) {
			return records[i].ModTime.After(records[j].ModTime)
		}
		return records[i].Path > records[j].Path
	})
	return records, nil
}

// Latest returns the most recently modified backup of original.
func (m *Manager) Latest(original string) (Record, bool, error) {
	records, err := m.List(original)
	if err != nil || len(records) == 0 {
		return Record{}, false, err
	}
	return records[0], true, nil
}

// Restore replaces dest with a copy of backupPath. It is not atomic: a
// failed copy can leave dest partially populated or missing.
func (m *Manager) Restore(backupPath, dest string) error {
	info, err := os.Stat(backupPath)
	if err != nil {
		return &Error{Type: BackupNotFound, Path: backupPath, Err: err}
	}
	if !info.IsDir() {
		return &Error{Type: BackupNotFound, Path: backupPath, Err: fmt.Errorf("not a directory")}
	}

	if err := os.RemoveAll(dest); err != nil {
		return &Error{Type: CopyFailed, Path: dest, Err: err}
	}
	if err := copy.Copy(backupPath, dest, copyOptions()); err != nil {
		return &Error{Type: CopyFailed, Path: dest, Err: err}
	}
	return nil
}
