// Package watcher notices when a scanned tree changes before its plan is
// applied. It never touches the tree; a change is only reported.
package watcher

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Config contains monitor settings.
type Config struct {
	Debounce       time.Duration // Quiet period before a batch is reported (default: 500ms)
	IgnorePatterns []string      // Base-name globs to ignore (default: DefaultIgnorePatterns)
	ExcludeDirs    []string      // Directories whose events are ignored
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Debounce:       500 * time.Millisecond,
		IgnorePatterns: DefaultIgnorePatterns(),
	}
}

// ChangeMonitor watches a set of directories and remembers whether anything
// under them changed since Start.
type ChangeMonitor struct {
	config    *Config
	onChange  func(paths []string)
	filter    *PathFilter
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	done      chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once

	changed atomic.Bool
	mu      sync.Mutex
	paths   map[string]struct{}
	errs    int
}

// New creates a ChangeMonitor. If config is nil, DefaultConfig is used.
// onChange, when not nil, is called with each settled batch of changed paths.
func New(config *Config, onChange func(paths []string)) *ChangeMonitor {
	if config == nil {
		config = DefaultConfig()
	}
	m := &ChangeMonitor{
		config:   config,
		onChange: onChange,
		filter:   NewPathFilter(config.IgnorePatterns, config.ExcludeDirs...),
		paths:    make(map[string]struct{}),
	}
	m.debouncer = NewDebouncer(config.Debounce, m.settle)
	return m
}

// Start watches every directory in dirs (fsnotify is not recursive, so
// callers pass each indexed folder). Directories that vanished since the
// scan are skipped.
func (m *ChangeMonitor) Start(dirs []string) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	for _, dir := range dirs {
		if m.filter.ShouldIgnore(dir) {
			continue
		}
		absDir, err := filepath.Abs(dir)
		if err != nil {
			fsWatcher.Close()
			return err
		}
		if err := fsWatcher.Add(absDir); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			fsWatcher.Close()
			return err
		}
	}

	m.fsWatcher = fsWatcher
	m.done = make(chan struct{})

	m.wg.Add(1)
	go m.processEvents()

	return nil
}

// Stop shuts the monitor down. Pending, undelivered events are dropped.
func (m *ChangeMonitor) Stop() {
	if m.fsWatcher == nil {
		return
	}
	m.stopOnce.Do(func() {
		close(m.done)
		m.wg.Wait()
		m.fsWatcher.Close()
		m.debouncer.Stop()
	})
}

// Changed reports whether a non-ignored event was seen since Start.
func (m *ChangeMonitor) Changed() bool {
	return m.changed.Load()
}

// Paths returns the changed paths delivered so far, sorted.
func (m *ChangeMonitor) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.paths))
	for path := range m.paths {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// ErrorCount returns how many watcher errors were received.
func (m *ChangeMonitor) ErrorCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errs
}

// processEvents handles file system events from fsnotify.
func (m *ChangeMonitor) processEvents() {
	defer m.wg.Done()

	for {
		select {
		case <-m.done:
			return
		case event, ok := <-m.fsWatcher.Events:
			if !ok {
				return
			}
			// Chmod alone does not change the tree's shape or contents.
			if event.Op == fsnotify.Chmod || m.filter.ShouldIgnore(event.Name) {
				continue
			}
			m.changed.Store(true)
			m.debouncer.Add(event.Name)
		case _, ok := <-m.fsWatcher.Errors:
			if !ok {
				return
			}
			m.mu.Lock()
			m.errs++
			m.mu.Unlock()
		}
	}
}

func (m *ChangeMonitor) settle(batch []string) {
	m.mu.Lock()
	for _, path := range batch {
		m.paths[path] = struct{}{}
	}
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(batch)
	}
}
