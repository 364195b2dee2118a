package watcher

import (
	"sort"
	"sync"
	"time"
)

// Debouncer collects paths and delivers them as one sorted batch once no new
// path has arrived for the configured delay. Every Add restarts the quiet
// period; repeated paths appear once in the batch.
type Debouncer struct {
	delay    time.Duration
	pending  map[string]struct{}
	timer    *time.Timer
	callback func(paths []string)
	mu       sync.Mutex
}

// NewDebouncer creates a Debouncer that calls callback with each settled batch.
func NewDebouncer(delay time.Duration, callback func(paths []string)) *Debouncer {
	return &Debouncer{
		delay:    delay,
		pending:  make(map[string]struct{}),
		callback: callback,
	}
}

// Add records path and restarts the quiet period.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	if len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]string, 0, len(d.pending))
	for path := range d.pending {
		batch = append(batch, path)
	}
	d.pending = make(map[string]struct{})
	d.timer = nil
	d.mu.Unlock()

	sort.Strings(batch)
	// Invoke the callback outside the lock so it may call Add.
	if d.callback != nil {
		d.callback(batch)
	}
}

// Stop drops pending paths without delivering them.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = make(map[string]struct{})
}

// PendingCount returns the number of paths waiting for delivery.
func (d *Debouncer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
