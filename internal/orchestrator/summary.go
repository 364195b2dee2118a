package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"hoist/internal/audit"
	"hoist/internal/executor"
)

// RunResult contains the outcome of one Execute call.
type RunResult struct {
	RunID            audit.RunID
	BackupPath       string // Empty when backups are disabled
	Moved            int
	MoveFailed       int
	Deleted          int
	DeleteFailed     int
	Skipped          int
	Items            []executor.ItemResult
	Duration         time.Duration
	ChangedSinceScan bool
}

func (r *RunResult) absorb(res *executor.Result) {
	r.Moved = res.Moved
	r.MoveFailed = res.MoveFailed
	r.Deleted = res.Deleted
	r.DeleteFailed = res.DeleteFailed
	r.Skipped = res.Skipped
	r.Items = res.Items
}

func (r *RunResult) journalSummary() audit.RunSummary {
	return audit.RunSummary{
		Moved:        r.Moved,
		MoveFailed:   r.MoveFailed,
		Deleted:      r.Deleted,
		DeleteFailed: r.DeleteFailed,
		Skipped:      r.Skipped,
	}
}

// HasErrors returns true if any item failed.
func (r *RunResult) HasErrors() bool {
	return r.MoveFailed > 0 || r.DeleteFailed > 0
}

// Failures returns the failed items.
func (r *RunResult) Failures() []executor.ItemResult {
	var out []executor.ItemResult
	for _, item := range r.Items {
		if item.Err != nil {
			out = append(out, item)
		}
	}
	return out
}

// Summary returns a formatted summary string.
func (r *RunResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Moved %d folder(s), deleted %d director(ies)", r.Moved, r.Deleted)
	if r.Skipped > 0 {
		fmt.Fprintf(&b, ", %d already gone", r.Skipped)
	}
	if r.HasErrors() {
		fmt.Fprintf(&b, "; %d move(s) and %d delete(s) failed", r.MoveFailed, r.DeleteFailed)
	}
	if r.Duration > 0 {
		fmt.Fprintf(&b, " in %s", r.Duration.Round(time.Millisecond))
	}
	if r.BackupPath != "" {
		fmt.Fprintf(&b, "\nBackup: %s", r.BackupPath)
	}
	return b.String()
}
