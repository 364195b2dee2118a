package audit

import (
	"fmt"
	"sort"
	"time"
)

// JournalStats contains aggregate metrics across journaled runs.
type JournalStats struct {
	Runs     map[RunType]int // Runs per type
	Failed   int             // Runs that ended FAILED
	Moved    int             // Folders lifted by execute runs
	Deleted  int             // Directories removed by execute runs
	Restored int             // Folders moved back by undo runs
	FirstRun time.Time
	LastRun  time.Time
	ByRoot   map[string]int // Execute runs per root (top N)
}

// StatsOptions configures stats aggregation.
type StatsOptions struct {
	Since *time.Time // Only runs started at or after this time
	TopN  int        // Roots to keep in ByRoot (0 = all)
}

// AggregateStats computes metrics across every run the reader can see.
func AggregateStats(reader *Reader, opts StatsOptions) (*JournalStats, error) {
	runs, err := reader.ListRuns()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	stats := &JournalStats{Runs: make(map[RunType]int)}
	roots := make(map[string]int)

	for _, run := range runs {
		if opts.Since != nil && run.StartTime.Before(*opts.Since) {
			continue
		}
		stats.Runs[run.RunType]++
		if run.Status == RunStatusFailed {
			stats.Failed++
		}

		if !run.StartTime.IsZero() {
			if stats.FirstRun.IsZero() || run.StartTime.Before(stats.FirstRun) {
				stats.FirstRun = run.StartTime
			}
			if run.StartTime.After(stats.LastRun) {
				stats.LastRun = run.StartTime
			}
		}

		switch run.RunType {
		case RunTypeExecute:
			stats.Moved += run.Summary.Moved
			stats.Deleted += run.Summary.Deleted
			if run.Root != "" {
				roots[run.Root]++
			}
		case RunTypeUndo:
			stats.Restored += run.Summary.Moved
		}
	}

	stats.ByRoot = filterTopN(roots, opts.TopN)
	return stats, nil
}

// filterTopN returns the n largest entries of counts; ties go to the
// smaller key. n <= 0 returns all of them.
func filterTopN(counts map[string]int, n int) map[string]int {
	if n <= 0 || len(counts) <= n {
		out := make(map[string]int, len(counts))
		for k, v := range counts {
			out[k] = v
		}
		return out
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	out := make(map[string]int, n)
	for _, k := range keys[:n] {
		out[k] = counts[k]
	}
	return out
}
