package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// RetentionManager prunes rotated journal segments beyond a fixed count.
// The active journal is never pruned.
type RetentionManager struct {
	dir  string
	keep int
}

// PruneResult lists what a prune removed.
type PruneResult struct {
	PrunedSegments []string
	BytesFreed     int64
}

// NewRetentionManager creates a RetentionManager for config. A
// RetainSegments below 1 keeps every segment.
func NewRetentionManager(config JournalConfig) *RetentionManager {
	return &RetentionManager{dir: config.Directory, keep: config.RetainSegments}
}

// Prune removes the oldest rotated segments so that at most the configured
// number remain. Runs recorded only in a pruned segment can no longer be
// listed or undone.
func (rm *RetentionManager) Prune() (*PruneResult, error) {
	result := &PruneResult{}
	if rm.keep < 1 {
		return result, nil
	}

	segments, err := DiscoverSegments(rm.dir)
	if err != nil {
		return nil, err
	}
	if len(segments) <= rm.keep {
		return result, nil
	}

	for _, name := range segments[:len(segments)-rm.keep] {
		path := filepath.Join(rm.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			return result, fmt.Errorf("failed to prune segment %s: %w", name, err)
		}
		result.PrunedSegments = append(result.PrunedSegments, name)
		result.BytesFreed += info.Size()
	}
	return result, nil
}

// CreateRetentionPruneEvent creates the event written after segments were
// pruned.
func CreateRetentionPruneEvent(runID RunID, result *PruneResult) AuditEvent {
	return AuditEvent{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		EventType: EventRetentionPrune,
		Status:    StatusSuccess,
		Metadata: map[string]string{
			"segments":   strings.Join(result.PrunedSegments, ","),
			"bytesFreed": strconv.FormatInt(result.BytesFreed, 10),
		},
	}
}
