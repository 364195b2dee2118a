package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const segmentPrefix = "hoist-journal-"

// RotationManager decides when the active journal is closed into a segment
// and names the segment.
type RotationManager struct {
	config JournalConfig
	now    func() time.Time
}

// NewRotationManager creates a RotationManager for config.
func NewRotationManager(config JournalConfig) *RotationManager {
	return &RotationManager{config: config, now: time.Now}
}

// NeedsRotation reports whether the file at logPath reached the rotation size.
func (rm *RotationManager) NeedsRotation(logPath string) (bool, error) {
	if rm.config.RotationSize <= 0 {
		return false, nil
	}
	info, err := os.Stat(logPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat journal file: %w", err)
	}
	return info.Size() >= rm.config.RotationSize, nil
}

// GenerateRotatedFilename returns a free segment name in dir.
// Format: hoist-journal-YYYYMMDD-HHMMSS-NNN.jsonl, where NNN continues past
// the highest sequence already used in the same second so names sort
// chronologically even after older segments were pruned.
func (rm *RotationManager) GenerateRotatedFilename(dir string) string {
	stamp := segmentPrefix + rm.now().Format("20060102-150405") + "-"
	next := 0
	if segments, err := DiscoverSegments(dir); err == nil {
		for _, seg := range segments {
			if !strings.HasPrefix(seg, stamp) {
				continue
			}
			seq, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(seg, stamp), ".jsonl"))
			if err == nil && seq >= next {
				next = seq + 1
			}
		}
	}
	return fmt.Sprintf("%s%03d.jsonl", stamp, next)
}

// RotateWithFilename renames the active journal to rotatedFilename in the
// same directory.
func (rm *RotationManager) RotateWithFilename(logPath, rotatedFilename string) (string, error) {
	rotatedPath := filepath.Join(filepath.Dir(logPath), rotatedFilename)
	if err := os.Rename(logPath, rotatedPath); err != nil {
		return "", fmt.Errorf("failed to rename journal during rotation: %w", err)
	}
	return rotatedPath, nil
}

// DiscoverSegments returns the rotated segment names in dir, oldest first.
func DiscoverSegments(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read journal directory: %w", err)
	}

	var segments []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, segmentPrefix) && strings.HasSuffix(name, ".jsonl") && name != ActiveLogName {
			segments = append(segments, name)
		}
	}
	sort.Strings(segments)
	return segments, nil
}

// GetAllLogFiles returns every journal file in chronological order: the
// rotated segments, then the active file.
func GetAllLogFiles(dir string) ([]string, error) {
	segments, err := DiscoverSegments(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, seg := range segments {
		files = append(files, filepath.Join(dir, seg))
	}

	active := filepath.Join(dir, ActiveLogName)
	if _, err := os.Stat(active); err == nil {
		files = append(files, active)
	}
	return files, nil
}

// CreateRotationEvent creates the ROTATION event written before switching files.
func CreateRotationEvent(runID RunID, oldFile, newFile string) AuditEvent {
	return AuditEvent{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		EventType: EventRotation,
		Status:    StatusSuccess,
		Metadata: map[string]string{
			"previousFile": oldFile,
			"newFile":      newFile,
		},
	}
}
