package audit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrNoRuns is returned when the journal holds no run.
var ErrNoRuns = errors.New("no runs found")

// Reader reads events across the active journal and its rotated segments.
type Reader struct {
	dir string
}

// NewReader creates a Reader for the journal directory.
func NewReader(dir string) *Reader {
	return &Reader{dir: dir}
}

// ListRuns returns every run in journal order (oldest first).
func (r *Reader) ListRuns() ([]RunInfo, error) {
	events, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	return extractRunInfos(events), nil
}

// GetRun returns the events of one run in journal order.
func (r *Reader) GetRun(runID RunID) ([]AuditEvent, error) {
	events, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	var runEvents []AuditEvent
	for _, event := range events {
		if event.RunID == runID {
			runEvents = append(runEvents, event)
		}
	}
	if len(runEvents) == 0 {
		return nil, fmt.Errorf("run not found: %s", runID)
	}
	return runEvents, nil
}

// GetRunByID returns the RunInfo of one run.
func (r *Reader) GetRunByID(runID RunID) (*RunInfo, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return nil, err
	}
	for i := range runs {
		if runs[i].RunID == runID {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("run not found: %s", runID)
}

// GetLatestRun returns the run started last. The journal is append-only, so
// journal order is start order.
func (r *Reader) GetLatestRun() (*RunInfo, error) {
	runs, err := r.ListRuns()
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return &runs[len(runs)-1], nil
}

// ReadAll reads every event from all files in chronological order. A missing
// journal directory reads as empty.
func (r *Reader) ReadAll() ([]AuditEvent, error) {
	if _, err := os.Stat(r.dir); os.IsNotExist(err) {
		return []AuditEvent{}, nil
	}
	files, err := GetAllLogFiles(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get journal files: %w", err)
	}

	all := []AuditEvent{}
	for _, file := range files {
		events, err := readEventsFromFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read events from %s: %w", file, err)
		}
		all = append(all, events...)
	}
	return all, nil
}

func readEventsFromFile(path string) ([]AuditEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file: %w", err)
	}
	defer file.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(file)

	const maxScanTokenSize = 1024 * 1024 // 1MB
	scanner.Buffer(make([]byte, maxScanTokenSize), maxScanTokenSize)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		event, err := UnmarshalJSONLine(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse line %d: %w", lineNum, err)
		}
		events = append(events, *event)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading journal file: %w", err)
	}
	return events, nil
}

// extractRunInfos groups events by run, keeping first-seen order.
func extractRunInfos(events []AuditEvent) []RunInfo {
	var order []RunID
	byRun := make(map[RunID][]AuditEvent)
	for _, event := range events {
		if event.RunID == "" {
			continue
		}
		if _, seen := byRun[event.RunID]; !seen {
			order = append(order, event.RunID)
		}
		byRun[event.RunID] = append(byRun[event.RunID], event)
	}

	runs := make([]RunInfo, 0, len(order))
	for _, id := range order {
		runs = append(runs, buildRunInfo(id, byRun[id]))
	}
	return runs
}

func buildRunInfo(runID RunID, events []AuditEvent) RunInfo {
	info := RunInfo{
		RunID:   runID,
		Status:  RunStatusInProgress,
		RunType: RunTypeExecute,
	}

	for _, event := range events {
		switch event.EventType {
		case EventRunStart:
			info.StartTime = event.Timestamp
			if event.Metadata != nil {
				info.AppVersion = event.Metadata["appVersion"]
				info.Root = event.Metadata["root"]
				if runType, ok := event.Metadata["runType"]; ok {
					info.RunType = RunType(runType)
				}
				if target, ok := event.Metadata["undoTargetId"]; ok {
					targetID := RunID(target)
					info.UndoTargetID = &targetID
				}
			}
		case EventRunEnd:
			end := event.Timestamp
			info.EndTime = &end
			if status, ok := event.Metadata["status"]; ok {
				info.Status = RunStatus(status)
			}
			info.Summary = parseSummary(event.Metadata)
		}
	}
	return info
}

func parseSummary(metadata map[string]string) RunSummary {
	atoi := func(key string) int {
		n, _ := strconv.Atoi(metadata[key])
		return n
	}
	return RunSummary{
		Moved:        atoi("moved"),
		MoveFailed:   atoi("moveFailed"),
		Deleted:      atoi("deleted"),
		DeleteFailed: atoi("deleteFailed"),
		Skipped:      atoi("skipped"),
	}
}
