package audit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrUndoOfUndo is returned when the target run is itself an undo.
	ErrUndoOfUndo = errors.New("cannot undo an UNDO run")
	// ErrNothingToUndo is returned when the target run made no reversible changes.
	ErrNothingToUndo = errors.New("run is not an execute run")
)

// UndoResult contains the result of an undo operation.
type UndoResult struct {
	UndoRunID      RunID
	TargetRunID    RunID
	Restored       int // Folders moved back
	Recreated      int // Swept directories recreated
	Skipped        int
	Failed         int
	FailureDetails []UndoError
}

// UndoError describes one event that could not be reversed.
type UndoError struct {
	SourcePath string
	DestPath   string
	Reason     ReasonCode
	Message    string
}

// UndoEngine reverses execute runs from the journal.
type UndoEngine struct {
	reader     *Reader
	writer     *Writer
	appVersion string
}

// NewUndoEngine creates an UndoEngine that reads with reader and journals the
// undo run with writer.
func NewUndoEngine(reader *Reader, writer *Writer, appVersion string) *UndoEngine {
	return &UndoEngine{reader: reader, writer: writer, appVersion: appVersion}
}

// UndoLatest undoes the most recent run.
func (e *UndoEngine) UndoLatest() (*UndoResult, error) {
	latest, err := e.reader.GetLatestRun()
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}
	return e.UndoRun(latest.RunID)
}

// UndoRun reverses one execute run: swept directories are recreated
// shallowest first, then moves are reversed newest first. Direct deletes
// removed whole subtrees and are skipped as NOT_REVERSIBLE.
func (e *UndoEngine) UndoRun(runID RunID) (*UndoResult, error) {
	info, err := e.reader.GetRunByID(runID)
	if err != nil {
		return nil, err
	}
	switch info.RunType {
	case RunTypeUndo:
		return nil, ErrUndoOfUndo
	case RunTypeExecute:
	default:
		return nil, fmt.Errorf("%w: %s is a %s run", ErrNothingToUndo, runID, info.RunType)
	}

	events, err := e.reader.GetRun(runID)
	if err != nil {
		return nil, err
	}

	var swept []string
	var direct []string
	var moves []AuditEvent
	for _, event := range events {
		switch {
		case event.EventType == EventMove:
			moves = append(moves, event)
		case event.EventType == EventDirDelete && event.ReasonCode == ReasonSwept:
			swept = append(swept, event.SourcePath)
		case event.EventType == EventDirDelete:
			direct = append(direct, event.SourcePath)
		}
	}

	undoRunID, err := e.writer.StartUndoRun(info.Root, e.appVersion, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to start undo run: %w", err)
	}

	result := &UndoResult{UndoRunID: undoRunID, TargetRunID: runID}

	sort.Slice(swept, func(i, j int) bool {
		di, dj := strings.Count(swept[i], string(filepath.Separator)), strings.Count(swept[j], string(filepath.Separator))
		if di != dj {
			return di < dj
		}
		return swept[i] < swept[j]
	})
	for _, dir := range swept {
		e.recreate(dir, result)
	}

	for _, path := range direct {
		e.writer.RecordUndoSkip(path, "", ReasonNotReversible, "recursive delete")
		result.Skipped++
	}

	for i := len(moves) - 1; i >= 0; i-- {
		e.reverseMove(moves[i], result)
	}

	status := RunStatusCompleted
	if result.Failed > 0 && result.Restored == 0 && result.Recreated == 0 {
		status = RunStatusFailed
	}
	summary := RunSummary{
		Moved:      result.Restored,
		MoveFailed: result.Failed,
		Skipped:    result.Skipped,
	}
	if err := e.writer.EndRun(undoRunID, status, summary); err != nil {
		return result, fmt.Errorf("failed to end undo run: %w", err)
	}
	return result, nil
}

func (e *UndoEngine) recreate(dir string, result *UndoResult) {
	if info, err := os.Lstat(dir); err == nil && info.IsDir() {
		e.writer.RecordUndoSkip(dir, "", ReasonAlreadyPresent, "")
		result.Skipped++
		return
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		e.fail(result, UndoError{SourcePath: dir, Reason: ReasonIOFailure, Message: err.Error()})
		return
	}
	e.writer.RecordUndoMkdir(dir)
	result.Recreated++
}

// reverseMove moves a lifted folder from its destination back to its source.
func (e *UndoEngine) reverseMove(event AuditEvent, result *UndoResult) {
	from, to := event.DestinationPath, event.SourcePath

	if _, err := os.Lstat(from); err != nil {
		e.fail(result, UndoError{SourcePath: to, DestPath: from, Reason: ReasonSourceNotFound, Message: err.Error()})
		return
	}
	if match, _ := VerifyIdentity(from, event.Metadata[metaIdentity]); match == IdentityMismatch {
		e.fail(result, UndoError{SourcePath: to, DestPath: from, Reason: ReasonIdentityMismatch, Message: "folder was replaced since the move"})
		return
	}
	if _, err := os.Lstat(to); err == nil {
		e.fail(result, UndoError{SourcePath: to, DestPath: from, Reason: ReasonDestinationOccupied, Message: "original location is occupied"})
		return
	}
	if err := os.MkdirAll(filepath.Dir(to), 0755); err != nil {
		e.fail(result, UndoError{SourcePath: to, DestPath: from, Reason: ReasonIOFailure, Message: err.Error()})
		return
	}
	if err := os.Rename(from, to); err != nil {
		e.fail(result, UndoError{SourcePath: to, DestPath: from, Reason: ReasonIOFailure, Message: err.Error()})
		return
	}

	e.writer.RecordUndoMove(from, to)
	result.Restored++
}

func (e *UndoEngine) fail(result *UndoResult, undoErr UndoError) {
	e.writer.RecordUndoSkip(undoErr.SourcePath, undoErr.DestPath, undoErr.Reason, undoErr.Message)
	result.Failed++
	result.FailureDetails = append(result.FailureDetails, undoErr)
}
