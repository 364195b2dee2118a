package audit

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ActiveLogName is the file name of the journal being appended to.
const ActiveLogName = "hoist-journal.jsonl"

// ErrNoActiveRun is returned when a run-scoped event is recorded outside a run.
var ErrNoActiveRun = errors.New("no active run: call StartRun first")

// Writer appends events to the journal. Every event is flushed and synced
// before the call returns.
type Writer struct {
	mu              sync.Mutex
	file            *os.File
	writer          *bufio.Writer
	logPath         string
	currentRun      *RunID
	config          JournalConfig
	rotationManager *RotationManager
	retention       *RetentionManager
}

// NewWriter opens (or creates) the journal in config.Directory. A new journal
// starts with a LOG_INITIALIZED event.
func NewWriter(config JournalConfig) (*Writer, error) {
	if err := os.MkdirAll(config.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	logPath := filepath.Join(config.Directory, ActiveLogName)

	isNewLog := false
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		isNewLog = true
	}

	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	w := &Writer{
		file:            file,
		writer:          bufio.NewWriter(file),
		logPath:         logPath,
		config:          config,
		rotationManager: NewRotationManager(config),
		retention:       NewRetentionManager(config),
	}

	if isNewLog {
		event := AuditEvent{
			Timestamp: time.Now().UTC(),
			EventType: EventLogInitialized,
			Status:    StatusSuccess,
			Metadata:  map[string]string{"logPath": logPath},
		}
		if err := w.appendLocked(event); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write LOG_INITIALIZED event: %w", err)
		}
	}

	return w, nil
}

// GenerateRunID returns a new UUID v4 run id.
func GenerateRunID() RunID {
	return RunID(uuid.NewString())
}

// StartRun begins a run of the given type against root.
func (w *Writer) StartRun(runType RunType, root, appVersion string) (RunID, error) {
	return w.startRun(map[string]string{
		"runType":    string(runType),
		"root":       root,
		"appVersion": appVersion,
	})
}

// StartUndoRun begins an UNDO run targeting an earlier run.
func (w *Writer) StartUndoRun(root, appVersion string, target RunID) (RunID, error) {
	return w.startRun(map[string]string{
		"runType":      string(RunTypeUndo),
		"root":         root,
		"appVersion":   appVersion,
		"undoTargetId": string(target),
	})
}

func (w *Writer) startRun(metadata map[string]string) (RunID, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	runID := GenerateRunID()
	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		EventType: EventRunStart,
		Status:    StatusSuccess,
		Metadata:  metadata,
	}
	if err := w.writeEventLocked(event); err != nil {
		return "", fmt.Errorf("failed to write RUN_START event: %w", err)
	}

	w.currentRun = &runID
	return runID, nil
}

// EndRun records the run's final status and counts.
func (w *Writer) EndRun(runID RunID, status RunStatus, summary RunSummary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	opStatus := StatusSuccess
	if status == RunStatusFailed {
		opStatus = StatusFailure
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		RunID:     runID,
		EventType: EventRunEnd,
		Status:    opStatus,
		Metadata: map[string]string{
			"status":       string(status),
			"moved":        strconv.Itoa(summary.Moved),
			"moveFailed":   strconv.Itoa(summary.MoveFailed),
			"deleted":      strconv.Itoa(summary.Deleted),
			"deleteFailed": strconv.Itoa(summary.DeleteFailed),
			"skipped":      strconv.Itoa(summary.Skipped),
		},
	}
	if err := w.writeEventLocked(event); err != nil {
		return fmt.Errorf("failed to write RUN_END event: %w", err)
	}

	w.currentRun = nil
	return nil
}

// WriteEvent writes a single event as is.
func (w *Writer) WriteEvent(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeEventLocked(event)
}

// record stamps event with the time and the active run, then writes it.
func (w *Writer) record(event AuditEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentRun == nil {
		return ErrNoActiveRun
	}
	event.Timestamp = time.Now().UTC()
	event.RunID = *w.currentRun
	return w.writeEventLocked(event)
}

// writeEventLocked writes an event and rotates afterwards when needed.
func (w *Writer) writeEventLocked(event AuditEvent) error {
	if err := w.appendLocked(event); err != nil {
		return err
	}
	if event.EventType != EventRotation {
		if err := w.checkAndRotate(); err != nil {
			return fmt.Errorf("failed to check/perform rotation: %w", err)
		}
	}
	return nil
}

// appendLocked marshals, writes, flushes and syncs one line.
func (w *Writer) appendLocked(event AuditEvent) error {
	data, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if _, err := w.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync event to disk: %w", err)
	}
	return nil
}

// checkAndRotate closes the active file into a timestamped segment once it
// reaches the configured size. The ROTATION event is the last line of the
// old segment.
func (w *Writer) checkAndRotate() error {
	needsRotation, err := w.rotationManager.NeedsRotation(w.logPath)
	if err != nil || !needsRotation {
		return err
	}

	rotatedFilename := w.rotationManager.GenerateRotatedFilename(filepath.Dir(w.logPath))

	var runID RunID
	if w.currentRun != nil {
		runID = *w.currentRun
	}
	if err := w.appendLocked(CreateRotationEvent(runID, filepath.Base(w.logPath), rotatedFilename)); err != nil {
		return fmt.Errorf("failed to write rotation event: %w", err)
	}

	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close file for rotation: %w", err)
	}
	if _, err := w.rotationManager.RotateWithFilename(w.logPath, rotatedFilename); err != nil {
		return fmt.Errorf("failed to rotate journal: %w", err)
	}

	file, err := os.OpenFile(w.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open new journal file after rotation: %w", err)
	}
	w.file = file
	w.writer = bufio.NewWriter(file)

	pruned, err := w.retention.Prune()
	if err != nil {
		return err
	}
	if len(pruned.PrunedSegments) > 0 {
		return w.appendLocked(CreateRetentionPruneEvent(runID, pruned))
	}
	return nil
}

// Close flushes buffered data and closes the journal file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush on close: %w", err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}

// CurrentRunID returns the active run id, or nil outside a run.
func (w *Writer) CurrentRunID() *RunID {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.currentRun
}

// LogPath returns the path of the active journal file.
func (w *Writer) LogPath() string {
	return w.logPath
}

// RecordMove records a successful folder move.
func (w *Writer) RecordMove(source, dest string) error {
	event := AuditEvent{
		EventType:       EventMove,
		Status:          StatusSuccess,
		SourcePath:      source,
		DestinationPath: dest,
	}
	if id, err := CaptureIdentity(dest); err == nil && id != "" {
		event.Metadata = map[string]string{metaIdentity: id}
	}
	return w.record(event)
}

// RecordMoveFailed records a move that did not happen.
func (w *Writer) RecordMoveFailed(source, dest, errType, errMsg string) error {
	return w.record(AuditEvent{
		EventType:       EventMoveFailed,
		Status:          StatusFailure,
		SourcePath:      source,
		DestinationPath: dest,
		ErrorDetails: &ErrorDetails{
			ErrorType:    errType,
			ErrorMessage: errMsg,
			Operation:    "move",
		},
	})
}

// RecordDirDelete records a removed directory. Swept directories were empty
// and can be recreated by undo; direct deletes removed whole subtrees.
func (w *Writer) RecordDirDelete(path string, swept bool) error {
	reason := ReasonDirectDelete
	if swept {
		reason = ReasonSwept
	}
	return w.record(AuditEvent{
		EventType:  EventDirDelete,
		Status:     StatusSuccess,
		SourcePath: path,
		ReasonCode: reason,
	})
}

// RecordDeleteFailed records a directory that could not be removed.
func (w *Writer) RecordDeleteFailed(path, errType, errMsg string) error {
	return w.record(AuditEvent{
		EventType:  EventDeleteFailed,
		Status:     StatusFailure,
		SourcePath: path,
		ErrorDetails: &ErrorDetails{
			ErrorType:    errType,
			ErrorMessage: errMsg,
			Operation:    "delete",
		},
	})
}

// RecordDeleteSkipped records a delete target that was already gone.
func (w *Writer) RecordDeleteSkipped(path string) error {
	return w.record(AuditEvent{
		EventType:  EventDeleteSkipped,
		Status:     StatusSkipped,
		SourcePath: path,
		ReasonCode: ReasonAlreadyGone,
	})
}

// RecordBackup records a created backup of source.
func (w *Writer) RecordBackup(source, backupPath string) error {
	return w.record(AuditEvent{
		EventType:       EventBackupCreated,
		Status:          StatusSuccess,
		SourcePath:      source,
		DestinationPath: backupPath,
	})
}

// RecordRestore records dest being replaced by backupPath.
func (w *Writer) RecordRestore(backupPath, dest string, restoreErr error) error {
	event := AuditEvent{
		EventType:       EventRestore,
		Status:          StatusSuccess,
		SourcePath:      backupPath,
		DestinationPath: dest,
	}
	if restoreErr != nil {
		event.Status = StatusFailure
		event.ErrorDetails = &ErrorDetails{
			ErrorType:    "RESTORE_FAILED",
			ErrorMessage: restoreErr.Error(),
			Operation:    "restore",
		}
	}
	return w.record(event)
}

// RecordUndoMove records a folder moved back to where it came from.
func (w *Writer) RecordUndoMove(from, to string) error {
	return w.record(AuditEvent{
		EventType:       EventUndoMove,
		Status:          StatusSuccess,
		SourcePath:      from,
		DestinationPath: to,
	})
}

// RecordUndoMkdir records a swept directory recreated by undo.
func (w *Writer) RecordUndoMkdir(path string) error {
	return w.record(AuditEvent{
		EventType:  EventUndoMkdir,
		Status:     StatusSuccess,
		SourcePath: path,
	})
}

// RecordUndoSkip records an event undo could not or did not need to reverse.
func (w *Writer) RecordUndoSkip(source, dest string, reason ReasonCode, message string) error {
	event := AuditEvent{
		EventType:       EventUndoSkip,
		Status:          StatusSkipped,
		SourcePath:      source,
		DestinationPath: dest,
		ReasonCode:      reason,
	}
	if message != "" {
		event.Metadata = map[string]string{"message": message}
	}
	return w.record(event)
}
