// Package audit keeps an append-only JSON Lines journal of hoist runs: every
// move, delete, backup and restore, with enough detail to reverse a run.
package audit

import "time"

// RunID is a unique identifier for each run, in UUID v4 format.
type RunID string

// EventType represents the type of journal event.
type EventType string

const (
	// Run lifecycle events
	EventRunStart EventType = "RUN_START"
	EventRunEnd   EventType = "RUN_END"

	// Tree mutation events
	EventMove          EventType = "MOVE"
	EventMoveFailed    EventType = "MOVE_FAILED"
	EventDirDelete     EventType = "DIR_DELETE"
	EventDeleteFailed  EventType = "DELETE_FAILED"
	EventDeleteSkipped EventType = "DELETE_SKIPPED"

	// Snapshot events
	EventBackupCreated EventType = "BACKUP_CREATED"
	EventRestore       EventType = "RESTORE"

	// Undo events
	EventUndoMove  EventType = "UNDO_MOVE"
	EventUndoMkdir EventType = "UNDO_MKDIR"
	EventUndoSkip  EventType = "UNDO_SKIP"

	// System events
	EventRotation       EventType = "ROTATION"
	EventRetentionPrune EventType = "RETENTION_PRUNE"
	EventLogInitialized EventType = "LOG_INITIALIZED"
)

// OperationStatus represents the outcome of an operation.
type OperationStatus string

const (
	StatusSuccess OperationStatus = "SUCCESS"
	StatusFailure OperationStatus = "FAILURE"
	StatusSkipped OperationStatus = "SKIPPED"
)

// ReasonCode qualifies deletes and undo skips.
type ReasonCode string

const (
	// Delete kinds
	ReasonSwept        ReasonCode = "SWEPT"
	ReasonDirectDelete ReasonCode = "DIRECT_DELETE"
	ReasonAlreadyGone  ReasonCode = "ALREADY_GONE"

	// Undo skip and failure reasons
	ReasonNotReversible       ReasonCode = "NOT_REVERSIBLE"
	ReasonAlreadyPresent      ReasonCode = "ALREADY_PRESENT"
	ReasonDestinationOccupied ReasonCode = "DESTINATION_OCCUPIED"
	ReasonSourceNotFound      ReasonCode = "SOURCE_NOT_FOUND"
	ReasonIdentityMismatch    ReasonCode = "IDENTITY_MISMATCH"
	ReasonIOFailure           ReasonCode = "IO_FAILURE"
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunStatusInProgress RunStatus = "IN_PROGRESS"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusFailed     RunStatus = "FAILED"
)

// RunType represents the type of run.
type RunType string

const (
	RunTypeExecute RunType = "EXECUTE"
	RunTypeBackup  RunType = "BACKUP"
	RunTypeRestore RunType = "RESTORE"
	RunTypeUndo    RunType = "UNDO"
)

// ErrorDetails contains detailed information about a failure.
type ErrorDetails struct {
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
	Operation    string `json:"operation"`
}

// AuditEvent represents a single journal record.
type AuditEvent struct {
	Timestamp       time.Time         `json:"timestamp"`
	RunID           RunID             `json:"runId"`
	EventType       EventType         `json:"eventType"`
	Status          OperationStatus   `json:"status"`
	SourcePath      string            `json:"sourcePath,omitempty"`
	DestinationPath string            `json:"destinationPath,omitempty"`
	ReasonCode      ReasonCode        `json:"reasonCode,omitempty"`
	ErrorDetails    *ErrorDetails     `json:"errorDetails,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// RunSummary contains the counts recorded at the end of a run.
type RunSummary struct {
	Moved        int `json:"moved"`
	MoveFailed   int `json:"moveFailed"`
	Deleted      int `json:"deleted"`
	DeleteFailed int `json:"deleteFailed"`
	Skipped      int `json:"skipped"`
}

// RunInfo contains metadata and summary for a run.
type RunInfo struct {
	RunID        RunID      `json:"runId"`
	StartTime    time.Time  `json:"startTime"`
	EndTime      *time.Time `json:"endTime,omitempty"`
	Status       RunStatus  `json:"status"`
	RunType      RunType    `json:"runType"`
	Root         string     `json:"root"`
	AppVersion   string     `json:"appVersion"`
	Summary      RunSummary `json:"summary"`
	UndoTargetID *RunID     `json:"undoTargetId,omitempty"`
}

// JournalConfig holds configuration for the journal.
type JournalConfig struct {
	Directory    string `json:"directory" yaml:"directory"`
	RotationSize int64  `json:"rotationSizeBytes" yaml:"rotationSizeBytes"` // Rotate when the active file reaches this size; 0 disables

	// Rotated segments to keep; older ones are deleted after a rotation.
	// 0 keeps all.
	RetainSegments int `json:"retainSegments" yaml:"retainSegments"`
}

// DefaultJournalConfig returns a JournalConfig with sensible defaults.
func DefaultJournalConfig() JournalConfig {
	return JournalConfig{
		Directory:    ".hoist/journal",
		RotationSize: 10 * 1024 * 1024, // 10MB
	}
}
