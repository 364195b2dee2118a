package executor

import (
	"errors"
	"fmt"
	"os"
)

// OpErrorType classifies a per-item failure.
type OpErrorType string

const (
	// SourceNotFound indicates the folder to move no longer exists.
	SourceNotFound OpErrorType = "SOURCE_NOT_FOUND"
	// DestinationExists indicates something already occupies the destination.
	DestinationExists OpErrorType = "DESTINATION_EXISTS"
	// CrossDevice indicates the rename would cross a filesystem boundary.
	CrossDevice OpErrorType = "CROSS_DEVICE"
	// PermissionDenied indicates insufficient permissions for the operation.
	PermissionDenied OpErrorType = "PERMISSION_DENIED"
	// IOFailure covers every other filesystem error.
	IOFailure OpErrorType = "IO_FAILURE"
)

var (
	// ErrNilPlan is returned when Execute is called without a plan.
	ErrNilPlan = errors.New("plan is nil")
	// ErrModeMismatch is returned when the requested mode differs from the
	// mode the plan was built for. A changed mode needs a fresh plan.
	ErrModeMismatch = errors.New("operation mode does not match plan")
	// ErrRootMismatch is returned when the root differs from the plan's root.
	ErrRootMismatch = errors.New("root does not match plan")
)

// OpError is a failure of one move or delete.
type OpError struct {
	Type OpErrorType
	Path string
	Err  error
}

func (e *OpError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Path)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// classify maps a filesystem error to an OpError for path.
func classify(err error, path string) *OpError {
	switch {
	case os.IsNotExist(err):
		return &OpError{Type: SourceNotFound, Path: path, Err: err}
	case isCrossDevice(err):
		return &OpError{Type: CrossDevice, Path: path, Err: err}
	case os.IsPermission(err):
		return &OpError{Type: PermissionDenied, Path: path, Err: err}
	default:
		return &OpError{Type: IOFailure, Path: path, Err: err}
	}
}
