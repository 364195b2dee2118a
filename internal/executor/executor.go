// Package executor applies a preview plan to the filesystem: folder moves,
// direct deletes and the empty-directory sweep. Every item is attempted;
// failures are recorded per item and never stop the batch.
package executor

import (
	"errors"
	"os"
	"path/filepath"

	"hoist/internal/indexer"
	"hoist/internal/planner"
)

// Recorder receives each mutation as it happens. The audit journal writer
// implements it.
type Recorder interface {
	RecordMove(source, dest string) error
	RecordMoveFailed(source, dest, errType, errMsg string) error
	RecordDirDelete(path string, swept bool) error
	RecordDeleteFailed(path, errType, errMsg string) error
	RecordDeleteSkipped(path string) error
}

// Progress receives batch progress. The console output implements it.
type Progress interface {
	StartProgress(total int)
	UpdateProgress(current int, message string)
	EndProgress()
}

// ItemKind identifies the operation an ItemResult describes.
type ItemKind string

const (
	KindMove   ItemKind = "MOVE"
	KindDelete ItemKind = "DELETE"
	KindSweep  ItemKind = "SWEEP"
)

// ItemResult is the outcome of one operation.
type ItemResult struct {
	Kind        ItemKind
	Source      string // Moved folder, or the deleted directory
	Destination string // Empty for deletes
	Skipped     bool
	Err         *OpError
}

// Result aggregates the outcome of an Execute call.
type Result struct {
	Moved        int
	MoveFailed   int
	Deleted      int
	DeleteFailed int
	Skipped      int
	Items        []ItemResult

	// RecordErr holds the first error returned by the Recorder, if any.
	RecordErr error
}

// Failed returns the number of failed items.
func (r *Result) Failed() int {
	return r.MoveFailed + r.DeleteFailed
}

// Err joins every item error and the recorder error, or returns nil.
func (r *Result) Err() error {
	var errs []error
	for _, item := range r.Items {
		if item.Err != nil {
			errs = append(errs, item.Err)
		}
	}
	if r.RecordErr != nil {
		errs = append(errs, r.RecordErr)
	}
	return errors.Join(errs...)
}

// Executor applies plans. The zero value is not usable; call New.
type Executor struct {
	recorder Recorder
	progress Progress
}

// Option configures an Executor.
type Option func(*Executor)

// WithRecorder reports every mutation to r.
func WithRecorder(r Recorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// WithProgress reports batch progress to p.
func WithProgress(p Progress) Option {
	return func(e *Executor) { e.progress = p }
}

// New creates an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute applies plan under root. mode must be the mode the plan was built
// for. The returned error covers precondition failures only; per-item
// failures are on the Result.
func (e *Executor) Execute(plan *planner.PreviewPlan, root string, mode planner.OperationMode) (*Result, error) {
	if plan == nil {
		return nil, ErrNilPlan
	}
	if mode != plan.Mode() {
		return nil, ErrModeMismatch
	}
	if cleanAbs(root) != cleanAbs(plan.Root()) {
		return nil, ErrRootMismatch
	}
	root = cleanAbs(root)

	res := &Result{Items: []ItemResult{}}

	if mode == planner.DeleteOnly {
		e.deleteTargets(plan.DeleteTargets(), res)
		return res, nil
	}

	e.moveAll(plan.Moves(), res)

	switch mode {
	case planner.MoveAndDeleteAll:
		e.sweepTree(root, res)
	case planner.Custom:
		switch plan.DeleteRange() {
		case planner.AllEmpty:
			e.sweepTree(root, res)
		case planner.SelectedOnly:
			e.sweepSelected(plan.DeleteTargets(), res)
		}
	}

	return res, nil
}

func (e *Executor) moveAll(moves []planner.MoveOperation, res *Result) {
	e.startProgress(len(moves))
	defer e.endProgress()

	for i, op := range moves {
		item := ItemResult{Kind: KindMove, Source: op.Source, Destination: op.Destination}
		if opErr := move(op); opErr != nil {
			item.Err = opErr
			res.MoveFailed++
			e.record(res, e.recorderCall(func(r Recorder) error {
				return r.RecordMoveFailed(op.Source, op.Destination, string(opErr.Type), opErr.Error())
			}))
		} else {
			res.Moved++
			e.record(res, e.recorderCall(func(r Recorder) error {
				return r.RecordMove(op.Source, op.Destination)
			}))
		}
		res.Items = append(res.Items, item)
		e.updateProgress(i+1, "Moving")
	}
}

// move renames one folder. The destination is checked first because rename
// silently replaces an empty directory on POSIX systems.
func move(op planner.MoveOperation) *OpError {
	if _, err := os.Lstat(op.Source); err != nil {
		return classify(err, op.Source)
	}
	if _, err := os.Lstat(op.Destination); err == nil {
		return &OpError{Type: DestinationExists, Path: op.Destination}
	} else if !os.IsNotExist(err) {
		return classify(err, op.Destination)
	}

	if err := os.Rename(op.Source, op.Destination); err != nil {
		if os.IsNotExist(err) {
			if _, statErr := os.Lstat(op.Source); statErr == nil {
				// The source is there, so the destination's parent is missing.
				return &OpError{Type: IOFailure, Path: filepath.Dir(op.Destination), Err: err}
			}
		}
		return classify(err, op.Source)
	}
	return nil
}

func (e *Executor) deleteTargets(targets []string, res *Result) {
	e.startProgress(len(targets))
	defer e.endProgress()

	for i, target := range targets {
		item := ItemResult{Kind: KindDelete, Source: target}

		if _, err := os.Lstat(target); os.IsNotExist(err) {
			item.Skipped = true
			res.Skipped++
			e.record(res, e.recorderCall(func(r Recorder) error {
				return r.RecordDeleteSkipped(target)
			}))
		} else if err := os.RemoveAll(target); err != nil {
			opErr := classify(err, target)
			item.Err = opErr
			res.DeleteFailed++
			e.record(res, e.recorderCall(func(r Recorder) error {
				return r.RecordDeleteFailed(target, string(opErr.Type), opErr.Error())
			}))
		} else {
			res.Deleted++
			e.record(res, e.recorderCall(func(r Recorder) error {
				return r.RecordDirDelete(target, false)
			}))
		}

		res.Items = append(res.Items, item)
		e.updateProgress(i+1, "Deleting")
	}
}

func (e *Executor) recorderCall(fn func(Recorder) error) error {
	if e.recorder == nil {
		return nil
	}
	return fn(e.recorder)
}

// record keeps the first recorder error on the result.
func (e *Executor) record(res *Result, err error) {
	if err != nil && res.RecordErr == nil {
		res.RecordErr = err
	}
}

func (e *Executor) startProgress(total int) {
	if e.progress != nil {
		e.progress.StartProgress(total)
	}
}

func (e *Executor) updateProgress(current int, message string) {
	if e.progress != nil {
		e.progress.UpdateProgress(current, message)
	}
}

func (e *Executor) endProgress() {
	if e.progress != nil {
		e.progress.EndProgress()
	}
}

// cleanAbs makes path absolute and resolves a symlinked root, matching the
// root an index records.
func cleanAbs(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	return indexer.ResolveRoot(abs)
}
