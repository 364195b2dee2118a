package audit

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"hoist/internal/executor"
	"hoist/internal/indexer"
	"hoist/internal/planner"
)

// liftAndRecord scans root, lifts depth-2 folders to the root with a full
// sweep, and journals the run with w.
func liftAndRecord(t *testing.T, w *Writer, root string) RunID {
	t.Helper()
	index, err := indexer.Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	plan, err := planner.Build(index, planner.Request{
		Depths:      []int{2},
		Mode:        planner.MoveAndDeleteAll,
		DeleteRange: planner.AllEmpty,
		Destination: planner.Root,
	})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	runID, err := w.StartRun(RunTypeExecute, index.Root(), "test")
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	res, err := executor.New(executor.WithRecorder(w)).Execute(plan, index.Root(), planner.MoveAndDeleteAll)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Failed() != 0 {
		t.Fatalf("unexpected failures: %v", res.Err())
	}
	w.EndRun(runID, RunStatusCompleted, RunSummary{Moved: res.Moved, Deleted: res.Deleted})
	return runID
}

func mustExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); err != nil {
		t.Errorf("expected %s to exist: %v", path, err)
	}
}

func mustNotExist(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Lstat(path); !os.IsNotExist(err) {
		t.Errorf("expected %s to be gone, got %v", path, err)
	}
}

func TestUndoLatest_RestoresLiftedTree(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	for _, dir := range []string{"a/b/c", "x/y"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "a/b/c/file.txt"), []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}

	w, dir := newTestWriter(t, 0)
	runID := liftAndRecord(t, w, root)

	mustExist(t, filepath.Join(root, "a_b/c/file.txt"))
	mustExist(t, filepath.Join(root, "x_y"))
	mustNotExist(t, filepath.Join(root, "a"))
	mustNotExist(t, filepath.Join(root, "x"))

	engine := NewUndoEngine(NewReader(dir), w, "test")
	result, err := engine.UndoLatest()
	if err != nil {
		t.Fatalf("UndoLatest failed: %v", err)
	}

	if result.TargetRunID != runID {
		t.Errorf("TargetRunID = %s, want %s", result.TargetRunID, runID)
	}
	if result.Restored != 2 || result.Recreated != 2 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	mustExist(t, filepath.Join(root, "a/b/c/file.txt"))
	mustExist(t, filepath.Join(root, "x/y"))
	mustNotExist(t, filepath.Join(root, "a_b"))
	mustNotExist(t, filepath.Join(root, "x_y"))

	info, err := NewReader(dir).GetRunByID(result.UndoRunID)
	if err != nil {
		t.Fatalf("GetRunByID failed: %v", err)
	}
	if info.RunType != RunTypeUndo || info.UndoTargetID == nil || *info.UndoTargetID != runID {
		t.Errorf("unexpected undo run info: %+v", info)
	}
}

func TestUndoLatest_RefusesUndoOfUndo(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	if err := os.MkdirAll(filepath.Join(root, "a/b"), 0755); err != nil {
		t.Fatal(err)
	}

	w, dir := newTestWriter(t, 0)
	liftAndRecord(t, w, root)

	engine := NewUndoEngine(NewReader(dir), w, "test")
	if _, err := engine.UndoLatest(); err != nil {
		t.Fatalf("first undo failed: %v", err)
	}
	if _, err := engine.UndoLatest(); !errors.Is(err, ErrUndoOfUndo) {
		t.Errorf("expected ErrUndoOfUndo, got %v", err)
	}
}

func TestUndoRun_OccupiedOriginalIsReported(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	if err := os.MkdirAll(filepath.Join(root, "a/b"), 0755); err != nil {
		t.Fatal(err)
	}

	w, dir := newTestWriter(t, 0)
	runID := liftAndRecord(t, w, root)

	// Someone recreated the original location after the run.
	if err := os.MkdirAll(filepath.Join(root, "a/b"), 0755); err != nil {
		t.Fatal(err)
	}

	result, err := NewUndoEngine(NewReader(dir), w, "test").UndoRun(runID)
	if err != nil {
		t.Fatalf("UndoRun failed: %v", err)
	}
	if result.Failed != 1 || len(result.FailureDetails) != 1 {
		t.Fatalf("expected one failure, got %+v", result)
	}
	if result.FailureDetails[0].Reason != ReasonDestinationOccupied {
		t.Errorf("reason = %s, want DESTINATION_OCCUPIED", result.FailureDetails[0].Reason)
	}
	// The swept parent already exists again, so it is skipped.
	if result.Skipped != 1 || result.Recreated != 0 {
		t.Errorf("unexpected counts: %+v", result)
	}
	mustExist(t, filepath.Join(root, "a_b"))
}

func TestUndoRun_DirectDeletesAreNotReversible(t *testing.T) {
	root := filepath.Join(t.TempDir(), "tree")
	if err := os.MkdirAll(filepath.Join(root, "a/b"), 0755); err != nil {
		t.Fatal(err)
	}

	w, dir := newTestWriter(t, 0)
	runID, err := w.StartRun(RunTypeExecute, root, "test")
	if err != nil {
		t.Fatal(err)
	}
	w.RecordDirDelete(filepath.Join(root, "gone"), false)
	w.EndRun(runID, RunStatusCompleted, RunSummary{Deleted: 1})

	result, err := NewUndoEngine(NewReader(dir), w, "test").UndoRun(runID)
	if err != nil {
		t.Fatalf("UndoRun failed: %v", err)
	}
	if result.Skipped != 1 || result.Restored != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	mustNotExist(t, filepath.Join(root, "gone"))

	events, _ := NewReader(dir).GetRun(result.UndoRunID)
	found := false
	for _, event := range events {
		if event.EventType == EventUndoSkip && event.ReasonCode == ReasonNotReversible {
			found = true
		}
	}
	if !found {
		t.Error("expected an UNDO_SKIP NOT_REVERSIBLE event")
	}
}

func TestUndoRun_RejectsNonExecuteRuns(t *testing.T) {
	w, dir := newTestWriter(t, 0)
	runID, _ := w.StartRun(RunTypeBackup, "/tree", "test")
	w.EndRun(runID, RunStatusCompleted, RunSummary{})

	_, err := NewUndoEngine(NewReader(dir), w, "test").UndoRun(runID)
	if !errors.Is(err, ErrNothingToUndo) {
		t.Errorf("expected ErrNothingToUndo, got %v", err)
	}
}

func TestUndoLatest_EmptyJournal(t *testing.T) {
	w, dir := newTestWriter(t, 0)
	_, err := NewUndoEngine(NewReader(dir), w, "test").UndoLatest()
	if !errors.Is(err, ErrNoRuns) {
		t.Errorf("expected ErrNoRuns, got %v", err)
	}
}

func TestUndoRun_ReplacedFolderIsNotMovedBack(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("folder identity needs inodes")
	}
	root := filepath.Join(t.TempDir(), "tree")
	if err := os.MkdirAll(filepath.Join(root, "a/b"), 0755); err != nil {
		t.Fatal(err)
	}

	w, dir := newTestWriter(t, 0)
	runID := liftAndRecord(t, w, root)

	// The lifted folder is set aside and a new one takes its name. The old
	// one stays on disk so its inode cannot be reused.
	lifted := filepath.Join(root, "a_b")
	if err := os.Rename(lifted, filepath.Join(root, "kept")); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(lifted, 0755); err != nil {
		t.Fatal(err)
	}

	result, err := NewUndoEngine(NewReader(dir), w, "test").UndoRun(runID)
	if err != nil {
		t.Fatalf("UndoRun failed: %v", err)
	}
	if result.Failed != 1 || result.Restored != 0 {
		t.Fatalf("expected one failure and nothing restored, got %+v", result)
	}
	if result.FailureDetails[0].Reason != ReasonIdentityMismatch {
		t.Errorf("reason = %s, want IDENTITY_MISMATCH", result.FailureDetails[0].Reason)
	}
	mustExist(t, lifted)
	mustNotExist(t, filepath.Join(root, "a/b"))
}

func TestVerifyIdentity(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("folder identity needs inodes")
	}
	base := t.TempDir()
	first := filepath.Join(base, "first")
	second := filepath.Join(base, "second")
	for _, dir := range []string{first, second} {
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatal(err)
		}
	}
	id, err := CaptureIdentity(first)
	if err != nil || id == "" {
		t.Fatalf("CaptureIdentity(%s) = %q, %v", first, id, err)
	}

	moved := filepath.Join(base, "moved")
	if err := os.Rename(first, moved); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		path     string
		expected string
		want     IdentityMatch
	}{
		{"renamed folder keeps identity", moved, id, IdentityMatches},
		{"other folder", second, id, IdentityMismatch},
		{"missing path", first, id, IdentityNotFound},
		{"nothing recorded", second, "", IdentityUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VerifyIdentity(tt.path, tt.expected)
			if err != nil {
				t.Fatalf("VerifyIdentity failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("VerifyIdentity = %d, want %d", got, tt.want)
			}
		})
	}
}
