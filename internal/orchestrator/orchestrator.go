// Package orchestrator threads one hoist session through scan, plan and
// execute, with the backup guard, the journal and the change monitor around
// them.
package orchestrator

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"hoist/internal/audit"
	"hoist/internal/backup"
	"hoist/internal/config"
	"hoist/internal/executor"
	"hoist/internal/indexer"
	"hoist/internal/output"
	"hoist/internal/planner"
	"hoist/internal/watcher"
)

var (
	// ErrBackupFailed wraps the cause when the pre-run backup could not be
	// made or verified. Nothing in the tree was changed.
	ErrBackupFailed = errors.New("backup failed, run aborted")
	// ErrNotScanned is returned by Plan before a successful Scan.
	ErrNotScanned = errors.New("no scan in this session")
	// ErrJournalInsideRoot is returned when the journal directory lies inside
	// the tree being reorganized.
	ErrJournalInsideRoot = errors.New("journal directory must be outside the root")
)

// Session holds everything one invocation works with. Nothing is global:
// two sessions on different roots do not share state.
type Session struct {
	root       string
	cfg        *config.Configuration
	appVersion string

	out     *output.Output
	log     *output.Logger
	backups Snapshotter
	journal *audit.Writer
	reader  *audit.Reader
	monitor *watcher.ChangeMonitor

	index *indexer.HierarchyIndex
}

// Snapshotter takes and restores whole-tree backups. *backup.Manager
// implements it.
type Snapshotter interface {
	Backup(src string) (string, error)
	Verify(a, b string) (bool, error)
	Restore(backupPath, dest string) error
	Latest(original string) (backup.Record, bool, error)
}

// Option configures a Session.
type Option func(*Session)

// WithOutput sets the console output. The default discards everything.
func WithOutput(out *output.Output) Option {
	return func(s *Session) { s.out = out }
}

// WithLogger sets the text log.
func WithLogger(l *output.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithBackupManager replaces the default backup manager.
func WithBackupManager(m Snapshotter) Option {
	return func(s *Session) { s.backups = m }
}

// WithAppVersion sets the version recorded on journal runs.
func WithAppVersion(v string) Option {
	return func(s *Session) { s.appVersion = v }
}

// NewSession opens a session on root. A symlinked root is resolved to its
// target, which is what scans, backups and the journal refer to. A relative
// journal directory is resolved against root's parent, next to the backups,
// so the journal is never part of the tree it records.
func NewSession(root string, cfg *config.Configuration, opts ...Option) (*Session, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}
	absRoot = indexer.ResolveRoot(filepath.Clean(absRoot))
	if cfg == nil {
		cfg = config.Default()
	}

	s := &Session{
		root:       absRoot,
		cfg:        cfg,
		appVersion: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.out == nil {
		s.out = output.New(output.Config{Writer: io.Discard, ErrWriter: io.Discard})
	}
	if s.backups == nil {
		s.backups = backup.New()
	}

	journalCfg := cfg.Journal
	if journalCfg.Directory == "" {
		journalCfg.Directory = audit.DefaultJournalConfig().Directory
	}
	if !filepath.IsAbs(journalCfg.Directory) {
		journalCfg.Directory = filepath.Join(filepath.Dir(absRoot), journalCfg.Directory)
	}
	journalCfg.Directory = filepath.Clean(journalCfg.Directory)
	if journalCfg.Directory == absRoot || strings.HasPrefix(journalCfg.Directory, absRoot+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrJournalInsideRoot, journalCfg.Directory)
	}

	journal, err := audit.NewWriter(journalCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	s.journal = journal
	s.reader = audit.NewReader(journalCfg.Directory)

	return s, nil
}

// Root returns the absolute root of the session.
func (s *Session) Root() string { return s.root }

// Index returns the index of the last scan, or nil.
func (s *Session) Index() *indexer.HierarchyIndex { return s.index }

// JournalDir returns the resolved journal directory.
func (s *Session) JournalDir() string { return filepath.Dir(s.journal.LogPath()) }

// Close stops the change monitor and closes the journal.
func (s *Session) Close() error {
	s.stopMonitor()
	return s.journal.Close()
}

// Scan indexes the root. When watching is enabled, the change monitor is
// restarted on the root and every indexed folder.
func (s *Session) Scan() (*indexer.HierarchyIndex, error) {
	index, err := indexer.Scan(s.root)
	if err != nil {
		s.log.Error("scan of %s failed: %v", s.root, err)
		return nil, err
	}
	s.index = index

	for _, skipped := range index.Skipped() {
		s.log.Warn("skipped %s: %v", skipped.Path, skipped.Err)
		s.out.Verbose("skipped %s: %v", skipped.Path, skipped.Err)
	}
	s.log.Info("scanned %s: %d folder(s), max depth %d", s.root, index.Total(), index.MaxDepth())

	if s.cfg.Watch {
		s.startMonitor(index)
	}
	return index, nil
}

func (s *Session) startMonitor(index *indexer.HierarchyIndex) {
	s.stopMonitor()

	dirs := []string{s.root}
	for _, rec := range index.All() {
		dirs = append(dirs, rec.Path)
	}
	monitor := watcher.New(watcher.DefaultConfig(), func(paths []string) {
		s.log.Warn("tree changed since scan: %d path(s)", len(paths))
	})
	if err := monitor.Start(dirs); err != nil {
		s.log.Warn("change monitor unavailable: %v", err)
		return
	}
	s.monitor = monitor
}

func (s *Session) stopMonitor() {
	if s.monitor != nil {
		s.monitor.Stop()
		s.monitor = nil
	}
}

// Changed reports whether the tree changed since the last scan.
func (s *Session) Changed() bool {
	return s.monitor != nil && s.monitor.Changed()
}

// Plan builds a preview plan against the last scan.
func (s *Session) Plan(depths []int, mode planner.OperationMode, deleteRange planner.DeleteRange, destination planner.DestinationMode) (*planner.PreviewPlan, error) {
	if s.index == nil {
		return nil, ErrNotScanned
	}
	plan, err := planner.Build(s.index, planner.Request{
		Depths:      depths,
		Mode:        mode,
		DeleteRange: deleteRange,
		Destination: destination,
	})
	if err != nil {
		return nil, err
	}
	for _, warning := range plan.Warnings() {
		s.log.Warn("%s", warning)
	}
	s.log.Info("planned %s: %d move(s), %d delete target(s)", mode, len(plan.Moves()), len(plan.DeleteTargets()))
	return plan, nil
}

// Execute applies plan. When backups are enabled the root is copied first;
// if that fails, nothing is changed and the error wraps ErrBackupFailed.
// The run is journaled item by item. The returned error covers
// preconditions and the backup guard; item failures are on the RunResult.
func (s *Session) Execute(plan *planner.PreviewPlan, mode planner.OperationMode) (*RunResult, error) {
	if plan == nil {
		return nil, executor.ErrNilPlan
	}
	if mode != plan.Mode() {
		return nil, executor.ErrModeMismatch
	}

	start := time.Now()
	result := &RunResult{ChangedSinceScan: s.Changed()}
	// Our own moves would trip the monitor.
	s.stopMonitor()
	if result.ChangedSinceScan {
		s.out.Info("Warning: the tree changed since it was scanned; some items may fail.")
	}

	if s.cfg.Backup.Enabled {
		path, err := s.guardBackup()
		if err != nil {
			s.log.Error("%v", err)
			return nil, err
		}
		result.BackupPath = path
	}

	runID, err := s.journal.StartRun(audit.RunTypeExecute, s.root, s.appVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to start journal run: %w", err)
	}
	result.RunID = runID
	if result.BackupPath != "" {
		s.journalErr(s.journal.RecordBackup(s.root, result.BackupPath))
	}

	exec := executor.New(executor.WithRecorder(s.journal), executor.WithProgress(s.out))
	res, err := exec.Execute(plan, s.root, mode)
	if err != nil {
		s.endRun(runID, audit.RunStatusFailed, audit.RunSummary{})
		return nil, err
	}
	result.absorb(res)
	result.Duration = time.Since(start)

	for _, item := range res.Items {
		switch {
		case item.Err != nil:
			s.log.Error("%s %s: %v", strings.ToLower(string(item.Kind)), item.Source, item.Err)
			s.out.Verbose("FAILED %s %s: %v", strings.ToLower(string(item.Kind)), item.Source, item.Err)
		case item.Kind == executor.KindMove:
			s.log.Info("moved %s -> %s", item.Source, item.Destination)
			s.out.Verbose("moved %s -> %s", item.Source, item.Destination)
		case item.Skipped:
			s.out.Verbose("skipped %s (already gone)", item.Source)
		default:
			s.log.Info("deleted %s", item.Source)
			s.out.Verbose("deleted %s", item.Source)
		}
	}
	if res.RecordErr != nil {
		s.log.Error("journal write failed: %v", res.RecordErr)
	}

	status := audit.RunStatusCompleted
	if res.Failed() > 0 {
		status = audit.RunStatusFailed
	}
	s.endRun(runID, status, result.journalSummary())

	// The index no longer describes the tree.
	s.index = nil
	return result, nil
}

func (s *Session) endRun(runID audit.RunID, status audit.RunStatus, summary audit.RunSummary) {
	if err := s.journal.EndRun(runID, status, summary); err != nil {
		s.log.Error("failed to end journal run %s: %v", runID, err)
	}
}

func (s *Session) journalErr(err error) {
	if err != nil {
		s.log.Error("journal write failed: %v", err)
	}
}

// guardBackup takes the pre-run backup and, when configured, verifies it.
func (s *Session) guardBackup() (string, error) {
	path, err := s.backups.Backup(s.root)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrBackupFailed, err)
	}
	s.log.Info("backed up %s to %s", s.root, path)

	if s.cfg.Backup.Verify {
		same, err := s.backups.Verify(s.root, path)
		if err != nil {
			return "", fmt.Errorf("%w: verifying %s: %w", ErrBackupFailed, path, err)
		}
		if !same {
			return "", fmt.Errorf("%w: %s does not match %s", ErrBackupFailed, path, s.root)
		}
	}
	return path, nil
}

// Backup snapshots the root as its own journaled run.
func (s *Session) Backup() (string, error) {
	runID, err := s.journal.StartRun(audit.RunTypeBackup, s.root, s.appVersion)
	if err != nil {
		return "", fmt.Errorf("failed to start journal run: %w", err)
	}
	path, err := s.backups.Backup(s.root)
	if err != nil {
		s.log.Error("backup of %s failed: %v", s.root, err)
		s.endRun(runID, audit.RunStatusFailed, audit.RunSummary{})
		return "", err
	}
	s.journalErr(s.journal.RecordBackup(s.root, path))
	s.endRun(runID, audit.RunStatusCompleted, audit.RunSummary{})
	s.log.Info("backed up %s to %s", s.root, path)
	return path, nil
}

// Restore replaces the root with backupPath. The old contents are removed
// first; a failed copy leaves the root partially restored.
func (s *Session) Restore(backupPath string) error {
	s.stopMonitor()

	runID, err := s.journal.StartRun(audit.RunTypeRestore, s.root, s.appVersion)
	if err != nil {
		return fmt.Errorf("failed to start journal run: %w", err)
	}
	restoreErr := s.backups.Restore(backupPath, s.root)
	s.journalErr(s.journal.RecordRestore(backupPath, s.root, restoreErr))

	status := audit.RunStatusCompleted
	if restoreErr != nil {
		status = audit.RunStatusFailed
		s.log.Error("restore of %s from %s failed: %v", s.root, backupPath, restoreErr)
	} else {
		s.log.Info("restored %s from %s", s.root, backupPath)
	}
	s.endRun(runID, status, audit.RunSummary{})
	s.index = nil
	return restoreErr
}

// LatestBackup returns the path of the newest backup of the root.
func (s *Session) LatestBackup() (string, bool, error) {
	rec, ok, err := s.backups.Latest(s.root)
	if err != nil || !ok {
		return "", ok, err
	}
	return rec.Path, true, nil
}

// Undo reverses the latest journaled run.
func (s *Session) Undo() (*audit.UndoResult, error) {
	s.stopMonitor()

	engine := audit.NewUndoEngine(s.reader, s.journal, s.appVersion)
	result, err := engine.UndoLatest()
	if err != nil {
		s.log.Error("undo failed: %v", err)
		return nil, err
	}
	for _, failure := range result.FailureDetails {
		s.log.Error("undo %s: %s %s", failure.SourcePath, failure.Reason, failure.Message)
	}
	s.log.Info("undid run %s: %d restored, %d recreated, %d failed", result.TargetRunID, result.Restored, result.Recreated, result.Failed)
	s.index = nil
	return result, nil
}

// Runs lists the journaled runs, oldest first.
func (s *Session) Runs() ([]audit.RunInfo, error) {
	return s.reader.ListRuns()
}

// Stats aggregates the journaled runs.
func (s *Session) Stats(since *time.Time) (*audit.JournalStats, error) {
	return audit.AggregateStats(s.reader, audit.StatsOptions{Since: since, TopN: 5})
}
