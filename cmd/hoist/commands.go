package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"hoist/internal/audit"
	"hoist/internal/output"
	"hoist/internal/planner"
	"hoist/internal/report"
)

func newScanCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <root>",
		Short: "Index a tree and print its folders by depth",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, args[0], false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			index, err := a.session.Scan()
			if err != nil {
				return err
			}
			a.out.Info("%s", report.Tree(index))
			return nil
		},
	}
}

func newPlanCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <root>",
		Short: "Preview the moves and deletions a run would make",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, args[0], false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			plan, err := a.scanAndPlan()
			if err != nil {
				return err
			}
			a.printPlan(plan)

			if opts.showDiff {
				diff, err := report.PreviewDiff(a.session.Index(), plan)
				if err != nil {
					return err
				}
				if diff != "" {
					a.out.Info("\n%s", diff)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.showDiff, "diff", false, "also print a unified diff of the folder list")
	return cmd
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <root>",
		Short: "Back up the tree, then apply the plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, args[0], true, true)
			if err != nil {
				return err
			}
			defer a.Close()

			plan, err := a.scanAndPlan()
			if err != nil {
				return err
			}
			a.printPlan(plan)
			if plan.IsEmpty() {
				return nil
			}

			if !opts.assumeYes {
				if !output.IsInteractive() {
					return fmt.Errorf("refusing to run without --yes when stdin is not a terminal")
				}
				ok, err := output.NewPrompter(os.Stdin, os.Stdout).Confirm("Apply these changes?")
				if err != nil {
					return err
				}
				if !ok {
					a.out.Info("Aborted.")
					return nil
				}
			}

			result, err := a.session.Execute(plan, plan.Mode())
			if err != nil {
				return err
			}
			for _, item := range result.Failures() {
				a.out.Error("Error: %s %s: %v", item.Kind, item.Source, item.Err)
			}
			a.out.Info("%s", result.Summary())
			a.out.Info("Run ID: %s", result.RunID)
			if result.HasErrors() {
				return errItemsFailed
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&opts.assumeYes, "yes", "y", false, "do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.noBackup, "no-backup", false, "skip the backup taken before the run")
	return cmd
}

func newBackupCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <root>",
		Short: "Copy the tree to a timestamped sibling directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, args[0], false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			path, err := a.session.Backup()
			if err != nil {
				return err
			}
			a.out.Info("Backup: %s", path)
			return nil
		},
	}
}

func newRestoreCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <root>",
		Short: "Replace the tree with a backup (the newest one by default)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, args[0], false, false)
			if err != nil {
				return err
			}
			defer a.Close()

			from := opts.restoreFrom
			if from == "" {
				latest, ok, err := a.session.LatestBackup()
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no backup found for %s", a.session.Root())
				}
				from = latest
			}

			if !opts.assumeYes {
				if !output.IsInteractive() {
					return fmt.Errorf("refusing to restore without --yes when stdin is not a terminal")
				}
				question := fmt.Sprintf("Replace %s with %s?", a.session.Root(), from)
				ok, err := output.NewPrompter(os.Stdin, os.Stdout).Confirm(question)
				if err != nil {
					return err
				}
				if !ok {
					a.out.Info("Aborted.")
					return nil
				}
			}

			if err := a.session.Restore(from); err != nil {
				return err
			}
			a.out.Info("Restored %s from %s", a.session.Root(), from)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.restoreFrom, "from", "", "backup directory to restore from")
	cmd.Flags().BoolVarP(&opts.assumeYes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func newUndoCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "undo <root>",
		Short: "Reverse the latest run recorded in the journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, args[0], false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.session.Undo()
			if err != nil {
				if errors.Is(err, audit.ErrNoRuns) {
					return fmt.Errorf("nothing to undo: the journal in %s is empty", a.session.JournalDir())
				}
				return err
			}
			for _, failure := range result.FailureDetails {
				a.out.Error("Error: %s: %s %s", failure.SourcePath, failure.Reason, failure.Message)
			}
			a.out.Info("Undid run %s: %d folder(s) moved back, %d director(ies) recreated, %d skipped, %d failed",
				result.TargetRunID, result.Restored, result.Recreated, result.Skipped, result.Failed)
			if result.Failed > 0 {
				return errItemsFailed
			}
			return nil
		},
	}
}

func newRunsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "runs <root>",
		Short: "List the runs recorded in the journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, args[0], false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.session.Runs()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				a.out.Info("No runs recorded in %s", a.session.JournalDir())
				return nil
			}
			for _, run := range runs {
				a.out.Info("%s  %-8s %-9s %s  moved %d, deleted %d, failed %d",
					run.StartTime.Local().Format(time.DateTime), run.RunType, run.Status, run.RunID,
					run.Summary.Moved, run.Summary.Deleted, run.Summary.MoveFailed+run.Summary.DeleteFailed)
			}
			return nil
		},
	}
}

func newStatsCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <root>",
		Short: "Summarize the runs recorded in the journal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, args[0], false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var since *time.Time
			if opts.sinceDays > 0 {
				t := time.Now().AddDate(0, 0, -opts.sinceDays)
				since = &t
			}
			stats, err := a.session.Stats(since)
			if err != nil {
				return err
			}

			a.out.Info("Runs: %d execute, %d undo, %d backup, %d restore (%d failed)",
				stats.Runs[audit.RunTypeExecute], stats.Runs[audit.RunTypeUndo],
				stats.Runs[audit.RunTypeBackup], stats.Runs[audit.RunTypeRestore], stats.Failed)
			a.out.Info("Folders lifted: %d, directories removed: %d, moved back by undo: %d",
				stats.Moved, stats.Deleted, stats.Restored)
			if !stats.FirstRun.IsZero() {
				a.out.Info("First run: %s, last run: %s",
					stats.FirstRun.Local().Format(time.DateTime), stats.LastRun.Local().Format(time.DateTime))
			}

			roots := make([]string, 0, len(stats.ByRoot))
			for root := range stats.ByRoot {
				roots = append(roots, root)
			}
			sort.Slice(roots, func(i, j int) bool {
				if stats.ByRoot[roots[i]] != stats.ByRoot[roots[j]] {
					return stats.ByRoot[roots[i]] > stats.ByRoot[roots[j]]
				}
				return roots[i] < roots[j]
			})
			for _, root := range roots {
				a.out.Verbose("  %4d  %s", stats.ByRoot[root], root)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&opts.sinceDays, "since-days", 0, "only count runs from the last N days")
	return cmd
}

func newReportCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report <root>",
		Short: "Export per-folder statistics as CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, args[0], false, true)
			if err != nil {
				return err
			}
			defer a.Close()

			index, err := a.session.Scan()
			if err != nil {
				return err
			}
			if opts.csvPath == "" || opts.csvPath == "-" {
				return report.WriteCSV(os.Stdout, index)
			}

			f, err := os.Create(opts.csvPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", opts.csvPath, err)
			}
			if err := report.WriteCSV(f, index); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			a.out.Info("Wrote %d folder(s) to %s", index.Total(), opts.csvPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.csvPath, "output", "o", "-", "CSV file to write, - for stdout")
	return cmd
}

func (a *app) scanAndPlan() (*planner.PreviewPlan, error) {
	req, err := a.cfg.Request()
	if err != nil {
		return nil, err
	}
	if _, err := a.session.Scan(); err != nil {
		return nil, err
	}
	return a.session.Plan(req.Depths, req.Mode, req.DeleteRange, req.Destination)
}

func (a *app) printPlan(plan *planner.PreviewPlan) {
	rel := func(path string) string {
		if r, err := filepath.Rel(a.session.Root(), path); err == nil {
			return r
		}
		return path
	}

	if plan.IsEmpty() {
		a.out.Info("Nothing to do at depth(s) %v.", plan.Depths())
	}
	for _, w := range plan.Warnings() {
		a.out.Info("Warning: %s", w)
	}
	for _, move := range plan.Moves() {
		a.out.Info("move    %s -> %s", rel(move.Source), rel(move.Destination))
	}
	for _, target := range plan.DeleteTargets() {
		a.out.Info("delete  %s", rel(target))
	}
	a.out.Info("%d move(s), %d predicted deletion(s), mode %s, delete range %s, destination %s",
		len(plan.Moves()), len(plan.DeleteTargets()), plan.Mode(), plan.DeleteRange(), plan.Destination())
}
