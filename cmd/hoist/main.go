// hoist
//
// Lifts folders found at chosen depths of a directory tree up to the top
// level (or to their grandparent), then sweeps the directories left empty.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"hoist/internal/config"
	"hoist/internal/orchestrator"
	"hoist/internal/output"
)

var version = "dev"

// options holds the flag values of one invocation.
type options struct {
	configPath  string
	verbose     bool
	depths      []int
	mode        string
	deleteRange string
	destination string
	assumeYes   bool
	noBackup    bool
	showDiff    bool
	restoreFrom string
	csvPath     string
	sinceDays   int
}

// errItemsFailed makes the process exit non-zero after a run that
// completed with per-item failures.
var errItemsFailed = errors.New("some items failed")

func newRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "hoist",
		Short: "Flatten nested folders by lifting them to the top of a tree",
		Long: `hoist scans a directory tree, buckets every folder by depth and lifts
the folders at the chosen depths up to the root (renamed parent_child) or to
their grandparent. Directories emptied by the moves can then be swept.

Every run is previewed first, guarded by a backup of the whole tree and
recorded in a journal so it can be undone.`,
		Example: `  # Show the folder tree and per-depth counts
  hoist scan ~/Archive

  # Preview lifting depth-2 folders to the root
  hoist plan ~/Archive --depth 2 --diff

  # Apply it without prompting
  hoist run ~/Archive --depth 2 --yes

  # Put everything back
  hoist undo ~/Archive`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "hoist.yaml", "configuration file (defaults apply when it does not exist)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "print every operation")

	planCmd := newPlanCmd(opts)
	runCmd := newRunCmd(opts)
	for _, cmd := range []*cobra.Command{planCmd, runCmd} {
		cmd.Flags().IntSliceVarP(&opts.depths, "depth", "d", nil, "depths to lift, e.g. --depth 2,3")
		cmd.Flags().StringVarP(&opts.mode, "mode", "m", "", "move-only, move-and-delete-all, delete-only or custom")
		cmd.Flags().StringVar(&opts.deleteRange, "delete-range", "", "all-empty, selected-only or no-delete")
		cmd.Flags().StringVar(&opts.destination, "destination", "", "root or parent-up")
	}

	rootCmd.AddCommand(
		newScanCmd(opts),
		planCmd,
		runCmd,
		newBackupCmd(opts),
		newRestoreCmd(opts),
		newUndoCmd(opts),
		newRunsCmd(opts),
		newStatsCmd(opts),
		newReportCmd(opts),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errItemsFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies the flags the user
// set on cmd.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Configuration, error) {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("depth") {
		cfg.Depths = opts.depths
	}
	if flags.Changed("mode") {
		cfg.Mode = opts.mode
	}
	if flags.Changed("delete-range") {
		cfg.DeleteRange = opts.deleteRange
	}
	if flags.Changed("destination") {
		cfg.Destination = opts.destination
	}
	if flags.Changed("no-backup") && opts.noBackup {
		cfg.Backup.Enabled = false
	}

	result := config.ValidateConfig(cfg)
	for _, w := range result.Warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s: %s\n", w.Field, w.Message)
	}
	if !result.Valid {
		for _, e := range result.Errors {
			fmt.Fprintf(os.Stderr, "Error: %s: %s\n", e.Field, e.Message)
		}
		return nil, fmt.Errorf("invalid configuration")
	}
	return cfg, nil
}

// app bundles what one command works with.
type app struct {
	cfg     *config.Configuration
	session *orchestrator.Session
	out     *output.Output
	logger  *output.Logger
}

// openApp loads the configuration and opens a session on root. watch
// enables the change monitor, which only matters for commands that scan and
// then execute. requireRoot rejects a root that does not exist; restore
// passes false so a deleted tree can be brought back.
func openApp(cmd *cobra.Command, opts *options, root string, watch, requireRoot bool) (*app, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}
	if !watch {
		cfg.Watch = false
	}

	info, err := os.Stat(root)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, fmt.Errorf("not a directory: %s", root)
		}
	case requireRoot || !os.IsNotExist(err):
		return nil, fmt.Errorf("cannot access %s: %w", root, err)
	}

	outCfg := output.DefaultConfig()
	outCfg.Verbose = opts.verbose
	out := output.New(outCfg)

	logger, err := output.OpenLogger(cfg.LogFile)
	if err != nil {
		return nil, err
	}

	session, err := orchestrator.NewSession(filepath.Clean(root), cfg,
		orchestrator.WithOutput(out),
		orchestrator.WithLogger(logger),
		orchestrator.WithAppVersion(version),
	)
	if err != nil {
		logger.Close()
		return nil, err
	}
	return &app{cfg: cfg, session: session, out: out, logger: logger}, nil
}

func (a *app) Close() {
	a.session.Close()
	a.logger.Close()
}
