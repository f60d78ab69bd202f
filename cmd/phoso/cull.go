package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"phoso/internal/config"
	"phoso/internal/cull"
	"phoso/internal/progress"
)

var (
	cullDryRun      bool
	cullSizeLimit   int64
	cullNoProgress  bool
	cullVerifyStale bool
	cullKeepMissing bool
)

var cullCmd = &cobra.Command{
	Use:   "cull <root> [hash-list]",
	Short: "Delete files whose content already exists elsewhere under root",
	Long: `Cull hashes every file below root that is not yet in the hash list, then
deletes all but one copy of each distinct content. The copy with the smallest
path is kept. Files at or above the size limit are recorded without a hash
and never deleted.

The hash list defaults to the ledger path in the config file
($HOME/.phoso/hashes.json). Lists ending in .zst are compressed.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCull,
}

func init() {
	cullCmd.Flags().BoolVar(&cullDryRun, "dry-run", false, "report duplicates without deleting them (the hash list is still updated)")
	cullCmd.Flags().Int64Var(&cullSizeLimit, "size-limit", 0, "do not hash files of at least this many bytes (default from config, 500000000)")
	cullCmd.Flags().BoolVar(&cullNoProgress, "no-progress", false, "do not draw a progress bar")
	cullCmd.Flags().BoolVar(&cullVerifyStale, "verify-stale", false, "re-hash listed files whose size or change time moved")
	cullCmd.Flags().BoolVar(&cullKeepMissing, "keep-missing", false, "keep hash list entries for files that no longer exist")
}

func runCull(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ledgerPath := cfg.Ledger
	if len(args) == 2 {
		ledgerPath = args[1]
	}

	sizeLimit, err := resolveSizeLimit(cfg.SizeLimit, cullSizeLimit, cmd.Flags().Changed("size-limit"))
	if err != nil {
		return err
	}

	var bar *progress.Bar
	if !cullNoProgress && progress.IsTerminal(os.Stderr) {
		bar = progress.New(0, os.Stderr)
	}

	engine := cull.NewEngine(cull.Options{
		Root:         args[0],
		LedgerPath:   config.ExpandHome(ledgerPath),
		SizeLimit:    sizeLimit,
		DryRun:       cullDryRun,
		Exclude:      cfg.Exclude,
		ReportEvery:  cfg.ReportEvery,
		PruneMissing: cfg.PruneMissing && !cullKeepMissing,
		VerifyStale:  cfg.VerifyStale || cullVerifyStale,
		Progress:     bar,
	}, logger)

	summary, err := engine.Run(ctx)
	if err != nil {
		logger.Error("cull failed", "error", err)
		return err
	}

	fmt.Print(cull.FormatSummary(summary))
	return nil
}

// resolveSizeLimit prefers an explicit --size-limit over the config value.
// Zero disables the limit; negative values are rejected like in the config.
func resolveSizeLimit(cfgLimit, flagLimit int64, changed bool) (int64, error) {
	if !changed {
		return cfgLimit, nil
	}
	if flagLimit < 0 {
		return 0, fmt.Errorf("--size-limit must not be negative, got %d", flagLimit)
	}
	return flagLimit, nil
}
