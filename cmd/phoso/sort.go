package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"phoso/internal/config"
	"phoso/internal/media"
	"phoso/internal/progress"
)

var (
	sortMove           bool
	sortHoldDir        string
	sortFormat         string
	sortKeepFilenames  bool
	sortKeepDuplicates bool
	sortIgnoreExif     bool
	sortExtensions     []string
	sortDestLedger     string
	sortDeleteDir      bool
	sortForceDeleteDir bool
	sortDryRun         bool
	sortNoProgress     bool
)

var sortCmd = &cobra.Command{
	Use:   "sort <src> <dest>",
	Short: "File media into folders by capture date",
	Long: `Sort copies (or moves) photos and videos from src into dest, one folder per
date as given by --format, a Go time layout where / separates directories.
The date comes from known file name patterns, then EXIF, then the file's
modification time. Files are renamed to date_time_model.ext unless
--keep-filenames is set.

A file whose content is already at its destination is skipped; in move mode
it goes to --hold-dir instead, keeping its path relative to src.`,
	Args: cobra.ExactArgs(2),
	RunE: runSort,
}

func init() {
	sortCmd.Flags().BoolVarP(&sortMove, "move", "m", false, "move files instead of copying")
	sortCmd.Flags().StringVar(&sortHoldDir, "hold-dir", "", "directory for moved files that already exist in dest (default from config)")
	sortCmd.Flags().StringVarP(&sortFormat, "format", "s", "", "destination folder layout as a Go time layout (default from config, 2006/01)")
	sortCmd.Flags().BoolVar(&sortKeepFilenames, "keep-filenames", false, "do not rename files")
	sortCmd.Flags().BoolVar(&sortKeepDuplicates, "keep-duplicates", false, "keep identical files under a new name")
	sortCmd.Flags().BoolVar(&sortIgnoreExif, "ignore-exif", false, "always use the file time even if EXIF data exists")
	sortCmd.Flags().StringSliceVar(&sortExtensions, "extensions", nil, "file types to sort (default from config)")
	sortCmd.Flags().StringVar(&sortDestLedger, "dest-ledger", "", "hash list of dest; source files it lists count as already present")
	sortCmd.Flags().BoolVarP(&sortDeleteDir, "delete-dir", "d", false, "remove empty directories from src afterwards")
	sortCmd.Flags().BoolVarP(&sortForceDeleteDir, "force-delete-dir", "f", false, "remove all directories from src afterwards, even if not empty")
	sortCmd.Flags().BoolVar(&sortDryRun, "dry-run", false, "show what would be done without making changes")
	sortCmd.Flags().BoolVar(&sortNoProgress, "no-progress", false, "do not draw a progress bar")
}

func runSort(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	opts := media.Options{
		Layout:         cfg.Sort.Format,
		Extensions:     cfg.Sort.Extensions,
		Move:           sortMove,
		HoldDir:        config.ExpandHome(cfg.Sort.HoldDir),
		KeepFilenames:  sortKeepFilenames || !cfg.Sort.Rename,
		KeepDuplicates: sortKeepDuplicates,
		IgnoreExif:     sortIgnoreExif || cfg.Sort.IgnoreExif,
		SizeLimit:      cfg.SizeLimit,
		DryRun:         sortDryRun,
	}
	if sortFormat != "" {
		opts.Layout = sortFormat
	}
	if len(sortExtensions) > 0 {
		opts.Extensions = sortExtensions
	}
	if sortHoldDir != "" {
		opts.HoldDir = config.ExpandHome(sortHoldDir)
	}
	if sortDestLedger != "" {
		opts.DestLedger = config.ExpandHome(sortDestLedger)
	}
	if !sortNoProgress && progress.IsTerminal(os.Stderr) {
		opts.Progress = progress.New(0, os.Stderr)
	}

	report, err := media.NewSorter(opts, logger).Run(ctx, args[0], args[1])
	if err != nil {
		logger.Error("sort failed", "error", err)
		return err
	}
	fmt.Print(media.FormatReport(report))

	if (sortDeleteDir || sortForceDeleteDir) && !sortDryRun {
		removed, err := media.RemoveEmptyDirs(args[0], sortForceDeleteDir)
		if err != nil {
			logger.Warn("failed to remove some directories", "root", args[0], "error", err)
		}
		logger.Info("removed source directories", "root", args[0], "count", removed, "force", sortForceDeleteDir)
	}

	return nil
}
