package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"phoso/internal/compare"
	"phoso/internal/config"
	"phoso/internal/ledger"
	"phoso/internal/walker"
)

var (
	reconcileSourceLedger string
	reconcileDestLedger   string
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <source> <destination>",
	Short: "List source files whose content already exists in destination",
	Long: `Reconcile hashes both trees and reports which source files are already
present somewhere in destination, by content rather than by name.

A hash list for either side lets reconcile skip files it already knows.
Nothing is modified.`,
	Args: cobra.ExactArgs(2),
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().StringVar(&reconcileSourceLedger, "source-ledger", "", "hash list covering the source tree")
	reconcileCmd.Flags().StringVar(&reconcileDestLedger, "dest-ledger", "", "hash list covering the destination tree")
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger()

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var source, destination []ledger.Record

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := hashSide(gctx, args[0], reconcileSourceLedger, cfg, logger.With("side", "source"))
		source = records
		return err
	})
	g.Go(func() error {
		records, err := hashSide(gctx, args[1], reconcileDestLedger, cfg, logger.With("side", "destination"))
		destination = records
		return err
	})
	if err := g.Wait(); err != nil {
		logger.Error("reconcile failed", "error", err)
		return err
	}

	result := compare.CommonHashes(source, destination)
	fmt.Print(compare.FormatReport(result))
	return nil
}

// hashSide returns records for every file below root. Records from the
// optional ledger are trusted; only files it does not list are hashed.
func hashSide(ctx context.Context, root, ledgerPath string, cfg *config.Config, logger *slog.Logger) ([]ledger.Record, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	var known []ledger.Record
	if ledgerPath != "" {
		path := config.ExpandHome(ledgerPath)
		loaded, err := ledger.Read(path)
		if err != nil {
			logger.Warn("failed to load ledger (will treat as empty)", "path", path, "error", err)
		}
		known = within(absRoot, loaded)
		logger.Info("loaded ledger", "path", path, "records", len(loaded), "below_root", len(known))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := walker.HashTree(absRoot, known, walker.Options{
		SizeLimit:   cfg.SizeLimit,
		Exclude:     cfg.Exclude,
		ReportEvery: cfg.ReportEvery,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hash %s: %w", absRoot, err)
	}

	return ledger.Merge(known, result.Records), ctx.Err()
}

// within keeps the records whose path lies below root.
func within(root string, records []ledger.Record) []ledger.Record {
	prefix := root + string(filepath.Separator)
	kept := make([]ledger.Record, 0, len(records))
	for _, rec := range records {
		if strings.HasPrefix(rec.Path, prefix) {
			kept = append(kept, rec)
		}
	}
	return kept
}
