package cull

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"phoso/internal/dedupe"
	"phoso/internal/ledger"
	"phoso/internal/progress"
	"phoso/internal/walker"
)

// ErrRootNotFound is returned when the tree to cull does not exist.
var ErrRootNotFound = errors.New("root directory not found")

// Options configures one cull run.
type Options struct {
	Root       string
	LedgerPath string
	SizeLimit  int64
	DryRun     bool
	Exclude    []string
	// ReportEvery controls how often hashing progress is logged.
	ReportEvery int
	// PruneMissing drops ledger records whose file no longer exists.
	PruneMissing bool
	// VerifyStale re-hashes ledger records whose size or change time moved.
	VerifyStale bool
	// Hash overrides the content hash, mainly for tests.
	Hash     walker.HashFunc
	Progress *progress.Bar
}

// Engine runs the cull phases: load, hash, merge, extract, delete, persist.
type Engine struct {
	opts   Options
	logger *slog.Logger
	remove func(path string) error
}

// NewEngine creates a new cull engine
func NewEngine(opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		opts:   opts,
		logger: logger,
		remove: os.Remove,
	}
}

// Run executes a complete cull. The ledger is written once, at the end, and
// only if every earlier phase finished.
func (e *Engine) Run(ctx context.Context) (*Summary, error) {
	root, err := filepath.Abs(e.opts.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootNotFound, root)
		}
		return nil, fmt.Errorf("failed to stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootNotFound, root)
	}

	ledgerPath, err := filepath.Abs(e.opts.LedgerPath)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute ledger path: %w", err)
	}

	summary := &Summary{Root: root, Ledger: ledgerPath, DryRun: e.opts.DryRun}

	e.logger.Info("starting cull",
		"root", root,
		"ledger", ledgerPath,
		"size_limit", e.opts.SizeLimit,
		"dry_run", e.opts.DryRun)

	// Load
	known, err := ledger.Read(ledgerPath)
	if err != nil {
		e.logger.Warn("failed to load ledger (will treat as empty)", "path", ledgerPath, "error", err)
		known = []ledger.Record{}
	}
	summary.Loaded = len(known)

	if e.opts.PruneMissing {
		known, summary.Pruned = e.pruneMissing(known)
	}
	if e.opts.VerifyStale {
		known, summary.Stale = e.dropStale(known)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Hash
	hashResult, err := walker.HashTree(root, known, walker.Options{
		SizeLimit:   e.opts.SizeLimit,
		Exclude:     e.opts.Exclude,
		SkipPaths:   []string{ledgerPath},
		ReportEvery: e.opts.ReportEvery,
		Hash:        e.opts.Hash,
		Progress:    e.opts.Progress,
		Logger:      e.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hash tree: %w", err)
	}
	e.opts.Progress.Finish()

	summary.Hashed = hashResult.Hashed
	summary.SkippedSize = hashResult.SkippedSize
	summary.HashErrors = len(hashResult.Errors)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Merge and extract
	merged := ledger.Merge(known, hashResult.Records)
	unique, duplicates := dedupe.Extract(merged)
	summary.Duplicates = len(duplicates)
	summary.Groups = dedupe.Groups(merged)

	e.logger.Info("duplicate scan complete",
		"records", len(merged),
		"unique", len(unique),
		"duplicates", len(duplicates))

	// Delete
	if err := e.deleteDuplicates(ctx, duplicates, summary); err != nil {
		return nil, err
	}

	// Persist
	if err := ledger.Save(unique, ledgerPath); err != nil {
		return nil, fmt.Errorf("failed to save ledger: %w", err)
	}
	summary.Records = len(unique)

	fingerprint, err := ledger.Fingerprint(unique)
	if err != nil {
		return nil, err
	}
	summary.Fingerprint = fingerprint

	e.logger.Info("cull complete",
		"records", summary.Records,
		"deleted", summary.Deleted,
		"fingerprint", fingerprint)

	return summary, nil
}

func (e *Engine) deleteDuplicates(ctx context.Context, duplicates []ledger.Record, summary *Summary) error {
	for _, dup := range duplicates {
		if err := ctx.Err(); err != nil {
			return err
		}

		if e.opts.DryRun {
			e.logger.Info("would delete duplicate file", "path", dup.Path, "digest", dup.DigestOr("-"))
			summary.WouldDelete = append(summary.WouldDelete, dup.Path)
			summary.ReclaimedBytes += dup.Size
			continue
		}

		e.logger.Debug("deleting duplicate file", "path", dup.Path)
		if err := e.remove(dup.Path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				e.logger.Warn("duplicate already gone", "path", dup.Path)
				summary.AlreadyGone++
				continue
			}
			e.logger.Warn("failed to delete duplicate file", "path", dup.Path, "error", err)
			summary.DeleteErrors++
			continue
		}
		summary.Deleted++
		summary.ReclaimedBytes += dup.Size
	}
	return nil
}

// pruneMissing drops records whose file is gone. A gone file must not stand
// in as the surviving copy of content that still exists elsewhere.
func (e *Engine) pruneMissing(records []ledger.Record) ([]ledger.Record, int) {
	kept := make([]ledger.Record, 0, len(records))
	pruned := 0
	for _, rec := range records {
		if _, err := os.Lstat(rec.Path); err != nil && errors.Is(err, os.ErrNotExist) {
			e.logger.Debug("pruning missing ledger entry", "path", rec.Path)
			pruned++
			continue
		}
		kept = append(kept, rec)
	}
	if pruned > 0 {
		e.logger.Info("pruned missing ledger entries", "count", pruned)
	}
	return kept, pruned
}

// dropStale removes records whose file size or change time differs from the
// ledger, so the hasher treats them as new.
func (e *Engine) dropStale(records []ledger.Record) ([]ledger.Record, int) {
	kept := make([]ledger.Record, 0, len(records))
	stale := 0
	for _, rec := range records {
		info, err := walker.Stat(rec.Path)
		if err == nil && (info.Size != rec.Size || !sameCreatedAt(info.CreatedAt, rec.CreatedAt)) {
			e.logger.Debug("ledger entry is stale", "path", rec.Path)
			stale++
			continue
		}
		kept = append(kept, rec)
	}
	if stale > 0 {
		e.logger.Info("dropped stale ledger entries", "count", stale)
	}
	return kept, stale
}

// sameCreatedAt compares change times in epoch seconds. Ledgers written by
// other tools may carry them rounded to the microsecond.
func sameCreatedAt(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
