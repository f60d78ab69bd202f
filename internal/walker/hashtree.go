package walker

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"phoso/internal/hash"
	"phoso/internal/ledger"
	"phoso/internal/progress"
)

// DefaultSizeLimit is the size at which files stop being hashed (500 MB).
const DefaultSizeLimit int64 = 500_000_000

// DefaultReportEvery is how many hashed files pass between progress log lines.
const DefaultReportEvery = 50

// HashFunc computes the content digest of a file.
type HashFunc func(path string) (string, error)

type Options struct {
	// SizeLimit skips hashing for files of at least this many bytes.
	// Zero or less disables the limit.
	SizeLimit int64
	Exclude   []string
	// SkipPaths are absolute paths that are never recorded, such as the
	// ledger file itself.
	SkipPaths   []string
	ReportEvery int
	Hash        HashFunc
	Progress    *progress.Bar
	Logger      *slog.Logger
}

type HashTreeResult struct {
	Records     []ledger.Record
	Known       int // files already present in the ledger
	Hashed      int
	SkippedSize int
	Errors      []error
}

// HashTree hashes every file below root whose path is not in alreadyHashed.
// Known paths are trusted as recorded and are neither re-hashed nor returned.
// Files at or above the size limit are returned without a digest. Errors on
// individual files are collected and the walk carries on.
func HashTree(root string, alreadyHashed []ledger.Record, opts Options) (*HashTreeResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	hashFn := opts.Hash
	if hashFn == nil {
		hashFn = hash.HashFile
	}
	reportEvery := opts.ReportEvery
	if reportEvery <= 0 {
		reportEvery = DefaultReportEvery
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	walkResult, err := Walk(absRoot, opts.Exclude)
	if err != nil {
		return nil, err
	}

	result := &HashTreeResult{
		Records: make([]ledger.Record, 0),
		Errors:  make([]error, 0),
	}
	for _, err := range walkResult.Errors {
		logger.Warn("skipping unreadable entry", "error", err)
		result.Errors = append(result.Errors, err)
	}

	known := ledger.Index(alreadyHashed)
	skip := make(map[string]bool, len(opts.SkipPaths))
	for _, p := range opts.SkipPaths {
		if abs, err := filepath.Abs(p); err == nil {
			skip[abs] = true
		}
	}

	pending := make([]FileInfo, 0, len(walkResult.Files))
	for _, file := range walkResult.Files {
		if skip[file.Path] || ledger.IsTempFile(file.Path) {
			continue
		}
		if _, ok := known[file.Path]; ok {
			result.Known++
			continue
		}
		pending = append(pending, file)
	}

	logger.Info("hashing files", "root", absRoot, "new", len(pending), "known", result.Known)
	opts.Progress.SetTotal(int64(len(pending)))

	for _, file := range pending {
		rec := ledger.Record{
			Path:      file.Path,
			CreatedAt: file.CreatedAt,
			Size:      file.Size,
		}

		if opts.SizeLimit > 0 && file.Size >= opts.SizeLimit {
			logger.Info("skipped file due to size", "path", file.Path, "size", file.Size)
			result.SkippedSize++
			result.Records = append(result.Records, rec)
			opts.Progress.Step(file.Path, true)
			continue
		}

		digest, err := hashFn(file.Path)
		if err != nil {
			logger.Warn("failed to hash file", "path", file.Path, "error", err)
			result.Errors = append(result.Errors, fmt.Errorf("%s: %w", file.Path, err))
			opts.Progress.Step(file.Path, true)
			continue
		}

		rec.Digest = &digest
		result.Records = append(result.Records, rec)
		result.Hashed++
		opts.Progress.Step(file.Path, false)

		if result.Hashed%reportEvery == 0 {
			logger.Debug("hashing progress", "hashed", result.Hashed, "of", len(pending))
		}
	}

	logger.Info("hashed files",
		"hashed", result.Hashed,
		"skipped_size", result.SkippedSize,
		"errors", len(result.Errors))

	return result, nil
}
