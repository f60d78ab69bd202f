package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/djherbis/times"

	"phoso/internal/compare"
	"phoso/internal/hash"
	"phoso/internal/ledger"
	"phoso/internal/progress"
	"phoso/internal/walker"
)

var (
	ErrSourceNotFound      = errors.New("source directory not found")
	ErrDestinationNotFound = errors.New("destination directory not found")
)

// DefaultLayout files media by year, then month.
const DefaultLayout = "2006/01"

// DefaultExtensions are the file types sorted when none are configured.
var DefaultExtensions = []string{
	"jpg", "jpeg", "tiff", "arw", "avi", "mov",
	"mp4", "mts", "mkv", "rw2", "png", "3gp",
}

type Options struct {
	// Layout is a Go time layout for the destination directory; "/"
	// separates directory levels.
	Layout     string
	Extensions []string
	// Move moves files instead of copying them.
	Move bool
	// HoldDir receives moved files that already exist in the destination.
	// Without it they stay in the source tree.
	HoldDir        string
	KeepFilenames  bool
	KeepDuplicates bool
	IgnoreExif     bool
	// DestLedger is a cull ledger of the destination. Source files whose
	// content it lists are treated as already present.
	DestLedger string
	SizeLimit  int64
	DryRun     bool
	Progress   *progress.Bar
}

type Action string

const (
	ActionCopied    Action = "copied"
	ActionMoved     Action = "moved"
	ActionHeld      Action = "held"
	ActionIdentical Action = "identical"
	ActionFailed    Action = "failed"
)

// Entry is the outcome for one source file.
type Entry struct {
	Source      string
	Destination string
	Date        time.Time
	Model       string
	Action      Action
	DryRun      bool
}

type Report struct {
	Scanned   int
	Copied    int
	Moved     int
	Held      int
	Identical int
	Failed    int
	Entries   []Entry
	Errors    []error
}

func (r *Report) add(e Entry) {
	r.Entries = append(r.Entries, e)
	switch e.Action {
	case ActionCopied:
		r.Copied++
	case ActionMoved:
		r.Moved++
	case ActionHeld:
		r.Held++
	case ActionIdentical:
		r.Identical++
	case ActionFailed:
		r.Failed++
	}
}

type Sorter struct {
	opts   Options
	logger *slog.Logger
}

func NewSorter(opts Options, logger *slog.Logger) *Sorter {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Layout == "" {
		opts.Layout = DefaultLayout
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	return &Sorter{opts: opts, logger: logger}
}

// Run files every matching media file below src into dest. Failures on single
// files are recorded in the report and do not stop the run.
func (s *Sorter) Run(ctx context.Context, src, dest string) (*Report, error) {
	srcRoot, err := existingDir(src, ErrSourceNotFound)
	if err != nil {
		return nil, err
	}
	destRoot, err := existingDir(dest, ErrDestinationNotFound)
	if err != nil {
		return nil, err
	}

	s.logger.Info("starting sort",
		"source", srcRoot,
		"destination", destRoot,
		"move", s.opts.Move,
		"dry_run", s.opts.DryRun)

	items, err := Scan(srcRoot, s.opts.Extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to scan source: %w", err)
	}

	present, err := s.presentInDestination(srcRoot)
	if err != nil {
		return nil, err
	}

	report := &Report{Scanned: len(items)}
	s.opts.Progress.SetTotal(int64(len(items)))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		entry, err := s.place(srcRoot, destRoot, item, present)
		if err != nil {
			s.logger.Warn("failed to sort file", "path", item.Path, "error", err)
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", item.Path, err))
			entry.Action = ActionFailed
		}
		report.add(entry)
		s.opts.Progress.Step(item.Path, entry.Action == ActionIdentical)
	}
	s.opts.Progress.Finish()

	s.logger.Info("sort complete",
		"scanned", report.Scanned,
		"copied", report.Copied,
		"moved", report.Moved,
		"held", report.Held,
		"identical", report.Identical,
		"failed", report.Failed)

	return report, nil
}

// presentInDestination hashes the source tree and reconciles it against the
// destination ledger. It returns the set of source paths whose content the
// destination already holds.
func (s *Sorter) presentInDestination(srcRoot string) (map[string][]string, error) {
	if s.opts.DestLedger == "" {
		return nil, nil
	}

	destRecords, err := ledger.Read(s.opts.DestLedger)
	if err != nil {
		s.logger.Warn("failed to load destination ledger (will treat as empty)", "path", s.opts.DestLedger, "error", err)
	}
	if len(destRecords) == 0 {
		return nil, nil
	}

	hashed, err := walker.HashTree(srcRoot, nil, walker.Options{
		SizeLimit: s.opts.SizeLimit,
		Logger:    s.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hash source: %w", err)
	}

	result := compare.CommonHashes(hashed.Records, destRecords)
	s.logger.Info("reconciled source against destination ledger",
		"common", len(result.Common),
		"remaining", len(result.Remaining))

	return result.Matches, nil
}

func (s *Sorter) place(srcRoot, destRoot string, item Item, present map[string][]string) (Entry, error) {
	entry := Entry{Source: item.Path, DryRun: s.opts.DryRun}

	info, err := CaptureDate(item.Path, s.opts.IgnoreExif)
	if err != nil {
		return entry, err
	}
	entry.Date, entry.Model = info.Time, info.Model

	if matches, ok := present[item.Path]; ok {
		entry.Destination = matches[0]
		return s.identical(srcRoot, entry)
	}

	dir := filepath.Join(destRoot, filepath.FromSlash(info.Time.Format(s.opts.Layout)))
	var name string
	if !s.opts.KeepFilenames && !info.FromFallback {
		name = datedName(item.Path, info)
	} else {
		base := filepath.Base(item.Path)
		ext := filepath.Ext(base)
		name = strings.TrimSuffix(base, ext) + strings.ToLower(ext)
	}

	target, same, err := s.target(dir, name, item.Path)
	if err != nil {
		return entry, err
	}
	entry.Destination = target
	if same {
		return s.identical(srcRoot, entry)
	}

	if s.opts.Move {
		entry.Action = ActionMoved
	} else {
		entry.Action = ActionCopied
	}
	s.logger.Info(string(entry.Action),
		"source", entry.Source,
		"destination", target,
		"date", entry.Date.Format(time.DateTime),
		"model", entry.Model,
		"dry_run", s.opts.DryRun)

	if s.opts.DryRun {
		return entry, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return entry, fmt.Errorf("failed to create directory: %w", err)
	}
	if s.opts.Move {
		return entry, moveFile(item.Path, target)
	}
	return entry, copyFile(item.Path, target)
}

// identical handles a source file whose content is already in the
// destination. Moved files go to the hold directory when there is one.
func (s *Sorter) identical(srcRoot string, entry Entry) (Entry, error) {
	if !s.opts.Move || s.opts.HoldDir == "" {
		entry.Action = ActionIdentical
		s.logger.Info("skipped as identical",
			"source", entry.Source,
			"destination", entry.Destination,
			"model", entry.Model)
		return entry, nil
	}

	rel, err := filepath.Rel(srcRoot, entry.Source)
	if err != nil {
		return entry, err
	}
	held, err := freePath(filepath.Join(s.opts.HoldDir, rel))
	if err != nil {
		return entry, err
	}
	entry.Action = ActionHeld
	s.logger.Info("moved to hold as identical",
		"source", entry.Source,
		"hold", held,
		"destination", entry.Destination,
		"dry_run", s.opts.DryRun)
	entry.Destination = held

	if s.opts.DryRun {
		return entry, nil
	}
	if err := os.MkdirAll(filepath.Dir(held), 0755); err != nil {
		return entry, fmt.Errorf("failed to create hold directory: %w", err)
	}
	return entry, moveFile(entry.Source, held)
}

// target finds the destination path for src in dir. An existing file with the
// same content ends the search with same set; a different file moves on to
// name_1.ext, name_2.ext and so on.
func (s *Sorter) target(dir, name, src string) (string, bool, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := filepath.Join(dir, name)

	for n := 1; ; n++ {
		info, err := os.Stat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, false, nil
		}
		if err != nil {
			return "", false, err
		}
		if info.Mode().IsRegular() && !s.opts.KeepDuplicates {
			same, err := hash.SameContent(src, candidate)
			if err != nil {
				return "", false, err
			}
			if same {
				return candidate, true, nil
			}
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
}

// freePath returns path, or path with a numeric suffix if it is taken.
func freePath(path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	candidate := path
	for n := 1; ; n++ {
		_, err := os.Lstat(candidate)
		if errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
		if err != nil {
			return "", err
		}
		candidate = fmt.Sprintf("%s_%d%s", stem, n, ext)
	}
}

func existingDir(path string, notFound error) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", notFound, abs)
		}
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", notFound, abs)
	}
	return abs, nil
}

// moveFile renames src to dst, copying and removing when the rename fails,
// for instance across devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("failed to remove source after copy: %w", err)
	}
	return nil
}

// copyFile copies src to a new file dst and carries over the access and
// modification times. dst must not exist.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	stat, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, stat.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("failed to copy: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("failed to close destination: %w", err)
	}

	t := times.Get(stat)
	if err := os.Chtimes(dst, t.AccessTime(), t.ModTime()); err != nil {
		return fmt.Errorf("failed to set file times: %w", err)
	}
	return nil
}

func FormatReport(r *Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scanned:   %d files\n", r.Scanned)
	fmt.Fprintf(&b, "Copied:    %d\n", r.Copied)
	fmt.Fprintf(&b, "Moved:     %d\n", r.Moved)
	fmt.Fprintf(&b, "Held:      %d\n", r.Held)
	fmt.Fprintf(&b, "Identical: %d\n", r.Identical)
	if r.Failed > 0 {
		fmt.Fprintf(&b, "\n⚠ Failed to sort %d files\n", r.Failed)
		for _, err := range r.Errors {
			fmt.Fprintf(&b, "  - %v\n", err)
		}
	}
	return b.String()
}
