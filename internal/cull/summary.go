package cull

import (
	"fmt"
	"strings"

	"phoso/internal/dedupe"
)

// Summary accounts for everything a cull run did.
type Summary struct {
	Root   string
	Ledger string
	DryRun bool

	Loaded      int // records read from the ledger
	Pruned      int // ledger records dropped because the file is gone
	Stale       int // ledger records dropped for re-hashing
	Hashed      int
	SkippedSize int
	HashErrors  int

	Duplicates     int
	Groups         []dedupe.Group // kept copy and duplicates per digest
	Deleted        int
	AlreadyGone    int
	DeleteErrors   int
	WouldDelete    []string // dry-run only
	ReclaimedBytes int64

	Records     int // records written to the ledger
	Fingerprint string
}

func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func FormatSummary(s *Summary) string {
	var b strings.Builder

	if s.DryRun {
		b.WriteString("Dry run, no files were deleted\n")
	}
	fmt.Fprintf(&b, "  Root:        %s\n", s.Root)
	fmt.Fprintf(&b, "  Ledger:      %s (%d loaded, %d written)\n", s.Ledger, s.Loaded, s.Records)
	if s.Pruned > 0 || s.Stale > 0 {
		fmt.Fprintf(&b, "  Dropped:     %d missing, %d stale\n", s.Pruned, s.Stale)
	}
	fmt.Fprintf(&b, "  Hashed:      %d files\n", s.Hashed)
	fmt.Fprintf(&b, "  Duplicates:  %d found\n", s.Duplicates)

	if s.DryRun {
		fmt.Fprintf(&b, "  Would delete: %d files (%s)\n", len(s.WouldDelete), formatSize(s.ReclaimedBytes))
	} else {
		fmt.Fprintf(&b, "  Deleted:     %d files (%s)\n", s.Deleted, formatSize(s.ReclaimedBytes))
	}
	for _, g := range s.Groups {
		fmt.Fprintf(&b, "    %s\n", g.Survivor.Path)
		for _, dup := range g.Duplicates {
			fmt.Fprintf(&b, "      ← %s\n", dup.Path)
		}
	}

	fmt.Fprintf(&b, "  Fingerprint: %s\n", s.Fingerprint)

	if s.SkippedSize > 0 {
		fmt.Fprintf(&b, "\n⚠ Skipped %d files due to size\n", s.SkippedSize)
	}
	if s.HashErrors > 0 {
		fmt.Fprintf(&b, "⚠ Skipped %d files due to errors\n", s.HashErrors)
	}
	if s.DeleteErrors > 0 || s.AlreadyGone > 0 {
		fmt.Fprintf(&b, "⚠ Failed to delete %d files (%d already gone)\n", s.DeleteErrors, s.AlreadyGone)
	}

	return b.String()
}
