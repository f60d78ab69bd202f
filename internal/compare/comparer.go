package compare

import (
	"fmt"
	"strings"

	"phoso/internal/ledger"
)

// Result splits a source record set against a destination.
type Result struct {
	Remaining []ledger.Record // source records with no content match in the destination
	Common    []ledger.Record // source records whose digest the destination already holds
	// Matches maps a common source path to destination paths with the same digest.
	Matches map[string][]string
}

func (r *Result) HasCommon() bool {
	return len(r.Common) > 0
}

// CommonHashes partitions source by whether its digest appears anywhere in
// destination. Records without a digest always remain. The partition depends
// only on the digests involved, not on input order.
func CommonHashes(source, destination []ledger.Record) *Result {
	destByDigest := make(map[string][]string)
	for _, rec := range destination {
		if !rec.HasDigest() {
			continue
		}
		destByDigest[*rec.Digest] = append(destByDigest[*rec.Digest], rec.Path)
	}

	result := &Result{
		Remaining: make([]ledger.Record, 0, len(source)),
		Common:    make([]ledger.Record, 0),
		Matches:   make(map[string][]string),
	}

	for _, rec := range source {
		if rec.HasDigest() {
			if destPaths, ok := destByDigest[*rec.Digest]; ok {
				result.Common = append(result.Common, rec)
				result.Matches[rec.Path] = destPaths
				continue
			}
		}
		result.Remaining = append(result.Remaining, rec)
	}

	// Sort for deterministic output
	ledger.SortByPath(result.Remaining)
	ledger.SortByPath(result.Common)

	return result
}

func FormatReport(result *Result) string {
	if !result.HasCommon() {
		return fmt.Sprintf("No source files found in destination (%d remaining).\n", len(result.Remaining))
	}

	var report strings.Builder
	fmt.Fprintf(&report, "ALREADY IN DESTINATION (%d files):\n", len(result.Common))
	for _, rec := range result.Common {
		fmt.Fprintf(&report, "  = %s (hash: %s, size: %d bytes)\n", rec.Path, rec.DigestOr("-"), rec.Size)
		for _, dest := range result.Matches[rec.Path] {
			fmt.Fprintf(&report, "    -> %s\n", dest)
		}
	}
	report.WriteString("\n")

	var unhashed int
	for _, rec := range result.Remaining {
		if !rec.HasDigest() {
			unhashed++
		}
	}

	fmt.Fprintf(&report, "Summary: %d already present, %d remaining (%d not hashed)\n",
		len(result.Common), len(result.Remaining), unhashed)

	return report.String()
}
