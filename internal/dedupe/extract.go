// Package dedupe finds byte-identical files among ledger records.
//
// Records are keyed on their content digest only. Among records sharing a
// digest the one with the lexicographically smallest path is kept and every
// other one is a duplicate. Records without a digest (skipped for size) are
// never compared and always kept.
package dedupe

import (
	"sort"

	"phoso/internal/hash"
	"phoso/internal/ledger"
)

// Group is one set of byte-identical files.
type Group struct {
	Digest     string
	Survivor   ledger.Record
	Duplicates []ledger.Record
}

// Extract splits records into the ones to keep and the duplicates to remove.
// unique is sorted by path; duplicates are ordered by digest, then path.
func Extract(records []ledger.Record) (unique, duplicates []ledger.Record) {
	unique = make([]ledger.Record, 0, len(records))
	duplicates = make([]ledger.Record, 0)

	for _, g := range group(records, &unique) {
		unique = append(unique, g.Survivor)
		duplicates = append(duplicates, g.Duplicates...)
	}

	ledger.SortByPath(unique)
	return unique, duplicates
}

// Groups returns every digest shared by more than one record.
func Groups(records []ledger.Record) []Group {
	var groups []Group
	for _, g := range group(records, nil) {
		if len(g.Duplicates) > 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

// group sorts hashed records by (digest, path) and scans adjacent pairs.
// Records without a digest are appended to undigested when it is non-nil.
func group(records []ledger.Record, undigested *[]ledger.Record) []Group {
	hashed := make([]ledger.Record, 0, len(records))
	for _, rec := range records {
		if !rec.HasDigest() {
			if undigested != nil {
				*undigested = append(*undigested, rec)
			}
			continue
		}
		hashed = append(hashed, rec)
	}

	sort.Slice(hashed, func(i, j int) bool {
		di, dj := *hashed[i].Digest, *hashed[j].Digest
		if di != dj {
			return di < dj
		}
		return hashed[i].Path < hashed[j].Path
	})

	var groups []Group
	for i, rec := range hashed {
		if i > 0 && *rec.Digest == *hashed[i-1].Digest {
			last := &groups[len(groups)-1]
			last.Duplicates = append(last.Duplicates, rec)
			continue
		}
		groups = append(groups, Group{Digest: *rec.Digest, Survivor: rec})
	}
	return groups
}

// IsDuplicateOf reports whether the file at path has the given digest.
func IsDuplicateOf(path, knownDigest string) (bool, error) {
	digest, err := hash.HashFile(path)
	if err != nil {
		return false, err
	}
	return digest == knownDigest, nil
}
