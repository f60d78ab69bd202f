package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Record is the ledger entry for one observed file.
type Record struct {
	Path      string  // absolute path, unique within a ledger
	CreatedAt float64 // change/creation time in Unix seconds, diagnostics only
	Size      int64
	Digest    *string // hex SHA-1, nil when the file was skipped for size
}

// NewRecord builds a record with a digest.
func NewRecord(path string, createdAt float64, size int64, digest string) Record {
	return Record{Path: path, CreatedAt: createdAt, Size: size, Digest: &digest}
}

// HasDigest reports whether the record takes part in duplicate detection.
func (r Record) HasDigest() bool {
	return r.Digest != nil
}

// DigestOr returns the digest, or fallback when there is none.
func (r Record) DigestOr(fallback string) string {
	if r.Digest == nil {
		return fallback
	}
	return *r.Digest
}

type recordJSON struct {
	Path      string  `json:"path"`
	CreatedAt float64 `json:"created_at"`
	Size      int64   `json:"size"`
	Digest    *string `json:"digest"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Path:      r.Path,
		CreatedAt: r.CreatedAt,
		Size:      r.Size,
		Digest:    r.Digest,
	})
}

// UnmarshalJSON accepts both the object form written by Save and the
// positional [path, ctime, size, digest] form of older ledgers.
func (r *Record) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return r.unmarshalTuple(data)
	}

	var obj recordJSON
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	if obj.Path == "" {
		return fmt.Errorf("record without path")
	}
	*r = Record{Path: obj.Path, CreatedAt: obj.CreatedAt, Size: obj.Size, Digest: obj.Digest}
	return nil
}

func (r *Record) unmarshalTuple(data []byte) error {
	var fields []json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 4 {
		return fmt.Errorf("record tuple has %d fields, want 4", len(fields))
	}

	var (
		path      string
		createdAt float64
		size      float64
		digest    *string
	)
	if err := json.Unmarshal(fields[0], &path); err != nil {
		return fmt.Errorf("record path: %w", err)
	}
	if path == "" {
		return fmt.Errorf("record without path")
	}
	if err := json.Unmarshal(fields[1], &createdAt); err != nil {
		return fmt.Errorf("record ctime: %w", err)
	}
	if err := json.Unmarshal(fields[2], &size); err != nil {
		return fmt.Errorf("record size: %w", err)
	}
	if err := json.Unmarshal(fields[3], &digest); err != nil {
		return fmt.Errorf("record digest: %w", err)
	}

	*r = Record{Path: path, CreatedAt: createdAt, Size: int64(size), Digest: digest}
	return nil
}

// Index maps records by path. Later records win over earlier ones.
func Index(records []Record) map[string]Record {
	index := make(map[string]Record, len(records))
	for _, rec := range records {
		index[rec.Path] = rec
	}
	return index
}

// Merge combines two record sets keyed by path, with newer taking precedence.
// The result is sorted by path.
func Merge(older, newer []Record) []Record {
	index := Index(older)
	for _, rec := range newer {
		index[rec.Path] = rec
	}

	merged := make([]Record, 0, len(index))
	for _, rec := range index {
		merged = append(merged, rec)
	}
	SortByPath(merged)
	return merged
}

// SortByPath sorts records in place by path.
func SortByPath(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Path < records[j].Path
	})
}
