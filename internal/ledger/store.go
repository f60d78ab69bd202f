package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"phoso/internal/tree"
)

// ErrCorrupt is returned by Read when the ledger exists but cannot be decoded.
var ErrCorrupt = errors.New("ledger is corrupt")

const generator = "phoso"

// compressedExt marks ledgers stored zstd compressed.
const compressedExt = ".zst"

type serializedLedger struct {
	Generator   string    `json:"generator"`
	Created     time.Time `json:"created"`
	Fingerprint string    `json:"fingerprint"`
	Records     []Record  `json:"records"`
}

// Read loads the ledger at path. A missing file yields an empty ledger and no
// error. Undecodable content yields ErrCorrupt.
func Read(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}

	if strings.HasSuffix(path, compressedExt) {
		data, err = decompress(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}

	records, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return records, nil
}

// Load is the lenient form of Read: any failure means "no prior knowledge".
func Load(path string) []Record {
	records, err := Read(path)
	if err != nil {
		return []Record{}
	}
	return records
}

func decode(data []byte) ([]Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}

	// Bare arrays are what older ledgers contain.
	if data[0] == '[' {
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, err
		}
		if records == nil {
			records = []Record{}
		}
		return records, nil
	}

	var serialized serializedLedger
	if err := json.Unmarshal(data, &serialized); err != nil {
		return nil, err
	}
	if serialized.Records == nil {
		serialized.Records = []Record{}
	}
	return serialized.Records, nil
}

// Save writes the full record set to path, replacing any existing ledger.
// Content goes to a temporary file in the same directory first, so the old
// ledger survives any failure.
func Save(records []Record, path string) error {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	SortByPath(sorted)

	fingerprint, err := Fingerprint(sorted)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(serializedLedger{
		Generator:   generator,
		Created:     time.Now(),
		Fingerprint: fingerprint,
		Records:     sorted,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	if strings.HasSuffix(path, compressedExt) {
		data, err = compress(data)
		if err != nil {
			return fmt.Errorf("failed to compress ledger: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close ledger: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger: %w", err)
	}

	return nil
}

// IsTempFile reports whether name looks like a Save temporary file.
func IsTempFile(name string) bool {
	return strings.HasPrefix(filepath.Base(name), ".ledger-tmp-")
}

// Fingerprint returns the merkle root of the record set. Two ledgers with the
// same paths and digests have the same fingerprint regardless of order.
func Fingerprint(records []Record) (string, error) {
	leaves := make([]tree.Leaf, len(records))
	for i, rec := range records {
		leaves[i] = tree.Leaf{Path: rec.Path, Digest: rec.DigestOr("-")}
	}

	root, err := tree.Root(leaves)
	if err != nil {
		return "", fmt.Errorf("failed to fingerprint ledger: %w", err)
	}
	return root, nil
}

func compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

func decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(data, nil)
}
