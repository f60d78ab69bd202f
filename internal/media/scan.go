package media

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"phoso/internal/walker"
)

type Item struct {
	Path string
	Time time.Time // modification time
	Size int64
}

// Scan lists the files below src whose extension is one of extensions,
// compared without case and without the leading dot. Paths below src that
// contain "@" belong to NAS thumbnail folders and are skipped.
func Scan(src string, extensions []string) ([]Item, error) {
	root, err := filepath.Abs(src)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	wanted := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		wanted[strings.ToLower(strings.TrimPrefix(ext, "."))] = true
	}

	walked, err := walker.Walk(root, nil)
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(walked.Files))
	for _, f := range walked.Files {
		rel, err := filepath.Rel(root, f.Path)
		if err != nil || strings.Contains(rel, "@") {
			continue
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Path), "."))
		if !wanted[ext] {
			continue
		}
		items = append(items, Item{Path: f.Path, Time: f.ModTime, Size: f.Size})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Path < items[j].Path
	})

	return items, nil
}
