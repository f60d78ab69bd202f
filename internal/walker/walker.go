package walker

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/djherbis/times"
)

type FileInfo struct {
	Path      string
	Size      int64
	ModTime   time.Time
	CreatedAt float64 // change time (creation time where there is none), Unix seconds
}

type WalkResult struct {
	Files  []FileInfo
	Errors []error
}

// Walk lists every regular file below rootPath. Symlinks, devices and other
// special files are ignored, except that a symlinked rootPath is followed.
// Reported paths are always below rootPath as given.
func Walk(rootPath string, exclusions []string) (*WalkResult, error) {
	result := &WalkResult{
		Files:  make([]FileInfo, 0),
		Errors: make([]error, 0),
	}

	walkRoot, err := resolveRoot(rootPath)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	err = filepath.WalkDir(walkRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// If error is on the root path, return it (don't continue walking)
			if path == walkRoot {
				return err
			}
			// Skip permission errors and continue walking
			result.Errors = append(result.Errors, err)
			return nil
		}

		// Get relative path for matching
		relPath, err := filepath.Rel(walkRoot, path)
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil
		}

		if path != walkRoot && shouldExclude(relPath, exclusions) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.Errors = append(result.Errors, err)
			return nil
		}

		result.Files = append(result.Files, newFileInfo(filepath.Join(rootPath, relPath), info))
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	return result, nil
}

// resolveRoot returns the directory to walk for root. WalkDir does not
// descend into a symlink, so a symlinked root is replaced by its target.
func resolveRoot(root string) (string, error) {
	info, err := os.Lstat(root)
	if err != nil || info.Mode()&os.ModeSymlink == 0 {
		// WalkDir reports a missing root itself
		return root, nil
	}
	return filepath.EvalSymlinks(root)
}

// Stat returns the current metadata of a single file.
func Stat(path string) (FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return newFileInfo(path, info), nil
}

func newFileInfo(path string, info fs.FileInfo) FileInfo {
	return FileInfo{
		Path:      path,
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		CreatedAt: createdAt(info),
	}
}

func createdAt(info fs.FileInfo) float64 {
	ts := times.Get(info)

	t := ts.ModTime()
	switch {
	case ts.HasChangeTime():
		t = ts.ChangeTime()
	case ts.HasBirthTime():
		t = ts.BirthTime()
	}
	return float64(t.UnixNano()) / 1e9
}

func shouldExclude(relPath string, exclusions []string) bool {
	for _, pattern := range exclusions {
		// Directory patterns end with / and match any path component
		if strings.HasSuffix(pattern, "/") {
			dirPattern := strings.TrimSuffix(pattern, "/")
			parts := strings.Split(relPath, string(filepath.Separator))
			for _, part := range parts {
				if part == dirPattern {
					return true
				}
				if matched, _ := filepath.Match(dirPattern, part); matched {
					return true
				}
			}
			continue
		}

		if matched, err := filepath.Match(pattern, filepath.Base(relPath)); err == nil && matched {
			return true
		}
		// Patterns with a separator are matched against the whole relative path
		if strings.Contains(pattern, "/") {
			if matched, err := filepath.Match(pattern, filepath.ToSlash(relPath)); err == nil && matched {
				return true
			}
		}
	}
	return false
}
