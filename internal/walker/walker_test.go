package walker

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		fullPath := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func TestWalk_AllFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"IMG_0001.jpg":             "a",
		"2019/IMG_0002.jpg":        "b",
		"2019/11/VID_0003.mp4":     "c",
		"2020/01/nested/scan.tiff": "d",
	})

	result, err := Walk(tmpDir, []string{})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if len(result.Files) != 4 {
		t.Errorf("Expected 4 files, got %d", len(result.Files))
	}
}

func TestWalk_WithExclusions(t *testing.T) {
	tmpDir := t.TempDir()

	files := map[string]bool{
		"IMG_0001.jpg":            false,
		"Thumbs.db":               true,
		"@eaDir/IMG_0001.jpg/t.j": true,
		"2019/.@__thumb/a.jpg":    true,
		"2019/IMG_0002.jpg":       false,
		"2019/notes.tmp":          true,
		"2020/raw/DSC_0001.ARW":   true,
	}
	content := make(map[string]string, len(files))
	for f := range files {
		content[f] = "content"
	}
	writeTree(t, tmpDir, content)

	exclusions := []string{
		"Thumbs.db",
		"*.tmp",
		"@eaDir/",
		".@__thumb/",
		"2020/raw/*",
	}

	result, err := Walk(tmpDir, exclusions)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if len(result.Files) != 2 {
		t.Errorf("Expected 2 files, got %d", len(result.Files))
	}

	for _, fileInfo := range result.Files {
		relPath, _ := filepath.Rel(tmpDir, fileInfo.Path)
		if files[filepath.ToSlash(relPath)] {
			t.Errorf("File %s should have been excluded", relPath)
		}
	}
}

func TestWalk_SkipsSymlinks(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"real.jpg": "bytes"})

	if err := os.Symlink(filepath.Join(tmpDir, "real.jpg"), filepath.Join(tmpDir, "link.jpg")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	if err := os.Symlink(filepath.Join(tmpDir, "gone.jpg"), filepath.Join(tmpDir, "dangling.jpg")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	result, err := Walk(tmpDir, nil)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if len(result.Files) != 1 || filepath.Base(result.Files[0].Path) != "real.jpg" {
		t.Errorf("Expected only real.jpg, got %+v", result.Files)
	}
}

func TestWalk_SymlinkedRoot(t *testing.T) {
	target := t.TempDir()
	writeTree(t, target, map[string]string{
		"IMG_0001.jpg":      "a",
		"2019/IMG_0002.jpg": "b",
	})

	link := filepath.Join(t.TempDir(), "library")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	result, err := Walk(link, []string{})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if len(result.Files) != 2 {
		t.Fatalf("Expected 2 files below the symlinked root, got %d", len(result.Files))
	}
	for _, f := range result.Files {
		if !strings.HasPrefix(f.Path, link+string(filepath.Separator)) {
			t.Errorf("Path %s should be reported below %s", f.Path, link)
		}
	}
}

func TestWalk_DanglingSymlinkedRoot(t *testing.T) {
	link := filepath.Join(t.TempDir(), "library")
	if err := os.Symlink(filepath.Join(t.TempDir(), "gone"), link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if _, err := Walk(link, []string{}); err == nil {
		t.Error("Walk should fail when the root symlink points nowhere")
	}
}

func TestWalk_EmptyDirectory(t *testing.T) {
	result, err := Walk(t.TempDir(), []string{})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if len(result.Files) != 0 {
		t.Errorf("Expected 0 files in empty directory, got %d", len(result.Files))
	}
}

func TestWalk_NonExistentDirectory(t *testing.T) {
	_, err := Walk("/nonexistent/directory", []string{})
	if err == nil {
		t.Error("Walk should return error for nonexistent directory")
	}
}

func TestWalk_FileInfoMetadata(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"test.jpg": "Hello, World!"})

	result, err := Walk(tmpDir, []string{})
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	if len(result.Files) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(result.Files))
	}

	fileInfo := result.Files[0]

	if !filepath.IsAbs(fileInfo.Path) {
		t.Error("File path should be absolute")
	}
	if fileInfo.Size != int64(len("Hello, World!")) {
		t.Errorf("Expected size %d, got %d", len("Hello, World!"), fileInfo.Size)
	}
	if fileInfo.ModTime.IsZero() {
		t.Error("ModTime should be set")
	}
	if fileInfo.CreatedAt <= 0 {
		t.Error("CreatedAt should be set")
	}
}

func TestStat(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{"a.jpg": "abc"})

	info, err := Stat(filepath.Join(tmpDir, "a.jpg"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size != 3 {
		t.Errorf("Expected size 3, got %d", info.Size)
	}

	if _, err := Stat(filepath.Join(tmpDir, "missing.jpg")); err == nil {
		t.Error("Stat should fail for missing file")
	}
}
