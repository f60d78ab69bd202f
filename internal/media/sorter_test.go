package media

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"phoso/internal/hash"
	"phoso/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestSorter_CopiesIntoDateLayout(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	img := writeMedia(t, src, "phone/IMG_20200102_030405.jpg", "image")
	vid := writeMedia(t, src, "VID_20210506_070809.mp4", "video")
	writeMedia(t, src, "notes.txt", "ignored")

	report, err := NewSorter(Options{}, testLogger()).Run(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Scanned != 2 || report.Copied != 2 {
		t.Errorf("Unexpected report %+v", report)
	}
	if got := readFile(t, filepath.Join(dest, "2020", "01", "2020-01-02_030405_img.jpg")); got != "image" {
		t.Errorf("Unexpected image content %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "2021", "05", "2021-05-06_070809_video.mp4")); got != "video" {
		t.Errorf("Unexpected video content %q", got)
	}
	for _, p := range []string{img, vid} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("Copy mode must keep %s", p)
		}
	}
}

func TestSorter_SecondCopyIsIdentical(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeMedia(t, src, "VID_20210506_070809.mp4", "video")

	sorter := NewSorter(Options{}, testLogger())
	if _, err := sorter.Run(context.Background(), src, dest); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	report, err := sorter.Run(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if report.Identical != 1 || report.Copied != 0 {
		t.Errorf("Expected the file to be identical, got %+v", report)
	}
}

func TestSorter_CollisionGetsSuffix(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeMedia(t, src, "VID_20210506_070809.mp4", "new take")
	writeMedia(t, dest, "2021/05/2021-05-06_070809_video.mp4", "other take")

	report, err := NewSorter(Options{}, testLogger()).Run(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	want := filepath.Join(dest, "2021", "05", "2021-05-06_070809_video_1.mp4")
	if report.Copied != 1 || report.Entries[0].Destination != want {
		t.Fatalf("Expected copy to %s, got %+v", want, report.Entries)
	}
	if got := readFile(t, want); got != "new take" {
		t.Errorf("Unexpected content %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "2021", "05", "2021-05-06_070809_video.mp4")); got != "other take" {
		t.Error("Existing file must not be overwritten")
	}
}

func TestSorter_KeepDuplicatesSkipsContentCheck(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	writeMedia(t, src, "VID_20210506_070809.mp4", "same")
	writeMedia(t, dest, "2021/05/2021-05-06_070809_video.mp4", "same")

	report, err := NewSorter(Options{KeepDuplicates: true}, testLogger()).Run(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Copied != 1 || filepath.Base(report.Entries[0].Destination) != "2021-05-06_070809_video_1.mp4" {
		t.Errorf("Duplicate should be kept under a new name, got %+v", report.Entries)
	}
}

func TestSorter_MoveIdenticalToHold(t *testing.T) {
	src, dest, hold := t.TempDir(), t.TempDir(), t.TempDir()
	dup := writeMedia(t, src, "trip/VID_20210506_070809.mp4", "same")
	fresh := writeMedia(t, src, "trip/VID_20210507_070809.mp4", "fresh")
	writeMedia(t, dest, "2021/05/2021-05-06_070809_video.mp4", "same")

	report, err := NewSorter(Options{Move: true, HoldDir: hold}, testLogger()).Run(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Held != 1 || report.Moved != 1 {
		t.Fatalf("Unexpected report %+v", report)
	}
	if got := readFile(t, filepath.Join(hold, "trip", "VID_20210506_070809.mp4")); got != "same" {
		t.Errorf("Unexpected held content %q", got)
	}
	if got := readFile(t, filepath.Join(dest, "2021", "05", "2021-05-07_070809_video.mp4")); got != "fresh" {
		t.Errorf("Unexpected moved content %q", got)
	}
	for _, p := range []string{dup, fresh} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("%s should have left the source tree", p)
		}
	}
}

func TestSorter_MoveIdenticalWithoutHoldStays(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	dup := writeMedia(t, src, "VID_20210506_070809.mp4", "same")
	writeMedia(t, dest, "2021/05/2021-05-06_070809_video.mp4", "same")

	report, err := NewSorter(Options{Move: true}, testLogger()).Run(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Identical != 1 {
		t.Errorf("Unexpected report %+v", report)
	}
	if _, err := os.Stat(dup); err != nil {
		t.Error("Identical file should stay in place without a hold directory")
	}
}

func TestSorter_DryRunTouchesNothing(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	img := writeMedia(t, src, "VID_20210506_070809.mp4", "video")

	report, err := NewSorter(Options{Move: true, DryRun: true}, testLogger()).Run(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Moved != 1 || !report.Entries[0].DryRun {
		t.Errorf("Unexpected report %+v", report)
	}
	if _, err := os.Stat(img); err != nil {
		t.Error("Dry run must not move the source")
	}
	entries, _ := os.ReadDir(dest)
	if len(entries) != 0 {
		t.Errorf("Dry run must not create anything in destination, found %d entries", len(entries))
	}
}

func TestSorter_DestinationLedger(t *testing.T) {
	src, dest := t.TempDir(), t.TempDir()
	known := writeMedia(t, src, "VID_20210506_070809.mp4", "archived elsewhere")
	writeMedia(t, src, "VID_20210507_070809.mp4", "brand new")

	ledgerPath := filepath.Join(t.TempDir(), "dest.json")
	archived := ledger.NewRecord("/archive/2019/clip.mp4", 1, 18, hash.HashBytes([]byte("archived elsewhere")))
	if err := ledger.Save([]ledger.Record{archived}, ledgerPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	report, err := NewSorter(Options{Move: true, DestLedger: ledgerPath}, testLogger()).Run(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Identical != 1 || report.Moved != 1 {
		t.Fatalf("Unexpected report %+v", report)
	}
	for _, e := range report.Entries {
		if e.Action == ActionIdentical && e.Destination != "/archive/2019/clip.mp4" {
			t.Errorf("Identical entry should point at the ledger match, got %s", e.Destination)
		}
	}
	if _, err := os.Stat(known); err != nil {
		t.Error("File already in the destination ledger should stay put")
	}
}

func TestSorter_MissingDirectories(t *testing.T) {
	dir := t.TempDir()
	sorter := NewSorter(Options{}, testLogger())

	if _, err := sorter.Run(context.Background(), filepath.Join(dir, "nope"), dir); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("Expected ErrSourceNotFound, got %v", err)
	}
	if _, err := sorter.Run(context.Background(), dir, filepath.Join(dir, "nope")); !errors.Is(err, ErrDestinationNotFound) {
		t.Errorf("Expected ErrDestinationNotFound, got %v", err)
	}
}

func TestCopyFile_PreservesModTime(t *testing.T) {
	dir := t.TempDir()
	src := writeMedia(t, dir, "a.jpg", "pixels")
	mtime := time.Date(2012, 3, 4, 5, 6, 7, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	dst := filepath.Join(dir, "b.jpg")
	if err := copyFile(src, dst); err != nil {
		t.Fatalf("copyFile failed: %v", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("Expected mtime %v, got %v", mtime, info.ModTime())
	}
	if err := copyFile(src, dst); err == nil {
		t.Error("copyFile must not overwrite an existing file")
	}
}

func TestScan(t *testing.T) {
	src := t.TempDir()
	writeMedia(t, src, "a.JPG", "x")
	writeMedia(t, src, "b.mov", "x")
	writeMedia(t, src, "c.txt", "x")
	writeMedia(t, src, "@eaDir/a.JPG/SYNOFILE_THUMB_M.jpg", "x")

	items, err := Scan(src, []string{"jpg", ".mov"})
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %+v", items)
	}
	if filepath.Base(items[0].Path) != "a.JPG" || filepath.Base(items[1].Path) != "b.mov" {
		t.Errorf("Unexpected items %+v", items)
	}
	if items[0].Size != 1 {
		t.Errorf("Expected size 1, got %d", items[0].Size)
	}
}

func TestRemoveEmptyDirs(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"a/b/c", "d", "e/f"} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			t.Fatalf("MkdirAll failed: %v", err)
		}
	}
	writeMedia(t, root, "e/keep.jpg", "x")

	removed, err := RemoveEmptyDirs(root, false)
	if err != nil {
		t.Fatalf("RemoveEmptyDirs failed: %v", err)
	}
	if removed != 5 {
		t.Errorf("Expected 5 removed directories, got %d", removed)
	}
	if _, err := os.Stat(filepath.Join(root, "e", "keep.jpg")); err != nil {
		t.Error("Non-empty directory must be kept")
	}
	if _, err := os.Stat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Error("Emptied parent should be removed")
	}

	if _, err := RemoveEmptyDirs(root, true); err != nil {
		t.Fatalf("forced RemoveEmptyDirs failed: %v", err)
	}
	entries, _ := os.ReadDir(root)
	if len(entries) != 0 {
		t.Errorf("Forced removal should leave root empty, found %d entries", len(entries))
	}
	if _, err := os.Stat(root); err != nil {
		t.Error("Root itself must be kept")
	}
}
