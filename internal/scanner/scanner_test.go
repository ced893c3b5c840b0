package scanner_test

import (
	"os"
	"path/filepath"
	"testing"

	"reelvault/internal/scanner"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestScanFiltersAndRecurses(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "CARD1", "A7III_0012.MP4"))
	writeFile(t, filepath.Join(root, "CARD1", "A7III_0012.XML"))
	writeFile(t, filepath.Join(root, "CARD2", "audio", "speech.wav"))
	writeFile(t, filepath.Join(root, "CARD2", "thumbs.db"))
	writeFile(t, filepath.Join(root, "readme.txt"))

	result, err := scanner.Scan(root)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.TotalCount != 3 {
		t.Fatalf("expected 3 files, got %d: %v", result.TotalCount, result.Files)
	}
	for i := 1; i < len(result.Files); i++ {
		if result.Files[i-1] >= result.Files[i] {
			t.Fatalf("expected sorted output, got %v", result.Files)
		}
	}
}

func TestScanSingleFile(t *testing.T) {
	root := t.TempDir()
	video := filepath.Join(root, "clip.mov")
	writeFile(t, video)

	result, err := scanner.Scan(video)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.TotalCount != 1 || result.Files[0] != video {
		t.Fatalf("unexpected result: %+v", result)
	}

	unsupported := filepath.Join(root, "notes.txt")
	writeFile(t, unsupported)
	result, err = scanner.Scan(unsupported)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if result.TotalCount != 0 {
		t.Fatalf("expected unsupported file skipped, got %+v", result)
	}
}

func TestScanMissingPath(t *testing.T) {
	if _, err := scanner.Scan(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestExpandDeduplicates(t *testing.T) {
	root := t.TempDir()
	video := filepath.Join(root, "clip.mp4")
	writeFile(t, video)

	result, err := scanner.Expand([]string{root, video})
	if err != nil {
		t.Fatalf("Expand failed: %v", err)
	}
	if result.TotalCount != 1 {
		t.Fatalf("expected deduplicated single file, got %+v", result)
	}
}
