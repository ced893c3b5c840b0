package fileutil_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelvault/internal/fileutil"
)

const digest = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func TestManagedPathLayout(t *testing.T) {
	path, err := fileutil.ManagedPath("/vault", digest, "CARD1_0001.MP4")
	if err != nil {
		t.Fatalf("ManagedPath failed: %v", err)
	}
	expected := filepath.Join("/vault", "9f", digest+".mp4")
	if path != expected {
		t.Fatalf("expected %s, got %s", expected, path)
	}

	if _, err := fileutil.ManagedPath("/vault", "abc", "x.mp4"); err == nil {
		t.Fatal("expected error for short digest")
	}
	if _, err := fileutil.ManagedPath(" ", digest, "x.mp4"); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestCopyToManagedIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	root := filepath.Join(dir, "managed")

	first, err := fileutil.CopyToManaged(src, root, digest, true)
	if err != nil {
		t.Fatalf("CopyToManaged failed: %v", err)
	}
	info, err := os.Stat(first)
	if err != nil {
		t.Fatalf("managed file missing: %v", err)
	}
	mtime := info.ModTime()

	second, err := fileutil.CopyToManaged(src, root, digest, true)
	if err != nil {
		t.Fatalf("second CopyToManaged failed: %v", err)
	}
	if second != first {
		t.Fatalf("expected stable managed path, got %s then %s", first, second)
	}
	info, err = os.Stat(second)
	if err != nil {
		t.Fatalf("managed file missing after repeat: %v", err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Fatal("expected existing managed file left untouched")
	}
}

func TestCopyFileVerifiedDetectsTruncation(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")
	if err := os.WriteFile(src, []byte(strings.Repeat("reel", 1024)), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		t.Fatalf("CopyFileVerified failed: %v", err)
	}
	srcData, _ := os.ReadFile(src)
	dstData, _ := os.ReadFile(dst)
	if string(srcData) != string(dstData) {
		t.Fatal("copied content differs from source")
	}
}
