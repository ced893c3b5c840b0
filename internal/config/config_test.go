package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelvault/internal/config"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, _, exists, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if cfg.Import.HashWorkers != 4 {
		t.Fatalf("expected default hash workers, got %d", cfg.Import.HashWorkers)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected console format, got %q", cfg.Logging.Format)
	}
}

func TestLoadParsesAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
data_dir = "` + filepath.Join(dir, "data") + `"
managed_dir = "` + filepath.Join(dir, "managed") + `"

[import]
hash_workers = 8

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected resolved path %q, got %q (exists=%v)", path, resolved, exists)
	}
	if cfg.Import.HashWorkers != 8 {
		t.Fatalf("expected 8 hash workers, got %d", cfg.Import.HashWorkers)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging values, got %+v", cfg.Logging)
	}
	if cfg.Paths.LogDir == "" {
		t.Fatal("expected log dir defaulted from data dir")
	}
}

func TestValidateRejectsBadMatcherThreshold(t *testing.T) {
	cfg := config.Default()
	cfg.Matcher.MinConfidence = 1.5
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "matcher.min_confidence") {
		t.Fatalf("expected matcher threshold error, got %v", err)
	}
}

func TestValidateRequiresManagedDirWhenCopying(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.DataDir = t.TempDir()
	cfg.Paths.ManagedDir = ""
	cfg.Import.CopyToManaged = true
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when managed dir missing with copy enabled")
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load (exists=%v): %v", exists, err)
	}
}
