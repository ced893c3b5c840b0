// Package testsupport provides shared helpers for package tests: temp-dir
// backed configs, store setup, and sample footage files.
package testsupport

import (
	"path/filepath"
	"testing"

	"reelvault/internal/config"
)

// ConfigOption customizes the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.ManagedDir = filepath.Join(base, "managed")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Logging.Format = "json"
	cfg.Import.CopyToManaged = false

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithHashWorkers sets the hashing concurrency on the test config.
func WithHashWorkers(workers int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Import.HashWorkers = workers
	}
}

// WithManagedCopies enables copying imports into managed storage.
func WithManagedCopies() ConfigOption {
	return func(cfg *config.Config) {
		cfg.Import.CopyToManaged = true
	}
}
