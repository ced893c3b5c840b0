package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeImport()
	c.normalizeMatcher()
	c.normalizeWorker()
	c.normalizeTools()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.ManagedDir, err = expandPath(c.Paths.ManagedDir); err != nil {
		return fmt.Errorf("paths.managed_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = c.Paths.DataDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeImport() {
	if c.Import.HashWorkers <= 0 {
		c.Import.HashWorkers = Default().Import.HashWorkers
	}
	if c.Import.ProbeTimeout <= 0 {
		c.Import.ProbeTimeout = Default().Import.ProbeTimeout
	}
	if c.Import.CheckpointEvery <= 0 {
		c.Import.CheckpointEvery = 1
	}
}

func (c *Config) normalizeMatcher() {
	if c.Matcher.MinConfidence <= 0 {
		c.Matcher.MinConfidence = Default().Matcher.MinConfidence
	}
}

func (c *Config) normalizeWorker() {
	defaults := Default().Worker
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = defaults.PollInterval
	}
	if c.Worker.ErrorRetryInterval <= 0 {
		c.Worker.ErrorRetryInterval = defaults.ErrorRetryInterval
	}
	if c.Worker.JobTimeout <= 0 {
		c.Worker.JobTimeout = defaults.JobTimeout
	}
	if c.Worker.DefaultMaxRetries <= 0 {
		c.Worker.DefaultMaxRetries = defaults.DefaultMaxRetries
	}
}

func (c *Config) normalizeTools() {
	c.Tools.SceneDetect = strings.TrimSpace(c.Tools.SceneDetect)
	c.Tools.Thumbnail = strings.TrimSpace(c.Tools.Thumbnail)
	c.Tools.Caption = strings.TrimSpace(c.Tools.Caption)
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}
