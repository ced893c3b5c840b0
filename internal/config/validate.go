package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateMatcher(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Import.CopyToManaged && c.Paths.ManagedDir == "" {
		return errors.New("paths.managed_dir must be set when import.copy_to_managed is true")
	}
	return nil
}

func (c *Config) validateImport() error {
	return ensurePositiveMap(map[string]int{
		"import.hash_workers":     c.Import.HashWorkers,
		"import.probe_timeout":    c.Import.ProbeTimeout,
		"import.checkpoint_every": c.Import.CheckpointEvery,
	})
}

func (c *Config) validateMatcher() error {
	if c.Matcher.MinConfidence <= 0 || c.Matcher.MinConfidence > 1 {
		return errors.New("matcher.min_confidence must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateWorker() error {
	return ensurePositiveMap(map[string]int{
		"worker.poll_interval":        c.Worker.PollInterval,
		"worker.error_retry_interval": c.Worker.ErrorRetryInterval,
		"worker.job_timeout":          c.Worker.JobTimeout,
		"worker.default_max_retries":  c.Worker.DefaultMaxRetries,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
