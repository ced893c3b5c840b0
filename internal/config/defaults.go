package config

// Default returns the built-in configuration values.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    "~/.local/share/reelvault",
			ManagedDir: "~/Videos/reelvault",
			LogDir:     "~/.local/share/reelvault/logs",
		},
		Import: Import{
			HashWorkers:     4,
			CopyToManaged:   true,
			VerifyCopies:    true,
			ProbeTimeout:    30,
			CheckpointEvery: 1,
		},
		Matcher: Matcher{
			MinConfidence: 0.5,
		},
		Worker: Worker{
			PollInterval:       2,
			ErrorRetryInterval: 5,
			JobTimeout:         600,
			DefaultMaxRetries:  3,
		},
		Tools: Tools{},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
