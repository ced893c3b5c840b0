// Package logging builds the application's slog loggers and carries the
// standardized attribute keys and context helpers shared by the import
// orchestrator and the job worker.
package logging
