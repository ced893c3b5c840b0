package main

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reelvault/internal/jobs"
	"reelvault/internal/logging"
	"reelvault/internal/postproc"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the background job worker",
		Long:  "Run the background job worker until interrupted. A file lock ensures a single worker per library.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			lockPath := filepath.Join(cfg.Paths.DataDir, "reelvault.lock")
			lock := flock.New(lockPath)
			locked, err := lock.TryLock()
			if err != nil {
				return fmt.Errorf("acquire worker lock: %w", err)
			}
			if !locked {
				return fmt.Errorf("another worker already holds %s", lockPath)
			}
			defer lock.Unlock()

			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			logger := ctx.logger()
			worker := jobs.NewWorker(cfg, st, logger)
			postproc.Register(worker, cfg, st, logger, nil)

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("worker started", logging.String("db", st.Path()))
			if err := worker.Run(runCtx); err != nil {
				return err
			}
			logger.Info("worker stopped")
			return nil
		},
	}
}
