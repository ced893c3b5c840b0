// Package jobs runs the background work queue. The worker loop claims jobs
// from the store, dispatches them by type to registered handlers, and drives
// the retry/dead-letter lifecycle. Handlers are supplied externally; the
// worker only manages ordering, timeouts and failure accounting.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"reelvault/internal/config"
	"reelvault/internal/logging"
	"reelvault/internal/store"
)

// Handler executes one kind of job. Execute must honor ctx cancellation;
// a handler error counts as a failed attempt.
type Handler interface {
	Type() string
	Execute(ctx context.Context, job *store.Job) error
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc struct {
	JobType string
	Fn      func(ctx context.Context, job *store.Job) error
}

func (h HandlerFunc) Type() string { return h.JobType }

func (h HandlerFunc) Execute(ctx context.Context, job *store.Job) error {
	return h.Fn(ctx, job)
}

// Event is a live progress notification. Events are for UI consumption and
// never part of durable state.
type Event struct {
	JobID   int64
	JobType string
	Status  store.JobStatus
	Percent int
	Message string
}

// Worker is the single background loop draining the queue.
type Worker struct {
	store    *store.Store
	logger   *slog.Logger
	handlers map[string]Handler

	pollInterval       time.Duration
	errorRetryInterval time.Duration
	jobTimeout         time.Duration

	events func(Event)
}

// Option configures a Worker.
type Option func(*Worker)

// WithEvents registers a progress event callback.
func WithEvents(fn func(Event)) Option {
	return func(w *Worker) { w.events = fn }
}

// WithPollInterval overrides how often the worker checks for new jobs.
func WithPollInterval(d time.Duration) Option {
	return func(w *Worker) { w.pollInterval = d }
}

// WithJobTimeout bounds a single handler execution.
func WithJobTimeout(d time.Duration) Option {
	return func(w *Worker) { w.jobTimeout = d }
}

// NewWorker constructs a worker from configuration.
func NewWorker(cfg *config.Config, st *store.Store, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		store:              st,
		logger:             logging.NewComponentLogger(logger, "worker"),
		handlers:           make(map[string]Handler),
		pollInterval:       time.Duration(cfg.Worker.PollInterval) * time.Second,
		errorRetryInterval: time.Duration(cfg.Worker.ErrorRetryInterval) * time.Second,
		jobTimeout:         time.Duration(cfg.Worker.JobTimeout) * time.Second,
	}
	if w.pollInterval <= 0 {
		w.pollInterval = time.Second
	}
	if w.errorRetryInterval <= 0 {
		w.errorRetryInterval = w.pollInterval
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Register adds a handler; the last registration for a type wins.
func (w *Worker) Register(handler Handler) {
	w.handlers[handler.Type()] = handler
}

// Run drains the queue until ctx is cancelled. Jobs left in processing by a
// previous crash are reset to pending before the loop starts.
func (w *Worker) Run(ctx context.Context) error {
	reset, err := w.store.ResetStaleJobs(ctx)
	if err != nil {
		return fmt.Errorf("worker: reset stale jobs: %w", err)
	}
	if reset > 0 {
		w.logger.Info("reset stale jobs", logging.Int64("count", reset))
	}

	for {
		worked, err := w.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("queue poll failed", logging.Error(err))
			if !sleep(ctx, w.errorRetryInterval) {
				return nil
			}
			continue
		}
		if worked {
			continue
		}
		if !sleep(ctx, w.pollInterval) {
			return nil
		}
	}
}

// RunOnce claims and executes at most one job. The bool reports whether a
// job was processed.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNoJob) {
			return false, nil
		}
		return false, err
	}

	log := w.logger.With(
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String(logging.FieldJobType, job.JobType))
	w.emit(Event{JobID: job.ID, JobType: job.JobType, Status: store.JobProcessing})

	started := time.Now()
	execErr := w.execute(ctx, job)
	elapsed := time.Since(started)

	if execErr != nil {
		failed, failErr := w.store.FailJob(context.WithoutCancel(ctx), job.ID, execErr)
		if failErr != nil {
			return true, fmt.Errorf("worker: record failure: %w", failErr)
		}
		switch failed.Status {
		case store.JobDead:
			log.Error("job dead-lettered",
				logging.Int("attempts", failed.RetryCount), logging.Error(execErr))
		case store.JobPending:
			log.Warn("job failed, requeued",
				logging.Int("attempt", failed.RetryCount), logging.Error(execErr))
		default:
			// Cancelled (or otherwise moved) while the handler ran; the
			// stored outcome wins and the attempt is discarded.
			log.Info("job failure discarded, status changed mid-run",
				logging.String("status", string(failed.Status)))
		}
		w.emit(Event{JobID: job.ID, JobType: job.JobType, Status: failed.Status, Message: execErr.Error()})
		return true, nil
	}

	// CompleteJob is conditional on the processing status, so an operator
	// cancellation that landed mid-run wins and the result is discarded.
	if err := w.store.CompleteJob(context.WithoutCancel(ctx), job.ID, elapsed); err != nil {
		return true, fmt.Errorf("worker: record completion: %w", err)
	}
	log.Info("job complete", logging.Duration("elapsed", elapsed))
	w.emit(Event{JobID: job.ID, JobType: job.JobType, Status: store.JobComplete, Percent: 100})
	return true, nil
}

// execute dispatches to the handler under the job timeout, converting
// handler panics into ordinary failures so the loop survives.
func (w *Worker) execute(ctx context.Context, job *store.Job) (err error) {
	handler, ok := w.handlers[job.JobType]
	if !ok {
		return fmt.Errorf("no handler registered for job type %q", job.JobType)
	}

	if w.jobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.jobTimeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	if err := handler.Execute(ctx, job); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("handler timed out after %s: %w", w.jobTimeout, err)
		}
		return err
	}
	return nil
}

func (w *Worker) emit(event Event) {
	if w.events != nil {
		w.events(event)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
