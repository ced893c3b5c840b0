package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reelvault/internal/jobs"
	"reelvault/internal/logging"
	"reelvault/internal/store"
	"reelvault/internal/testsupport"
)

func drainQueue(t *testing.T, worker *jobs.Worker) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		worked, err := worker.RunOnce(ctx)
		if err != nil {
			t.Fatalf("run once: %v", err)
		}
		if !worked {
			return
		}
	}
	t.Fatal("queue did not drain")
}

func TestWorkerDispatchesByType(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	executed := map[string]int{}
	worker := jobs.NewWorker(cfg, st, logging.NewNop())
	for _, jobType := range []string{"scene_detect", "thumbnail"} {
		jt := jobType
		worker.Register(jobs.HandlerFunc{JobType: jt, Fn: func(context.Context, *store.Job) error {
			executed[jt]++
			return nil
		}})
	}

	if _, err := st.EnqueueJob(ctx, &store.Job{JobType: "scene_detect"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := st.EnqueueJob(ctx, &store.Job{JobType: "thumbnail"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drainQueue(t, worker)

	if executed["scene_detect"] != 1 || executed["thumbnail"] != 1 {
		t.Fatalf("unexpected dispatch counts %v", executed)
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Complete != 2 {
		t.Fatalf("expected both jobs complete, got %+v", stats)
	}
}

func TestWorkerRetriesThenDeadLetters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	attempts := 0
	worker := jobs.NewWorker(cfg, st, logging.NewNop())
	worker.Register(jobs.HandlerFunc{JobType: "caption", Fn: func(context.Context, *store.Job) error {
		attempts++
		return errors.New("model unavailable")
	}})

	job, err := st.EnqueueJob(ctx, &store.Job{JobType: "caption", MaxRetries: 3})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drainQueue(t, worker)

	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	final, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != store.JobDead || final.RetryCount != 3 {
		t.Fatalf("expected dead after exhausting retries, got %s count %d", final.Status, final.RetryCount)
	}
}

func TestWorkerFailFailSucceed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	attempts := 0
	worker := jobs.NewWorker(cfg, st, logging.NewNop())
	worker.Register(jobs.HandlerFunc{JobType: "caption", Fn: func(context.Context, *store.Job) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	}})

	job, err := st.EnqueueJob(ctx, &store.Job{JobType: "caption", MaxRetries: 3})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drainQueue(t, worker)

	final, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != store.JobComplete || final.RetryCount != 2 {
		t.Fatalf("expected complete with retry_count 2, got %s count %d", final.Status, final.RetryCount)
	}
}

func TestWorkerRunsDependentsAfterParents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var order []string
	worker := jobs.NewWorker(cfg, st, logging.NewNop())
	for _, jobType := range []string{"scene_detect", "thumbnail"} {
		jt := jobType
		worker.Register(jobs.HandlerFunc{JobType: jt, Fn: func(context.Context, *store.Job) error {
			order = append(order, jt)
			return nil
		}})
	}

	parent, err := st.EnqueueJob(ctx, &store.Job{JobType: "scene_detect", Priority: 1})
	if err != nil {
		t.Fatalf("enqueue parent: %v", err)
	}
	if _, err := st.EnqueueJob(ctx, &store.Job{
		JobType: "thumbnail", Priority: 50, DependsOn: &parent.ID,
	}); err != nil {
		t.Fatalf("enqueue child: %v", err)
	}
	drainQueue(t, worker)

	if len(order) != 2 || order[0] != "scene_detect" || order[1] != "thumbnail" {
		t.Fatalf("dependency order violated: %v", order)
	}
}

func TestWorkerFailsUnknownJobTypes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	worker := jobs.NewWorker(cfg, st, logging.NewNop())
	job, err := st.EnqueueJob(ctx, &store.Job{JobType: "transcode", MaxRetries: 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drainQueue(t, worker)

	final, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != store.JobDead {
		t.Fatalf("unknown job type should dead-letter, got %s", final.Status)
	}
}

func TestWorkerSurvivesHandlerPanics(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	worker := jobs.NewWorker(cfg, st, logging.NewNop())
	worker.Register(jobs.HandlerFunc{JobType: "caption", Fn: func(context.Context, *store.Job) error {
		panic("boom")
	}})

	job, err := st.EnqueueJob(ctx, &store.Job{JobType: "caption", MaxRetries: 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drainQueue(t, worker)

	final, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != store.JobDead {
		t.Fatalf("panicking handler should fail the job, got %s", final.Status)
	}
}

func TestWorkerTimesOutStuckHandlers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	worker := jobs.NewWorker(cfg, st, logging.NewNop(),
		jobs.WithJobTimeout(20*time.Millisecond))
	worker.Register(jobs.HandlerFunc{JobType: "caption", Fn: func(ctx context.Context, _ *store.Job) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	job, err := st.EnqueueJob(ctx, &store.Job{JobType: "caption", MaxRetries: 1})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	drainQueue(t, worker)

	final, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != store.JobDead {
		t.Fatalf("timeout should count as a failed attempt, got %s", final.Status)
	}
}

func TestWorkerDiscardsResultWhenCancelledMidRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	worker := jobs.NewWorker(cfg, st, logging.NewNop())
	var cancelTarget int64
	worker.Register(jobs.HandlerFunc{JobType: "caption", Fn: func(context.Context, *store.Job) error {
		// Operator cancels while the handler is running.
		return st.CancelJob(ctx, cancelTarget)
	}})

	job, err := st.EnqueueJob(ctx, &store.Job{JobType: "caption"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	cancelTarget = job.ID
	drainQueue(t, worker)

	final, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != store.JobError {
		t.Fatalf("cancellation must win over completion, got %s", final.Status)
	}
}

func TestWorkerDiscardsFailureWhenCancelledMidRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	worker := jobs.NewWorker(cfg, st, logging.NewNop())
	var cancelTarget int64
	worker.Register(jobs.HandlerFunc{JobType: "caption", Fn: func(context.Context, *store.Job) error {
		// Operator cancels while the handler is running, then the
		// handler itself errors out.
		if err := st.CancelJob(ctx, cancelTarget); err != nil {
			return err
		}
		return errors.New("tool exited 1")
	}})

	job, err := st.EnqueueJob(ctx, &store.Job{JobType: "caption", MaxRetries: 3})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	cancelTarget = job.ID
	drainQueue(t, worker)

	final, err := st.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if final.Status != store.JobError {
		t.Fatalf("cancellation must win over a late failure, got %s", final.Status)
	}
	if final.ErrorMessage != "cancelled by operator" {
		t.Fatalf("cancel message must survive, got %q", final.ErrorMessage)
	}
	if final.RetryCount != 0 {
		t.Fatalf("discarded attempt must not bump retries, got %d", final.RetryCount)
	}
}
