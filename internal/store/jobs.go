package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNoJob is returned by ClaimNextJob when no runnable job exists.
var ErrNoJob = errors.New("store: no runnable job")

const jobColumns = `id, job_type, payload_json, file_id, project_id, priority, depends_on,
status, retry_count, max_retries, error_message, created_at, started_at, completed_at, duration_ms`

func scanJob(row rowScanner) (*Job, error) {
	var (
		job         Job
		payload     sql.NullString
		fileID      sql.NullInt64
		projectID   sql.NullInt64
		dependsOn   sql.NullInt64
		status      string
		errMsg      sql.NullString
		createdAt   string
		startedAt   sql.NullString
		completedAt sql.NullString
		durationMS  sql.NullInt64
	)
	if err := row.Scan(&job.ID, &job.JobType, &payload, &fileID, &projectID,
		&job.Priority, &dependsOn, &status, &job.RetryCount, &job.MaxRetries,
		&errMsg, &createdAt, &startedAt, &completedAt, &durationMS); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}

	job.PayloadJSON = payload.String
	if fileID.Valid {
		job.FileID = &fileID.Int64
	}
	if projectID.Valid {
		job.ProjectID = &projectID.Int64
	}
	if dependsOn.Valid {
		job.DependsOn = &dependsOn.Int64
	}
	parsed, err := ParseJobStatus(status)
	if err != nil {
		return nil, err
	}
	job.Status = parsed
	job.ErrorMessage = errMsg.String
	if t, err := parseTimeString(createdAt); err == nil {
		job.CreatedAt = t
	}
	if startedAt.Valid && startedAt.String != "" {
		if t, err := parseTimeString(startedAt.String); err == nil {
			job.StartedAt = &t
		}
	}
	if completedAt.Valid && completedAt.String != "" {
		if t, err := parseTimeString(completedAt.String); err == nil {
			job.CompletedAt = &t
		}
	}
	if durationMS.Valid {
		job.DurationMS = &durationMS.Int64
	}
	return &job, nil
}

// EnqueueJob adds a job to the queue. A dependency must reference an
// existing job and may not introduce a cycle; the dependency chain is
// walked at enqueue time so the worker never has to detect deadlock. The
// walk and the insert share one short transaction so the chain cannot
// change between check and commit.
func (s *Store) EnqueueJob(ctx context.Context, job *Job) (*Job, error) {
	ctx = ensureContext(ctx)
	if job.JobType == "" {
		return nil, errors.New("enqueue job: job type required")
	}
	if job.MaxRetries <= 0 {
		job.MaxRetries = 3
	}
	if job.Status == "" {
		job.Status = JobPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	var id int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("enqueue job: begin: %w", err)
		}
		defer tx.Rollback()

		if job.DependsOn != nil {
			if err := checkDependency(ctx, tx, *job.DependsOn); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx, `
INSERT INTO jobs (job_type, payload_json, file_id, project_id, priority, depends_on,
    status, retry_count, max_retries, error_message, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.JobType, nullableString(job.PayloadJSON), job.FileID, job.ProjectID,
			job.Priority, job.DependsOn, string(job.Status), job.RetryCount, job.MaxRetries,
			nullableString(job.ErrorMessage), job.CreatedAt.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("enqueue job: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("enqueue job id: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	job.ID = id
	return job, nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// checkDependency verifies the referenced job exists and walks the chain to
// reject cycles. New jobs cannot be depended on yet, so a cycle can only
// appear through a dangling or repeated reference in an existing chain.
func checkDependency(ctx context.Context, q rowQuerier, dependsOn int64) error {
	seen := map[int64]bool{}
	current := dependsOn
	for {
		if seen[current] {
			return fmt.Errorf("enqueue job: dependency cycle through job %d", current)
		}
		seen[current] = true

		var next sql.NullInt64
		row := q.QueryRowContext(ctx, "SELECT depends_on FROM jobs WHERE id = ?", current)
		if err := row.Scan(&next); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("enqueue job: dependency %d does not exist", current)
			}
			return fmt.Errorf("enqueue job: check dependency: %w", err)
		}
		if !next.Valid {
			return nil
		}
		current = next.Int64
	}
}

// ClaimNextJob atomically takes ownership of the highest-priority runnable
// pending job. A job is runnable when it has no dependency or its dependency
// completed. The claim is a compare-and-swap on status so concurrent workers
// never run the same job; on a lost race the next candidate is tried.
func (s *Store) ClaimNextJob(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	for {
		row := s.db.QueryRowContext(ctx, `
SELECT `+jobColumns+`
FROM jobs
WHERE status = 'pending'
  AND (depends_on IS NULL
       OR EXISTS (SELECT 1 FROM jobs dep WHERE dep.id = jobs.depends_on AND dep.status = 'complete'))
ORDER BY priority DESC, id
LIMIT 1`)
		job, err := scanJob(row)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNoJob
			}
			return nil, err
		}

		now := time.Now().UTC()
		res, err := s.execWithRetry(ctx, `
UPDATE jobs SET status = 'processing', started_at = ?, error_message = NULL
WHERE id = ? AND status = 'pending'`,
			now.Format(time.RFC3339Nano), job.ID)
		if err != nil {
			return nil, fmt.Errorf("claim job: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("claim job rows: %w", err)
		}
		if affected == 1 {
			job.Status = JobProcessing
			job.StartedAt = &now
			job.ErrorMessage = ""
			return job, nil
		}
		// Lost the race; another worker claimed it first.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
	}
}

// CompleteJob marks a processing job complete and records its runtime.
// Completing an already-finished job is a no-op.
func (s *Store) CompleteJob(ctx context.Context, id int64, duration time.Duration) error {
	now := time.Now().UTC()
	_, err := s.execWithRetry(ensureContext(ctx), `
UPDATE jobs SET status = 'complete', completed_at = ?, duration_ms = ?
WHERE id = ? AND status = 'processing'`,
		now.Format(time.RFC3339Nano), duration.Milliseconds(), id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob records a failed attempt. The job returns to pending for another
// try until attempts are exhausted, then dead-letters. Both transitions are
// conditional on the job still being in processing: when an operator cancel
// landed mid-run the cancelled outcome wins and the current row is returned
// untouched, mirroring CompleteJob.
func (s *Store) FailJob(ctx context.Context, id int64, jobErr error) (*Job, error) {
	ctx = ensureContext(ctx)
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	message := ""
	if jobErr != nil {
		message = jobErr.Error()
	}
	retries := job.RetryCount + 1

	var res sql.Result
	if retries >= job.MaxRetries {
		now := time.Now().UTC()
		res, err = s.execWithRetry(ctx, `
UPDATE jobs SET status = 'dead', retry_count = ?, error_message = ?, completed_at = ?
WHERE id = ? AND status = 'processing'`,
			retries, nullableString(message), now.Format(time.RFC3339Nano), id)
		if err != nil {
			return nil, fmt.Errorf("dead-letter job: %w", err)
		}
		job.Status = JobDead
		job.CompletedAt = &now
	} else {
		res, err = s.execWithRetry(ctx, `
UPDATE jobs SET status = 'pending', retry_count = ?, error_message = ?, started_at = NULL
WHERE id = ? AND status = 'processing'`,
			retries, nullableString(message), id)
		if err != nil {
			return nil, fmt.Errorf("requeue job: %w", err)
		}
		job.Status = JobPending
		job.StartedAt = nil
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("fail job rows: %w", err)
	}
	if affected == 0 {
		// Status changed under us; re-read whatever won.
		return s.GetJob(ctx, id)
	}
	job.RetryCount = retries
	job.ErrorMessage = message
	return job, nil
}

// CancelJob marks a pending or processing job as errored with an operator
// cancellation message. A processing job finishes its current attempt; the
// worker discards the result when it sees the status changed under it.
func (s *Store) CancelJob(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	res, err := s.execWithRetry(ensureContext(ctx), `
UPDATE jobs SET status = 'error', error_message = 'cancelled by operator', completed_at = ?
WHERE id = ? AND status IN ('pending', 'processing')`,
		now.Format(time.RFC3339Nano), id)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	return requireRow(res)
}

// RetryJob puts a dead or errored job back in the queue with a fresh
// attempt budget.
func (s *Store) RetryJob(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ensureContext(ctx), `
UPDATE jobs SET status = 'pending', retry_count = 0, error_message = NULL,
    started_at = NULL, completed_at = NULL, duration_ms = NULL
WHERE id = ? AND status IN ('dead', 'error')`,
		id)
	if err != nil {
		return fmt.Errorf("retry job: %w", err)
	}
	return requireRow(res)
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+jobColumns+" FROM jobs WHERE id = ?", id)
	return scanJob(row)
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Store) ListJobs(ctx context.Context, statuses ...JobStatus) ([]*Job, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + jobColumns + " FROM jobs"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeadJobs returns the dead-letter queue, oldest first.
func (s *Store) DeadJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT "+jobColumns+" FROM jobs WHERE status = 'dead' ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("dead jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Stats counts jobs per status.
func (s *Store) Stats(ctx context.Context) (JobStats, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT status, COUNT(1) FROM jobs GROUP BY status")
	if err != nil {
		return JobStats{}, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	var stats JobStats
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return JobStats{}, fmt.Errorf("scan job stats: %w", err)
		}
		switch JobStatus(status) {
		case JobPending:
			stats.Pending = count
		case JobProcessing:
			stats.Processing = count
		case JobComplete:
			stats.Complete = count
		case JobError:
			stats.Error = count
		case JobDead:
			stats.Dead = count
		}
	}
	return stats, rows.Err()
}

// ResetStaleJobs returns jobs stuck in processing (for example after a
// crash) to pending so the worker can pick them up again.
func (s *Store) ResetStaleJobs(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ensureContext(ctx),
		"UPDATE jobs SET status = 'pending', started_at = NULL WHERE status = 'processing'")
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs rows: %w", err)
	}
	return affected, nil
}
