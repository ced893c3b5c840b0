package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const sessionColumns = `id, project_id, status, last_step, can_resume, source_paths_json,
destination_path, copy_to_managed, footage_override,
total_files, processed_files, duplicate_files, error_files, total_bytes, processed_bytes,
scan_json, hash_json, copy_json, validate_json, error_message, created_at, updated_at`

// CreateSession persists a new import session in the pending state.
func (s *Store) CreateSession(ctx context.Context, session *ImportSession) (*ImportSession, error) {
	ctx = ensureContext(ctx)
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.Status == "" {
		session.Status = SessionPending
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	session.CanResume = true

	_, err := s.execWithRetry(ctx, `
INSERT INTO import_sessions (id, project_id, status, last_step, can_resume, source_paths_json,
    destination_path, copy_to_managed, footage_override,
    total_files, processed_files, duplicate_files, error_files, total_bytes, processed_bytes,
    scan_json, hash_json, copy_json, validate_json, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.ProjectID, string(session.Status), session.LastStep,
		boolToInt(session.CanResume), session.SourcePathsJSON,
		nullableString(session.DestinationPath), boolToInt(session.CopyToManaged),
		nullableString(session.FootageOverride),
		session.TotalFiles, session.ProcessedFiles, session.DuplicateFiles,
		session.ErrorFiles, session.TotalBytes, session.ProcessedBytes,
		nullableString(session.ScanJSON), nullableString(session.HashJSON),
		nullableString(session.CopyJSON), nullableString(session.ValidateJSON),
		nullableString(session.ErrorMessage),
		session.CreatedAt.Format(time.RFC3339Nano), session.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// UpdateSession writes the full mutable state of a session back to disk.
// The importer calls this after every step so a crash never loses more than
// the step in flight.
func (s *Store) UpdateSession(ctx context.Context, session *ImportSession) error {
	ctx = ensureContext(ctx)
	session.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx, `
UPDATE import_sessions SET
    project_id = ?, status = ?, last_step = ?, can_resume = ?,
    destination_path = ?, copy_to_managed = ?, footage_override = ?,
    total_files = ?, processed_files = ?, duplicate_files = ?, error_files = ?,
    total_bytes = ?, processed_bytes = ?,
    scan_json = ?, hash_json = ?, copy_json = ?, validate_json = ?,
    error_message = ?, updated_at = ?
WHERE id = ?`,
		session.ProjectID, string(session.Status), session.LastStep, boolToInt(session.CanResume),
		nullableString(session.DestinationPath), boolToInt(session.CopyToManaged),
		nullableString(session.FootageOverride),
		session.TotalFiles, session.ProcessedFiles, session.DuplicateFiles, session.ErrorFiles,
		session.TotalBytes, session.ProcessedBytes,
		nullableString(session.ScanJSON), nullableString(session.HashJSON),
		nullableString(session.CopyJSON), nullableString(session.ValidateJSON),
		nullableString(session.ErrorMessage), session.UpdatedAt.Format(time.RFC3339Nano),
		session.ID)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireRow(res)
}

func scanSession(row rowScanner) (*ImportSession, error) {
	var (
		session     ImportSession
		projectID   sql.NullInt64
		status      string
		canResume   int
		destination sql.NullString
		copyManaged int
		footage     sql.NullString
		scanJSON    sql.NullString
		hashJSON    sql.NullString
		copyJSON    sql.NullString
		validate    sql.NullString
		errMsg      sql.NullString
		createdAt   string
		updatedAt   string
	)
	if err := row.Scan(
		&session.ID, &projectID, &status, &session.LastStep, &canResume, &session.SourcePathsJSON,
		&destination, &copyManaged, &footage,
		&session.TotalFiles, &session.ProcessedFiles, &session.DuplicateFiles,
		&session.ErrorFiles, &session.TotalBytes, &session.ProcessedBytes,
		&scanJSON, &hashJSON, &copyJSON, &validate, &errMsg, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if projectID.Valid {
		session.ProjectID = &projectID.Int64
	}
	parsed, err := ParseSessionStatus(status)
	if err != nil {
		return nil, err
	}
	session.Status = parsed
	session.CanResume = canResume != 0
	session.DestinationPath = destination.String
	session.CopyToManaged = copyManaged != 0
	session.FootageOverride = footage.String
	session.ScanJSON = scanJSON.String
	session.HashJSON = hashJSON.String
	session.CopyJSON = copyJSON.String
	session.ValidateJSON = validate.String
	session.ErrorMessage = errMsg.String
	if t, err := parseTimeString(createdAt); err == nil {
		session.CreatedAt = t
	}
	if t, err := parseTimeString(updatedAt); err == nil {
		session.UpdatedAt = t
	}
	return &session, nil
}

// GetSession fetches an import session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*ImportSession, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+sessionColumns+" FROM import_sessions WHERE id = ?", id)
	return scanSession(row)
}

// ListSessions returns sessions newest first, optionally filtered by status.
func (s *Store) ListSessions(ctx context.Context, statuses ...SessionStatus) ([]*ImportSession, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + sessionColumns + " FROM import_sessions"
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += " WHERE status IN (" + makePlaceholders(len(statuses)) + ")"
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*ImportSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// ResumableSessions returns sessions that were interrupted mid-pipeline —
// including paused and failed ones — and can be picked back up.
func (s *Store) ResumableSessions(ctx context.Context) ([]*ImportSession, error) {
	all, err := s.ListSessions(ctx,
		SessionPending, SessionScanning, SessionHashing, SessionCopying,
		SessionValidating, SessionFinalizing, SessionPaused, SessionFailed)
	if err != nil {
		return nil, err
	}
	resumable := all[:0]
	for _, session := range all {
		if session.CanResume {
			resumable = append(resumable, session)
		}
	}
	return resumable, nil
}
