package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reelvault/internal/media"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

const fileColumns = `id, content_hash, original_name, original_path, managed_path, extension,
size_bytes, file_kind, medium, footage_type, detected_make, detected_model, camera_id,
duration_seconds, width, height, frame_rate, codec, processed, hidden,
thumbnail_path, caption, scene_count, recorded_at, imported_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFile(row rowScanner) (*File, error) {
	var (
		file          File
		managedPath   sql.NullString
		extension     sql.NullString
		medium        sql.NullString
		footageType   sql.NullString
		detectedMake  sql.NullString
		detectedModel sql.NullString
		cameraID      sql.NullInt64
		duration      sql.NullFloat64
		width         sql.NullInt64
		height        sql.NullInt64
		frameRate     sql.NullFloat64
		codec         sql.NullString
		processed     int
		hidden        int
		thumbnail     sql.NullString
		caption       sql.NullString
		sceneCount    sql.NullInt64
		recordedAt    sql.NullString
		importedAt    string
	)
	if err := row.Scan(
		&file.ID, &file.ContentHash, &file.OriginalName, &file.OriginalPath, &managedPath, &extension,
		&file.SizeBytes, &file.FileKind, &medium, &footageType, &detectedMake, &detectedModel, &cameraID,
		&duration, &width, &height, &frameRate, &codec, &processed, &hidden,
		&thumbnail, &caption, &sceneCount, &recordedAt, &importedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan file: %w", err)
	}

	file.ManagedPath = managedPath.String
	file.Extension = extension.String
	file.Medium = media.Medium(medium.String)
	file.FootageType = media.FootageType(footageType.String)
	file.DetectedMake = detectedMake.String
	file.DetectedModel = detectedModel.String
	if cameraID.Valid {
		file.CameraID = &cameraID.Int64
	}
	file.Duration = duration.Float64
	file.Width = int(width.Int64)
	file.Height = int(height.Int64)
	file.FrameRate = frameRate.Float64
	file.Codec = codec.String
	file.Processed = processed != 0
	file.Hidden = hidden != 0
	file.ThumbnailPath = thumbnail.String
	file.Caption = caption.String
	if sceneCount.Valid {
		file.SceneCount = &sceneCount.Int64
	}
	if recordedAt.Valid && recordedAt.String != "" {
		if t, err := parseTimeString(recordedAt.String); err == nil {
			file.RecordedAt = &t
		}
	}
	if t, err := parseTimeString(importedAt); err == nil {
		file.ImportedAt = t
	}
	return &file, nil
}

// InsertFile records a newly imported file. The content hash is unique;
// inserting a duplicate returns the existing row with ErrDuplicateFile.
func (s *Store) InsertFile(ctx context.Context, file *File) (*File, error) {
	ctx = ensureContext(ctx)
	if file.ContentHash == "" {
		return nil, errors.New("insert file: content hash required")
	}
	if file.ImportedAt.IsZero() {
		file.ImportedAt = time.Now().UTC()
	}

	existing, err := s.GetFileByHash(ctx, file.ContentHash)
	if err == nil {
		return existing, ErrDuplicateFile
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	res, err := s.execWithRetry(ctx, `
INSERT INTO files (content_hash, original_name, original_path, managed_path, extension,
    size_bytes, file_kind, medium, footage_type, detected_make, detected_model, camera_id,
    duration_seconds, width, height, frame_rate, codec, processed, hidden,
    thumbnail_path, caption, scene_count, recorded_at, imported_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		file.ContentHash, file.OriginalName, file.OriginalPath,
		nullableString(file.ManagedPath), nullableString(file.Extension),
		file.SizeBytes, string(file.FileKind),
		nullableString(string(file.Medium)), nullableString(string(file.FootageType)),
		nullableString(file.DetectedMake), nullableString(file.DetectedModel), file.CameraID,
		file.Duration, file.Width, file.Height, file.FrameRate, nullableString(file.Codec),
		boolToInt(file.Processed), boolToInt(file.Hidden),
		nullableString(file.ThumbnailPath), nullableString(file.Caption), file.SceneCount,
		nullableTime(file.RecordedAt), file.ImportedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert file id: %w", err)
	}
	file.ID = id
	return file, nil
}

// ErrDuplicateFile signals that a file with the same content hash already
// exists in the library.
var ErrDuplicateFile = errors.New("store: duplicate content hash")

// GetFileByHash fetches the file with the given content hash.
func (s *Store) GetFileByHash(ctx context.Context, hash string) (*File, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE content_hash = ?", hash)
	return scanFile(row)
}

// GetFile fetches a file by id.
func (s *Store) GetFile(ctx context.Context, id int64) (*File, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE id = ?", id)
	return scanFile(row)
}

// ListFiles returns library files, newest imports first.
func (s *Store) ListFiles(ctx context.Context, limit int) ([]*File, error) {
	ctx = ensureContext(ctx)
	query := "SELECT " + fileColumns + " FROM files ORDER BY imported_at DESC, id DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	defer rows.Close()

	var files []*File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

// SetFileCamera assigns a camera to a file.
func (s *Store) SetFileCamera(ctx context.Context, fileID, cameraID int64) error {
	res, err := s.execWithRetry(ensureContext(ctx),
		"UPDATE files SET camera_id = ? WHERE id = ?", cameraID, fileID)
	if err != nil {
		return fmt.Errorf("set file camera: %w", err)
	}
	return requireRow(res)
}

// UpdateFileAnalysis persists results from a background processing job.
// Empty strings and nil counters leave existing values untouched.
func (s *Store) UpdateFileAnalysis(ctx context.Context, fileID int64, thumbnail, caption string, sceneCount *int64) error {
	res, err := s.execWithRetry(ensureContext(ctx), `
UPDATE files SET
    thumbnail_path = COALESCE(?, thumbnail_path),
    caption = COALESCE(?, caption),
    scene_count = COALESCE(?, scene_count),
    processed = 1
WHERE id = ?`,
		nullableString(thumbnail), nullableString(caption), sceneCount, fileID)
	if err != nil {
		return fmt.Errorf("update file analysis: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
