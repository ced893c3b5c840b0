package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"reelvault/internal/media"
)

// CreateCamera registers a capture device.
func (s *Store) CreateCamera(ctx context.Context, camera *Camera) (*Camera, error) {
	ctx = ensureContext(ctx)
	if camera.Name == "" {
		return nil, errors.New("create camera: name required")
	}
	res, err := s.execWithRetry(ctx,
		"INSERT INTO cameras (name, make, model, medium) VALUES (?, ?, ?, ?)",
		camera.Name, nullableString(camera.Make), nullableString(camera.Model),
		nullableString(string(camera.Medium)))
	if err != nil {
		return nil, fmt.Errorf("create camera: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create camera id: %w", err)
	}
	camera.ID = id
	return camera, nil
}

func scanCamera(row rowScanner) (*Camera, error) {
	var (
		camera Camera
		mk     sql.NullString
		model  sql.NullString
		medium sql.NullString
	)
	if err := row.Scan(&camera.ID, &camera.Name, &mk, &model, &medium); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan camera: %w", err)
	}
	camera.Make = mk.String
	camera.Model = model.String
	camera.Medium = media.Medium(medium.String)
	return &camera, nil
}

// GetCamera fetches a camera by id.
func (s *Store) GetCamera(ctx context.Context, id int64) (*Camera, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT id, name, make, model, medium FROM cameras WHERE id = ?", id)
	return scanCamera(row)
}

// ListCameras returns all registered cameras ordered by name.
func (s *Store) ListCameras(ctx context.Context) ([]*Camera, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT id, name, make, model, medium FROM cameras ORDER BY name, id")
	if err != nil {
		return nil, fmt.Errorf("list cameras: %w", err)
	}
	defer rows.Close()

	var cameras []*Camera
	for rows.Next() {
		camera, err := scanCamera(rows)
		if err != nil {
			return nil, err
		}
		cameras = append(cameras, camera)
	}
	return cameras, rows.Err()
}

// AddCameraPattern attaches a filename rule to a camera.
func (s *Store) AddCameraPattern(ctx context.Context, pattern *CameraPattern) (*CameraPattern, error) {
	ctx = ensureContext(ctx)
	if _, err := ParsePatternKind(string(pattern.Kind)); err != nil {
		return nil, err
	}
	if pattern.Pattern == "" {
		return nil, errors.New("add camera pattern: pattern required")
	}
	res, err := s.execWithRetry(ctx,
		"INSERT INTO camera_patterns (camera_id, kind, pattern, priority) VALUES (?, ?, ?, ?)",
		pattern.CameraID, string(pattern.Kind), pattern.Pattern, pattern.Priority)
	if err != nil {
		return nil, fmt.Errorf("add camera pattern: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("add camera pattern id: %w", err)
	}
	pattern.ID = id
	return pattern, nil
}

// ListCameraPatterns returns every pattern in evaluation order: highest
// priority first, insertion order breaking ties.
func (s *Store) ListCameraPatterns(ctx context.Context) ([]*CameraPattern, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
SELECT id, camera_id, kind, pattern, priority
FROM camera_patterns
ORDER BY priority DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list camera patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*CameraPattern
	for rows.Next() {
		var (
			pattern CameraPattern
			kind    string
		)
		if err := rows.Scan(&pattern.ID, &pattern.CameraID, &kind, &pattern.Pattern, &pattern.Priority); err != nil {
			return nil, fmt.Errorf("scan camera pattern: %w", err)
		}
		pattern.Kind = PatternKind(kind)
		patterns = append(patterns, &pattern)
	}
	return patterns, rows.Err()
}

// DeleteCameraPattern removes one pattern.
func (s *Store) DeleteCameraPattern(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ensureContext(ctx),
		"DELETE FROM camera_patterns WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete camera pattern: %w", err)
	}
	return requireRow(res)
}

// SaveSignature persists a learned camera signature.
func (s *Store) SaveSignature(ctx context.Context, sig *CameraSignature) (*CameraSignature, error) {
	ctx = ensureContext(ctx)
	if sig.Name == "" {
		return nil, errors.New("save signature: name required")
	}
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}
	res, err := s.execWithRetry(ctx, `
INSERT INTO camera_signatures (name, make, model, width, height, frame_rate, confidence, markers_json, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.Name, nullableString(sig.Make), nullableString(sig.Model),
		sig.Width, sig.Height, sig.FrameRate, sig.Confidence,
		nullableString(sig.MarkersJSON), sig.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("save signature: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("save signature id: %w", err)
	}
	sig.ID = id
	return sig, nil
}

// ListSignatures returns learned signatures, newest first.
func (s *Store) ListSignatures(ctx context.Context) ([]*CameraSignature, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `
SELECT id, name, make, model, width, height, frame_rate, confidence, markers_json, created_at
FROM camera_signatures
ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list signatures: %w", err)
	}
	defer rows.Close()

	var signatures []*CameraSignature
	for rows.Next() {
		sig, err := scanSignature(rows)
		if err != nil {
			return nil, err
		}
		signatures = append(signatures, sig)
	}
	return signatures, rows.Err()
}

func scanSignature(row rowScanner) (*CameraSignature, error) {
	var (
		sig       CameraSignature
		mk        sql.NullString
		model     sql.NullString
		width     sql.NullInt64
		height    sql.NullInt64
		frameRate sql.NullFloat64
		markers   sql.NullString
		createdAt string
	)
	if err := row.Scan(&sig.ID, &sig.Name, &mk, &model, &width, &height,
		&frameRate, &sig.Confidence, &markers, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan signature: %w", err)
	}
	sig.Make = mk.String
	sig.Model = model.String
	sig.Width = int(width.Int64)
	sig.Height = int(height.Int64)
	sig.FrameRate = frameRate.Float64
	sig.MarkersJSON = markers.String
	if t, err := parseTimeString(createdAt); err == nil {
		sig.CreatedAt = t
	}
	return &sig, nil
}

// DeleteSignature removes one learned signature.
func (s *Store) DeleteSignature(ctx context.Context, id int64) error {
	res, err := s.execWithRetry(ensureContext(ctx),
		"DELETE FROM camera_signatures WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete signature: %w", err)
	}
	return requireRow(res)
}
