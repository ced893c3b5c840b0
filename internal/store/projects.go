package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateProject registers a wedding project.
func (s *Store) CreateProject(ctx context.Context, project *Project) (*Project, error) {
	ctx = ensureContext(ctx)
	if project.Name == "" {
		return nil, errors.New("create project: name required")
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now().UTC()
	}
	res, err := s.execWithRetry(ctx,
		"INSERT INTO projects (name, event_date, created_at) VALUES (?, ?, ?)",
		project.Name, nullableTime(project.EventDate),
		project.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create project id: %w", err)
	}
	project.ID = id
	return project, nil
}

func scanProject(row rowScanner) (*Project, error) {
	var (
		project   Project
		eventDate sql.NullString
		createdAt string
	)
	if err := row.Scan(&project.ID, &project.Name, &eventDate, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	if eventDate.Valid && eventDate.String != "" {
		if t, err := parseTimeString(eventDate.String); err == nil {
			project.EventDate = &t
		}
	}
	if t, err := parseTimeString(createdAt); err == nil {
		project.CreatedAt = t
	}
	return &project, nil
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (*Project, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT id, name, event_date, created_at FROM projects WHERE id = ?", id)
	return scanProject(row)
}

// GetProjectByName fetches a project by its exact name.
func (s *Store) GetProjectByName(ctx context.Context, name string) (*Project, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT id, name, event_date, created_at FROM projects WHERE name = ? ORDER BY id LIMIT 1", name)
	return scanProject(row)
}

// ListProjects returns all projects, newest first.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT id, name, event_date, created_at FROM projects ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

// LinkFileToProject associates a file with a project. Re-linking an already
// linked pair is a no-op.
func (s *Store) LinkFileToProject(ctx context.Context, projectID, fileID int64) error {
	_, err := s.execWithRetry(ensureContext(ctx),
		"INSERT OR IGNORE INTO project_files (project_id, file_id) VALUES (?, ?)",
		projectID, fileID)
	if err != nil {
		return fmt.Errorf("link file to project: %w", err)
	}
	return nil
}

// ProjectFiles returns the files linked to a project.
func (s *Store) ProjectFiles(ctx context.Context, projectID int64) ([]*File, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
SELECT `+fileColumns+`
FROM files
JOIN project_files ON project_files.file_id = files.id
WHERE project_files.project_id = ?
ORDER BY files.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("project files: %w", err)
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
