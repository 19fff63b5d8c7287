package db

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"

	"github.com/Kamar-Folarin/repo-autosync/internal/errors"
	"github.com/Kamar-Folarin/repo-autosync/internal/models"
)

const uniqueViolation = "23505"

const projectColumns = `
	id, name, description, local_path, remote_url, branch, status,
	config_json, credential, last_sync_time, last_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var p models.Project
	var configJSON []byte
	var lastSync sql.NullTime
	if err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.LocalPath,
		&p.RemoteURL,
		&p.Branch,
		&p.Status,
		&configJSON,
		&p.Credential,
		&lastSync,
		&p.LastError,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	p.Config = models.DefaultSyncConfig()
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &p.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal project config: %w", err)
		}
	}
	if lastSync.Valid {
		t := lastSync.Time
		p.LastSyncTime = &t
	}
	return &p, nil
}

// CreateProject inserts a project and fills in its id and timestamps. A
// second project for the same path is rejected by the unique index.
func (s *PostgresStore) CreateProject(ctx context.Context, project *models.Project) error {
	if project == nil {
		return errors.NewValidationError("project cannot be nil", nil)
	}

	configJSON, err := json.Marshal(project.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal project config: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		INSERT INTO projects (
			name, description, local_path, remote_url, branch, status,
			config_json, credential, last_sync_time, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at`,
		project.Name,
		project.Description,
		project.LocalPath,
		project.RemoteURL,
		project.Branch,
		project.Status,
		configJSON,
		project.Credential,
		nullTime(project.LastSyncTime),
		project.LastError,
	).Scan(&project.ID, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return errors.NewDuplicateProjectError(project.LocalPath)
		}
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetProject retrieves a project by its ID
func (s *PostgresStore) GetProject(ctx context.Context, id int64) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE id = $1", id)
	project, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewResourceNotFoundError("project", strconv.FormatInt(id, 10))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// GetProjectByPath retrieves the project tracking a local path
func (s *PostgresStore) GetProjectByPath(ctx context.Context, path string) (*models.Project, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+projectColumns+" FROM projects WHERE local_path = $1", path)
	project, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewResourceNotFoundError("project", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project by path: %w", err)
	}
	return project, nil
}

// ListProjects retrieves all projects ordered by id
func (s *PostgresStore) ListProjects(ctx context.Context) ([]*models.Project, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+projectColumns+" FROM projects ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// UpdateProject stores every mutable column of a project
func (s *PostgresStore) UpdateProject(ctx context.Context, project *models.Project) error {
	if project == nil {
		return errors.NewValidationError("project cannot be nil", nil)
	}

	configJSON, err := json.Marshal(project.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal project config: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		UPDATE projects SET
			name = $2,
			description = $3,
			remote_url = $4,
			branch = $5,
			status = $6,
			config_json = $7,
			last_sync_time = $8,
			last_error = $9,
			credential = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		project.ID,
		project.Name,
		project.Description,
		project.RemoteURL,
		project.Branch,
		project.Status,
		configJSON,
		nullTime(project.LastSyncTime),
		project.LastError,
		project.Credential,
	).Scan(&project.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NewResourceNotFoundError("project", strconv.FormatInt(project.ID, 10))
	}
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}

	return nil
}

// DeleteProject removes a project record
func (s *PostgresStore) DeleteProject(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return errors.NewResourceNotFoundError("project", strconv.FormatInt(id, 10))
	}

	return nil
}

// GetSettings returns the stored settings; an empty value when none exist
func (s *PostgresStore) GetSettings(ctx context.Context) (*models.Settings, error) {
	var settings models.Settings
	err := s.db.QueryRowContext(ctx,
		"SELECT github_token, updated_at FROM settings WHERE id = 1",
	).Scan(&settings.GitHubToken, &settings.UpdatedAt)
	if err == sql.ErrNoRows {
		return &models.Settings{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	return &settings, nil
}

// SaveSettings upserts the settings row
func (s *PostgresStore) SaveSettings(ctx context.Context, settings *models.Settings) error {
	if settings == nil {
		return errors.NewValidationError("settings cannot be nil", nil)
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO settings (id, github_token, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			github_token = EXCLUDED.github_token,
			updated_at = NOW()
		RETURNING updated_at`,
		settings.GitHubToken,
	).Scan(&settings.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
