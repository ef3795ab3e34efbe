package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// ProjectRepository handles project-related database operations.
type ProjectRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *sql.DB, logger *slog.Logger) *ProjectRepository {
	return &ProjectRepository{db: db, logger: logger}
}

const projectColumns = `
	id
  , name
  , is_system
  , template_id
  , canvas_data
  , global_variables
  , created_at
  , updated_at
`

// All returns every project, newest first.
func (r *ProjectRepository) All(ctx context.Context) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	projects := make([]*models.Project, 0)

	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}

		projects = append(projects, project)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}

// GetByID returns a project by ID, or ErrProjectNotFound.
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	project, err := scanProject(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrProjectNotFound
		}

		return nil, fmt.Errorf("failed to scan project: %w", err)
	}

	return project, nil
}

// Save inserts or updates a project.
func (r *ProjectRepository) Save(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()

	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}

	project.UpdatedAt = now

	canvasData, err := json.Marshal(project.CanvasData)
	if err != nil {
		return fmt.Errorf("failed to marshal canvas data: %w", err)
	}

	variables, err := json.Marshal(project.GlobalVariables)
	if err != nil {
		return fmt.Errorf("failed to marshal global variables: %w", err)
	}

	query := `
		INSERT INTO projects (id, name, is_system, template_id, canvas_data, global_variables, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			is_system = EXCLUDED.is_system,
			template_id = EXCLUDED.template_id,
			canvas_data = EXCLUDED.canvas_data,
			global_variables = EXCLUDED.global_variables,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		project.ID,
		project.Name,
		project.IsSystem,
		nullableString(project.TemplateID),
		canvasData,
		variables,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	return nil
}

// Delete removes a project. Variables live inside the row, so the delete
// cascades them by construction.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrProjectNotFound
	}

	return nil
}

// UpdateVariables replaces the project's global variables.
func (r *ProjectRepository) UpdateVariables(ctx context.Context, id string, variables []*models.GlobalVariable) error {
	encoded, err := json.Marshal(variables)
	if err != nil {
		return fmt.Errorf("failed to marshal global variables: %w", err)
	}

	query := `UPDATE projects SET global_variables = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, encoded, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update project variables: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrProjectNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var (
		project    models.Project
		templateID sql.NullString
		canvasData []byte
		variables  []byte
	)

	err := row.Scan(
		&project.ID,
		&project.Name,
		&project.IsSystem,
		&templateID,
		&canvasData,
		&variables,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	project.TemplateID = templateID.String

	if len(canvasData) > 0 {
		err = json.Unmarshal(canvasData, &project.CanvasData)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal canvas data: %w", err)
		}
	}

	if len(variables) > 0 {
		err = json.Unmarshal(variables, &project.GlobalVariables)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal global variables: %w", err)
		}
	}

	return &project, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
