package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/runner"
)

// Template is the JSON document a project can be seeded from and reset to.
type Template struct {
	ID              string                   `json:"id"`
	Name            string                   `json:"name"`
	CanvasData      models.CanvasData        `json:"canvas_data"`
	GlobalVariables []*models.GlobalVariable `json:"global_variables,omitempty"`
}

// Project is the project lifecycle service. Template files live in a
// directory configured at startup, one JSON file per template ID.
type Project struct {
	persistence  persistence.Persistence
	validator    *validator.Validate
	templatesDir string
}

// NewProject creates the project service. templatesDir may be empty when
// template operations are not needed.
func NewProject(p persistence.Persistence, templatesDir string) *Project {
	return &Project{
		persistence:  p,
		validator:    validator.New(validator.WithRequiredStructEnabled()),
		templatesDir: templatesDir,
	}
}

// HealthCheck checks the health of the persistence layer.
func (s *Project) HealthCheck(ctx context.Context) (string, bool) {
	if s.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := s.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns every project.
func (s *Project) List(ctx context.Context) ([]*models.Project, error) {
	return s.persistence.Projects().All(ctx)
}

// Get returns one project by ID.
func (s *Project) Get(ctx context.Context, id string) (*models.Project, error) {
	return s.persistence.Projects().GetByID(ctx, id)
}

// Create validates and stores a new project.
func (s *Project) Create(ctx context.Context, project *models.Project) (*models.Project, error) {
	if project.Name == "" {
		return nil, &ServiceError{Op: "project.create", Err: ErrProjectNameRequired}
	}

	if project.ID == "" {
		project.ID = uuid.New().String()
	}

	err := s.validator.Struct(project)
	if err != nil {
		return nil, &ServiceError{Op: "project.create", Err: fmt.Errorf("%w: %v", ErrInvalidRequest, err)}
	}

	err = s.persistence.Projects().Save(ctx, project)
	if err != nil {
		return nil, err
	}

	return project, nil
}

// Update validates and stores changes to an existing project.
func (s *Project) Update(ctx context.Context, project *models.Project) (*models.Project, error) {
	existing, err := s.persistence.Projects().GetByID(ctx, project.ID)
	if err != nil {
		return nil, err
	}

	project.CreatedAt = existing.CreatedAt
	project.IsSystem = existing.IsSystem
	project.TemplateID = existing.TemplateID

	err = s.validator.Struct(project)
	if err != nil {
		return nil, &ServiceError{Op: "project.update", Err: fmt.Errorf("%w: %v", ErrInvalidRequest, err)}
	}

	err = s.persistence.Projects().Save(ctx, project)
	if err != nil {
		return nil, err
	}

	return project, nil
}

// Delete removes a project. System projects are protected.
func (s *Project) Delete(ctx context.Context, id string) error {
	project, err := s.persistence.Projects().GetByID(ctx, id)
	if err != nil {
		return err
	}

	if project.IsSystem {
		return &ServiceError{Op: "project.delete", Err: ErrProjectIsSystem}
	}

	return s.persistence.Projects().Delete(ctx, id)
}

// UpdateVariables replaces a project's global variables.
func (s *Project) UpdateVariables(ctx context.Context, id string, variables []*models.GlobalVariable) error {
	return s.persistence.Projects().UpdateVariables(ctx, id, variables)
}

// SeedFromTemplate creates a new project from a template file. The new
// project remembers its template for later resets.
func (s *Project) SeedFromTemplate(ctx context.Context, templateID, name string) (*models.Project, error) {
	tmpl, err := s.loadTemplate(templateID)
	if err != nil {
		return nil, err
	}

	if name == "" {
		name = tmpl.Name
	}

	project := &models.Project{
		ID:              uuid.New().String(),
		Name:            name,
		TemplateID:      templateID,
		CanvasData:      tmpl.CanvasData,
		GlobalVariables: tmpl.GlobalVariables,
		CreatedAt:       time.Now().UTC(),
	}

	err = s.persistence.Projects().Save(ctx, project)
	if err != nil {
		return nil, err
	}

	return project, nil
}

// ResetToTemplate restores a project's canvas and global variables from its
// template file. The project's identity and name are kept.
func (s *Project) ResetToTemplate(ctx context.Context, id string) (*models.Project, error) {
	project, err := s.persistence.Projects().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if project.TemplateID == "" {
		return nil, &ServiceError{Op: "project.reset", Err: ErrNoTemplate}
	}

	tmpl, err := s.loadTemplate(project.TemplateID)
	if err != nil {
		return nil, err
	}

	project.CanvasData = tmpl.CanvasData
	project.GlobalVariables = tmpl.GlobalVariables

	err = s.persistence.Projects().Save(ctx, project)
	if err != nil {
		return nil, err
	}

	return project, nil
}

// loadTemplate reads and decodes a template file. A project that names a
// template which no longer exists cannot be repaired by the engine, so the
// failure is engine-fatal rather than a user error.
func (s *Project) loadTemplate(templateID string) (*Template, error) {
	path := filepath.Join(s.templatesDir, templateID+".json")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &runner.EngineFatalError{Stage: "template load", Err: fmt.Errorf("template %q: %w", templateID, err)}
	}

	var tmpl Template

	err = json.Unmarshal(data, &tmpl)
	if err != nil {
		return nil, &runner.EngineFatalError{Stage: "template decode", Err: fmt.Errorf("template %q: %w", templateID, err)}
	}

	return &tmpl, nil
}
