package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// ProjectRepository stores one JSON document per project. Variables live
// inside the document, so deleting the file cascades them.
type ProjectRepository struct {
	root string
	mu   sync.Mutex
}

func NewProjectRepository(root string) *ProjectRepository {
	return &ProjectRepository{root: root}
}

func (pr *ProjectRepository) dir() string {
	return filepath.Join(pr.root, "projects")
}

func (pr *ProjectRepository) path(id string) string {
	return filepath.Join(pr.dir(), id+".json")
}

func (pr *ProjectRepository) All(ctx context.Context) ([]*models.Project, error) {
	if _, err := os.Stat(pr.dir()); os.IsNotExist(err) {
		return []*models.Project{}, nil
	}

	files, err := fs.Glob(os.DirFS(pr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list project files: %w", err)
	}

	projects := make([]*models.Project, 0, len(files))

	for _, file := range files {
		project, err := pr.GetByID(ctx, strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		projects = append(projects, project)
	}

	return projects, nil
}

func (pr *ProjectRepository) GetByID(_ context.Context, id string) (*models.Project, error) {
	data, err := os.ReadFile(pr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrProjectNotFound
		}

		return nil, fmt.Errorf("failed to read project %s: %w", id, err)
	}

	var project models.Project

	err = json.Unmarshal(data, &project)
	if err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", id, err)
	}

	return &project, nil
}

func (pr *ProjectRepository) Save(_ context.Context, project *models.Project) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	return pr.write(project)
}

func (pr *ProjectRepository) Delete(_ context.Context, id string) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	err := os.Remove(pr.path(id))
	if os.IsNotExist(err) {
		return persistence.ErrProjectNotFound
	}

	return err
}

func (pr *ProjectRepository) UpdateVariables(ctx context.Context, id string, variables []*models.GlobalVariable) error {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	project, err := pr.GetByID(ctx, id)
	if err != nil {
		return err
	}

	project.GlobalVariables = variables

	return pr.write(project)
}

func (pr *ProjectRepository) write(project *models.Project) error {
	err := os.MkdirAll(pr.dir(), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create projects directory: %w", err)
	}

	data, err := json.MarshalIndent(project, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode project %s: %w", project.ID, err)
	}

	return os.WriteFile(pr.path(project.ID), data, 0o644)
}
