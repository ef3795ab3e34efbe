// Package file provides a file-system persistence implementation, suitable
// for development and single-process deployments.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/loomworks/loom/pkg/persistence"
)

// Persistence implements persistence.Persistence on top of a directory of
// JSON documents.
type Persistence struct {
	root       string
	projects   *ProjectRepository
	jobs       *JobRepository
	executions *ExecutionRepository
}

// NewPersistence creates a file persistence layer rooted at the given
// directory. A "file://" prefix is stripped so database-URL style
// configuration works uniformly.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:       cleanRoot,
		projects:   NewProjectRepository(cleanRoot),
		jobs:       NewJobRepository(cleanRoot),
		executions: NewExecutionRepository(cleanRoot),
	}
}

func (p *Persistence) Projects() persistence.ProjectRepository {
	return p.projects
}

func (p *Persistence) Jobs() persistence.JobRepository {
	return p.jobs
}

func (p *Persistence) Executions() persistence.ExecutionRepository {
	return p.executions
}

// HealthCheck verifies the root directory exists, creating it on first use.
func (p *Persistence) HealthCheck(_ context.Context) error {
	return os.MkdirAll(p.root, 0o755)
}

// Close performs any necessary cleanup. Nothing to do for files.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}
