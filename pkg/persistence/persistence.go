// Package persistence provides the storage abstraction for projects, jobs
// and execution records.
package persistence

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
)

type Persistence interface {
	Projects() ProjectRepository
	Jobs() JobRepository
	Executions() ExecutionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// ProjectRepository stores workflow definitions and their global variables.
// Deleting a project cascades its variables.
type ProjectRepository interface {
	All(ctx context.Context) ([]*models.Project, error)
	GetByID(ctx context.Context, id string) (*models.Project, error)
	Save(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error

	// UpdateVariables replaces the project's global variables. This is the
	// only mutation path for variables besides Save and template reset.
	UpdateVariables(ctx context.Context, id string, variables []*models.GlobalVariable) error
}

// JobRepository stores cross-service work tickets. Claim is the one
// operation that must be atomic: two workers polling the same queue must
// never both win the same job.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id string) (*models.Job, error)
	ListByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)

	// Claim transitions the job from queued to processing on behalf of
	// workerID, as a conditional update on the current status. Returns
	// ErrJobAlreadyClaimed when another worker won the race.
	Claim(ctx context.Context, id, workerID string) (*models.Job, error)

	// Update persists a forward status transition with its result fields.
	// Backward or sideways transitions fail with ErrInvalidJobTransition.
	Update(ctx context.Context, job *models.Job) error
}

// ExecutionRepository stores run instances and their append-only logs.
type ExecutionRepository interface {
	Save(ctx context.Context, instance *models.ExecutionInstance) error
	GetByID(ctx context.Context, id string) (*models.ExecutionInstance, error)
	ListByProject(ctx context.Context, projectID string) ([]*models.ExecutionInstance, error)
	ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.ExecutionInstance, error)

	AppendLog(ctx context.Context, entry *models.ExecutionLog) error
	Logs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error)
}
