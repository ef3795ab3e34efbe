package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// JobRepository stores one JSON document per job. A process-wide mutex
// makes claim and update compare-and-swap operations: sufficient for the
// single-process deployments the file store targets. Multi-process
// deployments use the PostgreSQL store, where the claim is a conditional
// UPDATE.
type JobRepository struct {
	root string
	mu   sync.Mutex
}

func NewJobRepository(root string) *JobRepository {
	return &JobRepository{root: root}
}

func (jr *JobRepository) dir() string {
	return filepath.Join(jr.root, "jobs")
}

func (jr *JobRepository) path(id string) string {
	return filepath.Join(jr.dir(), id+".json")
}

func (jr *JobRepository) Create(_ context.Context, job *models.Job) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	return jr.write(job)
}

func (jr *JobRepository) GetByID(_ context.Context, id string) (*models.Job, error) {
	return jr.read(id)
}

func (jr *JobRepository) ListByStatus(_ context.Context, status models.JobStatus) ([]*models.Job, error) {
	if _, err := os.Stat(jr.dir()); os.IsNotExist(err) {
		return []*models.Job{}, nil
	}

	files, err := fs.Glob(os.DirFS(jr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list job files: %w", err)
	}

	jobs := make([]*models.Job, 0)

	for _, file := range files {
		job, err := jr.read(strings.TrimSuffix(file, ".json"))
		if err != nil {
			return nil, err
		}

		if job.Status == status {
			jobs = append(jobs, job)
		}
	}

	// Oldest first, so the queue is drained in arrival order.
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})

	return jobs, nil
}

func (jr *JobRepository) Claim(_ context.Context, id, workerID string) (*models.Job, error) {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	job, err := jr.read(id)
	if err != nil {
		return nil, err
	}

	if job.Status != models.JobStatusQueued {
		return nil, persistence.ErrJobAlreadyClaimed
	}

	now := time.Now()
	job.Status = models.JobStatusProcessing
	job.WorkerID = workerID
	job.StartedAt = &now

	err = jr.write(job)
	if err != nil {
		return nil, err
	}

	return job, nil
}

func (jr *JobRepository) Update(_ context.Context, job *models.Job) error {
	jr.mu.Lock()
	defer jr.mu.Unlock()

	existing, err := jr.read(job.ID)
	if err != nil {
		return err
	}

	if job.Status != existing.Status && !existing.Status.CanTransitionTo(job.Status) {
		return persistence.ErrInvalidJobTransition
	}

	job.CreatedAt = existing.CreatedAt

	return jr.write(job)
}

func (jr *JobRepository) read(id string) (*models.Job, error) {
	data, err := os.ReadFile(jr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrJobNotFound
		}

		return nil, fmt.Errorf("failed to read job %s: %w", id, err)
	}

	var job models.Job

	err = json.Unmarshal(data, &job)
	if err != nil {
		return nil, fmt.Errorf("failed to decode job %s: %w", id, err)
	}

	return &job, nil
}

func (jr *JobRepository) write(job *models.Job) error {
	err := os.MkdirAll(jr.dir(), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create jobs directory: %w", err)
	}

	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode job %s: %w", job.ID, err)
	}

	return os.WriteFile(jr.path(job.ID), data, 0o644)
}
