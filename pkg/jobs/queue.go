// Package jobs implements the hand-off between the session-facing producer
// and the workflow worker. A job only ever moves forward: queued ->
// processing -> {completed, failed}.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
)

// Queue is the producer/consumer facade over the job repository.
type Queue struct {
	repo      persistence.JobRepository
	validator *validator.Validate
	logger    *slog.Logger
}

// NewQueue creates a job queue backed by the given repository.
func NewQueue(repo persistence.JobRepository, logger *slog.Logger) *Queue {
	return &Queue{
		repo:      repo,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With("module", "jobs"),
	}
}

// Enqueue creates a new queued job for the given project and session.
func (q *Queue) Enqueue(ctx context.Context, projectID, sessionID string, payload map[string]any) (*models.Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate job ID: %w", err)
	}

	job := &models.Job{
		ID:        id.String(),
		Status:    models.JobStatusQueued,
		ProjectID: projectID,
		SessionID: sessionID,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	err = q.validator.Struct(job)
	if err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	err = q.repo.Create(ctx, job)
	if err != nil {
		return nil, err
	}

	q.logger.InfoContext(ctx, "Job enqueued", "job_id", job.ID, "project_id", projectID, "session_id", sessionID)

	return job, nil
}

// Get returns a job by ID.
func (q *Queue) Get(ctx context.Context, id string) (*models.Job, error) {
	return q.repo.GetByID(ctx, id)
}

// NextQueued returns the oldest queued job, or nil when the queue is empty.
// The returned job is not claimed; call Claim to take ownership.
func (q *Queue) NextQueued(ctx context.Context) (*models.Job, error) {
	queued, err := q.repo.ListByStatus(ctx, models.JobStatusQueued)
	if err != nil {
		return nil, err
	}

	if len(queued) == 0 {
		return nil, nil
	}

	return queued[0], nil
}

// ListByStatus returns jobs in the given status, oldest first.
func (q *Queue) ListByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	return q.repo.ListByStatus(ctx, status)
}

// ListProcessing returns jobs currently held by a worker, oldest first.
func (q *Queue) ListProcessing(ctx context.Context) ([]*models.Job, error) {
	return q.repo.ListByStatus(ctx, models.JobStatusProcessing)
}

// Claim takes ownership of a queued job on behalf of workerID. Exactly one
// concurrent claimant succeeds; the rest get ErrJobAlreadyClaimed.
func (q *Queue) Claim(ctx context.Context, id, workerID string) (*models.Job, error) {
	job, err := q.repo.Claim(ctx, id, workerID)
	if err != nil {
		return nil, err
	}

	q.logger.InfoContext(ctx, "Job claimed", "job_id", id, "worker_id", workerID)

	return job, nil
}

// Complete moves a processing job to completed with the run's aggregated
// result. Completing an already-terminal job is a no-op: retried deliveries
// must not fail the caller.
func (q *Queue) Complete(ctx context.Context, job *models.Job, executionID string, result map[string]any) error {
	update := *job
	update.Status = models.JobStatusCompleted
	update.ExecutionID = executionID
	update.Result = result
	update.Error = ""

	err := q.repo.Update(ctx, &update)
	if err != nil {
		if persistence.IsInvalidJobTransition(err) {
			q.logger.WarnContext(ctx, "Ignoring completion of terminal job", "job_id", job.ID)

			return nil
		}

		return err
	}

	q.logger.InfoContext(ctx, "Job completed", "job_id", job.ID, "execution_id", executionID)

	return nil
}

// Fail moves a processing job to failed with a diagnostic message. Like
// Complete, it absorbs transitions on already-terminal jobs.
func (q *Queue) Fail(ctx context.Context, job *models.Job, executionID, message string) error {
	update := *job
	update.Status = models.JobStatusFailed
	update.ExecutionID = executionID
	update.Error = message

	err := q.repo.Update(ctx, &update)
	if err != nil {
		if persistence.IsInvalidJobTransition(err) {
			q.logger.WarnContext(ctx, "Ignoring failure of terminal job", "job_id", job.ID)

			return nil
		}

		return err
	}

	q.logger.InfoContext(ctx, "Job failed", "job_id", job.ID, "error", message)

	return nil
}
