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

// JobRepository handles job-related database operations.
type JobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sql.DB, logger *slog.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

const jobColumns = `
	id
  , status
  , project_id
  , session_id
  , worker_id
  , payload
  , result
  , execution_id
  , error
  , created_at
  , started_at
  , completed_at
`

// Create inserts a new job.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}

	payload, err := marshalNullable(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	result, err := marshalNullable(job.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}

	query := `
		INSERT INTO jobs (id, status, project_id, session_id, worker_id, payload, result, execution_id, error, created_at, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = r.db.ExecContext(ctx, query,
		job.ID,
		job.Status,
		job.ProjectID,
		job.SessionID,
		nullableString(job.WorkerID),
		payload,
		result,
		nullableString(job.ExecutionID),
		nullableString(job.Error),
		job.CreatedAt,
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID returns a job by ID, or ErrJobNotFound.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrJobNotFound
		}

		return nil, fmt.Errorf("failed to scan job: %w", err)
	}

	return job, nil
}

// ListByStatus returns jobs in the given status, oldest first.
func (r *JobRepository) ListByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE status = $1 ORDER BY created_at ASC`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	jobs := make([]*models.Job, 0)

	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}

		jobs = append(jobs, job)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}

	return jobs, nil
}

// Claim atomically transitions a queued job to processing for workerID.
// The conditional UPDATE makes the database arbitrate concurrent claims:
// only one worker's statement matches the queued row.
func (r *JobRepository) Claim(ctx context.Context, id, workerID string) (*models.Job, error) {
	query := `
		UPDATE jobs
		SET status = $3, worker_id = $2, started_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING ` + jobColumns

	job, err := scanJob(r.db.QueryRowContext(ctx, query, id, workerID, models.JobStatusProcessing, models.JobStatusQueued))
	if err == nil {
		return job, nil
	}

	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	// No queued row matched: either the job does not exist or someone
	// else already moved it forward.
	_, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}

	return nil, persistence.ErrJobAlreadyClaimed
}

// Update persists a forward status transition. The status check rides in
// the WHERE clause so a stale writer cannot move a job backwards.
func (r *JobRepository) Update(ctx context.Context, job *models.Job) error {
	current, err := r.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}

	if !current.Status.CanTransitionTo(job.Status) {
		return fmt.Errorf("%w: %s -> %s", persistence.ErrInvalidJobTransition, current.Status, job.Status)
	}

	result, err := marshalNullable(job.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal job result: %w", err)
	}

	completedAt := job.CompletedAt
	if job.Status.IsTerminal() && completedAt == nil {
		now := time.Now().UTC()
		completedAt = &now
	}

	query := `
		UPDATE jobs
		SET status = $2, worker_id = COALESCE(NULLIF($3, ''), worker_id),
			result = $4, execution_id = COALESCE(NULLIF($5, ''), execution_id),
			error = $6, completed_at = $7
		WHERE id = $1 AND status = $8
	`

	execResult, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.Status,
		job.WorkerID,
		result,
		job.ExecutionID,
		nullableString(job.Error),
		completedAt,
		current.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := execResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: job %s changed concurrently", persistence.ErrInvalidJobTransition, job.ID)
	}

	return nil
}

func scanJob(row rowScanner) (*models.Job, error) {
	var (
		job         models.Job
		workerID    sql.NullString
		payload     []byte
		result      []byte
		executionID sql.NullString
		jobError    sql.NullString
	)

	err := row.Scan(
		&job.ID,
		&job.Status,
		&job.ProjectID,
		&job.SessionID,
		&workerID,
		&payload,
		&result,
		&executionID,
		&jobError,
		&job.CreatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	job.WorkerID = workerID.String
	job.ExecutionID = executionID.String
	job.Error = jobError.String

	if len(payload) > 0 {
		err = json.Unmarshal(payload, &job.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal job payload: %w", err)
		}
	}

	if len(result) > 0 {
		err = json.Unmarshal(result, &job.Result)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal job result: %w", err)
		}
	}

	return &job, nil
}

func marshalNullable(value map[string]any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}

	return json.Marshal(value)
}
