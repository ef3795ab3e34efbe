// Package worker consumes the job queue: it claims queued jobs one at a
// time, runs the project graph for each and reports the terminal status
// back on the job.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loomworks/loom/pkg/jobs"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/runner"
)

const DefaultPollInterval = 2 * time.Second

// Worker polls the queue at a fixed interval and processes at most one job
// at a time.
type Worker struct {
	id           string
	queue        *jobs.Queue
	projects     persistence.ProjectRepository
	executions   persistence.ExecutionRepository
	runner       *runner.Runner
	logger       *slog.Logger
	pollInterval time.Duration

	mu            sync.Mutex
	lastExecution string
	processed     int
}

// NewWorker creates a worker identified by id.
func NewWorker(id string, queue *jobs.Queue, projects persistence.ProjectRepository, executions persistence.ExecutionRepository, r *runner.Runner, logger *slog.Logger, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Worker{
		id:           id,
		queue:        queue,
		projects:     projects,
		executions:   executions,
		runner:       r,
		logger:       logger.With("module", "worker", "worker_id", id),
		pollInterval: pollInterval,
	}
}

// ID returns the worker's identifier.
func (w *Worker) ID() string {
	return w.id
}

// LastExecutionID returns the ID of the most recent run, or empty.
func (w *Worker) LastExecutionID() string {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.lastExecution
}

// JobsProcessed returns how many jobs this worker has taken to a terminal
// status since it started.
func (w *Worker) JobsProcessed() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.processed
}

// Run reconciles leftover state from a previous incarnation, then polls
// until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	err := w.Reconcile(ctx)
	if err != nil {
		return fmt.Errorf("startup reconciliation failed: %w", err)
	}

	w.logger.InfoContext(ctx, "Worker started", "poll_interval", w.pollInterval)

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "Worker stopping")

			return nil
		case <-ticker.C:
			_, err := w.PollOnce(ctx)
			if err != nil {
				w.logger.ErrorContext(ctx, "Poll cycle failed", "error", err)
			}
		}
	}
}

// PollOnce claims and processes at most one queued job. Returns whether a
// job was processed. Losing a claim race to another worker is not an error.
func (w *Worker) PollOnce(ctx context.Context) (bool, error) {
	job, err := w.queue.NextQueued(ctx)
	if err != nil {
		return false, err
	}

	if job == nil {
		return false, nil
	}

	claimed, err := w.queue.Claim(ctx, job.ID, w.id)
	if err != nil {
		if persistence.IsJobAlreadyClaimed(err) {
			return false, nil
		}

		return false, err
	}

	w.process(ctx, claimed)

	return true, nil
}

// process runs the job's project graph and moves the job to its terminal
// status. Every failure path lands on queue.Fail; a claimed job is never
// left processing.
func (w *Worker) process(ctx context.Context, job *models.Job) {
	w.logger.InfoContext(ctx, "Processing job", "job_id", job.ID, "project_id", job.ProjectID)

	project, err := w.projects.GetByID(ctx, job.ProjectID)
	if err != nil {
		w.failJob(ctx, job, "", fmt.Sprintf("project lookup failed: %v", err))

		return
	}

	instance, result, err := w.runner.Run(ctx, project, job)

	w.mu.Lock()
	w.lastExecution = instance.ID
	w.processed++
	w.mu.Unlock()

	if err != nil {
		w.failJob(ctx, job, instance.ID, err.Error())

		return
	}

	err = w.queue.Complete(ctx, job, instance.ID, result)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to complete job", "job_id", job.ID, "error", err)
	}
}

func (w *Worker) failJob(ctx context.Context, job *models.Job, executionID, message string) {
	err := w.queue.Fail(ctx, job, executionID, message)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to fail job", "job_id", job.ID, "error", err)
	}
}

// Reconcile closes out work orphaned by a previous incarnation of this
// worker: running instances become failed, and their processing jobs fail
// with them. Jobs held by other workers are left alone.
func (w *Worker) Reconcile(ctx context.Context) error {
	orphaned, err := w.executions.ListByStatus(ctx, models.ExecutionStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to list running executions: %w", err)
	}

	for _, instance := range orphaned {
		if instance.WorkerID != w.id {
			continue
		}

		now := time.Now().UTC()
		instance.Status = models.ExecutionStatusFailed
		instance.Error = "orphaned by worker restart"
		instance.CurrentNodeID = ""
		instance.CompletedAt = &now
		instance.Duration = now.Sub(instance.StartedAt)

		err = w.executions.Save(ctx, instance)
		if err != nil {
			return fmt.Errorf("failed to close orphaned execution %s: %w", instance.ID, err)
		}

		w.logger.WarnContext(ctx, "Closed orphaned execution", "execution_id", instance.ID)
	}

	processing, err := w.queue.ListProcessing(ctx)
	if err != nil {
		return fmt.Errorf("failed to list processing jobs: %w", err)
	}

	for _, job := range processing {
		if job.WorkerID != w.id {
			continue
		}

		err = w.queue.Fail(ctx, job, job.ExecutionID, "orphaned by worker restart")
		if err != nil {
			return fmt.Errorf("failed to close orphaned job %s: %w", job.ID, err)
		}

		w.logger.WarnContext(ctx, "Closed orphaned job", "job_id", job.ID)
	}

	return nil
}
