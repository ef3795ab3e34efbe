package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/loomworks/loom/pkg/jobs"
	cli "github.com/urfave/cli/v3"
)

func enqueueJob(ctx context.Context, command *cli.Command) error {
	projectID := command.Args().Get(0)
	if projectID == "" {
		return errors.New("usage: loom jobs enqueue <project-id>")
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(command.String("payload")), &payload); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	sessionID := command.String("session-id")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	p, logger, err := openPersistence(ctx, command)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	queue := jobs.NewQueue(p.Jobs(), logger)

	job, err := queue.Enqueue(ctx, projectID, sessionID, payload)
	if err != nil {
		return err
	}

	fmt.Printf("Enqueued job %s for project %s (session %s)\n", job.ID, job.ProjectID, job.SessionID)

	return nil
}

func jobStatus(ctx context.Context, command *cli.Command) error {
	id := command.Args().Get(0)
	if id == "" {
		return errors.New("usage: loom jobs status <job-id>")
	}

	p, _, err := openPersistence(ctx, command)
	if err != nil {
		return err
	}
	defer p.Close(ctx)

	job, err := p.Jobs().GetByID(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Job %s\n", job.ID)
	fmt.Printf("  status:     %s\n", job.Status)
	fmt.Printf("  project:    %s\n", job.ProjectID)
	fmt.Printf("  session:    %s\n", job.SessionID)

	if job.WorkerID != "" {
		fmt.Printf("  worker:     %s\n", job.WorkerID)
	}

	if job.Error != "" {
		fmt.Printf("  error:      %s\n", job.Error)
	}

	if job.ExecutionID == "" {
		return nil
	}

	fmt.Printf("  execution:  %s\n", job.ExecutionID)

	instance, err := p.Executions().GetByID(ctx, job.ExecutionID)
	if err != nil {
		return err
	}

	fmt.Printf("Execution %s\n", instance.ID)
	fmt.Printf("  status:    %s\n", instance.Status)
	fmt.Printf("  executed:  %d/%d nodes (%d failed, %d skipped)\n",
		instance.ExecutedNodes, instance.TotalNodes, instance.FailedNodes, instance.SkippedNodes)

	logs, err := p.Executions().Logs(ctx, job.ExecutionID)
	if err != nil {
		return err
	}

	for _, entry := range logs {
		line := fmt.Sprintf("  [%s] %s (%s)", entry.Status, entry.NodeID, entry.Duration)
		if entry.Error != "" {
			line += ": " + entry.Error
		}

		fmt.Println(line)
	}

	return nil
}
