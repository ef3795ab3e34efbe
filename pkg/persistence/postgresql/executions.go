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

// ExecutionRepository handles execution instances and their logs.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , project_id
  , project_name
  , job_id
  , session_id
  , worker_id
  , status
  , total_nodes
  , executed_nodes
  , failed_nodes
  , skipped_nodes
  , current_node_id
  , started_at
  , completed_at
  , duration_ms
  , error
  , global_variables_snapshot
  , execution_results
`

// Save inserts or updates an execution instance.
func (r *ExecutionRepository) Save(ctx context.Context, instance *models.ExecutionInstance) error {
	snapshot, err := marshalNullableStrings(instance.GlobalVariablesSnapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal variables snapshot: %w", err)
	}

	results, err := marshalNullable(instance.ExecutionResults)
	if err != nil {
		return fmt.Errorf("failed to marshal execution results: %w", err)
	}

	query := `
		INSERT INTO executions (id, project_id, project_name, job_id, session_id, worker_id, status,
			total_nodes, executed_nodes, failed_nodes, skipped_nodes, current_node_id,
			started_at, completed_at, duration_ms, error, global_variables_snapshot, execution_results)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			executed_nodes = EXCLUDED.executed_nodes,
			failed_nodes = EXCLUDED.failed_nodes,
			skipped_nodes = EXCLUDED.skipped_nodes,
			current_node_id = EXCLUDED.current_node_id,
			completed_at = EXCLUDED.completed_at,
			duration_ms = EXCLUDED.duration_ms,
			error = EXCLUDED.error,
			execution_results = EXCLUDED.execution_results
	`

	_, err = r.db.ExecContext(ctx, query,
		instance.ID,
		instance.ProjectID,
		instance.ProjectName,
		nullableString(instance.JobID),
		nullableString(instance.SessionID),
		nullableString(instance.WorkerID),
		instance.Status,
		instance.TotalNodes,
		instance.ExecutedNodes,
		instance.FailedNodes,
		instance.SkippedNodes,
		nullableString(instance.CurrentNodeID),
		instance.StartedAt,
		instance.CompletedAt,
		instance.Duration.Milliseconds(),
		nullableString(instance.Error),
		snapshot,
		results,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution: %w", err)
	}

	return nil
}

// GetByID returns an execution instance, or ErrExecutionNotFound.
func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.ExecutionInstance, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	instance, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return instance, nil
}

// ListByProject returns a project's executions, newest first.
func (r *ExecutionRepository) ListByProject(ctx context.Context, projectID string) ([]*models.ExecutionInstance, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE project_id = $1 ORDER BY started_at DESC`

	return r.queryExecutions(ctx, query, projectID)
}

// ListByStatus returns executions in the given status, oldest first.
func (r *ExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.ExecutionInstance, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE status = $1 ORDER BY started_at ASC`

	return r.queryExecutions(ctx, query, status)
}

func (r *ExecutionRepository) queryExecutions(ctx context.Context, query string, args ...any) ([]*models.ExecutionInstance, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	instances := make([]*models.ExecutionInstance, 0)

	for rows.Next() {
		instance, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		instances = append(instances, instance)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return instances, nil
}

// AppendLog inserts one node attempt row.
func (r *ExecutionRepository) AppendLog(ctx context.Context, entry *models.ExecutionLog) error {
	input, err := marshalNullable(entry.Input)
	if err != nil {
		return fmt.Errorf("failed to marshal log input: %w", err)
	}

	output, err := marshalNullable(entry.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal log output: %w", err)
	}

	query := `
		INSERT INTO execution_logs (id, execution_id, node_id, input, output, status, error, duration_ms, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.db.ExecContext(ctx, query,
		entry.ID,
		entry.ExecutionID,
		entry.NodeID,
		input,
		output,
		entry.Status,
		nullableString(entry.Error),
		entry.Duration.Milliseconds(),
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append execution log: %w", err)
	}

	return nil
}

// Logs returns an execution's log rows in append order.
func (r *ExecutionRepository) Logs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	query := `
		SELECT id, execution_id, node_id, input, output, status, error, duration_ms, timestamp
		FROM execution_logs
		WHERE execution_id = $1
		ORDER BY timestamp ASC
	`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query execution logs: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	logs := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		var (
			entry      models.ExecutionLog
			input      []byte
			output     []byte
			logError   sql.NullString
			durationMS int64
		)

		err = rows.Scan(
			&entry.ID,
			&entry.ExecutionID,
			&entry.NodeID,
			&input,
			&output,
			&entry.Status,
			&logError,
			&durationMS,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution log: %w", err)
		}

		entry.Error = logError.String
		entry.Duration = time.Duration(durationMS) * time.Millisecond

		if len(input) > 0 {
			err = json.Unmarshal(input, &entry.Input)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal log input: %w", err)
			}
		}

		if len(output) > 0 {
			err = json.Unmarshal(output, &entry.Output)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal log output: %w", err)
			}
		}

		logs = append(logs, &entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating execution logs: %w", err)
	}

	return logs, nil
}

func scanExecution(row rowScanner) (*models.ExecutionInstance, error) {
	var (
		instance      models.ExecutionInstance
		jobID         sql.NullString
		sessionID     sql.NullString
		workerID      sql.NullString
		currentNodeID sql.NullString
		runError      sql.NullString
		durationMS    int64
		snapshot      []byte
		results       []byte
	)

	err := row.Scan(
		&instance.ID,
		&instance.ProjectID,
		&instance.ProjectName,
		&jobID,
		&sessionID,
		&workerID,
		&instance.Status,
		&instance.TotalNodes,
		&instance.ExecutedNodes,
		&instance.FailedNodes,
		&instance.SkippedNodes,
		&currentNodeID,
		&instance.StartedAt,
		&instance.CompletedAt,
		&durationMS,
		&runError,
		&snapshot,
		&results,
	)
	if err != nil {
		return nil, err
	}

	instance.JobID = jobID.String
	instance.SessionID = sessionID.String
	instance.WorkerID = workerID.String
	instance.CurrentNodeID = currentNodeID.String
	instance.Error = runError.String
	instance.Duration = time.Duration(durationMS) * time.Millisecond

	if len(snapshot) > 0 {
		err = json.Unmarshal(snapshot, &instance.GlobalVariablesSnapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal variables snapshot: %w", err)
		}
	}

	if len(results) > 0 {
		err = json.Unmarshal(results, &instance.ExecutionResults)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal execution results: %w", err)
		}
	}

	return &instance, nil
}

func marshalNullableStrings(value map[string]string) ([]byte, error) {
	if value == nil {
		return nil, nil
	}

	return json.Marshal(value)
}
