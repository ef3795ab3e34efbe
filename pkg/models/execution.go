package models

import "time"

// ExecutionStatus is the lifecycle state of one run of a project graph.
type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusPartial   ExecutionStatus = "partial" // Some nodes failed or were skipped
)

// IsTerminal reports whether the status admits no further transitions.
func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionStatusCompleted || s == ExecutionStatusFailed || s == ExecutionStatusPartial
}

// NodeRunStatus is the per-node state within a run.
type NodeRunStatus string

const (
	NodeRunStatusPending   NodeRunStatus = "pending"
	NodeRunStatusResolving NodeRunStatus = "resolving"
	NodeRunStatusReady     NodeRunStatus = "ready"
	NodeRunStatusBlocked   NodeRunStatus = "blocked"
	NodeRunStatusCompleted NodeRunStatus = "completed"
	NodeRunStatusFailed    NodeRunStatus = "failed"
	NodeRunStatusSkipped   NodeRunStatus = "skipped"
)

// ExecutionInstance records one run of a project's graph. It is created when
// the run starts, mutated only by the graph runner, and immutable once the
// status is terminal.
type ExecutionInstance struct {
	ID                      string            `json:"id"`
	ProjectID               string            `json:"project_id"`
	ProjectName             string            `json:"project_name"` // Snapshot, survives project rename
	JobID                   string            `json:"job_id,omitempty"`
	SessionID               string            `json:"session_id,omitempty"`
	WorkerID                string            `json:"worker_id,omitempty"`
	Status                  ExecutionStatus   `json:"status"`
	TotalNodes              int               `json:"total_nodes"`
	ExecutedNodes           int               `json:"executed_nodes"`
	FailedNodes             int               `json:"failed_nodes"`
	SkippedNodes            int               `json:"skipped_nodes"`
	CurrentNodeID           string            `json:"current_node_id,omitempty"` // Non-empty only while running
	StartedAt               time.Time         `json:"started_at"`
	CompletedAt             *time.Time        `json:"completed_at,omitempty"`
	Duration                time.Duration     `json:"duration,omitempty"`
	Error                   string            `json:"error,omitempty"`
	GlobalVariablesSnapshot map[string]string `json:"global_variables_snapshot,omitempty"`
	ExecutionResults        map[string]any    `json:"execution_results,omitempty"` // nodeID -> output map
}

// AccountedNodes is the number of nodes with a terminal per-node status.
// Invariant: never exceeds TotalNodes, equals it only at a terminal status.
func (e *ExecutionInstance) AccountedNodes() int {
	return e.ExecutedNodes + e.FailedNodes + e.SkippedNodes
}

// LogStatus is the outcome of a single node attempt.
type LogStatus string

const (
	LogStatusCompleted LogStatus = "completed"
	LogStatusFailed    LogStatus = "failed"
	LogStatusSkipped   LogStatus = "skipped"
)

// ExecutionLog is one row per node attempt within an ExecutionInstance.
// Append-only.
type ExecutionLog struct {
	ID          string         `json:"id"`
	ExecutionID string         `json:"execution_id"`
	NodeID      string         `json:"node_id"`
	Input       map[string]any `json:"input,omitempty"`
	Output      map[string]any `json:"output,omitempty"`
	Status      LogStatus      `json:"status"`
	Error       string         `json:"error,omitempty"`
	Duration    time.Duration  `json:"duration"`
	Timestamp   time.Time      `json:"timestamp"`
}
