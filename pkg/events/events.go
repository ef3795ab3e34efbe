// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/loomworks/loom/pkg/models"
)

type EventType string

// Kafka topics.
const Topic = "loom.executions" // Topic for execution lifecycle events

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Execution lifecycle events.
	ExecutionStartedEvent  EventType = "execution.started"
	ExecutionFinishedEvent EventType = "execution.finished"

	// Per-node events within an execution.
	NodeStartedEvent   EventType = "execution.node.started"
	NodeCompletedEvent EventType = "execution.node.completed"
	NodeFailedEvent    EventType = "execution.node.failed"
	NodeSkippedEvent   EventType = "execution.node.skipped"

	// Project events.
	ProjectVariablesUpdatedEvent EventType = "project.variables.updated"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	ProjectID string         `json:"project_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type ExecutionStarted struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	JobID       string `json:"job_id,omitempty"`
	TotalNodes  int    `json:"total_nodes"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

type ExecutionFinished struct {
	BaseEvent

	ExecutionID   string                 `json:"execution_id"`
	Status        models.ExecutionStatus `json:"status"`
	ExecutedNodes int                    `json:"executed_nodes"`
	FailedNodes   int                    `json:"failed_nodes"`
	SkippedNodes  int                    `json:"skipped_nodes"`
	Duration      time.Duration          `json:"duration"`
	Error         string                 `json:"error,omitempty"`
}

func (e ExecutionFinished) GetType() EventType {
	return ExecutionFinishedEvent
}

type NodeStarted struct {
	BaseEvent

	ExecutionID string          `json:"execution_id"`
	NodeID      string          `json:"node_id"`
	NodeType    models.NodeType `json:"node_type"`
}

func (e NodeStarted) GetType() EventType {
	return NodeStartedEvent
}

type NodeCompleted struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	NodeID      string        `json:"node_id"`
	Duration    time.Duration `json:"duration"`
}

func (e NodeCompleted) GetType() EventType {
	return NodeCompletedEvent
}

type NodeFailed struct {
	BaseEvent

	ExecutionID string        `json:"execution_id"`
	NodeID      string        `json:"node_id"`
	Error       string        `json:"error"`
	Duration    time.Duration `json:"duration"`
}

func (e NodeFailed) GetType() EventType {
	return NodeFailedEvent
}

type NodeSkipped struct {
	BaseEvent

	ExecutionID string `json:"execution_id"`
	NodeID      string `json:"node_id"`
	Reason      string `json:"reason"`
}

func (e NodeSkipped) GetType() EventType {
	return NodeSkippedEvent
}

type ProjectVariablesUpdated struct {
	BaseEvent

	Variables map[string]string `json:"variables"`
}

func (e ProjectVariablesUpdated) GetType() EventType {
	return ProjectVariablesUpdatedEvent
}
