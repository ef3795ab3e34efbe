package models

import "time"

// JobStatus is the cross-service hand-off state. Transitions only move
// forward: queued -> processing -> {completed, failed}.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// IsTerminal reports whether the job can no longer change state.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// rank orders statuses along the forward-only path.
func (s JobStatus) rank() int {
	switch s {
	case JobStatusQueued:
		return 0
	case JobStatusProcessing:
		return 1
	case JobStatusCompleted, JobStatusFailed:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// step. Terminal states accept nothing; equal states are not a transition.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	return !s.IsTerminal() && next.rank() == s.rank()+1
}

// Job is the work ticket bridging the session producer and the workflow
// consumer. The producer creates it; the engine only ever moves its status
// forward and never deletes it.
type Job struct {
	ID          string         `json:"id"`
	Status      JobStatus      `json:"status"`
	ProjectID   string         `json:"project_id"  validate:"required"`
	SessionID   string         `json:"session_id"  validate:"required"`
	WorkerID    string         `json:"worker_id,omitempty"` // Set when claimed
	Payload     map[string]any `json:"payload,omitempty"`
	Result      map[string]any `json:"result,omitempty"`
	ExecutionID string         `json:"execution_id,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
