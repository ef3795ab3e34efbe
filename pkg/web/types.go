package web

import (
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/progress"
)

// CreateJobRequest is the session service's submission.
type CreateJobRequest struct {
	ProjectID string         `json:"project_id" validate:"required"`
	SessionID string         `json:"session_id" validate:"required"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// UpdateJobRequest moves a job to a terminal status. Worker-facing.
type UpdateJobRequest struct {
	Status      models.JobStatus `json:"status"       validate:"required,oneof=completed failed"`
	ExecutionID string           `json:"execution_id"`
	Result      map[string]any   `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// CreateProjectRequest creates an ad-hoc project.
type CreateProjectRequest struct {
	Name            string                   `json:"name" validate:"required,min=1"`
	CanvasData      models.CanvasData        `json:"canvas_data"`
	GlobalVariables []*models.GlobalVariable `json:"global_variables,omitempty"`
}

// SeedProjectRequest creates a project from a named template.
type SeedProjectRequest struct {
	TemplateID string `json:"template_id" validate:"required"`
	Name       string `json:"name,omitempty"`
}

// UpdateVariablesRequest replaces a project's global variables.
type UpdateVariablesRequest struct {
	Variables []*models.GlobalVariable `json:"variables" validate:"required,dive,required"`
}

// ExecutionResponse is an execution instance with optional detail sections.
// Results and logs are omitted unless explicitly requested.
type ExecutionResponse struct {
	*models.ExecutionInstance

	Logs []*models.ExecutionLog `json:"logs,omitempty"`
}

// ProgressResponse is one page of the execution progress feed.
type ProgressResponse struct {
	Entries []progress.Entry `json:"entries"`
	Next    int64            `json:"next_offset"`
	HasMore bool             `json:"has_more"`
}
