// Package web provides the HTTP surface: job submission, execution
// inspection, worker control and the progress feed.
package web

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/loomworks/loom/pkg/jobs"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/progress"
	"github.com/loomworks/loom/pkg/services"
	"github.com/loomworks/loom/pkg/worker"
)

type APIHandlers struct {
	projects   *services.Project
	queue      *jobs.Queue
	executions persistence.ExecutionRepository
	supervisor *worker.Supervisor
	feed       *progress.Feed
	validator  *validator.Validate
}

func NewAPIHandlers(
	projects *services.Project,
	queue *jobs.Queue,
	executions persistence.ExecutionRepository,
	supervisor *worker.Supervisor,
	feed *progress.Feed,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		projects:   projects,
		queue:      queue,
		executions: executions,
		supervisor: supervisor,
		feed:       feed,
		validator:  validate,
	}
}

// HealthCheck reports persistence health.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	message, healthy := h.projects.HealthCheck(c.Context())
	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "detail": message})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}

// --- Projects ---

func (h *APIHandlers) GetProjects(c fiber.Ctx) error {
	projects, err := h.projects.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(projects)
}

func (h *APIHandlers) GetProject(c fiber.Ctx) error {
	project, err := h.projects.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(project)
}

func (h *APIHandlers) CreateProject(c fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	project, err := h.projects.Create(c.Context(), &models.Project{
		Name:            req.Name,
		CanvasData:      req.CanvasData,
		GlobalVariables: req.GlobalVariables,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(project)
}

func (h *APIHandlers) UpdateProject(c fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	project, err := h.projects.Update(c.Context(), &models.Project{
		ID:              c.Params("id"),
		Name:            req.Name,
		CanvasData:      req.CanvasData,
		GlobalVariables: req.GlobalVariables,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(project)
}

func (h *APIHandlers) DeleteProject(c fiber.Ctx) error {
	err := h.projects.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) UpdateProjectVariables(c fiber.Ctx) error {
	var req UpdateVariablesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	err := h.projects.UpdateVariables(c.Context(), c.Params("id"), req.Variables)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) SeedProject(c fiber.Ctx) error {
	var req SeedProjectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	project, err := h.projects.SeedFromTemplate(c.Context(), req.TemplateID, req.Name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(project)
}

func (h *APIHandlers) ResetProject(c fiber.Ctx) error {
	project, err := h.projects.ResetToTemplate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(project)
}

// --- Jobs ---

func (h *APIHandlers) CreateJob(c fiber.Ctx) error {
	var req CreateJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.queue.Enqueue(c.Context(), req.ProjectID, req.SessionID, req.Payload)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(job)
}

func (h *APIHandlers) GetJob(c fiber.Ctx) error {
	job, err := h.queue.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(job)
}

func (h *APIHandlers) ListJobs(c fiber.Ctx) error {
	status := models.JobStatus(c.Query("status", string(models.JobStatusQueued)))

	listed, err := h.queue.ListByStatus(c.Context(), status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(listed)
}

// UpdateJob moves a job to a terminal status on behalf of a worker.
func (h *APIHandlers) UpdateJob(c fiber.Ctx) error {
	var req UpdateJobRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	job, err := h.queue.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if req.Status == models.JobStatusCompleted {
		err = h.queue.Complete(c.Context(), job, req.ExecutionID, req.Result)
	} else {
		err = h.queue.Fail(c.Context(), job, req.ExecutionID, req.Error)
	}

	if err != nil {
		return handleServiceError(c, err)
	}

	updated, err := h.queue.Get(c.Context(), job.ID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated)
}

// --- Executions ---

// GetExecution returns one execution. Node results and logs are heavy, so
// both are opt-in via include_results and include_logs.
func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	instance, err := h.executions.GetByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	includeResults, err := queryBool(c, "include_results")
	if err != nil {
		return badRequest(c, "invalid include_results: "+err.Error())
	}

	includeLogs, err := queryBool(c, "include_logs")
	if err != nil {
		return badRequest(c, "invalid include_logs: "+err.Error())
	}

	response := ExecutionResponse{ExecutionInstance: instance}

	if !includeResults {
		stripped := *instance
		stripped.ExecutionResults = nil
		response.ExecutionInstance = &stripped
	}

	if includeLogs {
		logs, err := h.executions.Logs(c.Context(), instance.ID)
		if err != nil {
			return handleServiceError(c, err)
		}

		response.Logs = logs
	}

	return c.JSON(response)
}

func (h *APIHandlers) ListProjectExecutions(c fiber.Ctx) error {
	instances, err := h.executions.ListByProject(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	// Results are never included in listings.
	for i, instance := range instances {
		stripped := *instance
		stripped.ExecutionResults = nil
		instances[i] = &stripped
	}

	return c.JSON(instances)
}

// GetExecutionProgress pages the progress feed for one execution. The
// offset cursor is global to the feed, so a resume never re-reads entries.
func (h *APIHandlers) GetExecutionProgress(c fiber.Ctx) error {
	executionID := c.Params("id")

	after := int64(-1)

	if raw := c.Query("offset"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return badRequest(c, "invalid offset: "+err.Error())
		}

		after = parsed
	}

	limit := 100

	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return badRequest(c, "invalid limit")
		}

		limit = parsed
	}

	all, next, _ := h.feed.Tail(after, 0)

	filtered := make([]progress.Entry, 0, limit)
	hasMore := false

	for _, entry := range all {
		if entry.ExecutionID != executionID {
			continue
		}

		if len(filtered) == limit {
			hasMore = true

			break
		}

		filtered = append(filtered, entry)
	}

	// With a full page the cursor stops at the last returned entry; an
	// empty page advances past everything scanned.
	if len(filtered) > 0 {
		next = filtered[len(filtered)-1].Offset
	}

	return c.JSON(ProgressResponse{Entries: filtered, Next: next, HasMore: hasMore})
}

// --- Workers ---

func (h *APIHandlers) GetWorkers(c fiber.Ctx) error {
	return c.JSON(h.supervisor.Statuses())
}

func (h *APIHandlers) GetWorker(c fiber.Ctx) error {
	status, err := h.supervisor.Status(c.Params("name"))
	if err != nil {
		return notFound(c, err.Error())
	}

	return c.JSON(status)
}

func (h *APIHandlers) StartWorker(c fiber.Ctx) error {
	err := h.supervisor.Start(c.Context(), c.Params("name"))
	if err != nil {
		return conflict(c, err.Error())
	}

	status, _ := h.supervisor.Status(c.Params("name"))

	return c.JSON(status)
}

func (h *APIHandlers) StopWorker(c fiber.Ctx) error {
	err := h.supervisor.Stop(c.Params("name"))
	if err != nil {
		return conflict(c, err.Error())
	}

	status, _ := h.supervisor.Status(c.Params("name"))

	return c.JSON(status)
}

func (h *APIHandlers) RestartWorker(c fiber.Ctx) error {
	err := h.supervisor.Restart(c.Context(), c.Params("name"))
	if err != nil {
		return conflict(c, err.Error())
	}

	status, _ := h.supervisor.Status(c.Params("name"))

	return c.JSON(status)
}

func queryBool(c fiber.Ctx, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}

	return strconv.ParseBool(raw)
}
