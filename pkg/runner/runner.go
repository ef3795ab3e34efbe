// Package runner executes a project's node graph: it validates the graph,
// resolves each node's placeholders against the run snapshot, executes nodes
// in dependency order and records per-node outcomes. A single node failing
// never aborts the run; downstream nodes that depended on it are skipped.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/loomworks/loom/pkg/eventbus"
	"github.com/loomworks/loom/pkg/events"
	"github.com/loomworks/loom/pkg/graph"
	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/persistence"
	"github.com/loomworks/loom/pkg/registry"
	"github.com/loomworks/loom/pkg/template"
	"github.com/loomworks/loom/pkg/tracing"
	"github.com/loomworks/loom/pkg/variables"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// EngineFatalError marks a failure of the engine itself rather than of a
// node: an invalid graph, a broken store. The whole run fails and the job
// carrying it fails with it.
type EngineFatalError struct {
	Stage string
	Err   error
}

func (e *EngineFatalError) Error() string {
	return fmt.Sprintf("engine fatal during %s: %v", e.Stage, e.Err)
}

func (e *EngineFatalError) Unwrap() error {
	return e.Err
}

// Runner drives one run of a project graph at a time.
type Runner struct {
	registry   *registry.Registry
	executions persistence.ExecutionRepository
	publisher  eventbus.EventPublisher
	tracer     trace.Tracer
	logger     *slog.Logger
	workerID   string
}

type Option func(*Runner)

// WithPublisher makes the runner emit lifecycle events on the bus.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(r *Runner) {
		r.publisher = publisher
	}
}

// WithTracer wires distributed tracing around node execution.
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Runner) {
		r.tracer = tracer
	}
}

// WithWorkerID stamps run records with the owning worker.
func WithWorkerID(workerID string) Option {
	return func(r *Runner) {
		r.workerID = workerID
	}
}

// NewRunner creates a graph runner.
func NewRunner(reg *registry.Registry, executions persistence.ExecutionRepository, logger *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		registry:   reg,
		executions: executions,
		tracer:     tracenoop.NewTracerProvider().Tracer("runner"),
		logger:     logger.With("module", "runner"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run executes the project's graph once. The returned map is the aggregated
// result of the graph's output nodes, for handing back on the job. A
// non-nil error is always an *EngineFatalError; per-node failures are
// reflected in the instance's counters and status instead.
func (r *Runner) Run(ctx context.Context, project *models.Project, job *models.Job) (*models.ExecutionInstance, map[string]any, error) {
	instance := r.newInstance(project, job)

	ctx, span := tracing.StartSpan(ctx, r.tracer, "runner.run",
		attribute.String(tracing.ProjectIDKey, project.ID),
		attribute.String(tracing.ExecutionIDKey, instance.ID),
		attribute.String(tracing.WorkerIDKey, r.workerID),
	)
	defer span.End()

	g, err := graph.New(project.CanvasData.Nodes, project.CanvasData.Edges)
	if err == nil {
		_, err = g.TopologicalOrder()
	}

	if err != nil {
		fatal := &EngineFatalError{Stage: "graph validation", Err: err}
		tracing.SetError(span, fatal)

		return r.failInstance(ctx, instance, fatal), nil, fatal
	}

	instance.TotalNodes = g.Len()

	err = r.executions.Save(ctx, instance)
	if err != nil {
		fatal := &EngineFatalError{Stage: "instance creation", Err: err}
		tracing.SetError(span, fatal)

		return instance, nil, fatal
	}

	r.publish(ctx, instance.ID, events.ExecutionStarted{
		BaseEvent:   r.baseEvent(events.ExecutionStartedEvent, project.ID),
		ExecutionID: instance.ID,
		JobID:       instance.JobID,
		TotalNodes:  instance.TotalNodes,
	})

	order, _ := g.TopologicalOrder()
	resolver := variables.NewResolver(g, instance.GlobalVariablesSnapshot)
	aggregated := make(map[string]any)

	for _, nodeID := range order {
		instance.CurrentNodeID = nodeID

		err = r.executions.Save(ctx, instance)
		if err != nil {
			fatal := &EngineFatalError{Stage: "instance update", Err: err}
			tracing.SetError(span, fatal)

			return r.failInstance(ctx, instance, fatal), nil, fatal
		}

		r.runNode(ctx, g, resolver, instance, job, nodeID, aggregated)
	}

	r.finishInstance(instance)

	err = r.executions.Save(ctx, instance)
	if err != nil {
		fatal := &EngineFatalError{Stage: "instance finalization", Err: err}
		tracing.SetError(span, fatal)

		return instance, nil, fatal
	}

	r.publish(ctx, instance.ID, events.ExecutionFinished{
		BaseEvent:     r.baseEvent(events.ExecutionFinishedEvent, project.ID),
		ExecutionID:   instance.ID,
		Status:        instance.Status,
		ExecutedNodes: instance.ExecutedNodes,
		FailedNodes:   instance.FailedNodes,
		SkippedNodes:  instance.SkippedNodes,
		Duration:      instance.Duration,
		Error:         instance.Error,
	})

	r.logger.InfoContext(ctx, "Execution finished",
		"execution_id", instance.ID,
		"project_id", project.ID,
		"status", instance.Status,
		"executed", instance.ExecutedNodes,
		"failed", instance.FailedNodes,
		"skipped", instance.SkippedNodes,
	)

	return instance, aggregated, nil
}

func (r *Runner) newInstance(project *models.Project, job *models.Job) *models.ExecutionInstance {
	instance := &models.ExecutionInstance{
		ID:                      uuid.New().String(),
		ProjectID:               project.ID,
		ProjectName:             project.Name,
		WorkerID:                r.workerID,
		Status:                  models.ExecutionStatusRunning,
		StartedAt:               time.Now().UTC(),
		GlobalVariablesSnapshot: project.VariableSnapshot(),
		ExecutionResults:        make(map[string]any),
	}

	if job != nil {
		instance.JobID = job.ID
		instance.SessionID = job.SessionID
	}

	return instance
}

// runNode takes one node through resolve, render, create and execute. All
// failure paths are absorbed into the instance; nothing here aborts the run.
func (r *Runner) runNode(ctx context.Context, g *graph.Graph, resolver *variables.Resolver, instance *models.ExecutionInstance, job *models.Job, nodeID string, aggregated map[string]any) {
	node := g.Node(nodeID)

	ctx, span := tracing.StartSpan(ctx, r.tracer, "runner.node",
		attribute.String(tracing.NodeIDKey, nodeID),
		attribute.String(tracing.NodeTypeKey, string(node.Type)),
		attribute.String(tracing.ExecutionIDKey, instance.ID),
	)
	defer span.End()

	r.publish(ctx, instance.ID, events.NodeStarted{
		BaseEvent:   r.baseEvent(events.NodeStartedEvent, instance.ProjectID),
		ExecutionID: instance.ID,
		NodeID:      nodeID,
		NodeType:    node.Type,
	})

	values, missing := r.resolveNode(ctx, resolver, instance, nodeID, node)
	if len(missing) > 0 {
		reason := fmt.Sprintf("unresolvable variables: %v", missing)
		r.skipNode(ctx, resolver, instance, nodeID, reason)
		span.AddEvent("node_skipped")

		return
	}

	rendered := template.RenderConfig(node.Config, values)

	if node.Type == models.NodeTypeInput && job != nil && job.Payload != nil {
		rendered["payload"] = job.Payload
	}

	started := time.Now()

	execNode, err := r.registry.CreateNode(ctx, node, rendered)
	if err != nil {
		r.failNode(ctx, resolver, instance, nodeID, rendered, err, time.Since(started))
		tracing.SetError(span, err)

		return
	}

	output, err := execNode.Execute(ctx)
	duration := time.Since(started)

	if err != nil {
		r.failNode(ctx, resolver, instance, nodeID, rendered, err, duration)
		tracing.SetError(span, err)

		return
	}

	resolver.RecordResult(nodeID, output)
	instance.ExecutedNodes++
	instance.ExecutionResults[nodeID] = output

	if node.Type == models.NodeTypeOutput {
		for field, value := range output {
			aggregated[field] = value
		}
	}

	r.appendLog(ctx, instance, nodeID, rendered, output, models.LogStatusCompleted, "", duration)

	r.publish(ctx, instance.ID, events.NodeCompleted{
		BaseEvent:   r.baseEvent(events.NodeCompletedEvent, instance.ProjectID),
		ExecutionID: instance.ID,
		NodeID:      nodeID,
		Duration:    duration,
	})
}

// resolveNode resolves every placeholder in the node's config. Pending
// references render as empty values with a warning; missing references make
// the node unrunnable and are returned for the skip decision.
func (r *Runner) resolveNode(ctx context.Context, resolver *variables.Resolver, instance *models.ExecutionInstance, nodeID string, node *models.Node) (map[string]any, []string) {
	placeholders := template.CollectPlaceholders(node.Config)
	values := make(map[string]any, len(placeholders))

	var missing []string

	for _, name := range placeholders {
		resolution := resolver.Resolve(nodeID, name)

		switch {
		case resolution.Resolved():
			values[name] = resolution.Value
		case resolution.Kind == variables.KindPending:
			r.logger.WarnContext(ctx, "Variable pending at execution time, rendering empty",
				"execution_id", instance.ID, "node_id", nodeID, "variable", name)

			values[name] = ""
		default:
			missing = append(missing, name)
		}
	}

	return values, missing
}

func (r *Runner) skipNode(ctx context.Context, resolver *variables.Resolver, instance *models.ExecutionInstance, nodeID, reason string) {
	resolver.MarkExecuted(nodeID)
	instance.SkippedNodes++

	r.logger.InfoContext(ctx, "Node skipped",
		"execution_id", instance.ID, "node_id", nodeID, "reason", reason)

	// The reason must survive the run: a partial instance is only
	// diagnosable if the unresolvable reference is on record.
	r.appendLog(ctx, instance, nodeID, nil, nil, models.LogStatusSkipped, reason, 0)

	r.publish(ctx, instance.ID, events.NodeSkipped{
		BaseEvent:   r.baseEvent(events.NodeSkippedEvent, instance.ProjectID),
		ExecutionID: instance.ID,
		NodeID:      nodeID,
		Reason:      reason,
	})
}

func (r *Runner) failNode(ctx context.Context, resolver *variables.Resolver, instance *models.ExecutionInstance, nodeID string, input map[string]any, nodeErr error, duration time.Duration) {
	resolver.MarkExecuted(nodeID)
	instance.FailedNodes++

	r.logger.ErrorContext(ctx, "Node failed",
		"execution_id", instance.ID, "node_id", nodeID, "error", nodeErr)

	r.appendLog(ctx, instance, nodeID, input, nil, models.LogStatusFailed, nodeErr.Error(), duration)

	r.publish(ctx, instance.ID, events.NodeFailed{
		BaseEvent:   r.baseEvent(events.NodeFailedEvent, instance.ProjectID),
		ExecutionID: instance.ID,
		NodeID:      nodeID,
		Error:       nodeErr.Error(),
		Duration:    duration,
	})
}

func (r *Runner) appendLog(ctx context.Context, instance *models.ExecutionInstance, nodeID string, input, output map[string]any, status models.LogStatus, errMsg string, duration time.Duration) {
	entry := &models.ExecutionLog{
		ID:          uuid.New().String(),
		ExecutionID: instance.ID,
		NodeID:      nodeID,
		Input:       input,
		Output:      output,
		Status:      status,
		Error:       errMsg,
		Duration:    duration,
		Timestamp:   time.Now().UTC(),
	}

	err := r.executions.AppendLog(ctx, entry)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to append execution log",
			"execution_id", instance.ID, "node_id", nodeID, "error", err)
	}
}

// finishInstance derives the terminal status from the counters: completed
// when every node executed, failed when none did, partial otherwise.
func (r *Runner) finishInstance(instance *models.ExecutionInstance) {
	now := time.Now().UTC()
	instance.CurrentNodeID = ""
	instance.CompletedAt = &now
	instance.Duration = now.Sub(instance.StartedAt)

	switch {
	case instance.ExecutedNodes == instance.TotalNodes:
		instance.Status = models.ExecutionStatusCompleted
	case instance.ExecutedNodes == 0:
		instance.Status = models.ExecutionStatusFailed
		instance.Error = fmt.Sprintf("no nodes executed: %d failed, %d skipped", instance.FailedNodes, instance.SkippedNodes)
	default:
		instance.Status = models.ExecutionStatusPartial
		instance.Error = fmt.Sprintf("%d of %d nodes executed: %d failed, %d skipped", instance.ExecutedNodes, instance.TotalNodes, instance.FailedNodes, instance.SkippedNodes)
	}
}

// failInstance records an engine-level failure. No node logs exist for such
// runs: the graph never started executing.
func (r *Runner) failInstance(ctx context.Context, instance *models.ExecutionInstance, fatal *EngineFatalError) *models.ExecutionInstance {
	now := time.Now().UTC()
	instance.Status = models.ExecutionStatusFailed
	instance.Error = fatal.Error()
	instance.CurrentNodeID = ""
	instance.CompletedAt = &now
	instance.Duration = now.Sub(instance.StartedAt)

	err := r.executions.Save(ctx, instance)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to persist failed instance",
			"execution_id", instance.ID, "error", err)
	}

	r.publish(ctx, instance.ID, events.ExecutionFinished{
		BaseEvent:   r.baseEvent(events.ExecutionFinishedEvent, instance.ProjectID),
		ExecutionID: instance.ID,
		Status:      instance.Status,
		Duration:    instance.Duration,
		Error:       instance.Error,
	})

	return instance
}

func (r *Runner) publish(ctx context.Context, key string, event eventbus.Event) {
	if r.publisher == nil {
		return
	}

	err := r.publisher.Publish(ctx, key, event)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (r *Runner) baseEvent(eventType events.EventType, projectID string) events.BaseEvent {
	return events.BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		ProjectID: projectID,
		WorkerID:  r.workerID,
	}
}
