package runner_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/nodes/input"
	"github.com/loomworks/loom/pkg/nodes/output"
	"github.com/loomworks/loom/pkg/nodes/transform"
	"github.com/loomworks/loom/pkg/persistence/file"
	"github.com/loomworks/loom/pkg/protocol"
	"github.com/loomworks/loom/pkg/registry"
	"github.com/loomworks/loom/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenFactory builds nodes that always fail, standing in for an
// unreachable model provider.
type brokenFactory struct{}

func (f *brokenFactory) Type() models.NodeType { return models.NodeTypeLLM }
func (f *brokenFactory) Name() string          { return "Broken LLM" }
func (f *brokenFactory) Description() string   { return "Fails every execution" }

func (f *brokenFactory) Schema() map[string]any {
	return map[string]any{"type": "object"}
}

func (f *brokenFactory) Create(_ context.Context, id string, _ map[string]any) (protocol.Node, error) {
	return &brokenNode{id: id}, nil
}

type brokenNode struct {
	id string
}

func (n *brokenNode) ID() string { return n.id }

func (n *brokenNode) Execute(_ context.Context) (map[string]any, error) {
	return nil, protocol.NewTimeoutError(n.id, errors.New("model did not answer in time"))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRunner(t *testing.T) (*runner.Runner, *file.Persistence) {
	t.Helper()

	p := file.NewPersistence(t.TempDir())
	require.NoError(t, p.HealthCheck(context.Background()))

	logger := testLogger()

	reg := registry.NewRegistry(logger)
	reg.Register(input.NewFactory())
	reg.Register(transform.NewFactory())
	reg.Register(output.NewFactory())
	reg.Register(&brokenFactory{})

	return runner.NewRunner(reg, p.Executions(), logger, runner.WithWorkerID("worker-test")), p
}

func chainProject() *models.Project {
	return &models.Project{
		ID:   "project-1",
		Name: "Chain",
		GlobalVariables: []*models.GlobalVariable{
			{Name: "suffix", Value: "!"},
		},
		CanvasData: models.CanvasData{
			Nodes: []*models.Node{
				{ID: "in", Type: models.NodeTypeInput, Config: map[string]any{
					"values": map[string]any{"greeting": "hello"},
				}},
				{ID: "xform", Type: models.NodeTypeTransform, Config: map[string]any{
					"output": map[string]any{"text": "{{in.greeting}}{{suffix}}"},
				}},
				{ID: "out", Type: models.NodeTypeOutput, Config: map[string]any{
					"fields": map[string]any{"report": "{{xform.text}}"},
				}},
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "in", Target: "xform"},
				{ID: "e2", Source: "xform", Target: "out"},
			},
		},
	}
}

func TestRunCompletesChain(t *testing.T) {
	ctx := context.Background()
	r, p := newTestRunner(t)

	job := &models.Job{ID: "job-1", SessionID: "session-1", ProjectID: "project-1"}

	instance, result, err := r.Run(ctx, chainProject(), job)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusCompleted, instance.Status)
	assert.Equal(t, 3, instance.TotalNodes)
	assert.Equal(t, 3, instance.ExecutedNodes)
	assert.Zero(t, instance.FailedNodes)
	assert.Zero(t, instance.SkippedNodes)
	assert.Empty(t, instance.CurrentNodeID)
	assert.NotNil(t, instance.CompletedAt)
	assert.Equal(t, "job-1", instance.JobID)
	assert.Equal(t, "session-1", instance.SessionID)

	assert.Equal(t, "hello!", result["report"])

	logs, err := p.Executions().Logs(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3)

	for _, entry := range logs {
		assert.Equal(t, models.LogStatusCompleted, entry.Status)
	}

	saved, err := p.Executions().GetByID(ctx, instance.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, saved.Status)
	assert.Equal(t, "!", saved.GlobalVariablesSnapshot["suffix"])
}

func TestRunInjectsJobPayload(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRunner(t)

	project := chainProject()
	job := &models.Job{
		ID:        "job-1",
		SessionID: "session-1",
		ProjectID: "project-1",
		Payload:   map[string]any{"greeting": "bonjour"},
	}

	_, result, err := r.Run(ctx, project, job)
	require.NoError(t, err)

	// Payload overrides the static canvas value of the same name.
	assert.Equal(t, "bonjour!", result["report"])
}

func TestRunSkipsNodeWithUnresolvableReference(t *testing.T) {
	ctx := context.Background()
	r, p := newTestRunner(t)

	// xform references in.greeting but has no edge from in, so the
	// reference is unresolvable and the node is skipped. out still runs
	// because its own reference to xform renders empty only if resolvable;
	// here out references a global instead.
	project := &models.Project{
		ID:   "project-2",
		Name: "Broken wiring",
		GlobalVariables: []*models.GlobalVariable{
			{Name: "fallback", Value: "n/a"},
		},
		CanvasData: models.CanvasData{
			Nodes: []*models.Node{
				{ID: "in", Type: models.NodeTypeInput, Config: map[string]any{
					"values": map[string]any{"greeting": "hello"},
				}},
				{ID: "xform", Type: models.NodeTypeTransform, Config: map[string]any{
					"output": map[string]any{"text": "{{in.greeting}}"},
				}},
				{ID: "out", Type: models.NodeTypeOutput, Config: map[string]any{
					"fields": map[string]any{"report": "{{fallback}}"},
				}},
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "in", Target: "out"},
				{ID: "e2", Source: "xform", Target: "out"},
			},
		},
	}

	instance, result, err := r.Run(ctx, project, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusPartial, instance.Status)
	assert.Equal(t, 2, instance.ExecutedNodes)
	assert.Equal(t, 1, instance.SkippedNodes)
	assert.Zero(t, instance.FailedNodes)
	assert.Contains(t, instance.Error, "skipped")
	assert.Equal(t, "n/a", result["report"])

	// The skip reason is persisted, not just logged: a partial run must
	// name the unresolvable reference after the fact.
	logs, err := p.Executions().Logs(ctx, instance.ID)
	require.NoError(t, err)

	var skipped *models.ExecutionLog

	for _, entry := range logs {
		if entry.Status == models.LogStatusSkipped {
			skipped = entry
		}
	}

	require.NotNil(t, skipped)
	assert.Equal(t, "xform", skipped.NodeID)
	assert.Contains(t, skipped.Error, "in.greeting")
}

func TestRunFailsOnCycleWithoutExecutingAnything(t *testing.T) {
	ctx := context.Background()
	r, p := newTestRunner(t)

	project := &models.Project{
		ID:   "project-3",
		Name: "Cycle",
		CanvasData: models.CanvasData{
			Nodes: []*models.Node{
				{ID: "a", Type: models.NodeTypeTransform, Config: map[string]any{"output": map[string]any{"x": "1"}}},
				{ID: "b", Type: models.NodeTypeTransform, Config: map[string]any{"output": map[string]any{"x": "2"}}},
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "a", Target: "b"},
				{ID: "e2", Source: "b", Target: "a"},
			},
		},
	}

	instance, _, err := r.Run(ctx, project, nil)
	require.Error(t, err)

	var fatal *runner.EngineFatalError

	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "graph validation", fatal.Stage)

	assert.Equal(t, models.ExecutionStatusFailed, instance.Status)
	assert.Zero(t, instance.ExecutedNodes)

	logs, err := p.Executions().Logs(ctx, instance.ID)
	require.NoError(t, err)
	assert.Empty(t, logs, "a run that never started has no node logs")
}

func TestRunToleratesNodeFailure(t *testing.T) {
	ctx := context.Background()
	r, p := newTestRunner(t)

	// in -> llm -> out, with the llm stub timing out. The output node
	// references the llm's text, which becomes unresolvable after the
	// failure, so it is skipped rather than fed a phantom value.
	project := &models.Project{
		ID:   "project-4",
		Name: "Flaky model",
		CanvasData: models.CanvasData{
			Nodes: []*models.Node{
				{ID: "in", Type: models.NodeTypeInput, Config: map[string]any{
					"values": map[string]any{"topic": "weather"},
				}},
				{ID: "llm", Type: models.NodeTypeLLM, Config: map[string]any{
					"prompt": "Summarize {{in.topic}}",
				}},
				{ID: "out", Type: models.NodeTypeOutput, Config: map[string]any{
					"fields": map[string]any{"summary": "{{llm.text}}"},
				}},
			},
			Edges: []*models.Edge{
				{ID: "e1", Source: "in", Target: "llm"},
				{ID: "e2", Source: "llm", Target: "out"},
			},
		},
	}

	instance, result, err := r.Run(ctx, project, nil)
	require.NoError(t, err, "a node failure must not fail the run")

	assert.Equal(t, models.ExecutionStatusPartial, instance.Status)
	assert.Equal(t, 1, instance.ExecutedNodes)
	assert.Equal(t, 1, instance.FailedNodes)
	assert.Equal(t, 1, instance.SkippedNodes)
	assert.Empty(t, result)

	logs, err := p.Executions().Logs(ctx, instance.ID)
	require.NoError(t, err)
	require.Len(t, logs, 3, "one completed, one failed, one skipped")

	var failed, skipped *models.ExecutionLog

	for _, entry := range logs {
		switch entry.Status {
		case models.LogStatusFailed:
			failed = entry
		case models.LogStatusSkipped:
			skipped = entry
		}
	}

	require.NotNil(t, skipped)
	assert.Contains(t, skipped.Error, "unresolvable")

	require.NotNil(t, failed)
	assert.Equal(t, "llm", failed.NodeID)
	assert.Contains(t, failed.Error, "timeout")
}

func TestRunAllNodesFailedIsFailed(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRunner(t)

	project := &models.Project{
		ID:   "project-5",
		Name: "All broken",
		CanvasData: models.CanvasData{
			Nodes: []*models.Node{
				{ID: "llm", Type: models.NodeTypeLLM, Config: map[string]any{"prompt": "hi"}},
			},
		},
	}

	instance, _, err := r.Run(ctx, project, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ExecutionStatusFailed, instance.Status)
	assert.Equal(t, 1, instance.FailedNodes)
	assert.Contains(t, instance.Error, "no nodes executed")
}
