package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loomworks/loom/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	result *protocol.GenerateResult
	err    error
	delay  time.Duration
	events []protocol.StreamEvent
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Models(_ context.Context) ([]protocol.ModelInfo, error) {
	return []protocol.ModelInfo{{ID: "fake-1"}}, nil
}

func (p *fakeProvider) Generate(ctx context.Context, _ protocol.GenerateRequest) (*protocol.GenerateResult, error) {
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return p.result, p.err
}

func (p *fakeProvider) GenerateStream(_ context.Context, _ protocol.GenerateRequest, handler protocol.StreamHandler) error {
	if p.err != nil {
		return p.err
	}

	for _, event := range p.events {
		if err := handler(event); err != nil {
			return err
		}
	}

	return nil
}

func TestNewLLMNodeRequiresModelAndPrompt(t *testing.T) {
	_, err := NewLLMNode("n1", &fakeProvider{}, map[string]any{"prompt": "hi"})
	requireConfigError(t, err)

	_, err = NewLLMNode("n1", &fakeProvider{}, map[string]any{"model": "m"})
	requireConfigError(t, err)
}

func requireConfigError(t *testing.T, err error) {
	t.Helper()

	var nodeErr *protocol.NodeError

	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, protocol.KindConfig, nodeErr.Kind)
}

func TestExecuteBlockingGeneration(t *testing.T) {
	provider := &fakeProvider{result: &protocol.GenerateResult{
		Text:  "a report",
		Model: "fake-1",
		Usage: &protocol.Usage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}}

	node, err := NewLLMNode("n1", provider, map[string]any{
		"model":  "fake-1",
		"prompt": "Summarize the answers",
	})
	require.NoError(t, err)

	output, err := node.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a report", output["text"])
	assert.Equal(t, "fake-1", output["model"])
	assert.Equal(t, 30, output["usage"].(map[string]any)["total_tokens"])
}

func TestExecuteStreamingAccumulates(t *testing.T) {
	provider := &fakeProvider{events: []protocol.StreamEvent{
		{Delta: "a ", Accumulated: "a "},
		{Delta: "report", Accumulated: "a report"},
		{Done: true, Accumulated: "a report", Usage: &protocol.Usage{TotalTokens: 5}},
	}}

	node, err := NewLLMNode("n1", provider, map[string]any{
		"model": "fake-1", "prompt": "p", "stream": true,
	})
	require.NoError(t, err)

	output, err := node.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a report", output["text"])
	assert.Equal(t, 5, output["usage"].(map[string]any)["total_tokens"])
}

func TestExecuteTimeoutClassified(t *testing.T) {
	provider := &fakeProvider{delay: 5 * time.Second}

	node, err := NewLLMNode("n1", provider, map[string]any{
		"model": "fake-1", "prompt": "p", "timeout": float64(1),
	})
	require.NoError(t, err)

	node.config.Timeout = 1 // Keep the test fast: 1s deadline vs 5s provider

	start := time.Now()
	_, err = node.Execute(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)

	var nodeErr *protocol.NodeError

	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, protocol.KindTimeout, nodeErr.Kind)
}

func TestExecuteProviderErrorClassified(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream 500")}

	node, err := NewLLMNode("n1", provider, map[string]any{"model": "m", "prompt": "p"})
	require.NoError(t, err)

	_, err = node.Execute(context.Background())

	var nodeErr *protocol.NodeError

	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, protocol.KindProvider, nodeErr.Kind)
}
