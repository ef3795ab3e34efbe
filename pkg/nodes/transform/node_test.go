package transform

import (
	"context"
	"testing"

	"github.com/loomworks/loom/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransformMapOutput(t *testing.T) {
	node, err := NewTransformNode("t1", map[string]any{
		"output": map[string]any{"echo": "echo: hi", "score": 0.5},
	})
	require.NoError(t, err)

	output, err := node.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "echo: hi", output["echo"])
	assert.Equal(t, 0.5, output["score"])
}

func TestTransformStringOutputWrapsAsText(t *testing.T) {
	node, err := NewTransformNode("t1", map[string]any{"output": "plain"})
	require.NoError(t, err)

	output, err := node.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "plain", output["text"])
}

func TestTransformMissingOutputIsConfigError(t *testing.T) {
	_, err := NewTransformNode("t1", map[string]any{})

	var nodeErr *protocol.NodeError

	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, protocol.KindConfig, nodeErr.Kind)
}
