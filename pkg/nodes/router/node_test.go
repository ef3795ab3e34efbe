package router

import (
	"context"
	"testing"

	"github.com/loomworks/loom/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouterMatchesCase(t *testing.T) {
	node, err := NewRouterNode("r1", map[string]any{
		"value": "high",
		"cases": []any{
			map[string]any{"value": "high", "route": "escalate"},
			map[string]any{"value": "low", "route": "reassure"},
		},
	})
	require.NoError(t, err)

	output, err := node.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "escalate", output["route"])
	assert.Equal(t, true, output["matched"])
}

func TestRouterFallsBackToDefault(t *testing.T) {
	node, err := NewRouterNode("r1", map[string]any{
		"value": "medium",
		"cases": []any{map[string]any{"value": "high", "route": "escalate"}},
	})
	require.NoError(t, err)

	output, err := node.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultRoute, output["route"])
	assert.Equal(t, false, output["matched"])
}

func TestRouterComparesNonStringValues(t *testing.T) {
	node, err := NewRouterNode("r1", map[string]any{
		"value": float64(3),
		"cases": []any{map[string]any{"value": "3", "route": "three"}},
	})
	require.NoError(t, err)

	output, err := node.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "three", output["route"])
}

func TestRouterConfigErrors(t *testing.T) {
	_, err := NewRouterNode("r1", map[string]any{"cases": []any{}})
	assertConfigError(t, err)

	_, err = NewRouterNode("r1", map[string]any{"value": "x"})
	assertConfigError(t, err)

	_, err = NewRouterNode("r1", map[string]any{
		"value": "x",
		"cases": []any{map[string]any{"value": "x"}},
	})
	assertConfigError(t, err)
}

func assertConfigError(t *testing.T, err error) {
	t.Helper()

	var nodeErr *protocol.NodeError

	require.ErrorAs(t, err, &nodeErr)
	assert.Equal(t, protocol.KindConfig, nodeErr.Kind)
}
