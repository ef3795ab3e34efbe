package input

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputMergesPayloadOverValues(t *testing.T) {
	node, err := NewInputNode("in", map[string]any{
		"values":  map[string]any{"language": "en", "format": "short"},
		"payload": map[string]any{"language": "de", "answers": []any{"yes", "no"}},
	})
	require.NoError(t, err)

	output, err := node.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "de", output["language"], "payload wins over static values")
	assert.Equal(t, "short", output["format"])
	assert.Equal(t, []any{"yes", "no"}, output["answers"])
}

func TestInputEmptyConfig(t *testing.T) {
	node, err := NewInputNode("in", map[string]any{})
	require.NoError(t, err)

	output, err := node.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, output)
}
