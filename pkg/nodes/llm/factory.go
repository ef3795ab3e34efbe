package llm

import (
	"context"

	"github.com/loomworks/loom/pkg/models"
	"github.com/loomworks/loom/pkg/protocol"
)

type Factory struct {
	provider protocol.Provider
}

func NewFactory(provider protocol.Provider) *Factory {
	return &Factory{provider: provider}
}

func (f *Factory) Type() models.NodeType {
	return models.NodeTypeLLM
}

func (f *Factory) Name() string {
	return "LLM"
}

func (f *Factory) Description() string {
	return "Generates text through the configured model provider"
}

func (f *Factory) Schema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"model", "prompt"},
		"properties": map[string]any{
			"model":       map[string]any{"type": "string", "minLength": 1},
			"prompt":      map[string]any{"type": "string", "minLength": 1},
			"system":      map[string]any{"type": "string"},
			"temperature": map[string]any{"type": "number", "minimum": 0},
			"max_tokens":  map[string]any{"type": "integer", "minimum": 1},
			"timeout":     map[string]any{"type": "integer", "minimum": 1},
			"stream":      map[string]any{"type": "boolean"},
		},
	}
}

func (f *Factory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewLLMNode(id, f.provider, config)
}
