// Package llm provides the node that calls a model provider through the
// uniform generate interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loomworks/loom/pkg/protocol"
)

const defaultTimeoutSeconds = 60

// LLMNode performs one provider generation per execution. The call is
// time-bounded: on deadline the node fails with a timeout error and the run
// continues with the remaining nodes.
type LLMNode struct {
	id       string
	provider protocol.Provider
	config   Config
}

// Config is the typed configuration for LLM nodes.
type Config struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	System      string  `json:"system,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Timeout     int     `json:"timeout,omitempty"` // Seconds
	Stream      bool    `json:"stream,omitempty"`
}

func NewLLMNode(id string, provider protocol.Provider, config map[string]any) (*LLMNode, error) {
	parsed := Config{Timeout: defaultTimeoutSeconds}

	model, ok := config["model"].(string)
	if !ok || model == "" {
		return nil, protocol.NewConfigError(id, errors.New("missing required field 'model'"))
	}

	parsed.Model = model

	prompt, ok := config["prompt"].(string)
	if !ok || prompt == "" {
		return nil, protocol.NewConfigError(id, errors.New("missing required field 'prompt'"))
	}

	parsed.Prompt = prompt

	if system, ok := config["system"].(string); ok {
		parsed.System = system
	}

	if temperature, ok := config["temperature"].(float64); ok {
		parsed.Temperature = temperature
	}

	if maxTokens, ok := config["max_tokens"].(float64); ok {
		parsed.MaxTokens = int(maxTokens)
	}

	if timeout, ok := config["timeout"].(float64); ok && timeout > 0 {
		parsed.Timeout = int(timeout)
	}

	if stream, ok := config["stream"].(bool); ok {
		parsed.Stream = stream
	}

	return &LLMNode{id: id, provider: provider, config: parsed}, nil
}

func (n *LLMNode) ID() string {
	return n.id
}

func (n *LLMNode) Execute(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(n.config.Timeout)*time.Second)
	defer cancel()

	req := protocol.GenerateRequest{
		Model:       n.config.Model,
		System:      n.config.System,
		Prompt:      n.config.Prompt,
		Temperature: n.config.Temperature,
		MaxTokens:   n.config.MaxTokens,
	}

	var (
		text  string
		model string
		usage *protocol.Usage
	)

	if n.config.Stream {
		err := n.provider.GenerateStream(ctx, req, func(event protocol.StreamEvent) error {
			text = event.Accumulated
			if event.Done {
				usage = event.Usage
			}

			return nil
		})
		if err != nil {
			return nil, n.classify(err)
		}

		model = n.config.Model
	} else {
		result, err := n.provider.Generate(ctx, req)
		if err != nil {
			return nil, n.classify(err)
		}

		text = result.Text
		model = result.Model
		usage = result.Usage
	}

	output := map[string]any{
		"text":  text,
		"model": model,
	}

	if usage != nil {
		output["usage"] = map[string]any{
			"prompt_tokens":     usage.PromptTokens,
			"completion_tokens": usage.CompletionTokens,
			"total_tokens":      usage.TotalTokens,
		}
	}

	return output, nil
}

func (n *LLMNode) classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return protocol.NewTimeoutError(n.id,
			fmt.Errorf("provider call exceeded %ds: %w", n.config.Timeout, err))
	}

	return protocol.NewProviderError(n.id, err)
}
