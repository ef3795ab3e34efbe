package protocol

import "context"

// ModelInfo describes one model a provider can serve.
type ModelInfo struct {
	ID      string `json:"id"`
	OwnedBy string `json:"owned_by,omitempty"`
}

// GenerateRequest is the uniform input shape every provider accepts.
type GenerateRequest struct {
	Model       string  `json:"model"`
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// Usage reports token accounting for a generation.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResult is the blocking-generation response.
type GenerateResult struct {
	Text  string `json:"text"`
	Model string `json:"model"`
	Usage *Usage `json:"usage,omitempty"`
}

// StreamEvent is one increment of a streaming generation. The final event
// has Done set and carries the usage summary when the provider reports one.
type StreamEvent struct {
	Delta       string `json:"delta"`
	Accumulated string `json:"accumulated"`
	Done        bool   `json:"done"`
	Usage       *Usage `json:"usage,omitempty"`
}

// StreamHandler consumes stream events. Returning an error stops the stream.
type StreamHandler func(event StreamEvent) error

// Provider is the uniform surface any model backend must implement. Vendor
// SDKs stay behind this interface.
type Provider interface {
	// Name identifies the provider for logging and node configs.
	Name() string

	// Models lists the models this provider can serve.
	Models(ctx context.Context) ([]ModelInfo, error)

	// Generate performs a blocking generation.
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)

	// GenerateStream performs an incremental generation, delivering events
	// in order to the handler until Done or error.
	GenerateStream(ctx context.Context, req GenerateRequest, handler StreamHandler) error
}
