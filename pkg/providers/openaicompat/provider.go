// Package openaicompat implements the provider protocol against any
// OpenAI-compatible chat-completions endpoint (llama.cpp, vLLM, Ollama's
// compat surface, or the hosted API itself).
package openaicompat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/loomworks/loom/pkg/protocol"
)

// Provider talks to one OpenAI-compatible server.
type Provider struct {
	name    string
	baseURL string
	apiKey  string
	client  *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient replaces the default HTTP client. Per-request deadlines
// come from the caller's context, so the default client has no timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		p.client = client
	}
}

// WithName overrides the provider name used in logs and node configs.
func WithName(name string) Option {
	return func(p *Provider) {
		p.name = name
	}
}

func New(baseURL, apiKey string, opts ...Option) *Provider {
	p := &Provider{
		name:    "openai-compatible",
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

func (p *Provider) Name() string {
	return p.name
}

type modelList struct {
	Data []protocol.ModelInfo `json:"data"`
}

func (p *Provider) Models(ctx context.Context) ([]protocol.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return nil, err
	}

	p.authorize(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(resp)
	}

	var list modelList

	err = json.NewDecoder(resp.Body).Decode(&list)
	if err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}

	return list.Data, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
		Delta   chatMessage `json:"delta"`
	} `json:"choices"`
	Usage *protocol.Usage `json:"usage"`
}

func (p *Provider) Generate(ctx context.Context, req protocol.GenerateRequest) (*protocol.GenerateResult, error) {
	resp, err := p.postChat(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var decoded chatResponse

	err = json.NewDecoder(resp.Body).Decode(&decoded)
	if err != nil {
		return nil, fmt.Errorf("decode completion: %w", err)
	}

	if len(decoded.Choices) == 0 {
		return nil, errors.New("completion returned no choices")
	}

	model := decoded.Model
	if model == "" {
		model = req.Model
	}

	return &protocol.GenerateResult{
		Text:  decoded.Choices[0].Message.Content,
		Model: model,
		Usage: decoded.Usage,
	}, nil
}

func (p *Provider) GenerateStream(ctx context.Context, req protocol.GenerateRequest, handler protocol.StreamHandler) error {
	resp, err := p.postChat(ctx, req, true)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	var accumulated strings.Builder

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}

		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			return handler(protocol.StreamEvent{
				Accumulated: accumulated.String(),
				Done:        true,
			})
		}

		var chunk chatResponse

		err := json.Unmarshal([]byte(payload), &chunk)
		if err != nil {
			return fmt.Errorf("decode stream chunk: %w", err)
		}

		if len(chunk.Choices) == 0 {
			if chunk.Usage != nil {
				// Some servers send a final usage-only chunk before [DONE].
				err = handler(protocol.StreamEvent{
					Accumulated: accumulated.String(),
					Usage:       chunk.Usage,
				})
				if err != nil {
					return err
				}
			}

			continue
		}

		delta := chunk.Choices[0].Delta.Content
		accumulated.WriteString(delta)

		err = handler(protocol.StreamEvent{
			Delta:       delta,
			Accumulated: accumulated.String(),
			Usage:       chunk.Usage,
		})
		if err != nil {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}

	// Stream ended without [DONE]; report what we have.
	return handler(protocol.StreamEvent{Accumulated: accumulated.String(), Done: true})
}

func (p *Provider) postChat(ctx context.Context, req protocol.GenerateRequest, stream bool) (*http.Response, error) {
	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}

	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	p.authorize(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer func() { _ = resp.Body.Close() }()

		return nil, p.statusError(resp)
	}

	return resp, nil
}

func (p *Provider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

func (p *Provider) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))

	return fmt.Errorf("provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
