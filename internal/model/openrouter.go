// Package model implements the reasoning model client. Each call sends a
// single user-role message to an OpenRouter-compatible chat completion
// endpoint and returns the model's exposed reasoning trace concatenated
// with its final content, trace first. Calls are stateless: the agent
// carries all memory in its workspace and re-renders it into every
// prompt.
package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deepsearch-cli/internal/config"
)

// ErrModelRequest marks a non-success response from the model endpoint.
// The wrapped message carries the response body for diagnosis.
var ErrModelRequest = errors.New("model request failed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client talks to one reasoning-capable chat completion endpoint.
type Client struct {
	endpoint string
	model    string
	apiKey   string
	effort   string
	httpc    *http.Client
	logger   *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client, mainly for tests.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// New builds a model client. A missing API key is a configuration
// failure surfaced immediately: it cannot resolve without operator
// intervention, so there is no point deferring it to the first call.
func New(cfg config.ModelConfig, logger *zap.Logger, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("model API key is not configured (OPENROUTER_API_KEY)")
	}
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("model endpoint is not configured")
	}

	effort := cfg.ReasoningEffort
	if effort == "" {
		effort = "low"
	}

	c := &Client{
		endpoint: cfg.Endpoint,
		model:    cfg.Name,
		apiKey:   cfg.APIKey,
		effort:   effort,
		httpc:    &http.Client{Timeout: cfg.Timeout},
		logger:   logger.Named("model"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string           `json:"model"`
	Messages  []chatMessage    `json:"messages"`
	Reasoning reasoningOptions `json:"reasoning"`
}

type reasoningOptions struct {
	Effort string `json:"effort"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Reasoning string `json:"reasoning"`
			Content   string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends prompt as a single user message and returns the
// reasoning trace and content joined by a newline, trace first. Non-2xx
// responses fail with ErrModelRequest carrying the body text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: prompt}},
		Reasoning: reasoningOptions{Effort: c.effort},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrModelRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 16*1024))
		c.logger.Warn("Model endpoint returned non-success status",
			zap.Int("status", resp.StatusCode))
		return "", fmt.Errorf("%w: http %d: %s", ErrModelRequest, resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", ErrModelRequest, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: response contained no choices", ErrModelRequest)
	}

	message := parsed.Choices[0].Message
	if message.Reasoning == "" {
		return message.Content, nil
	}
	return message.Reasoning + "\n" + message.Content, nil
}
