// Package llm wraps an OpenAI-compatible chat completion API and tracks
// per-call token spend.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// ErrParse marks a completion whose content could not be decoded. Callers
// treat it as "no recommendation" rather than a hard failure.
var ErrParse = errors.New("llm: unparseable completion")

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the token count reported by the API for one call.
type Usage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// Request describes one completion call.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	JSONMode    bool
}

// Completer is the narrow completion surface the traders depend on.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, Usage, error)
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	logger     *zap.Logger
	httpClient *http.Client
	endpoint   string
	apiKey     string
}

// NewClient returns a Client posting to endpoint with the given timeout.
func NewClient(logger *zap.Logger, endpoint, apiKey string, timeout time.Duration) *Client {
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		logger:     logger.Named("llm"),
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

type apiRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type apiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete runs one chat completion and returns the content plus usage.
func (c *Client) Complete(ctx context.Context, req Request) (string, Usage, error) {
	if c.apiKey == "" {
		return "", Usage{}, fmt.Errorf("llm api key not configured")
	}

	body := apiRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", Usage{}, fmt.Errorf("completion request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", Usage{}, fmt.Errorf("failed to read completion response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", Usage{}, fmt.Errorf("completion returned status %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed apiResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("failed to decode completion response: %w", err)
	}
	if parsed.Error != nil {
		return "", Usage{}, fmt.Errorf("completion error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", parsed.Usage, fmt.Errorf("completion returned no choices")
	}

	c.logger.Debug("completion ok",
		zap.String("model", req.Model),
		zap.Int64("promptTokens", parsed.Usage.PromptTokens),
		zap.Int64("completionTokens", parsed.Usage.CompletionTokens))

	return parsed.Choices[0].Message.Content, parsed.Usage, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
