package brain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/normanking/sage/internal/config"
)

// Client implements Brain against an OpenAI-compatible chat completions API.
type Client struct {
	cfg    config.ModelConfig
	client *http.Client
}

// NewClient creates a model backend client from configuration.
func NewClient(cfg config.ModelConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}

	return &Client{
		cfg: cfg,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// chatCompletionRequest is the wire format for the chat completions API.
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatCompletionResponse is the wire format of a successful completion.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage TokenUsage `json:"usage"`
}

// errorResponse is the wire format of a backend failure.
type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Ping checks if the backend is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/models", nil)
	if err != nil {
		return err
	}
	c.setAuthHeader(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("model backend unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &BackendError{Status: resp.StatusCode, Message: "ping failed"}
	}

	return nil
}

// Complete sends the message list to the backend and returns the reply.
func (c *Client) Complete(ctx context.Context, req *CompleteRequest) (*CompleteResponse, error) {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	body, err := json.Marshal(chatCompletionRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuthHeader(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("model backend request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, backendErrorFromResponse(resp)
	}

	var completion chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(completion.Choices) == 0 {
		return nil, &BackendError{Status: resp.StatusCode, Message: "response contained no choices"}
	}

	return &CompleteResponse{
		Content: completion.Choices[0].Message.Content,
		Usage:   completion.Usage,
	}, nil
}

// backendErrorFromResponse turns a non-200 response into a BackendError,
// preferring the structured error message when the body carries one.
func backendErrorFromResponse(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var errResp errorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && errResp.Error.Message != "" {
		return &BackendError{Status: resp.StatusCode, Message: errResp.Error.Message}
	}

	return &BackendError{Status: resp.StatusCode, Message: string(raw)}
}

// setAuthHeader adds the API key header if one is configured.
func (c *Client) setAuthHeader(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}
