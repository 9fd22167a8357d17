// Package brain defines the model backend interface and client for Sage's
// response generation.
package brain

import (
	"context"
	"errors"
	"fmt"
)

// Role identifies the author of a chat message sent to the backend.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one entry of the ordered message list sent to the backend.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// CompleteRequest carries everything the backend needs for one completion.
type CompleteRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// CompleteResponse is the backend's reply.
type CompleteResponse struct {
	Content string
	Usage   TokenUsage
}

// TokenUsage tracks token consumption.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Brain is the model backend contract. Complete is the single call the
// orchestrator wraps in its retry policy.
type Brain interface {
	// Complete sends the ordered message list to the backend and returns
	// the generated reply.
	Complete(ctx context.Context, req *CompleteRequest) (*CompleteResponse, error)

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error
}

// BackendError reports a non-success response from the model backend.
type BackendError struct {
	Status  int
	Message string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("model backend error %d: %s", e.Status, e.Message)
}

// IsBackendError reports whether err is (or wraps) a BackendError.
func IsBackendError(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}
