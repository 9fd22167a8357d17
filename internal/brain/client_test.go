package brain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/sage/internal/config"
)

func TestClientComplete(t *testing.T) {
	var gotPath, gotAuth string
	var gotWire struct {
		Model       string        `json:"model"`
		Messages    []ChatMessage `json:"messages"`
		Temperature float64       `json:"temperature"`
		MaxTokens   int           `json:"max_tokens"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotWire))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello back"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	c := NewClient(config.ModelConfig{
		BaseURL:     srv.URL,
		APIKey:      "secret",
		Model:       "llama3.1:8b",
		Temperature: 0.7,
		MaxTokens:   512,
	})

	resp, err := c.Complete(context.Background(), &CompleteRequest{
		Messages: []ChatMessage{
			{Role: RoleSystem, Content: "be brief"},
			{Role: RoleUser, Content: "hello"},
		},
		Temperature: 0.7,
		MaxTokens:   512,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello back", resp.Content)
	assert.Equal(t, 16, resp.Usage.TotalTokens)

	assert.Equal(t, "/v1/chat/completions", gotPath)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "llama3.1:8b", gotWire.Model, "missing request model falls back to the configured one")
	assert.Len(t, gotWire.Messages, 2)
	assert.Equal(t, 512, gotWire.MaxTokens)
}

func TestClientCompleteStructuredError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit"}}`))
	}))
	defer srv.Close()

	c := NewClient(config.ModelConfig{BaseURL: srv.URL})

	_, err := c.Complete(context.Background(), &CompleteRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	require.Error(t, err)

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, http.StatusTooManyRequests, berr.Status)
	assert.Equal(t, "rate limited", berr.Message)
	assert.True(t, IsBackendError(err))
}

func TestClientCompleteOpaqueError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream blew up"))
	}))
	defer srv.Close()

	c := NewClient(config.ModelConfig{BaseURL: srv.URL})

	_, err := c.Complete(context.Background(), &CompleteRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, http.StatusBadGateway, berr.Status)
	assert.Equal(t, "upstream blew up", berr.Message)
}

func TestClientCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	c := NewClient(config.ModelConfig{BaseURL: srv.URL})

	_, err := c.Complete(context.Background(), &CompleteRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Contains(t, berr.Message, "no choices")
}

func TestClientPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := NewClient(config.ModelConfig{BaseURL: srv.URL})
	assert.NoError(t, c.Ping(context.Background()))
}

func TestClientPingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(config.ModelConfig{BaseURL: srv.URL})
	err := c.Ping(context.Background())

	var berr *BackendError
	require.ErrorAs(t, err, &berr)
	assert.Equal(t, http.StatusServiceUnavailable, berr.Status)
}

func TestClientNoAuthHeaderWithoutKey(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data": []}`))
	}))
	defer srv.Close()

	c := NewClient(config.ModelConfig{BaseURL: srv.URL})
	require.NoError(t, c.Ping(context.Background()))
	assert.Empty(t, gotAuth, "local backends get no Authorization header")
}
