package para

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/normanking/sage/internal/config"
	"github.com/normanking/sage/internal/logging"
)

// Client implements Provider against a PARA service over HTTP.
type Client struct {
	cfg    config.ParaConfig
	client *http.Client
	logger *logging.Logger
}

// NewClient creates a PARA provider client.
func NewClient(cfg config.ParaConfig, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{
		cfg:    cfg,
		logger: logger.Component("para"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// gatherRequest is the wire format of a context query.
type gatherRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

// Gather fetches domain context for the query. Failures propagate to the
// caller; context is folded into the prompt before generation, so a gather
// failure is a generation failure, never silently swallowed.
func (c *Client) Gather(ctx context.Context, query, userID string) (*Context, error) {
	body, err := json.Marshal(gatherRequest{Query: query, UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gather request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/context", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("para provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("para provider error %d: %s", resp.StatusCode, string(raw))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read para response: %w", err)
	}

	gathered := decodeContext(raw)
	if gathered.Empty() {
		return nil, nil
	}

	if c.cfg.EnrichResource && gathered.Kind == KindResources {
		c.enrichResources(ctx, gathered)
	}

	return gathered, nil
}

// decodeContext parses the provider payload into a tagged Context. Payloads
// with an unknown or missing kind are preserved verbatim as KindOpaque
// rather than dropped.
func decodeContext(raw []byte) *Context {
	var gathered Context
	if err := json.Unmarshal(raw, &gathered); err != nil {
		return &Context{Kind: KindOpaque, Raw: json.RawMessage(raw)}
	}

	switch gathered.Kind {
	case KindProjects, KindTasks, KindResources, KindNotes:
		return &gathered
	default:
		return &Context{Kind: KindOpaque, Raw: json.RawMessage(raw)}
	}
}

// enrichResources fills in missing titles/summaries for linked resources by
// fetching their pages. Best effort: a failed fetch leaves the resource as
// the provider sent it.
func (c *Client) enrichResources(ctx context.Context, gathered *Context) {
	for i := range gathered.Resources {
		r := &gathered.Resources[i]
		if r.URL == "" || (r.Title != "" && r.Summary != "") {
			continue
		}

		page, err := FetchPageInfo(ctx, c.client, r.URL)
		if err != nil {
			c.logger.Debug("resource enrichment failed", "url", r.URL, "error", err)
			continue
		}

		if r.Title == "" {
			r.Title = page.Title
		}
		if r.Summary == "" {
			r.Summary = page.Description
		}
	}
}
