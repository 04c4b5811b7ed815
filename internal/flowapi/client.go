// Package flowapi is a small REST client for the My Flow backend's flow
// endpoints. The chat engine uses it to delete dismissed flows and to
// refresh cached lists.
package flowapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/myflowhq/flowsync/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client talks to the flow endpoints. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a client for the backend at baseURL. A non-positive
// timeout falls back to 10s.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// listResponse mirrors the backend's paginated list envelope.
type listResponse struct {
	Items   []domain.Flow `json:"items"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
	HasMore bool          `json:"has_more"`
}

// ListFlows fetches the first page of flows for a context.
func (c *Client) ListFlows(ctx context.Context, contextID string) ([]domain.Flow, error) {
	u := fmt.Sprintf("%s/api/v1/contexts/%s/flows", c.baseURL, url.PathEscape(contextID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build flow list request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list flows for context %s: %w", contextID, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("[flowapi] failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list flows for context %s: unexpected status %d", contextID, resp.StatusCode)
	}

	var out listResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode flow list: %w", err)
	}
	return out.Items, nil
}

// DeleteFlow removes a flow by id. A 404 counts as success: the flow is
// already gone, which is all a dismissal needs.
func (c *Client) DeleteFlow(ctx context.Context, flowID string) error {
	u := fmt.Sprintf("%s/api/v1/flows/%s", c.baseURL, url.PathEscape(flowID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return fmt.Errorf("build flow delete request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete flow %s: %w", flowID, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Debug("[flowapi] failed to close response body", "error", closeErr)
		}
	}()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		c.logger.Debug("[flowapi] flow already deleted", "flow_id", flowID)
		return nil
	default:
		return fmt.Errorf("delete flow %s: unexpected status %d", flowID, resp.StatusCode)
	}
}
