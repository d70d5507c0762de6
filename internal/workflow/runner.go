// Package workflow executes the analysis flow articles are sent
// through. The runner is a thin client for a hosted flow engine: POST
// the payload at the flow's run endpoint and hand back whatever JSON
// the flow produced.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"pressdesk/internal/config"
)

type Runner struct {
	httpClient *http.Client
	baseURL    string
	token      string
	flowID     string
	logger     *slog.Logger
}

func NewRunner(cfg config.WorkflowConfig, logger *slog.Logger) *Runner {
	return &Runner{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		flowID:     cfg.FlowID,
		logger:     logger.With("component", "workflow"),
	}
}

// Run executes the configured flow with the given payload. Flows with
// published params expect {"inputs": {...}}; webhook-input flows take
// arbitrary JSON. The response body is returned as-is on success.
func (r *Runner) Run(ctx context.Context, payload any) (json.RawMessage, error) {
	if r.flowID == "" {
		return nil, fmt.Errorf("no workflow flow id configured")
	}
	if r.token == "" {
		return nil, fmt.Errorf("no workflow token configured")
	}

	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/run", r.baseURL, url.PathEscape(r.flowID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("workflow run failed (%d): %s", resp.StatusCode, respBody)
	}

	r.logger.Debug("workflow run completed", "flow", r.flowID, "bytes", len(respBody))
	if len(respBody) == 0 {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(respBody), nil
}
