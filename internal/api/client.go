// Package api is the HTTP client for the lending platform backend. It
// covers the pool endpoints the console drives: the pending-pool
// snapshot, the moderation actions, and the deployment event stream.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"poolConsole/internal/model"
	"poolConsole/internal/pipeline"
)

// StatusError reports a non-2xx response from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Code, e.Body)
}

// Client talks to the platform backend. Snapshot and action requests
// run under the configured timeout; the event stream uses a separate
// client with no timeout because the connection is expected to stay
// open indefinitely.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	streamClient *http.Client
	logger       *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:      baseURL,
		httpClient:   &http.Client{Timeout: timeout},
		streamClient: &http.Client{},
		logger:       logger,
	}
}

// PendingPools fetches the full snapshot of pools awaiting or moving
// through deployment.
func (c *Client) PendingPools(ctx context.Context) ([]model.Pool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools/pending", nil)
	if err != nil {
		return nil, fmt.Errorf("build pending pools request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pending pools: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var pools []model.Pool
	if err := json.NewDecoder(resp.Body).Decode(&pools); err != nil {
		return nil, fmt.Errorf("decode pending pools: %w", err)
	}
	return pools, nil
}

// Approve moves a pending pool into deployment.
func (c *Client) Approve(ctx context.Context, poolID int64) error {
	url := fmt.Sprintf("%s/pools/%d/approve", c.baseURL, poolID)
	return c.send(ctx, http.MethodPatch, url, nil)
}

// Reject permanently declines a pending pool. The reason is forwarded
// to the pool creator.
func (c *Client) Reject(ctx context.Context, poolID int64, reason string) error {
	url := fmt.Sprintf("%s/pools/%d/reject", c.baseURL, poolID)
	return c.send(ctx, http.MethodPatch, url, map[string]string{"reason": reason})
}

// RetryStep asks the backend to re-run one failed deployment step.
func (c *Client) RetryStep(ctx context.Context, poolID int64, step pipeline.Step) error {
	url := fmt.Sprintf("%s/pools/%d/retry-step", c.baseURL, poolID)
	return c.send(ctx, http.MethodPost, url, map[string]string{"step": string(step)})
}

// OpenEvents opens the deployment event stream. The caller owns the
// returned body and must close it to release the connection.
func (c *Client) OpenEvents(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/pools/events", nil)
	if err != nil {
		return nil, fmt.Errorf("build event stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
	c.logger.Debug("event stream open", zap.String("url", req.URL.String()))
	return resp.Body, nil
}

func (c *Client) send(ctx context.Context, method, url string, payload any) error {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, url, err)
	}
	defer resp.Body.Close()

	return checkStatus(resp)
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Code: resp.StatusCode, Body: string(body)}
}
