// Package worker is the HTTP proxy to role workers.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/agent-orchestrator/internal/application/registry"
	"github.com/garyjia/agent-orchestrator/internal/domain/entity"
)

const (
	// TaskPath is appended to a role's endpoint for task delivery
	TaskPath = "/task"
	// HealthPath is appended to a role's endpoint for liveness probes
	HealthPath = "/health"

	maxResponseBytes = 4 << 20
)

// Client implements port.WorkerClient over HTTP. Each call is a single
// attempt; failures are never retried here.
type Client struct {
	registry   *registry.Registry
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a worker proxy. timeout bounds each request on top of
// any deadline on the caller's context.
func NewClient(reg *registry.Registry, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		registry:   reg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Execute posts task to the worker for roleID and decodes its result
func (c *Client) Execute(ctx context.Context, roleID string, task *entity.Task) (*entity.TaskResult, error) {
	url, err := c.url(roleID, TaskPath)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = classify(err)
		c.logger.Warn("Worker call failed",
			zap.String("role_id", roleID),
			zap.String("task_id", task.TaskID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, classify(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Worker returned error status",
			zap.String("role_id", roleID),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: worker %s returned %d: %s",
			entity.ErrTransport, roleID, resp.StatusCode, truncate(string(body), 200))
	}

	var result entity.TaskResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: invalid worker response: %v", entity.ErrTransport, err)
	}
	if result.TaskID == "" {
		result.TaskID = task.TaskID
	}

	c.logger.Debug("Worker call finished",
		zap.String("role_id", roleID),
		zap.String("task_id", task.TaskID),
		zap.String("status", result.Status),
		zap.Duration("elapsed", time.Since(start)))
	return &result, nil
}

// Probe checks the worker's health endpoint
func (c *Client) Probe(ctx context.Context, roleID string) error {
	url, err := c.url(roleID, HealthPath)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", entity.ErrTransport, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: health check returned %d", entity.ErrTransport, resp.StatusCode)
	}
	return nil
}

func (c *Client) url(roleID, path string) (string, error) {
	e, err := c.registry.Lookup(roleID)
	if err != nil {
		return "", err
	}
	if e.Endpoint == "" {
		return "", fmt.Errorf("%w: no endpoint configured for role %s", entity.ErrTransport, e.RoleID)
	}
	return strings.TrimRight(e.Endpoint, "/") + path, nil
}

// classify maps client errors onto the timeout/transport taxonomy
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", entity.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", entity.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", entity.ErrTransport, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
