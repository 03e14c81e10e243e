// Package health implements the HTTP readiness probe used by the deployment
// coordinator's health gates.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Status is the normalised readiness verdict of one service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// Probe performs readiness checks against service endpoints.
type Probe struct {
	client *http.Client
	logger *slog.Logger
}

// NewProbe builds a probe with the given per-request timeout.
func NewProbe(probeTimeout time.Duration) *Probe {
	return &Probe{
		client: &http.Client{Timeout: probeTimeout},
		logger: slog.With("component", "health_probe"),
	}
}

// Check performs one readiness probe. Transport failures and non-200
// responses are unhealthy; a 200 body is mapped through its optional JSON
// status field.
func (p *Probe) Check(ctx context.Context, url string) Status {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return StatusUnhealthy
	}
	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("Probe request failed", "url", url, "error", err)
		return StatusUnhealthy
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return StatusUnhealthy
	}
	return mapBody(body)
}

// mapBody normalises the optional JSON status document. An empty 200 body is
// healthy; an unparseable one is unknown.
func mapBody(body []byte) Status {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return StatusHealthy
	}

	var doc struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil {
		return StatusUnknown
	}

	switch strings.ToLower(doc.Status) {
	case "ok", "healthy", "up":
		return StatusHealthy
	case "warning", "degraded":
		return StatusDegraded
	case "down", "error", "unhealthy":
		return StatusUnhealthy
	default:
		return StatusUnknown
	}
}

// WaitHealthy polls until the endpoint reports healthy or the retry budget
// (retries × interval) is spent.
func (p *Probe) WaitHealthy(ctx context.Context, url string, retries int, interval time.Duration) error {
	var last Status
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
		last = p.Check(ctx, url)
		if last == StatusHealthy {
			return nil
		}
		p.logger.Debug("Service not ready",
			"url", url, "status", last, "attempt", attempt+1, "retries", retries)
	}
	return fmt.Errorf("service at %s not healthy after %d probes (last status %s)", url, retries, last)
}
