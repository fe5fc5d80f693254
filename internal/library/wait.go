package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// newProbeBackoff creates an exponential backoff: 250ms → 5s, multiplier 2x, ±20% jitter.
func newProbeBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.2
	b.Reset()
	return b
}

// WaitReady blocks until the server health endpoint answers, ctx ends, or
// maxWait elapses. Authentication failures are returned immediately.
func (c *Client) WaitReady(ctx context.Context, maxWait time.Duration, logger *slog.Logger) (HealthResponse, error) {
	if c == nil {
		return HealthResponse{}, fmt.Errorf("client is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	op := func() (HealthResponse, error) {
		health, err := c.Ping(ctx)
		if err == nil {
			return health, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return HealthResponse{}, backoff.Permanent(err)
		}
		return HealthResponse{}, err
	}
	notify := func(err error, next time.Duration) {
		logger.Debug("server not ready", "server", c.BaseURL(), "error", err, "retry_in", next)
	}
	health, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(newProbeBackoff()),
		backoff.WithMaxElapsedTime(maxWait),
		backoff.WithNotify(notify),
	)
	if err != nil {
		return HealthResponse{}, fmt.Errorf("wait for server %s: %w", c.BaseURL(), err)
	}
	return health, nil
}
