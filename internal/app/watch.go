package app

import (
	"context"
	"log/slog"
	"sync"

	"github.com/five82/tankobon/internal/polling"
	"github.com/five82/tankobon/internal/state"
)

// Watch logs every poller transition and a store summary until ctx is done
// or all controllers are closed.
func Watch(ctx context.Context, controllers []*polling.Controller, store *state.Store, logger *slog.Logger) {
	var wg sync.WaitGroup
	for _, c := range controllers {
		wg.Add(1)
		go func(c *polling.Controller) {
			defer wg.Done()
			watchOne(ctx, c, store, logger.With("poller", c.Name()))
		}(c)
	}
	wg.Wait()
}

func watchOne(ctx context.Context, c *polling.Controller, store *state.Store, logger *slog.Logger) {
	states, cancel := c.Subscribe()
	defer cancel()

	var prev *polling.State
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-states:
			if !ok {
				return
			}
			if prev != nil && !transitioned(*prev, s) {
				continue
			}
			logTransition(logger, s, store.Snapshot())
			prev = &s
		}
	}
}

// transitioned reports whether anything worth logging changed.
func transitioned(prev, next polling.State) bool {
	return prev.Mode() != next.Mode() ||
		prev.CurrentInterval != next.CurrentInterval ||
		prev.ConsecutiveErrors != next.ConsecutiveErrors
}

func logTransition(logger *slog.Logger, s polling.State, snap state.Snapshot) {
	attrs := []any{
		"mode", s.Mode(),
		"interval", s.CurrentInterval,
		"consecutive_errors", s.ConsecutiveErrors,
		"active_downloads", snap.ActiveDownloads(),
		"failed_downloads", snap.FailedDownloads(),
		"unread_notifications", snap.UnreadNotifications(),
	}
	if s.Mode() == polling.ModePaused {
		logger.Warn("poller paused, send SIGHUP or restart to resume", attrs...)
		return
	}
	logger.Info("poller state", attrs...)
}
