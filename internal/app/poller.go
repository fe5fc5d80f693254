package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/five82/tankobon/internal/config"
	"github.com/five82/tankobon/internal/library"
	"github.com/five82/tankobon/internal/metrics"
	"github.com/five82/tankobon/internal/polling"
	"github.com/five82/tankobon/internal/state"
)

const (
	downloadsPoller     = "downloads"
	notificationsPoller = "notifications"
)

// Pollers holds the two adaptive controllers that keep the store fresh.
type Pollers struct {
	Downloads     *polling.Controller
	Notifications *polling.Controller
}

// NewPollers builds the download and notification controllers. Each fetch
// writes into store, and each controller treats the store's view of pending
// work as its active-work signal.
func NewPollers(cfg config.Config, store *state.Store, client library.Fetcher, disabled func(string) bool, clock polling.Clock, logger *slog.Logger) (*Pollers, error) {
	if disabled == nil {
		disabled = func(string) bool { return false }
	}

	downloads, err := newController(downloadsPoller, cfg.Downloads, disabled(downloadsPoller),
		store.HasActiveDownloads, refreshDownloads(store, client), clock, logger)
	if err != nil {
		return nil, err
	}
	idle := cfg.Notifications.Strategy.IdleThreshold
	unread := func() bool { return store.HasFreshUnreadNotifications(idle) }
	notifications, err := newController(notificationsPoller, cfg.Notifications, disabled(notificationsPoller),
		unread, refreshNotifications(store, client), clock, logger)
	if err != nil {
		downloads.Close()
		return nil, err
	}
	return &Pollers{Downloads: downloads, Notifications: notifications}, nil
}

func newController(name string, pc config.Poller, off bool, active func() bool, fetch polling.FetchFunc, clock polling.Clock, logger *slog.Logger) (*polling.Controller, error) {
	enabled := pc.Enabled && !off
	c, err := polling.New(polling.Options{
		Name:                 name,
		Enabled:              &enabled,
		HasActiveWork:        active,
		Fetch:                fetch,
		Strategy:             pc.Strategy,
		MaxConsecutiveErrors: pc.MaxConsecutiveErrors,
		Permissive:           pc.Permissive,
		Clock:                clock,
		Logger:               logger,
	})
	if err != nil {
		return nil, fmt.Errorf("%s poller: %w", name, err)
	}
	return c, nil
}

// All returns the controllers in display order.
func (p *Pollers) All() []*polling.Controller {
	return []*polling.Controller{p.Downloads, p.Notifications}
}

// Prime runs an immediate cycle on every enabled controller and starts its
// cadence. It blocks until the first cycles finish.
func (p *Pollers) Prime(ctx context.Context) {
	done := make(chan struct{}, 2)
	for _, c := range p.All() {
		go func(c *polling.Controller) {
			c.PollNow()
			done <- struct{}{}
		}(c)
	}
	for range p.All() {
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

// Close tears down every controller.
func (p *Pollers) Close() {
	for _, c := range p.All() {
		c.Close()
	}
}

func refreshDownloads(store *state.Store, client library.Fetcher) polling.FetchFunc {
	return func(ctx context.Context) error {
		started := time.Now()
		items, err := client.FetchDownloads(ctx)
		metrics.RecordFetch(downloadsPoller, started, err)
		if cancelled(ctx, err) {
			return context.Canceled
		}
		store.UpdateDownloads(items, err)
		return err
	}
}

func refreshNotifications(store *state.Store, client library.Fetcher) polling.FetchFunc {
	return func(ctx context.Context) error {
		started := time.Now()
		items, err := client.FetchNotifications(ctx, false)
		metrics.RecordFetch(notificationsPoller, started, err)
		if cancelled(ctx, err) {
			return context.Canceled
		}
		store.UpdateNotifications(items, err)
		return err
	}
}

// cancelled reports whether the cycle was superseded or stopped. Its result
// must not overwrite newer data in the store.
func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
