package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/five82/tankobon/internal/config"
	"github.com/five82/tankobon/internal/library"
	"github.com/five82/tankobon/internal/logging"
	"github.com/five82/tankobon/internal/metrics"
	"github.com/five82/tankobon/internal/polling"
	"github.com/five82/tankobon/internal/prefs"
	"github.com/five82/tankobon/internal/state"
	"github.com/five82/tankobon/internal/ui"
)

const (
	defaultWaitReady = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Options configure the tankobon application. Non-empty fields override the
// config file.
type Options struct {
	ConfigPath  string
	PrefsPath   string // empty uses prefs.toml next to the config file
	ServerURL   string
	Token       string
	LogLevel    string
	MetricsAddr string

	// Headless runs the watch loop instead of the TUI and logs to stderr.
	Headless bool
	// WaitReady bounds the startup reachability probe. Zero uses 10s;
	// negative skips the probe.
	WaitReady time.Duration
}

// Run boots tankobon until the context is cancelled or the UI exits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyOverrides(&cfg, opts)

	logger, closeLog, err := setupLogging(cfg, opts.Headless)
	if err != nil {
		return err
	}
	defer closeLog()

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = config.PrefsPath(opts.ConfigPath)
	}
	userPrefs, _ := prefs.Load(prefsPath)

	client, err := library.NewClient(cfg.ServerURL, library.WithToken(cfg.Token))
	if err != nil {
		return fmt.Errorf("init library client: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if wait := opts.WaitReady; wait >= 0 {
		if wait == 0 {
			wait = defaultWaitReady
		}
		health, err := client.WaitReady(ctx, wait, logger)
		switch {
		case err == nil:
			logger.Info("server reachable", "server", client.BaseURL(), "version", health.Version)
		case opts.Headless:
			return err
		default:
			// The TUI still starts; the pollers back off and the header shows the outage.
			logger.Warn("server not reachable", "server", client.BaseURL(), "error", err)
		}
	}

	store := &state.Store{}
	pollers, err := NewPollers(cfg, store, client, userPrefs.PollingDisabled, nil, logger)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range pollers.All() {
		g.Go(func() error {
			metrics.Bind(gctx, c)
			return nil
		})
	}
	if cfg.MetricsAddr != "" {
		serveMetrics(gctx, g, cfg.MetricsAddr, logger)
	}
	g.Go(func() error {
		<-gctx.Done()
		pollers.Close()
		return nil
	})

	if opts.Headless {
		g.Go(func() error {
			resumeOnHangup(gctx, pollers, logger)
			return nil
		})
		g.Go(func() error {
			pollers.Prime(gctx)
			Watch(gctx, pollers.All(), store, logger)
			return nil
		})
	} else {
		g.Go(func() error {
			pollers.Prime(gctx)
			return nil
		})
		g.Go(func() error {
			defer cancel()
			return ui.Run(gctx, ui.Options{
				Store:     store,
				Client:    client,
				Pollers:   uiPollers(pollers),
				Prefs:     userPrefs,
				PrefsPath: prefsPath,
				LogPath:   cfg.LogPath(),
				ServerURL: client.BaseURL(),
			})
		})
	}

	err = g.Wait()
	logger.Info("tankobon stopped")
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func applyOverrides(cfg *config.Config, opts Options) {
	if v := strings.TrimSpace(opts.ServerURL); v != "" {
		cfg.ServerURL = v
	}
	if v := strings.TrimSpace(opts.Token); v != "" {
		cfg.Token = v
	}
	if v := strings.TrimSpace(opts.LogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := strings.TrimSpace(opts.MetricsAddr); v != "" {
		cfg.MetricsAddr = v
	}
}

// setupLogging logs to stderr in headless mode and to the data directory
// otherwise, so records do not corrupt the alt screen.
func setupLogging(cfg config.Config, headless bool) (*slog.Logger, func(), error) {
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	logging.SetLevel(level)

	var sink io.Writer = os.Stderr
	closeFn := func() {}
	if !headless {
		f, err := logging.OpenFile(cfg.LogPath())
		if err != nil {
			return nil, nil, err
		}
		sink = f
		closeFn = func() { _ = f.Close() }
	}
	return logging.Setup(sink), closeFn, nil
}

func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           logging.HTTPMiddleware(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g.Go(func() error {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// resumeOnHangup resets paused controllers when the process receives SIGHUP.
func resumeOnHangup(ctx context.Context, pollers *Pollers, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			resumePaused(pollers.All(), logger)
		}
	}
}

func resumePaused(controllers []*polling.Controller, logger *slog.Logger) int {
	n := 0
	for _, c := range controllers {
		if c.Snapshot().Mode() == polling.ModePaused {
			logger.Info("resuming paused poller", "poller", c.Name())
			c.Reset()
			n++
		}
	}
	return n
}

func uiPollers(p *Pollers) []ui.Poller {
	all := p.All()
	out := make([]ui.Poller, 0, len(all))
	for _, c := range all {
		out = append(out, c)
	}
	return out
}
