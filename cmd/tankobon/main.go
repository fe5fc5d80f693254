// Command tankobon is a terminal client for a self-hosted manga library.
//
// Usage:
//
//	tankobon                      # interactive TUI
//	tankobon watch                # headless, logs poller transitions to stderr
//	tankobon validate             # print the resolved configuration
//	tankobon version
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/tankobon/internal/app"
)

type rootFlags struct {
	configPath  string
	prefsPath   string
	serverURL   string
	token       string
	logLevel    string
	metricsAddr string
	wait        time.Duration
}

func (f *rootFlags) options(headless bool) app.Options {
	return app.Options{
		ConfigPath:  f.configPath,
		PrefsPath:   f.prefsPath,
		ServerURL:   f.serverURL,
		Token:       f.token,
		LogLevel:    f.logLevel,
		MetricsAddr: f.metricsAddr,
		Headless:    headless,
		WaitReady:   f.wait,
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "tankobon: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "tankobon",
		Short: "Terminal client for a self-hosted manga library",
		Long: `tankobon watches a manga library server's download queue and
notifications. Two adaptive pollers refresh quickly while chapters are
downloading or notifications are unread, back off when the library is
quiet, and pause after repeated failures until reset.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), flags.options(false))
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "config file (default ~/.config/tankobon/config.toml)")
	pf.StringVar(&flags.prefsPath, "prefs", "", "preferences file (default prefs.toml next to the config)")
	pf.StringVar(&flags.serverURL, "server", "", "library server URL, overrides the config")
	pf.StringVar(&flags.token, "token", "", "API token, overrides the config")
	pf.StringVar(&flags.logLevel, "log-level", "", "debug, info, warn, or error")
	pf.StringVar(&flags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.DurationVar(&flags.wait, "wait", 0, "how long to wait for the server at startup (0 uses 10s, negative skips)")

	root.AddCommand(
		newWatchCmd(flags),
		newValidateCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newWatchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the pollers headless and log every transition",
		Long: `Run both pollers without the TUI. Logs go to stderr; each change of
poller mode, interval, or error count is logged with a store summary.
Send SIGHUP to resume pollers paused by repeated failures.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(cmd.Context(), flags.options(true))
		},
	}
}
