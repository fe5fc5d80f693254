package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/five82/tankobon/internal/config"
	"github.com/five82/tankobon/internal/library"
)

func newValidateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and print the resolved values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			if flags.serverURL != "" {
				cfg.ServerURL = flags.serverURL
			}
			if _, err := library.NewClient(cfg.ServerURL); err != nil {
				return fmt.Errorf("server url: %w", err)
			}
			printConfig(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printConfig(w io.Writer, cfg config.Config) {
	fmt.Fprintf(w, "server:    %s\n", cfg.ServerURL)
	fmt.Fprintf(w, "token:     %s\n", redact(cfg.Token))
	fmt.Fprintf(w, "data dir:  %s\n", cfg.DataDir)
	fmt.Fprintf(w, "log level: %s\n", cfg.LogLevel)
	if cfg.MetricsAddr != "" {
		fmt.Fprintf(w, "metrics:   %s\n", cfg.MetricsAddr)
	}
	printPoller(w, "downloads", cfg.Downloads)
	printPoller(w, "notifications", cfg.Notifications)
}

func printPoller(w io.Writer, name string, p config.Poller) {
	s := p.Strategy
	fmt.Fprintf(w, "\n[%s] enabled=%t max_consecutive_errors=%d\n", name, p.Enabled, p.MaxConsecutiveErrors)
	fmt.Fprintf(w, "  initial=%s active=%s max=%s idle_threshold=%s multiplier=%g\n",
		s.InitialInterval, s.ActiveInterval, s.MaxInterval, s.IdleThreshold, s.BackoffMultiplier)
	if p.Permissive {
		fmt.Fprintln(w, "  permissive: strategy not validated")
	}
}

func redact(token string) string {
	if token == "" {
		return "(none)"
	}
	return "(set)"
}
