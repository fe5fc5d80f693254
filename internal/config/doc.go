// Package config loads the tankobon configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/tankobon/config.toml (default)
//  3. If the config file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing or empty, use defaults
//
// Command-line flags are applied on top of the loaded Config by the caller.
//
// # Default Values
//
//   - Config file: ~/.config/tankobon/config.toml
//   - Server: 127.0.0.1:4567
//   - Data directory: ~/.local/share/tankobon (holds tankobon.log)
//   - Log level: info
//   - Downloads poller: polling.DefaultStrategy()
//   - Notifications poller: NotificationStrategy()
//
// # TOML Format
//
//	data_dir = "~/.local/share/tankobon"
//
//	[server]
//	url = "http://127.0.0.1:4567"
//	token = "..."
//
//	[polling.downloads]
//	enabled = true
//	initial_interval = "2m"
//	max_interval = "10m"
//	backoff_multiplier = 1.5
//	active_interval = "1m"
//	idle_threshold = "5m"
//	max_consecutive_errors = 3
//
//	[polling.notifications]
//	initial_interval = "5m"
//
//	[log]
//	level = "info"
//
//	[metrics]
//	addr = "127.0.0.1:9102"
//
// Polling sections are partial overrides: only the keys present replace the
// defaults. Durations use time.ParseDuration syntax and must be positive.
// The merged strategy is validated so a misconfigured cadence fails at
// startup rather than producing a hot loop.
//
// # Error Handling
//
// Load returns errors for:
//   - Path expansion failures (e.g., cannot determine home directory)
//   - File read errors (except os.ErrNotExist, which triggers defaults)
//   - TOML parsing errors
//   - Invalid polling sections, prefixed with the section name
package config
