package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/five82/tankobon/internal/polling"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServerURL != defaultServerURL {
		t.Fatalf("ServerURL = %q, want %q", cfg.ServerURL, defaultServerURL)
	}
	wantDataDir, err := expandPath(defaultDataDir)
	if err != nil {
		t.Fatalf("expandPath(defaultDataDir) returned error: %v", err)
	}
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
	if cfg.LogPath() != filepath.Join(wantDataDir, "tankobon.log") {
		t.Fatalf("LogPath = %q", cfg.LogPath())
	}
	if cfg.Downloads.Strategy != polling.DefaultStrategy() {
		t.Fatalf("Downloads.Strategy = %+v, want defaults", cfg.Downloads.Strategy)
	}
	if cfg.Notifications.Strategy != NotificationStrategy() {
		t.Fatalf("Notifications.Strategy = %+v, want notification defaults", cfg.Notifications.Strategy)
	}
	if !cfg.Downloads.Enabled || cfg.Downloads.MaxConsecutiveErrors != polling.DefaultMaxConsecutiveErrors {
		t.Fatalf("Downloads = %+v", cfg.Downloads)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	path := writeConfig(t, `
data_dir = "  ~/.tankobon  "

[server]
url = "  https://manga.local:8443  "
token = " abc123 "

[log]
level = "DEBUG"

[metrics]
addr = ":9102"

[polling.downloads]
active_interval = "30s"
backoff_multiplier = 2.0
max_consecutive_errors = 5

[polling.notifications]
enabled = false
initial_interval = "10m"
max_interval = "1h"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServerURL != "https://manga.local:8443" || cfg.Token != "abc123" {
		t.Fatalf("server = %q/%q", cfg.ServerURL, cfg.Token)
	}
	if !strings.HasPrefix(cfg.DataDir, home) {
		t.Fatalf("DataDir = %q, want it under HOME %q", cfg.DataDir, home)
	}
	if cfg.LogLevel != "debug" || cfg.MetricsAddr != ":9102" {
		t.Fatalf("log/metrics = %q/%q", cfg.LogLevel, cfg.MetricsAddr)
	}

	d := cfg.Downloads
	if d.Strategy.ActiveInterval != 30*time.Second || d.Strategy.BackoffMultiplier != 2 {
		t.Fatalf("Downloads.Strategy = %+v", d.Strategy)
	}
	if d.Strategy.InitialInterval != polling.DefaultStrategy().InitialInterval {
		t.Fatalf("unset fields should keep defaults, got %+v", d.Strategy)
	}
	if d.MaxConsecutiveErrors != 5 || !d.Enabled {
		t.Fatalf("Downloads = %+v", d)
	}

	n := cfg.Notifications
	if n.Enabled {
		t.Fatal("Notifications.Enabled = true, want false")
	}
	if n.Strategy.InitialInterval != 10*time.Minute || n.Strategy.MaxInterval != time.Hour {
		t.Fatalf("Notifications.Strategy = %+v", n.Strategy)
	}
	if n.Strategy.ActiveInterval != NotificationStrategy().ActiveInterval {
		t.Fatalf("unset fields should keep notification defaults, got %+v", n.Strategy)
	}
}

func TestLoad_RejectsBadPolling(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad duration", "[polling.downloads]\nactive_interval = \"soon\"\n", "polling.downloads: active_interval"},
		{"negative duration", "[polling.notifications]\nmax_interval = \"-1m\"\n", "polling.notifications: max_interval"},
		{"active above initial", "[polling.downloads]\nactive_interval = \"1h\"\n", "polling.downloads"},
		{"multiplier too small", "[polling.downloads]\nbackoff_multiplier = 0.5\n", "polling.downloads"},
		{"negative max errors", "[polling.downloads]\nmax_consecutive_errors = -1\n", "max_consecutive_errors"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatalf("Load returned nil error, want error mentioning %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Load error = %q, want it to mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestLoad_PermissiveSkipsStrategyValidation(t *testing.T) {
	cfg, err := Load(writeConfig(t, "[polling.downloads]\npermissive = true\nactive_interval = \"1h\"\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Downloads.Permissive {
		t.Fatal("Downloads.Permissive = false, want true")
	}
	if cfg.Downloads.Strategy.ActiveInterval != time.Hour {
		t.Fatalf("ActiveInterval = %s, want 1h", cfg.Downloads.Strategy.ActiveInterval)
	}
	if cfg.Notifications.Permissive {
		t.Fatal("Notifications.Permissive leaked from the downloads section")
	}
}

func TestLoad_EmptyValuesUseDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load(writeConfig(t, `
data_dir = ""

[server]
url = "   "
`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServerURL != defaultServerURL {
		t.Fatalf("ServerURL = %q, want %q", cfg.ServerURL, defaultServerURL)
	}
	wantDataDir, err := expandPath(defaultDataDir)
	if err != nil {
		t.Fatalf("expandPath(defaultDataDir) returned error: %v", err)
	}
	if cfg.DataDir != wantDataDir {
		t.Fatalf("DataDir = %q, want %q", cfg.DataDir, wantDataDir)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	_, err := Load(writeConfig(t, `[server`))
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}

func TestPrefsPath_SitsNextToConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if got, want := PrefsPath(""), filepath.Join(home, ".config", "tankobon", "prefs.toml"); got != want {
		t.Fatalf("PrefsPath(\"\") = %q, want %q", got, want)
	}
	dir := t.TempDir()
	if got, want := PrefsPath(filepath.Join(dir, "custom.toml")), filepath.Join(dir, "prefs.toml"); got != want {
		t.Fatalf("PrefsPath = %q, want %q", got, want)
	}
}
