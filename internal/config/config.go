package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/tankobon/internal/polling"
)

// Config is the resolved tankobon configuration.
type Config struct {
	ServerURL   string
	Token       string
	DataDir     string
	LogLevel    string
	MetricsAddr string

	Downloads     Poller
	Notifications Poller
}

// Poller configures one polling controller.
type Poller struct {
	Enabled              bool
	MaxConsecutiveErrors int
	Strategy             polling.Strategy
	Permissive           bool // skip strategy validation
}

const (
	defaultConfigPath = "~/.config/tankobon/config.toml"
	defaultDataDir    = "~/.local/share/tankobon"
	defaultServerURL  = "127.0.0.1:4567"
	defaultLogLevel   = "info"
	logFileName       = "tankobon.log"
)

// DefaultPath returns the default config file path.
func DefaultPath() string {
	return defaultConfigPath
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		ServerURL: defaultServerURL,
		DataDir:   mustExpand(defaultDataDir),
		LogLevel:  defaultLogLevel,
		Downloads: Poller{
			Enabled:              true,
			MaxConsecutiveErrors: polling.DefaultMaxConsecutiveErrors,
			Strategy:             polling.DefaultStrategy(),
		},
		Notifications: Poller{
			Enabled:              true,
			MaxConsecutiveErrors: polling.DefaultMaxConsecutiveErrors,
			Strategy:             NotificationStrategy(),
		},
	}
}

// NotificationStrategy is the default cadence for the notification poller.
// Notifications change less often than the download queue.
func NotificationStrategy() polling.Strategy {
	return polling.Strategy{
		InitialInterval:   5 * time.Minute,
		MaxInterval:       30 * time.Minute,
		BackoffMultiplier: 1.5,
		ActiveInterval:    2 * time.Minute,
		IdleThreshold:     15 * time.Minute,
	}
}

type rawStrategy struct {
	Enabled              *bool   `toml:"enabled"`
	Permissive           bool    `toml:"permissive"`
	MaxConsecutiveErrors int     `toml:"max_consecutive_errors"`
	InitialInterval      string  `toml:"initial_interval"`
	MaxInterval          string  `toml:"max_interval"`
	BackoffMultiplier    float64 `toml:"backoff_multiplier"`
	ActiveInterval       string  `toml:"active_interval"`
	IdleThreshold        string  `toml:"idle_threshold"`
}

type rawConfig struct {
	DataDir string `toml:"data_dir"`
	Server  struct {
		URL   string `toml:"url"`
		Token string `toml:"token"`
	} `toml:"server"`
	Polling struct {
		Downloads     rawStrategy `toml:"downloads"`
		Notifications rawStrategy `toml:"notifications"`
	} `toml:"polling"`
	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`
	Metrics struct {
		Addr string `toml:"addr"`
	} `toml:"metrics"`
}

// Load locates and parses the tankobon config, falling back to defaults when missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if v := strings.TrimSpace(raw.Server.URL); v != "" {
		cfg.ServerURL = v
	}
	cfg.Token = strings.TrimSpace(raw.Server.Token)
	if v := strings.TrimSpace(raw.DataDir); v != "" {
		cfg.DataDir = mustExpand(v)
	}
	if v := strings.TrimSpace(raw.Log.Level); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	cfg.MetricsAddr = strings.TrimSpace(raw.Metrics.Addr)

	if cfg.Downloads, err = applyPoller(cfg.Downloads, raw.Polling.Downloads); err != nil {
		return Config{}, fmt.Errorf("polling.downloads: %w", err)
	}
	if cfg.Notifications, err = applyPoller(cfg.Notifications, raw.Polling.Notifications); err != nil {
		return Config{}, fmt.Errorf("polling.notifications: %w", err)
	}

	return cfg, nil
}

// LogPath returns the path of the tankobon log file.
func (c Config) LogPath() string {
	if strings.TrimSpace(c.DataDir) == "" {
		return filepath.Join(mustExpand(defaultDataDir), logFileName)
	}
	return filepath.Join(c.DataDir, logFileName)
}

// PrefsPath returns the preferences file stored next to the config file.
func PrefsPath(configPath string) string {
	resolved, err := resolvePath(configPath)
	if err != nil {
		return ""
	}
	return filepath.Join(filepath.Dir(resolved), "prefs.toml")
}

func applyPoller(base Poller, raw rawStrategy) (Poller, error) {
	if raw.Enabled != nil {
		base.Enabled = *raw.Enabled
	}
	if raw.MaxConsecutiveErrors < 0 {
		return Poller{}, fmt.Errorf("max_consecutive_errors must not be negative")
	}
	if raw.MaxConsecutiveErrors > 0 {
		base.MaxConsecutiveErrors = raw.MaxConsecutiveErrors
	}

	override := polling.Strategy{BackoffMultiplier: raw.BackoffMultiplier}
	fields := []struct {
		name  string
		value string
		dest  *time.Duration
	}{
		{"initial_interval", raw.InitialInterval, &override.InitialInterval},
		{"max_interval", raw.MaxInterval, &override.MaxInterval},
		{"active_interval", raw.ActiveInterval, &override.ActiveInterval},
		{"idle_threshold", raw.IdleThreshold, &override.IdleThreshold},
	}
	for _, f := range fields {
		d, err := parseDuration(f.value)
		if err != nil {
			return Poller{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dest = d
	}

	base.Strategy = base.Strategy.Merge(override)
	base.Permissive = raw.Permissive
	if base.Permissive {
		return base, nil
	}
	if err := base.Strategy.Validate(); err != nil {
		return Poller{}, err
	}
	return base, nil
}

func parseDuration(value string) (time.Duration, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %s", trimmed)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
