// Package prefs handles tankobon user preferences persistence.
// Preferences are stored in ~/.config/tankobon/prefs.toml.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for tankobon.
type Prefs struct {
	Theme string `toml:"theme"`
	// View is the view shown at startup.
	View string `toml:"view"`
	// PollingOff remembers pollers the user switched off with the toggle key.
	PollingOff []string `toml:"polling_off,omitempty"`
}

// PollingDisabled reports whether the named poller was switched off.
func (p Prefs) PollingDisabled(name string) bool {
	for _, n := range p.PollingOff {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// SetPollingDisabled records whether the named poller is switched off.
func (p *Prefs) SetPollingDisabled(name string, off bool) {
	kept := p.PollingOff[:0:0]
	for _, n := range p.PollingOff {
		if !strings.EqualFold(n, name) {
			kept = append(kept, n)
		}
	}
	if off {
		kept = append(kept, name)
	}
	p.PollingOff = kept
}

const (
	defaultPrefsPath = "~/.config/tankobon/prefs.toml"
	defaultTheme     = "Nightfox"
	defaultView      = "downloads"
)

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from the given path, falling back to defaults if missing.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return defaults(), nil
	}

	prefs := defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return prefs, nil
		}
		return prefs, nil // Graceful degradation
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return prefs, nil // Graceful degradation
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		return defaults(), nil // Graceful degradation
	}

	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = defaultTheme
	}
	if strings.TrimSpace(prefs.View) == "" {
		prefs.View = defaultView
	}

	return prefs, nil
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

func defaults() Prefs {
	return Prefs{Theme: defaultTheme, View: defaultView}
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
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
