package polling

import "time"

// State is a read-only copy of a Controller's observable state.
type State struct {
	// IsPolling reports whether a recurring timer is armed.
	IsPolling bool
	// CurrentInterval is the interval last chosen.
	CurrentInterval time.Duration
	// ConsecutiveErrors counts back-to-back failed fetches.
	ConsecutiveErrors int
	// LastActivity is when active work was last observed after a
	// successful fetch. Zero means never.
	LastActivity time.Time
	// Strategy is the active configuration.
	Strategy Strategy
	// Enabled mirrors the controller's master switch.
	Enabled bool
	// MaxConsecutiveErrors is the circuit breaker threshold.
	MaxConsecutiveErrors int
}

// IsPaused reports whether polling is enabled but no timer is armed,
// typically because the circuit breaker opened.
func (s State) IsPaused() bool {
	return !s.IsPolling && s.Enabled
}

// CircuitOpen reports whether the error ceiling has been reached.
func (s State) CircuitOpen() bool {
	return s.MaxConsecutiveErrors > 0 && s.ConsecutiveErrors >= s.MaxConsecutiveErrors
}

// HasRecentActivity reports whether activity was seen within the idle
// threshold as of now.
func (s State) HasRecentActivity(now time.Time) bool {
	if s.LastActivity.IsZero() {
		return false
	}
	return now.Sub(s.LastActivity) < s.Strategy.IdleThreshold
}

// Mode summarises a State for display.
type Mode string

const (
	ModeOff     Mode = "off"
	ModePaused  Mode = "paused"
	ModeStopped Mode = "stopped"
	ModeBackoff Mode = "backoff"
	ModeActive  Mode = "active"
	ModeIdle    Mode = "idle"
	ModeLive    Mode = "live"
)

// Mode classifies the state. An open circuit reads as paused; otherwise a
// stopped controller reads as stopped, errors as backoff, and the interval
// tells active, idle and live apart.
func (s State) Mode() Mode {
	switch {
	case !s.Enabled:
		return ModeOff
	case s.CircuitOpen():
		return ModePaused
	case !s.IsPolling:
		return ModeStopped
	case s.ConsecutiveErrors > 0:
		return ModeBackoff
	case s.CurrentInterval <= s.Strategy.ActiveInterval:
		return ModeActive
	case s.CurrentInterval > s.Strategy.InitialInterval:
		return ModeIdle
	default:
		return ModeLive
	}
}
