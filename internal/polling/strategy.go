package polling

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidStrategy is returned when a Strategy fails validation.
var ErrInvalidStrategy = errors.New("invalid polling strategy")

// Strategy describes how a Controller spaces its polls.
type Strategy struct {
	// InitialInterval is the baseline period used while activity is recent.
	InitialInterval time.Duration
	// MaxInterval caps backoff growth.
	MaxInterval time.Duration
	// BackoffMultiplier is the geometric growth factor (> 1).
	BackoffMultiplier float64
	// ActiveInterval is the fastest period, used only while active work exists.
	ActiveInterval time.Duration
	// IdleThreshold is how long without activity before backoff applies.
	IdleThreshold time.Duration
}

const (
	defaultInitialInterval   = 2 * time.Minute
	defaultMaxInterval       = 10 * time.Minute
	defaultBackoffMultiplier = 1.5
	defaultActiveInterval    = time.Minute
	defaultIdleThreshold     = 5 * time.Minute

	// maxIdleMultiplier bounds how far idleness alone can push the interval.
	maxIdleMultiplier = 3
)

// DefaultStrategy returns the stock polling cadence.
func DefaultStrategy() Strategy {
	return Strategy{
		InitialInterval:   defaultInitialInterval,
		MaxInterval:       defaultMaxInterval,
		BackoffMultiplier: defaultBackoffMultiplier,
		ActiveInterval:    defaultActiveInterval,
		IdleThreshold:     defaultIdleThreshold,
	}
}

// Merge overlays the non-zero fields of override onto s.
func (s Strategy) Merge(override Strategy) Strategy {
	if override.InitialInterval != 0 {
		s.InitialInterval = override.InitialInterval
	}
	if override.MaxInterval != 0 {
		s.MaxInterval = override.MaxInterval
	}
	if override.BackoffMultiplier != 0 {
		s.BackoffMultiplier = override.BackoffMultiplier
	}
	if override.ActiveInterval != 0 {
		s.ActiveInterval = override.ActiveInterval
	}
	if override.IdleThreshold != 0 {
		s.IdleThreshold = override.IdleThreshold
	}
	return s
}

// Validate reports whether the strategy is internally consistent:
// every duration positive, multiplier above one, and
// ActiveInterval <= InitialInterval <= MaxInterval.
func (s Strategy) Validate() error {
	switch {
	case s.ActiveInterval <= 0:
		return fmt.Errorf("%w: active interval must be positive, got %v", ErrInvalidStrategy, s.ActiveInterval)
	case s.InitialInterval <= 0:
		return fmt.Errorf("%w: initial interval must be positive, got %v", ErrInvalidStrategy, s.InitialInterval)
	case s.MaxInterval <= 0:
		return fmt.Errorf("%w: max interval must be positive, got %v", ErrInvalidStrategy, s.MaxInterval)
	case s.IdleThreshold <= 0:
		return fmt.Errorf("%w: idle threshold must be positive, got %v", ErrInvalidStrategy, s.IdleThreshold)
	case math.IsNaN(s.BackoffMultiplier) || s.BackoffMultiplier <= 1:
		return fmt.Errorf("%w: backoff multiplier must be greater than 1, got %v", ErrInvalidStrategy, s.BackoffMultiplier)
	case s.ActiveInterval > s.InitialInterval:
		return fmt.Errorf("%w: active interval %v exceeds initial interval %v", ErrInvalidStrategy, s.ActiveInterval, s.InitialInterval)
	case s.InitialInterval > s.MaxInterval:
		return fmt.Errorf("%w: initial interval %v exceeds max interval %v", ErrInvalidStrategy, s.InitialInterval, s.MaxInterval)
	}
	return nil
}

// ComputeInterval picks the next poll period.
//
// Active work always wins and yields ActiveInterval. Activity seen within
// IdleThreshold yields InitialInterval. Otherwise the larger of two pressures
// (consecutive errors, idle steps capped at three) sets the exponent:
//
//	min(MaxInterval, InitialInterval * BackoffMultiplier^(multiplier-1))
//
// A zero lastActivity means no activity has been observed.
func ComputeInterval(s Strategy, activeNow bool, lastActivity time.Time, consecutiveErrors int, now time.Time) time.Duration {
	if activeNow {
		return s.ActiveInterval
	}

	seen := !lastActivity.IsZero()
	var idle time.Duration
	if seen {
		idle = now.Sub(lastActivity)
		if idle < s.IdleThreshold {
			return s.InitialInterval
		}
	}

	errorMultiplier := max(1, consecutiveErrors)
	idleMultiplier := 1
	if seen {
		idleMultiplier = maxIdleMultiplier
		if s.IdleThreshold > 0 {
			idleMultiplier = min(maxIdleMultiplier, int(idle/s.IdleThreshold)+1)
		}
	}
	multiplier := max(errorMultiplier, idleMultiplier)

	next := float64(s.InitialInterval) * math.Pow(s.BackoffMultiplier, float64(multiplier-1))
	if next >= float64(s.MaxInterval) {
		return s.MaxInterval
	}
	return time.Duration(next)
}
