package polling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNoFetch is returned by New when Options.Fetch is nil.
var ErrNoFetch = errors.New("polling: fetch function is required")

const (
	// DefaultMinPollGap is the minimum spacing between two fetch cycles.
	DefaultMinPollGap = time.Second

	// DefaultMaxConsecutiveErrors is the failure count that opens the circuit.
	DefaultMaxConsecutiveErrors = 3
)

// FetchFunc performs one poll. It must honour ctx: when the controller
// supersedes or stops a cycle it cancels ctx, and an error wrapping
// context.Canceled is treated as a cancellation rather than a failure.
type FetchFunc func(ctx context.Context) error

// Options configure a Controller.
type Options struct {
	// Name labels log records and metrics.
	Name string

	// Enabled is the master switch. Nil means enabled.
	Enabled *bool

	// HasActiveWork reports whether work is in flight right now. It is called
	// on every interval computation, so it must be fast and side-effect free,
	// and it must not call back into the Controller.
	HasActiveWork func() bool

	// Fetch is invoked once per cycle.
	Fetch FetchFunc

	// Strategy is merged over DefaultStrategy; zero fields keep the default.
	Strategy Strategy

	// MaxConsecutiveErrors opens the circuit once reached. Zero means 3.
	MaxConsecutiveErrors int

	// StopOnClose cancels the timer and any in-flight fetch on Close.
	// Nil means true.
	StopOnClose *bool

	// MinPollGap overrides DefaultMinPollGap. Negative disables the guard.
	MinPollGap time.Duration

	// Permissive skips strategy validation.
	Permissive bool

	Clock  Clock
	Logger *slog.Logger
}

// Controller decides when to invoke a fetch function, adapting its cadence
// to active work, idleness, and consecutive failures. At most one fetch is
// logically in flight; a newer cycle cancels the older one.
//
// All methods are safe for concurrent use.
type Controller struct {
	name          string
	hasActiveWork func() bool
	fetch         FetchFunc
	maxErrors     int
	stopOnClose   bool
	minGap        time.Duration
	permissive    bool
	clock         Clock
	logger        *slog.Logger

	mu          sync.Mutex
	state       State
	timer       Timer
	timerGen    uint64
	armed       time.Duration
	cancelFetch context.CancelFunc
	fetchGen    uint64
	lastRun     time.Time
	closed      bool

	// subMu is taken while mu is held so publications keep mutation order.
	subMu sync.Mutex
	subs  map[chan State]struct{}
}

// New builds a Controller. It does not start polling; call Start.
func New(opts Options) (*Controller, error) {
	if opts.Fetch == nil {
		return nil, ErrNoFetch
	}

	strategy := DefaultStrategy().Merge(opts.Strategy)
	if !opts.Permissive {
		if err := strategy.Validate(); err != nil {
			return nil, err
		}
	}

	maxErrors := opts.MaxConsecutiveErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxConsecutiveErrors
	}

	minGap := opts.MinPollGap
	switch {
	case minGap == 0:
		minGap = DefaultMinPollGap
	case minGap < 0:
		minGap = 0
	}

	hasActiveWork := opts.HasActiveWork
	if hasActiveWork == nil {
		hasActiveWork = func() bool { return false }
	}

	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = "poller"
	}

	c := &Controller{
		name:          name,
		hasActiveWork: hasActiveWork,
		fetch:         opts.Fetch,
		maxErrors:     maxErrors,
		stopOnClose:   opts.StopOnClose == nil || *opts.StopOnClose,
		minGap:        minGap,
		permissive:    opts.Permissive,
		clock:         clock,
		logger:        logger.With("poller", name),
		subs:          make(map[chan State]struct{}),
	}
	c.state = State{
		Enabled:              opts.Enabled == nil || *opts.Enabled,
		CurrentInterval:      strategy.InitialInterval,
		Strategy:             strategy,
		MaxConsecutiveErrors: maxErrors,
	}
	return c, nil
}

// Name returns the controller's label.
func (c *Controller) Name() string {
	return c.name
}

// Start arms the polling timer at a freshly computed interval. Calling it
// while already polling replaces the timer, so there is never more than one.
// When the circuit is open the controller stays paused.
func (c *Controller) Start() {
	c.mu.Lock()
	c.startLocked()
	c.publishLocked()
}

// Stop cancels the timer and any in-flight fetch.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.publishLocked()
}

// PollNow runs one fetch cycle immediately and then resumes the normal
// cadence via Start. It blocks until the cycle completes; UI callers should
// invoke it from a goroutine. If the cycle is cancelled by Stop or Close the
// cadence is not resumed.
func (c *Controller) PollNow() {
	if c.runCycle() {
		return
	}
	c.Start()
}

// Reset clears the error count and restores the initial interval, then
// starts polling. It is the way out of the paused state.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.resetLocked()
	c.startLocked()
	c.publishLocked()
	c.logger.Info("polling reset")
}

// ResetStrategy replaces the strategy and resets the controller.
func (c *Controller) ResetStrategy(override Strategy) error {
	strategy := DefaultStrategy().Merge(override)
	if !c.permissive {
		if err := strategy.Validate(); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.state.Strategy = strategy
	c.resetLocked()
	c.startLocked()
	c.publishLocked()
	c.logger.Info("polling strategy replaced",
		"initial", strategy.InitialInterval,
		"active", strategy.ActiveInterval,
		"max", strategy.MaxInterval,
	)
	return nil
}

// SetEnabled flips the master switch. Disabling stops polling; enabling
// starts it.
func (c *Controller) SetEnabled(enabled bool) {
	c.mu.Lock()
	c.state.Enabled = enabled
	if enabled {
		c.startLocked()
	} else {
		c.stopLocked()
	}
	c.publishLocked()
}

// Close tears the controller down. Afterwards no state changes occur, even
// if a stale fetch completes, and subscriber channels are closed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.stopOnClose {
		c.stopLocked()
	}
	c.closed = true
	c.subMu.Lock()
	c.mu.Unlock()

	for ch := range c.subs {
		delete(c.subs, ch)
		close(ch)
	}
	c.subMu.Unlock()
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsPolling reports whether a timer is armed.
func (c *Controller) IsPolling() bool {
	return c.Snapshot().IsPolling
}

// CurrentInterval returns the interval governing the timer.
func (c *Controller) CurrentInterval() time.Duration {
	return c.Snapshot().CurrentInterval
}

// ConsecutiveErrors returns the number of back-to-back failed fetches.
func (c *Controller) ConsecutiveErrors() int {
	return c.Snapshot().ConsecutiveErrors
}

// IsPaused reports whether polling is enabled but not running.
func (c *Controller) IsPaused() bool {
	return c.Snapshot().IsPaused()
}

// HasRecentActivity reports whether activity was seen within the idle threshold.
func (c *Controller) HasRecentActivity() bool {
	return c.Snapshot().HasRecentActivity(c.clock.Now())
}

// Subscribe returns a channel that receives a State after every transition,
// plus a function that cancels the subscription. The channel holds only the
// latest state; a slow reader skips intermediate ones.
func (c *Controller) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	c.mu.Lock()
	snap := c.state
	closed := c.closed
	c.subMu.Lock()
	c.mu.Unlock()
	defer c.subMu.Unlock()

	if closed {
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	ch <- snap

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

// startLocked must be called with mu held.
func (c *Controller) startLocked() {
	c.clearTimerLocked()
	if c.closed || !c.state.Enabled {
		c.state.IsPolling = false
		return
	}

	now := c.clock.Now()
	interval := ComputeInterval(c.state.Strategy, c.safeActive(), c.state.LastActivity, c.state.ConsecutiveErrors, now)
	c.state.CurrentInterval = interval

	if c.state.ConsecutiveErrors >= c.maxErrors {
		if c.state.IsPolling {
			c.logger.Warn("polling paused after consecutive failures",
				"consecutive_errors", c.state.ConsecutiveErrors,
				"max_consecutive_errors", c.maxErrors,
			)
		}
		c.state.IsPolling = false
		return
	}

	c.armLocked(interval)
	c.state.IsPolling = true
}

func (c *Controller) stopLocked() {
	c.clearTimerLocked()
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
	c.state.IsPolling = false
}

func (c *Controller) resetLocked() {
	c.state.ConsecutiveErrors = 0
	c.state.CurrentInterval = c.state.Strategy.InitialInterval
	c.state.LastActivity = time.Time{}
	if c.safeActive() {
		c.state.LastActivity = c.clock.Now()
	}
}

func (c *Controller) clearTimerLocked() {
	c.timerGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) armLocked(interval time.Duration) {
	if interval <= 0 {
		// Only reachable with a permissive strategy.
		interval = max(c.minGap, time.Millisecond)
	}
	gen := c.timerGen
	c.armed = interval
	c.timer = c.clock.AfterFunc(interval, func() { c.onTick(gen) })
}

// onTick re-arms the timer at the cadence fixed when it was armed, then
// runs a cycle.
func (c *Controller) onTick(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.timerGen || !c.state.IsPolling {
		c.mu.Unlock()
		return
	}
	c.timer = c.clock.AfterFunc(c.armed, func() { c.onTick(gen) })
	c.mu.Unlock()

	c.runCycle()
}

// runCycle executes one fetch. It reports whether the cycle was cancelled
// by Stop or Close (or the controller was unusable) as opposed to finishing
// or being debounced.
func (c *Controller) runCycle() (cancelled bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return true
	}
	if !c.state.Enabled {
		c.mu.Unlock()
		return true
	}

	now := c.clock.Now()
	if c.minGap > 0 && !c.lastRun.IsZero() && now.Sub(c.lastRun) < c.minGap {
		c.mu.Unlock()
		c.logger.Debug("poll skipped, too soon after previous", "since_last", now.Sub(c.lastRun))
		return false
	}
	c.lastRun = now

	if c.cancelFetch != nil {
		c.cancelFetch()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFetch = cancel
	c.fetchGen++
	gen := c.fetchGen
	c.mu.Unlock()

	err := c.safeFetch(ctx)
	return c.complete(ctx, cancel, gen, err)
}

func (c *Controller) complete(ctx context.Context, cancel context.CancelFunc, gen uint64, err error) (cancelled bool) {
	c.mu.Lock()
	if gen == c.fetchGen && c.cancelFetch != nil {
		c.cancelFetch = nil
	}
	superseded := gen != c.fetchGen
	tokenFlipped := ctx.Err() != nil
	cancel()

	if c.closed || tokenFlipped || errors.Is(err, context.Canceled) {
		// Superseded cycles leave the newer one in charge; anything else
		// flipping the token was Stop, SetEnabled(false) or Close.
		stopped := c.closed || (tokenFlipped && !superseded)
		c.mu.Unlock()
		return stopped
	}

	prevErrors := c.state.ConsecutiveErrors
	now := c.clock.Now()
	if err != nil {
		c.state.ConsecutiveErrors++
		c.logger.Warn("poll failed",
			"consecutive_errors", c.state.ConsecutiveErrors,
			"error", err,
		)
	} else {
		c.state.ConsecutiveErrors = 0
		if c.safeActive() {
			c.state.LastActivity = now
		}
	}

	if c.state.IsPolling {
		next := ComputeInterval(c.state.Strategy, c.safeActive(), c.state.LastActivity, c.state.ConsecutiveErrors, now)
		if prevErrors != c.state.ConsecutiveErrors || next != c.state.CurrentInterval {
			c.startLocked()
		}
	}
	c.publishLocked()
	return false
}

// safeFetch calls the fetch function with panic recovery. A panic counts as
// a failed poll and is logged with a correlation id.
func (c *Controller) safeFetch(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			c.logger.Error("fetch panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			err = fmt.Errorf("fetch panic (correlation_id: %s)", correlationID)
		}
	}()
	return c.fetch(ctx)
}

// safeActive calls the active-work predicate with panic recovery. A panic
// is logged with a correlation id and reported as no active work.
func (c *Controller) safeActive() (active bool) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			c.logger.Error("active work predicate panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			active = false
		}
	}()
	return c.hasActiveWork()
}

// publishLocked hands the current state to subscribers and releases mu.
func (c *Controller) publishLocked() {
	snap := c.state
	c.subMu.Lock()
	c.mu.Unlock()
	defer c.subMu.Unlock()

	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Drop the stale value so the reader sees the latest state.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
