// Package reconnect schedules rebuilding a dropped transport with
// exponential backoff.
//
// Every unexpected close schedules one attempt after the current delay and
// then doubles the delay, capped at MaxDelay. A successful open resets it to
// MinDelay. A negative MaxDelay disables reconnection.
package reconnect

import (
	"fmt"
	"time"

	"github.com/vinayprograms/lifeline/scheduler"
)

// Config bounds the backoff.
type Config struct {
	// MinDelay is the first delay and the value restored after an open.
	// Default: 250ms
	MinDelay time.Duration `toml:"min_delay"`

	// MaxDelay caps the delay. Negative disables reconnection entirely.
	// Default: 10s
	MaxDelay time.Duration `toml:"max_delay"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MinDelay: 250 * time.Millisecond,
		MaxDelay: 10 * time.Second,
	}
}

// Disabled reports whether reconnection is turned off.
func (c Config) Disabled() bool {
	return c.MaxDelay < 0
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Disabled() {
		return nil
	}
	if c.MinDelay <= 0 {
		return fmt.Errorf("min reconnect delay must be positive, got %v", c.MinDelay)
	}
	if c.MinDelay > c.MaxDelay {
		return fmt.Errorf("min reconnect delay %v exceeds max %v", c.MinDelay, c.MaxDelay)
	}
	return nil
}

// NextDelay returns the delay following d: doubled, capped at MaxDelay.
func NextDelay(cfg Config, d time.Duration) time.Duration {
	next := d * 2
	if next > cfg.MaxDelay || next < d {
		next = cfg.MaxDelay
	}
	if next < cfg.MinDelay {
		next = cfg.MinDelay
	}
	return next
}

// Controller is not safe for concurrent use; it lives on its endpoint's
// execution context.
type Controller struct {
	cfg      Config
	current  time.Duration
	failures int
	timer    *scheduler.Timer
	attempt  func()
}

// New creates a controller that calls attempt when a scheduled delay
// elapses.
func New(sched scheduler.Scheduler, cfg Config, attempt func()) *Controller {
	return &Controller{
		cfg:     cfg,
		current: cfg.MinDelay,
		timer:   scheduler.NewTimer(sched),
		attempt: attempt,
	}
}

// OnOpen resets the backoff after a successful connection and drops any
// pending attempt.
func (c *Controller) OnOpen() {
	c.timer.Stop()
	c.current = c.cfg.MinDelay
	c.failures = 0
}

// OnClose schedules an attempt after the current delay, then doubles the
// delay. It returns the scheduled delay, or false if reconnection is
// disabled.
func (c *Controller) OnClose() (time.Duration, bool) {
	if c.cfg.Disabled() {
		return 0, false
	}
	delay := c.current
	c.timer.Arm(delay, c.attempt)
	c.current = NextDelay(c.cfg, c.current)
	c.failures++
	return delay, true
}

// Stop cancels a pending attempt and resets the delay to the minimum.
func (c *Controller) Stop() {
	c.timer.Stop()
	c.current = c.cfg.MinDelay
	c.failures = 0
}

// CurrentDelay returns the delay the next close will use.
func (c *Controller) CurrentDelay() time.Duration {
	return c.current
}

// Failures returns the number of closes since the last open or Stop.
func (c *Controller) Failures() int {
	return c.failures
}

// Pending reports whether an attempt is scheduled.
func (c *Controller) Pending() bool {
	return c.timer.Pending()
}
