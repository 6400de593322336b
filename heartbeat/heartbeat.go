package heartbeat

import (
	"time"

	"github.com/vinayprograms/lifeline/events"
	"github.com/vinayprograms/lifeline/scheduler"
	"github.com/vinayprograms/lifeline/transport"
)

// Policy holds the role-specific hooks.
type Policy struct {
	// AfterSend runs after a heartbeat frame was handed to the transport.
	AfterSend func(c *Core)

	// OnReceive runs when a heartbeat arrives, before the shared
	// notification and recovery path.
	OnReceive func(c *Core)
}

// State is a snapshot of the liveness state.
type State struct {
	TimedOut         bool
	TimeoutPending   bool
	LastSignal       time.Time
	SmoothedInterval time.Duration
	WarmupCount      int
}

// Core is not safe for concurrent use; it lives on its endpoint's
// execution context.
type Core struct {
	mux    *events.Multiplexer
	sched  scheduler.Scheduler
	policy Policy
	timer  *scheduler.Timer

	timedOut   bool
	lastSignal time.Time
	smoothed   time.Duration
	warmup     int
}

// New creates a Core in the Alive state and installs it as the
// multiplexer's heartbeat receiver.
func New(mux *events.Multiplexer, sched scheduler.Scheduler, policy Policy) *Core {
	c := &Core{
		mux:    mux,
		sched:  sched,
		policy: policy,
		timer:  scheduler.NewTimer(sched),
	}
	mux.OnHeartbeat(c.SignalReceived)
	return c
}

// SendSignal transmits a heartbeat frame. Without an open transport it does
// nothing and returns false.
func (c *Core) SendSignal() bool {
	conn := c.mux.Conn()
	if conn == nil || conn.State() != transport.StateOpen {
		return false
	}
	if err := conn.Send(events.HeartbeatFrame()); err != nil {
		return false
	}
	if c.policy.AfterSend != nil {
		c.policy.AfterSend(c)
	}
	c.mux.Dispatch(events.KindSignalSent)
	return true
}

// SignalReceived handles an inbound heartbeat frame. This is the only place
// the timed-out flag is cleared with a recovery notification.
func (c *Core) SignalReceived() {
	recovering := c.timedOut
	if recovering {
		// The gap that caused the timeout says nothing about cadence.
		c.warmup = 0
	}
	if c.policy.OnReceive != nil {
		c.policy.OnReceive(c)
	}
	c.mux.Dispatch(events.KindSignalReceived)
	if recovering {
		c.timedOut = false
		c.mux.Dispatch(events.KindSignalRecovered)
	}
}

// ArmTimeout replaces any pending timeout with one firing after d.
func (c *Core) ArmTimeout(d time.Duration) {
	c.timer.Arm(d, c.onTimeoutFired)
}

// CancelTimeout drops the pending timeout, if any.
func (c *Core) CancelTimeout() {
	c.timer.Stop()
}

func (c *Core) onTimeoutFired() {
	if c.timedOut {
		return
	}
	c.timedOut = true
	c.mux.Dispatch(events.KindSignalTimeout)
}

// TimedOut reports whether the peer is currently considered dead.
func (c *Core) TimedOut() bool {
	return c.timedOut
}

// Reset returns to Alive without a recovery notification. Used when a
// fresh transport opens.
func (c *Core) Reset() {
	c.timedOut = false
}

// State returns a snapshot of the liveness state.
func (c *Core) State() State {
	return State{
		TimedOut:         c.timedOut,
		TimeoutPending:   c.timer.Pending(),
		LastSignal:       c.lastSignal,
		SmoothedInterval: c.smoothed,
		WarmupCount:      c.warmup,
	}
}

// Now returns the scheduler's clock.
func (c *Core) Now() time.Time {
	return c.sched.Now()
}
