package endpoint

import (
	"time"

	"github.com/vinayprograms/lifeline/errors"
	"github.com/vinayprograms/lifeline/heartbeat"
	"github.com/vinayprograms/lifeline/scheduler"
	"github.com/vinayprograms/lifeline/transport"
)

// Initiator is the fixed-interval role. It builds its transport from a
// factory, emits a heartbeat every PingInterval once open, and expects a
// reply within PingTimeout of each emission. A missed reply only reports
// the peer dead; the transport is left open.
type Initiator struct {
	*base

	pingInterval time.Duration // applies from the next cycle
	pingTimeout  time.Duration
	tick         *scheduler.Timer
}

// NewInitiator creates an Initiator. No transport exists until
// InitializeConnection is called.
func NewInitiator(factory transport.Factory, sched scheduler.Scheduler, cfg InitiatorConfig, opts ...Option) (*Initiator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if factory == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "initiator requires a transport factory")
	}

	i := &Initiator{
		pingInterval: cfg.PingInterval,
		pingTimeout:  cfg.PingTimeout,
		tick:         scheduler.NewTimer(sched),
	}
	policy := heartbeat.Policy{
		AfterSend: func(*heartbeat.Core) { i.armTimeout(i.pingTimeout) },
		OnReceive: func(c *heartbeat.Core) { c.CancelTimeout() },
	}
	i.base = newBase(RoleInitiator, sched, factory, cfg.Reconnect, policy, buildOptions(opts))
	i.onOpened = i.opened
	i.onClosed = i.tick.Stop
	return i, nil
}

// InitializeConnection creates a fresh transport, discarding the current
// one without triggering reconnection. A factory failure is returned and
// also counts as a failed attempt, so backoff keeps retrying.
func (i *Initiator) InitializeConnection() error {
	return i.connect(false)
}

// PingInterval returns the interval the next emission cycle will use.
func (i *Initiator) PingInterval() time.Duration {
	return i.pingInterval
}

// Reconfigure changes the emission interval. A cycle already in flight
// completes at the old interval and the new one applies from the next
// cycle; use RestartPingInterval to apply it at once. Zero stops emission
// after the in-flight cycle.
func (i *Initiator) Reconfigure(interval time.Duration) error {
	if err := validateInterval(interval, i.pingTimeout); err != nil {
		return err
	}
	i.pingInterval = interval
	if !i.tick.Pending() {
		i.startEmission()
	}
	return nil
}

// RestartPingInterval drops the in-flight cycle and starts a new one at the
// current interval.
func (i *Initiator) RestartPingInterval() {
	i.tick.Stop()
	i.startEmission()
}

// StopPingImmediately cancels the in-flight emission cycle. A reply
// deadline already armed stays armed.
func (i *Initiator) StopPingImmediately() {
	i.tick.Stop()
}

// Emitting reports whether an emission cycle is scheduled.
func (i *Initiator) Emitting() bool {
	return i.tick.Pending()
}

// opened starts each connection with a clean liveness state. A Responder
// keeps its state across reconnects so the next signal reports recovery.
func (i *Initiator) opened() {
	i.core.Reset()
	i.startEmission()
}

func (i *Initiator) startEmission() {
	if i.closed || !i.open || i.pingInterval <= 0 {
		return
	}
	i.tick.Arm(i.pingInterval, i.emit)
}

func (i *Initiator) emit() {
	i.core.SendSignal()
	i.startEmission()
}
