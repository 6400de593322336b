package endpoint

import (
	"github.com/vinayprograms/lifeline/errors"
	"github.com/vinayprograms/lifeline/heartbeat"
	"github.com/vinayprograms/lifeline/scheduler"
	"github.com/vinayprograms/lifeline/transport"
)

// Responder is the adaptive role. It echoes every heartbeat and, once two
// signals have been observed, expects the next one within the smoothed
// interval scaled by PingWindowThreshold.
type Responder struct {
	*base

	threshold float64
}

// NewResponder creates a Responder around conn. With a factory, a lost
// transport is rebuilt using the reconnection backoff, and conn may be nil
// to have the first transport built at once. Without a factory the
// Responder ends with its transport.
func NewResponder(conn transport.Conn, factory transport.Factory, sched scheduler.Scheduler, cfg ResponderConfig, opts ...Option) (*Responder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if conn == nil && factory == nil {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "responder requires a transport or a factory")
	}

	r := &Responder{threshold: cfg.PingWindowThreshold}
	policy := heartbeat.Policy{OnReceive: r.onSignal}
	r.base = newBase(RoleResponder, sched, factory, cfg.Reconnect, policy, buildOptions(opts))

	if conn != nil {
		r.attach(conn)
		return r, nil
	}
	// A factory failure is already scheduled for retry.
	_ = r.connect(false)
	return r, nil
}

func (r *Responder) onSignal(c *heartbeat.Core) {
	if c.ObserveSignal(c.Now()) {
		r.armTimeout(c.Window(r.threshold))
		r.metrics.SmoothedInterval(r.role, c.SmoothedInterval())
	}
	c.SendSignal()
}
