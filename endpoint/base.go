package endpoint

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/lifeline/errors"
	"github.com/vinayprograms/lifeline/events"
	"github.com/vinayprograms/lifeline/heartbeat"
	"github.com/vinayprograms/lifeline/logging"
	"github.com/vinayprograms/lifeline/metrics"
	"github.com/vinayprograms/lifeline/reconnect"
	"github.com/vinayprograms/lifeline/scheduler"
	"github.com/vinayprograms/lifeline/status"
	"github.com/vinayprograms/lifeline/telemetry"
	"github.com/vinayprograms/lifeline/transport"
)

// Roles.
const (
	RoleInitiator = "initiator"
	RoleResponder = "responder"
)

// Ids of the endpoint's own listeners. They are registered before any
// application listener, so bookkeeping runs first on every event.
const (
	lifecycleOpen      events.ListenerID = "lifeline.lifecycle-open"
	lifecycleClose     events.ListenerID = "lifeline.lifecycle-close"
	lifecycleError     events.ListenerID = "lifeline.lifecycle-error"
	lifecycleTimeout   events.ListenerID = "lifeline.lifecycle-timeout"
	lifecycleRecovered events.ListenerID = "lifeline.lifecycle-recovered"
	lifecycleSent      events.ListenerID = "lifeline.lifecycle-sent"
	lifecycleReceived  events.ListenerID = "lifeline.lifecycle-received"
)

// Endpoint is the surface shared by both roles.
type Endpoint interface {
	ID() string
	Send(f transport.Frame) error
	AddListener(kind events.Kind, l events.Listener) events.ListenerID
	RegisterListener(kind events.Kind, id events.ListenerID, l events.Listener) bool
	RemoveListener(kind events.Kind, id events.ListenerID) bool
	StopReconnectionAttempt()
	State() State
	Close() error
}

var (
	_ Endpoint = (*Initiator)(nil)
	_ Endpoint = (*Responder)(nil)
)

// State is a diagnostic snapshot of an endpoint.
type State struct {
	ID               string
	Role             string
	Connection       transport.State
	Heartbeat        heartbeat.State
	ReconnectDelay   time.Duration
	ReconnectPending bool
	Closed           bool
}

// base holds what both roles share. Role hooks run after the shared
// bookkeeping of the matching lifecycle event.
type base struct {
	id    string
	role  string
	sched scheduler.Scheduler

	mux       *events.Multiplexer
	core      *heartbeat.Core
	reconnect *reconnect.Controller
	factory   transport.Factory

	closed bool
	open   bool
	window time.Duration // deadline most recently armed

	onOpened func()
	onClosed func()

	log     *logging.Logger
	metrics *metrics.Recorder
	tracer  *telemetry.Tracer
	status  *status.Publisher
	span    trace.Span // connection attempt in flight
}

func newBase(role string, sched scheduler.Scheduler, factory transport.Factory, rcfg reconnect.Config, policy heartbeat.Policy, o options) *base {
	b := &base{
		id:      o.id,
		role:    role,
		sched:   sched,
		mux:     events.New(),
		factory: factory,
		log:     o.logger.WithComponent(role).WithEndpoint(o.id),
		metrics: o.metrics,
		tracer:  o.tracer,
		status:  o.status,
	}
	b.core = heartbeat.New(b.mux, sched, policy)
	b.reconnect = reconnect.New(sched, rcfg, func() { b.connect(true) })

	b.mux.Register(events.KindOpen, lifecycleOpen, func(transport.Event) { b.handleOpen() })
	b.mux.Register(events.KindClose, lifecycleClose, b.handleClose)
	b.mux.Register(events.KindError, lifecycleError, b.handleError)
	b.mux.Register(events.KindSignalTimeout, lifecycleTimeout, func(transport.Event) { b.handleTimeout() })
	b.mux.Register(events.KindSignalRecovered, lifecycleRecovered, func(transport.Event) { b.handleRecovered() })
	b.mux.Register(events.KindSignalSent, lifecycleSent, func(transport.Event) {
		b.metrics.SignalSent(b.role)
		b.log.Signal(b.role, "out")
	})
	b.mux.Register(events.KindSignalReceived, lifecycleReceived, func(transport.Event) {
		b.metrics.SignalReceived(b.role)
		b.log.Signal(b.role, "in")
	})
	return b
}

// ID returns the endpoint id.
func (b *base) ID() string {
	return b.id
}

// Send writes an application frame to the live transport. It fails
// immediately when the endpoint is closed or has no open transport.
func (b *base) Send(f transport.Frame) error {
	if b.closed {
		return errors.Closed(b.id, errors.WithOp("send"))
	}
	conn := b.mux.Conn()
	if conn == nil {
		return errors.NotConnected(b.id, errors.WithOp("send"))
	}
	if err := conn.Send(f); err != nil {
		return errors.WrapWithCode(err, errors.ErrCodeNotConnected, "transport refused frame", errors.WithOp("send"), errors.WithEndpoint(b.id))
	}
	return nil
}

// AddListener registers l for kind and returns the id to remove it with.
func (b *base) AddListener(kind events.Kind, l events.Listener) events.ListenerID {
	return b.mux.Add(kind, l)
}

// RegisterListener registers l under a caller-chosen id. Registering the
// same id twice for a kind is a no-op and returns false.
func (b *base) RegisterListener(kind events.Kind, id events.ListenerID, l events.Listener) bool {
	return b.mux.Register(kind, id, l)
}

// RemoveListener removes a listener. Unknown ids are ignored.
func (b *base) RemoveListener(kind events.Kind, id events.ListenerID) bool {
	return b.mux.Remove(kind, id)
}

// StopReconnectionAttempt cancels a pending attempt and resets the backoff.
func (b *base) StopReconnectionAttempt() {
	b.reconnect.Stop()
}

// State returns a diagnostic snapshot.
func (b *base) State() State {
	st := State{
		ID:               b.id,
		Role:             b.role,
		Connection:       transport.StateClosed,
		Heartbeat:        b.core.State(),
		ReconnectDelay:   b.reconnect.CurrentDelay(),
		ReconnectPending: b.reconnect.Pending(),
		Closed:           b.closed,
	}
	if conn := b.mux.Conn(); conn != nil {
		st.Connection = conn.State()
	}
	return st
}

// Close shuts the endpoint down for good. Timers and pending attempts are
// cancelled before the transport is closed, so the resulting close event
// never schedules a reconnection. Closing twice is a no-op.
func (b *base) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true
	b.reconnect.Stop()
	b.core.CancelTimeout()
	if b.onClosed != nil {
		b.onClosed()
	}
	b.endSpan(errors.Closed(b.id))

	conn := b.mux.Conn()
	if conn == nil {
		return nil
	}
	switch conn.State() {
	case transport.StateClosing, transport.StateClosed:
		return nil
	}
	return conn.Close(transport.CloseNormal, "endpoint closed")
}

// attach makes conn the live transport. A conn that is already open, such
// as an accepted server socket, is treated as having just opened.
func (b *base) attach(conn transport.Conn) {
	b.mux.Attach(conn)
	if conn.State() == transport.StateOpen {
		b.handleOpen()
	}
}

// connect builds a fresh transport from the factory, replacing the current
// one. A factory error counts as a failed attempt.
func (b *base) connect(retry bool) error {
	if b.closed {
		return errors.Closed(b.id, errors.WithOp("connect"))
	}
	if b.factory == nil {
		return errors.New(errors.ErrCodeInvalidConfig, "no transport factory", errors.WithOp("connect"), errors.WithEndpoint(b.id))
	}

	if old := b.mux.Detach(); old != nil {
		b.teardown()
		switch old.State() {
		case transport.StateConnecting, transport.StateOpen:
			old.Close(transport.CloseNormal, "replaced")
		}
	}

	b.endSpan(errors.New(errors.ErrCodeCanceled, "superseded by a new attempt"))
	_, b.span = b.tracer.StartConnectSpan(context.Background(), b.role)

	conn, err := b.factory()
	if retry {
		b.metrics.ReconnectAttempt(b.role, err == nil)
	}
	if err != nil {
		b.log.ReconnectFailed(b.role, err)
		b.endSpan(err)
		b.scheduleReconnect()
		return errors.WrapWithCode(err, errors.ErrCodeNetworkErr, "transport factory failed", errors.WithOp("connect"), errors.WithEndpoint(b.id))
	}

	b.attach(conn)
	return nil
}

func (b *base) scheduleReconnect() {
	delay, ok := b.reconnect.OnClose()
	if !ok {
		return
	}
	b.log.ReconnectScheduled(b.role, delay, b.reconnect.Failures())
}

func (b *base) handleOpen() {
	if b.closed || b.open {
		return
	}
	b.endSpan(nil)
	b.reconnect.OnOpen()
	b.open = true

	b.metrics.ConnectionOpened(b.role)
	b.log.ConnectionOpened(b.role)
	b.publish(status.Update{Transition: status.TransitionOpen})

	if b.onOpened != nil {
		b.onOpened()
	}
}

func (b *base) handleClose(ev transport.Event) {
	b.teardown()
	b.endSpan(errors.New(errors.ErrCodeNetworkErr, "closed before open"))

	b.log.ConnectionClosed(b.role, ev.Code, ev.Reason, b.closed)
	b.publish(status.Update{Transition: status.TransitionClosed, Code: ev.Code, Reason: ev.Reason})

	if b.closed || b.factory == nil {
		return
	}
	b.scheduleReconnect()
}

func (b *base) handleError(ev transport.Event) {
	if ev.Err != nil {
		b.log.TransportError(b.role, ev.Err)
	}
}

func (b *base) handleTimeout() {
	b.metrics.SignalTimeout(b.role)
	b.log.SignalTimeout(b.role, b.window)
	b.tracer.RecordLiveness(context.Background(), b.role, b.id, string(events.KindSignalTimeout))
	b.publish(status.Update{Transition: status.TransitionTimedOut})
}

func (b *base) handleRecovered() {
	b.metrics.SignalRecovered(b.role)
	b.log.SignalRecovered(b.role)
	b.tracer.RecordLiveness(context.Background(), b.role, b.id, string(events.KindSignalRecovered))
	b.publish(status.Update{Transition: status.TransitionRecovered})
}

// armTimeout arms the heartbeat deadline and remembers it for logging.
func (b *base) armTimeout(d time.Duration) {
	b.window = d
	b.core.ArmTimeout(d)
}

// teardown stops liveness timing for a transport that is going away.
func (b *base) teardown() {
	if b.open {
		b.open = false
		b.metrics.ConnectionClosed(b.role)
	}
	b.core.CancelTimeout()
	if b.onClosed != nil {
		b.onClosed()
	}
}

func (b *base) endSpan(err error) {
	if b.span == nil {
		return
	}
	b.tracer.EndConnectSpan(b.span, telemetry.ConnectSpanOptions{
		Role:     b.role,
		Endpoint: b.id,
		Failures: b.reconnect.Failures(),
	}, err)
	b.span = nil
}

func (b *base) publish(u status.Update) {
	if b.status == nil {
		return
	}
	u.EndpointID = b.id
	u.Role = b.role
	if u.Timestamp.IsZero() {
		u.Timestamp = b.sched.Now()
	}
	if err := b.status.Publish(u); err != nil {
		b.log.Warn("status_publish_failed", map[string]interface{}{"error": err.Error()})
	}
}
