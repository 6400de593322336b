package events

import (
	"github.com/google/uuid"

	"github.com/vinayprograms/lifeline/transport"
)

// Kind names an event. Pass-through kinds are shared with transport.
type Kind = transport.Kind

// Pass-through kinds.
const (
	KindOpen    = transport.KindOpen
	KindClose   = transport.KindClose
	KindError   = transport.KindError
	KindMessage = transport.KindMessage
)

// Reserved kinds. They carry no payload.
const (
	KindSignalTimeout   Kind = "signal-timeout"
	KindSignalRecovered Kind = "signal-recovered"
	KindSignalSent      Kind = "signal-sent"
	KindSignalReceived  Kind = "signal-received"
)

// ListenerID identifies a registration.
type ListenerID = transport.HandlerID

// Listener receives events. For reserved kinds only Event.Kind is set.
type Listener = transport.Handler

// tapID is the id of the internal heartbeat tap on every attached Conn.
const tapID ListenerID = "lifeline.heartbeat-tap"

// HeartbeatFrame returns the reserved liveness frame.
func HeartbeatFrame() transport.Frame {
	return transport.Binary([]byte{0})
}

// IsHeartbeat reports whether f is the reserved liveness frame.
func IsHeartbeat(f transport.Frame) bool {
	return f.Type == transport.BinaryMessage && len(f.Data) == 1 && f.Data[0] == 0
}

type entry struct {
	id        ListenerID
	original  Listener
	installed Listener
}

// Multiplexer is not safe for concurrent use; it lives on its endpoint's
// execution context.
type Multiplexer struct {
	conn        transport.Conn
	registry    map[Kind][]*entry
	onHeartbeat func()
}

// New creates an empty multiplexer with no transport attached.
func New() *Multiplexer {
	return &Multiplexer{
		registry: make(map[Kind][]*entry),
	}
}

// OnHeartbeat sets the receiver for heartbeat frames.
func (m *Multiplexer) OnHeartbeat(fn func()) {
	m.onHeartbeat = fn
}

// Conn returns the live transport, or nil.
func (m *Multiplexer) Conn() transport.Conn {
	return m.conn
}

// Add registers l under a fresh id and returns it.
func (m *Multiplexer) Add(kind Kind, l Listener) ListenerID {
	id := ListenerID(uuid.NewString())
	m.Register(kind, id, l)
	return id
}

// Register registers l under id. It returns false, changing nothing, if
// id is already registered for kind.
func (m *Multiplexer) Register(kind Kind, id ListenerID, l Listener) bool {
	if m.find(kind, id) >= 0 {
		return false
	}

	e := &entry{id: id, original: l, installed: l}
	if kind == KindMessage {
		e.installed = filterHeartbeats(l)
	}
	m.registry[kind] = append(m.registry[kind], e)

	if kind.PassThrough() && m.conn != nil {
		m.conn.On(kind, id, e.installed)
	}
	return true
}

// Remove deregisters id for kind from the registry and the live transport.
// It returns false if id was not registered.
func (m *Multiplexer) Remove(kind Kind, id ListenerID) bool {
	i := m.find(kind, id)
	if i < 0 {
		return false
	}
	list := m.registry[kind]
	m.registry[kind] = append(list[:i:i], list[i+1:]...)
	if len(m.registry[kind]) == 0 {
		delete(m.registry, kind)
	}

	if kind.PassThrough() && m.conn != nil {
		m.conn.Off(kind, id)
	}
	return true
}

// Attach makes conn the live transport. The previous transport, if any, is
// detached first; every pass-through registration is replayed onto conn.
func (m *Multiplexer) Attach(conn transport.Conn) {
	m.Detach()
	m.conn = conn
	conn.On(KindMessage, tapID, m.tap)
	m.RebindAll()
}

// Detach removes every registration from the live transport and forgets
// it. The detached Conn is returned so the caller can dispose of it.
func (m *Multiplexer) Detach() transport.Conn {
	old := m.conn
	if old == nil {
		return nil
	}
	old.Off(KindMessage, tapID)
	for kind, list := range m.registry {
		if !kind.PassThrough() {
			continue
		}
		for _, e := range list {
			old.Off(kind, e.id)
		}
	}
	m.conn = nil
	return old
}

// RebindAll registers every pass-through listener on the live transport,
// keeping message listeners wrapped in the heartbeat filter.
func (m *Multiplexer) RebindAll() {
	if m.conn == nil {
		return
	}
	for kind, list := range m.registry {
		if !kind.PassThrough() {
			continue
		}
		for _, e := range list {
			m.conn.On(kind, e.id, e.installed)
		}
	}
}

// Dispatch invokes every listener registered for a reserved kind. It never
// touches the transport.
func (m *Multiplexer) Dispatch(kind Kind) {
	list := append([]*entry(nil), m.registry[kind]...)
	for _, e := range list {
		e.original(transport.Event{Kind: kind})
	}
}

// Listeners returns how many listeners are registered for kind.
func (m *Multiplexer) Listeners(kind Kind) int {
	return len(m.registry[kind])
}

func (m *Multiplexer) tap(ev transport.Event) {
	if IsHeartbeat(ev.Frame) && m.onHeartbeat != nil {
		m.onHeartbeat()
	}
}

func (m *Multiplexer) find(kind Kind, id ListenerID) int {
	for i, e := range m.registry[kind] {
		if e.id == id {
			return i
		}
	}
	return -1
}

// filterHeartbeats hides heartbeat frames from an application listener.
// Everything else is forwarded as received.
func filterHeartbeats(l Listener) Listener {
	return func(ev transport.Event) {
		if IsHeartbeat(ev.Frame) {
			return
		}
		l(ev)
	}
}
