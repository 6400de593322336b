package transport

// MemoryConn is an in-process Conn for tests. The test drives the remote
// side through Open, Deliver, Fail and Drop; frames written by the local
// side are recorded and available from Sent.
//
// MemoryConn is not safe for concurrent use. Like every Conn it belongs to
// one execution context.
type MemoryConn struct {
	handlers handlerSet
	state    State
	sent     []Frame
	closes   int

	// SendErr, when set, is returned from Send instead of recording.
	SendErr error
}

// NewMemoryConn creates a connection in StateConnecting.
func NewMemoryConn() *MemoryConn {
	return &MemoryConn{handlers: newHandlerSet()}
}

// NewMemoryFactory returns a Factory handing out fresh MemoryConns and
// recording each one in *created.
func NewMemoryFactory(created *[]*MemoryConn) Factory {
	return func() (Conn, error) {
		c := NewMemoryConn()
		*created = append(*created, c)
		return c, nil
	}
}

func (c *MemoryConn) On(kind Kind, id HandlerID, h Handler) {
	c.handlers.add(kind, id, h)
}

func (c *MemoryConn) Off(kind Kind, id HandlerID) {
	c.handlers.remove(kind, id)
}

func (c *MemoryConn) Send(f Frame) error {
	if c.SendErr != nil {
		return c.SendErr
	}
	if c.state != StateOpen {
		return ErrNotOpen
	}
	c.sent = append(c.sent, Frame{Type: f.Type, Data: append([]byte(nil), f.Data...)})
	return nil
}

func (c *MemoryConn) State() State {
	return c.state
}

// Close closes the connection locally and emits a close event.
func (c *MemoryConn) Close(code int, reason string) error {
	c.closes++
	if c.state == StateClosed {
		return nil
	}
	c.Drop(code, reason)
	return nil
}

// Open completes the connection and emits an open event.
func (c *MemoryConn) Open() {
	c.state = StateOpen
	c.handlers.emit(Event{Kind: KindOpen})
}

// Deliver emits an inbound frame.
func (c *MemoryConn) Deliver(f Frame) {
	c.handlers.emit(Event{Kind: KindMessage, Frame: f})
}

// Fail emits a transport error.
func (c *MemoryConn) Fail(err error) {
	c.handlers.emit(Event{Kind: KindError, Err: err})
}

// Drop simulates the remote side or the network ending the connection.
func (c *MemoryConn) Drop(code int, reason string) {
	c.state = StateClosed
	c.handlers.emit(Event{Kind: KindClose, Code: code, Reason: reason})
}

// Sent returns frames written by the local side.
func (c *MemoryConn) Sent() []Frame {
	return append([]Frame(nil), c.sent...)
}

// ClearSent forgets recorded frames.
func (c *MemoryConn) ClearSent() {
	c.sent = nil
}

// Handlers returns how many handlers are registered for kind.
func (c *MemoryConn) Handlers(kind Kind) int {
	return c.handlers.count(kind)
}

// CloseCalls returns how many times Close was called.
func (c *MemoryConn) CloseCalls() int {
	return c.closes
}

var _ Conn = (*MemoryConn)(nil)
