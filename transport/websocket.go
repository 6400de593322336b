package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vinayprograms/lifeline/scheduler"
)

// closeWriteTimeout bounds writing the close frame.
const closeWriteTimeout = time.Second

type closeFrame struct {
	code   int
	reason string
}

// WebSocketConn implements Conn over a gorilla/websocket connection.
// Reads and writes run on their own goroutines; events are posted to the
// owning execution context.
type WebSocketConn struct {
	poster   scheduler.Poster
	config   WebSocketConfig
	handlers handlerSet

	mu         sync.Mutex
	state      State
	conn       *websocket.Conn
	cancelDial context.CancelFunc

	send      chan Frame
	closeReq  chan closeFrame
	done      chan struct{}
	closeOnce sync.Once
}

// WebSocketConfig holds WebSocket transport configuration.
type WebSocketConfig struct {
	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration `toml:"handshake_timeout"`

	// WriteTimeout for write operations.
	WriteTimeout time.Duration `toml:"write_timeout"`

	// MaxMessageSize limits incoming message size.
	MaxMessageSize int64 `toml:"max_message_size"`

	// SendBufferSize is the number of frames queued for the writer.
	SendBufferSize int `toml:"send_buffer_size"`

	// Header is sent with the opening handshake.
	Header http.Header `toml:"-"`
}

// DefaultWebSocketConfig returns configuration with sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		MaxMessageSize:   1024 * 1024, // 1MB
		SendBufferSize:   100,
	}
}

func (cfg WebSocketConfig) withDefaults() WebSocketConfig {
	def := DefaultWebSocketConfig()
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	return cfg
}

func newWebSocketConn(poster scheduler.Poster, cfg WebSocketConfig) *WebSocketConn {
	cfg = cfg.withDefaults()
	return &WebSocketConn{
		poster:   poster,
		config:   cfg,
		handlers: newHandlerSet(),
		send:     make(chan Frame, cfg.SendBufferSize),
		closeReq: make(chan closeFrame, 1),
		done:     make(chan struct{}),
	}
}

// Dial starts connecting to url in the background and returns immediately.
// The connection emits open on success, or error followed by close.
func Dial(url string, poster scheduler.Poster, cfg WebSocketConfig) *WebSocketConn {
	c := newWebSocketConn(poster, cfg)
	c.state = StateConnecting

	ctx, cancel := context.WithTimeout(context.Background(), c.config.HandshakeTimeout)
	c.cancelDial = cancel
	go c.dial(ctx, url)
	return c
}

// NewDialFactory returns a Factory that dials url on every call.
func NewDialFactory(url string, poster scheduler.Poster, cfg WebSocketConfig) Factory {
	return func() (Conn, error) {
		return Dial(url, poster, cfg), nil
	}
}

// Accept wraps a connection that has already completed its handshake, such
// as one returned by an Upgrader. No open event is emitted.
func Accept(conn *websocket.Conn, poster scheduler.Poster, cfg WebSocketConfig) *WebSocketConn {
	c := newWebSocketConn(poster, cfg)
	c.conn = conn
	c.state = StateOpen
	c.start()
	return c
}

// NewWebSocketUpgrader creates an upgrader for accepting WebSocket connections.
func NewWebSocketUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true }, // Override in production
	}
}

func (c *WebSocketConn) dial(ctx context.Context, url string) {
	defer c.cancelDial()

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: c.config.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, c.config.Header)
	if err != nil {
		c.finish(CloseAbnormal, "", err)
		return
	}

	c.mu.Lock()
	if c.state != StateConnecting {
		// Closed while the handshake was in flight.
		c.mu.Unlock()
		conn.Close()
		c.finish(CloseNormal, "", nil)
		return
	}
	c.conn = conn
	c.state = StateOpen
	c.mu.Unlock()

	c.post(Event{Kind: KindOpen})
	c.start()
}

func (c *WebSocketConn) start() {
	c.conn.SetReadLimit(c.config.MaxMessageSize)
	go c.readLoop()
	go c.writeLoop()
}

// On registers a handler. Must be called from the owning execution context.
func (c *WebSocketConn) On(kind Kind, id HandlerID, h Handler) {
	c.handlers.add(kind, id, h)
}

// Off removes a handler. Must be called from the owning execution context.
func (c *WebSocketConn) Off(kind Kind, id HandlerID) {
	c.handlers.remove(kind, id)
}

// Send queues a frame for the writer goroutine.
func (c *WebSocketConn) Send(f Frame) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateOpen:
	case StateClosing, StateClosed:
		return ErrClosed
	default:
		return ErrNotOpen
	}

	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSendBufferFull
	}
}

// State returns the connection state.
func (c *WebSocketConn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close hands the close frame to the writer goroutine and returns without
// waiting on the peer. The close event follows once the socket is down.
func (c *WebSocketConn) Close(code int, reason string) error {
	c.mu.Lock()
	switch c.state {
	case StateClosing, StateClosed:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		c.state = StateClosing
		c.mu.Unlock()
		c.cancelDial()
		return nil
	}
	c.state = StateClosing
	c.mu.Unlock()

	// The writer sends the close frame after anything already queued.
	c.closeReq <- closeFrame{code: code, reason: reason}
	return nil
}

// readLoop reads WebSocket messages and posts them as events.
func (c *WebSocketConn) readLoop() {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				c.finish(ce.Code, ce.Text, nil)
				return
			}
			c.finish(CloseAbnormal, "", err)
			return
		}
		c.post(Event{Kind: KindMessage, Frame: Frame{Type: MessageType(mt), Data: data}})
	}
}

// writeLoop drains the send queue until the connection finishes.
func (c *WebSocketConn) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case f := <-c.send:
			if !c.write(f) {
				return
			}
		case cf := <-c.closeReq:
			c.flush()
			deadline := time.Now().Add(closeWriteTimeout)
			// A failed close frame changes nothing: the socket is closed either way.
			_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(cf.code, cf.reason), deadline)
			c.finish(cf.code, cf.reason, nil)
			return
		}
	}
}

func (c *WebSocketConn) write(f Frame) bool {
	if c.config.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.conn.WriteMessage(int(f.Type), f.Data); err != nil {
		c.finish(CloseAbnormal, "", err)
		return false
	}
	return true
}

// flush writes frames queued before Close.
func (c *WebSocketConn) flush() {
	for {
		select {
		case f := <-c.send:
			if !c.write(f) {
				return
			}
		default:
			return
		}
	}
}

// finish moves to StateClosed exactly once and posts the trailing events.
// Errors raised after a local Close are not reported.
func (c *WebSocketConn) finish(code int, reason string, err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.state == StateClosing {
			err = nil
		}
		c.state = StateClosed
		conn := c.conn
		c.mu.Unlock()

		close(c.done)
		if conn != nil {
			conn.Close()
		}
		if err != nil {
			c.post(Event{Kind: KindError, Err: err})
		}
		c.post(Event{Kind: KindClose, Code: code, Reason: reason})
	})
}

func (c *WebSocketConn) post(ev Event) {
	c.poster.Post(func() { c.handlers.emit(ev) })
}

var _ Conn = (*WebSocketConn)(nil)
