// Package transport defines the connection handle endpoints sit on.
//
// A Conn is a message-oriented, full-duplex connection that delivers
// discrete text/binary frames plus open/close/error lifecycle events to
// registered handlers.
package transport

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrClosed         = errors.New("transport closed")
	ErrNotOpen        = errors.New("transport not open")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Kind names a transport event.
type Kind string

// Pass-through event kinds mirroring the transport lifecycle.
const (
	KindOpen    Kind = "open"
	KindClose   Kind = "close"
	KindError   Kind = "error"
	KindMessage Kind = "message"
)

// PassThrough reports whether events of this kind originate at the transport.
func (k Kind) PassThrough() bool {
	switch k {
	case KindOpen, KindClose, KindError, KindMessage:
		return true
	default:
		return false
	}
}

// MessageType is the frame type. Values match the WebSocket opcodes.
type MessageType int

const (
	TextMessage   MessageType = 1
	BinaryMessage MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case TextMessage:
		return "text"
	case BinaryMessage:
		return "binary"
	default:
		return fmt.Sprintf("MessageType(%d)", int(t))
	}
}

// Frame is one discrete message.
type Frame struct {
	Type MessageType
	Data []byte
}

// Text builds a text frame.
func Text(s string) Frame {
	return Frame{Type: TextMessage, Data: []byte(s)}
}

// Binary builds a binary frame.
func Binary(b []byte) Frame {
	return Frame{Type: BinaryMessage, Data: b}
}

// Close codes used by the bundled transports.
const (
	CloseNormal    = 1000
	CloseGoingAway = 1001
	CloseAbnormal  = 1006
)

// Event is delivered to handlers. Only the fields relevant to Kind are set.
type Event struct {
	Kind Kind

	// Frame is set for KindMessage.
	Frame Frame

	// Err is set for KindError.
	Err error

	// Code and Reason are set for KindClose.
	Code   int
	Reason string
}

// HandlerID identifies a registered handler. Off removes by the same id.
type HandlerID string

// Handler receives transport events.
type Handler func(Event)

// State is the connection lifecycle state.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Conn is a live connection handle.
//
// On, Off, Send, State and Close are called from the owning endpoint's
// execution context; implementations deliver events on that same context.
type Conn interface {
	// On registers h for events of kind under id.
	// Registering an id that is already present replaces nothing.
	On(kind Kind, id HandlerID, h Handler)

	// Off removes the handler registered under id. Unknown ids are ignored.
	Off(kind Kind, id HandlerID)

	// Send transmits a frame. Returns ErrNotOpen unless the connection is open.
	Send(f Frame) error

	// State returns the current lifecycle state.
	State() State

	// Close starts a closing handshake. A close event follows.
	Close(code int, reason string) error
}

// Factory creates a fresh connection. The returned Conn starts in
// StateConnecting and later emits either open, or error followed by close.
type Factory func() (Conn, error)

// handlerSet keeps handlers per kind in registration order.
type handlerSet struct {
	byKind map[Kind][]registered
}

type registered struct {
	id HandlerID
	h  Handler
}

func newHandlerSet() handlerSet {
	return handlerSet{byKind: make(map[Kind][]registered)}
}

func (s *handlerSet) add(kind Kind, id HandlerID, h Handler) {
	for _, r := range s.byKind[kind] {
		if r.id == id {
			return
		}
	}
	s.byKind[kind] = append(s.byKind[kind], registered{id: id, h: h})
}

func (s *handlerSet) remove(kind Kind, id HandlerID) {
	list := s.byKind[kind]
	for i, r := range list {
		if r.id == id {
			s.byKind[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (s *handlerSet) count(kind Kind) int {
	return len(s.byKind[kind])
}

// emit snapshots the list so handlers may add or remove during dispatch.
func (s *handlerSet) emit(ev Event) {
	list := append([]registered(nil), s.byKind[ev.Kind]...)
	for _, r := range list {
		r.h(ev)
	}
}
