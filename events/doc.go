// Package events multiplexes listeners over a replaceable transport.
//
// # Overview
//
// A Multiplexer owns the listener registry of one endpoint. Listeners for
// pass-through kinds (open, close, error, message) are mirrored onto the
// live transport.Conn; when the endpoint swaps in a new Conn, Attach replays
// every registration so application code never re-registers.
//
// Reserved kinds (signal-timeout, signal-recovered, signal-sent,
// signal-received) never touch the transport and are fired with Dispatch.
//
// # Heartbeat Filtering
//
// The heartbeat frame is a binary frame holding exactly one zero byte.
// Every attached Conn carries one internal tap that routes heartbeat frames
// to the handler set with OnHeartbeat, and every application message
// listener is wrapped so it never sees one. The frame is protocol-reserved:
// an application payload of a single zero byte is treated as a heartbeat.
//
// # Listener Identity
//
// Go funcs are not comparable, so listeners are identified by ListenerID.
// Add issues a fresh id; Register takes a caller-chosen one and ignores a
// second registration of the same id for the same kind. Remove with an id
// that was never registered is a no-op.
package events
