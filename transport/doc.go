// Package transport provides the connection handles endpoints are built on.
//
// # Overview
//
// A Conn delivers discrete text/binary frames and open/close/error
// lifecycle events to handlers registered under a HandlerID. Handlers run on
// the owning endpoint's execution context, never concurrently.
//
// # Available Transports
//
//   - WebSocketConn: gorilla/websocket, either dialed (Dial, NewDialFactory)
//     or wrapped after a server-side upgrade (Accept)
//   - MemoryConn: in-process double for tests; the test plays the remote side
//
// # Usage
//
//	loop := scheduler.NewLoop()
//	go loop.Run(ctx)
//
//	conn := transport.Dial("ws://localhost:8080/ws", loop, transport.DefaultWebSocketConfig())
//	loop.Post(func() {
//	    conn.On(transport.KindMessage, "printer", func(ev transport.Event) {
//	        fmt.Printf("%s\n", ev.Frame.Data)
//	    })
//	})
//
// # Design Decisions
//
//   - Event handles, not channels: handlers can be replayed onto a new Conn
//     when an endpoint replaces a dropped connection
//   - Asynchronous dial: a Conn starts connecting and reports the outcome as
//     events, so a failed attempt looks exactly like an unexpected close
//   - Reconnection: handled by endpoints, not by Conn implementations
package transport
