// Package endpoint composes the multiplexer, heartbeat core and
// reconnection controller into the two connection roles.
//
// An Initiator owns transport construction and emits heartbeats on a fixed
// interval, declaring the peer dead when a reply misses a hard deadline.
// A Responder echoes every heartbeat it receives and derives its deadline
// from the observed cadence.
//
// # Execution Context
//
// Endpoints are not safe for concurrent use. Every method, every transport
// event and every timer callback must run on the same execution context,
// normally a scheduler.Loop:
//
//	loop := scheduler.NewLoop()
//	go loop.Run(ctx)
//
//	loop.Do(ctx, func() {
//	    ep, err = endpoint.NewInitiator(
//	        transport.NewDialFactory(url, loop, transport.DefaultWebSocketConfig()),
//	        loop, endpoint.DefaultInitiatorConfig())
//	    ep.InitializeConnection()
//	})
//
// # Listeners
//
// AddListener accepts the transport kinds (open, close, error, message) and
// the reserved liveness kinds (signal-timeout, signal-recovered, signal-sent,
// signal-received). Listeners survive transport replacement. Message
// listeners never see the heartbeat frame.
package endpoint
