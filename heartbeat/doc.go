// Package heartbeat implements the liveness state machine shared by both
// endpoint roles.
//
// # Overview
//
// A Core sends and receives the reserved one-byte heartbeat frame, owns
// the single pending timeout and the timed-out flag, and reports
// transitions as reserved notifications through its events.Multiplexer:
//
//	signal-sent       a heartbeat frame was transmitted
//	signal-received   a heartbeat frame arrived
//	signal-timeout    the pending timeout fired while alive
//	signal-recovered  a heartbeat arrived while timed out
//
// # States
//
//	Alive ──timeout fires──> TimedOut ──signal received──> Alive
//
// The timeout notification fires at most once per episode; further silent
// periods stay quiet until a signal brings the core back to Alive. Receiving
// a signal is the only way back.
//
// # Roles
//
// Role-specific timing is injected as a Policy. The initiating role arms a
// hard deadline after every send; the responsive role derives its deadline
// from the smoothed inter-signal gap (see ObserveSignal) and echoes every
// heartbeat it receives.
package heartbeat
