// Package errors provides the structured error taxonomy for lifeline.
//
// # Error Categories
//
//   - Transient: the condition may clear on its own (network, timeouts)
//   - Permanent: retrying the same call will not help (misuse, bad config)
//   - Internal: unexpected failures indicating a bug
//
// # Scope
//
// Only synchronous API misuse and setup failures are returned as *Error.
// Transport errors reach listeners unmodified, liveness failures are
// reported as signal-timeout notifications, and failed reconnection
// attempts are retried silently.
//
// # Usage
//
//	if err := ep.Send(frame); errors.Is(err, errors.ErrCodeNotConnected) {
//	    // no transport attached yet
//	}
package errors
