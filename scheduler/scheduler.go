package scheduler

import (
	"errors"
	"time"
)

// Common errors.
var (
	ErrStopped = errors.New("scheduler stopped")
)

// Token identifies a scheduled callback. The zero Token is never issued
// and is safe to pass to Cancel.
type Token uint64

// Scheduler schedules callbacks on a single execution context.
type Scheduler interface {
	// Now returns the scheduler's notion of the current time.
	Now() time.Time

	// Schedule runs fn once after d elapses.
	Schedule(d time.Duration, fn func()) Token

	// Cancel prevents a scheduled callback from running.
	// Cancelling an unknown or already fired token is a no-op.
	Cancel(t Token)
}

// Poster queues work onto the execution context that owns endpoint state.
// Transport implementations use it to deliver events from their own
// goroutines.
type Poster interface {
	Post(fn func()) bool
}

// Timer is a cancellable single-slot timer. Arming it cancels whatever it
// held before, so at most one callback is pending at any time.
type Timer struct {
	sched Scheduler
	token Token
}

// NewTimer creates a Timer bound to sched.
func NewTimer(sched Scheduler) *Timer {
	return &Timer{sched: sched}
}

// Arm cancels any pending callback and schedules fn after d.
func (t *Timer) Arm(d time.Duration, fn func()) {
	t.Stop()
	var tok Token
	tok = t.sched.Schedule(d, func() {
		if t.token == tok {
			t.token = 0
		}
		fn()
	})
	t.token = tok
}

// Stop cancels the pending callback, if any.
func (t *Timer) Stop() {
	if t.token == 0 {
		return
	}
	t.sched.Cancel(t.token)
	t.token = 0
}

// Pending reports whether a callback is armed.
func (t *Timer) Pending() bool {
	return t.token != 0
}
