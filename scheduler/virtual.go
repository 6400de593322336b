package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Virtual is a deterministic Scheduler for tests. Callbacks only run from
// Advance, on the caller's goroutine, in deadline order.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	next    Token
	pending []virtualTimer
}

type virtualTimer struct {
	token Token
	at    time.Time
	fn    func()
}

// NewVirtual creates a virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start}
}

// Now returns the virtual time.
func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Schedule registers fn to run once the clock reaches now+d.
func (v *Virtual) Schedule(d time.Duration, fn func()) Token {
	v.mu.Lock()
	defer v.mu.Unlock()

	if d < 0 {
		d = 0
	}
	v.next++
	v.pending = append(v.pending, virtualTimer{token: v.next, at: v.now.Add(d), fn: fn})
	// Stable sort keeps FIFO order for equal deadlines.
	sort.SliceStable(v.pending, func(i, j int) bool {
		return v.pending[i].at.Before(v.pending[j].at)
	})
	return v.next
}

// Cancel removes a scheduled callback.
func (v *Virtual) Cancel(t Token) {
	v.mu.Lock()
	defer v.mu.Unlock()

	for i, p := range v.pending {
		if p.token == t {
			v.pending = append(v.pending[:i], v.pending[i+1:]...)
			return
		}
	}
}

// Advance moves the clock forward by d, running every callback that falls
// due. Callbacks scheduled by other callbacks run too if they fall inside
// the window.
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	for {
		v.mu.Lock()
		if len(v.pending) == 0 || v.pending[0].at.After(target) {
			v.now = target
			v.mu.Unlock()
			return
		}
		next := v.pending[0]
		v.pending = v.pending[1:]
		v.now = next.at
		v.mu.Unlock()

		next.fn()
	}
}

// Pending returns the number of scheduled callbacks.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.pending)
}

// NextDeadline returns the delay until the earliest pending callback.
func (v *Virtual) NextDeadline() (time.Duration, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.pending) == 0 {
		return 0, false
	}
	return v.pending[0].at.Sub(v.now), true
}

// Post runs fn immediately. Tests drive everything from one goroutine,
// so there is no queue to defer to.
func (v *Virtual) Post(fn func()) bool {
	fn()
	return true
}
