package scheduler

import (
	"context"
	"sync"
	"time"
)

// Loop is a Scheduler backed by wall-clock timers that serializes every
// callback onto the goroutine running Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	timers  map[Token]*time.Timer
	next    Token
	stopped bool
}

// NewLoop creates an idle loop. Call Run to start executing callbacks.
func NewLoop() *Loop {
	return &Loop{
		wake:   make(chan struct{}, 1),
		timers: make(map[Token]*time.Timer),
	}
}

// Now returns the wall-clock time.
func (l *Loop) Now() time.Time {
	return time.Now()
}

// Post queues fn for execution on the loop. It never blocks.
// Returns false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Do runs fn on the loop and waits for it to finish.
// Must not be called from the loop itself.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !l.Post(func() {
		defer close(done)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule runs fn on the loop after d.
func (l *Loop) Schedule(d time.Duration, fn func()) Token {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	tok := l.next
	if l.stopped {
		return tok
	}
	l.timers[tok] = time.AfterFunc(d, func() {
		l.Post(func() {
			// A cancel may have raced with the timer firing.
			l.mu.Lock()
			_, live := l.timers[tok]
			delete(l.timers, tok)
			l.mu.Unlock()
			if live {
				fn()
			}
		})
	})
	return tok
}

// Cancel stops a scheduled callback.
func (l *Loop) Cancel(t Token) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if timer, ok := l.timers[t]; ok {
		timer.Stop()
		delete(l.timers, t)
	}
}

// Pending returns the number of scheduled callbacks that have not run.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timers)
}

// Run executes queued callbacks until ctx is cancelled.
// Pending timers are stopped on return.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()

	for {
		for {
			fn, ok := l.pop()
			if !ok {
				break
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) pop() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil, false
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn, true
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	l.queue = nil
	for tok, timer := range l.timers {
		timer.Stop()
		delete(l.timers, tok)
	}
}
