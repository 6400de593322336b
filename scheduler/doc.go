// Package scheduler provides the timer capability every endpoint runs on.
//
// # Overview
//
// Endpoints are single-threaded and timer-driven. All heartbeat timeouts,
// periodic emission and reconnection delays are expressed as callbacks
// scheduled through the Scheduler interface. Each Schedule call returns a
// Token that must be cancelled before the timer is rearmed.
//
// # Implementations
//
//   - Loop: real wall-clock timers. Every callback, including events posted
//     by transport goroutines, runs sequentially on the goroutine executing
//     Run, so endpoint state needs no locking.
//   - Virtual: a deterministic clock for tests. Time only moves when
//     Advance is called, and due callbacks run on the caller's goroutine.
//
// # Usage
//
//	loop := scheduler.NewLoop()
//	go loop.Run(ctx)
//
//	loop.Post(func() {
//	    tok := loop.Schedule(time.Second, func() { fmt.Println("fired") })
//	    _ = tok
//	})
package scheduler
