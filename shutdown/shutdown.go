// Package shutdown tears a lifeline process down in dependency order.
//
// Handlers are grouped into phases. Phases run in ascending order and the
// handlers inside one phase run concurrently:
//
//	coord := shutdown.NewCoordinator(shutdown.DefaultConfig(), log)
//	coord.Register("endpoints", shutdown.PhaseEndpoints, closeEndpoints)
//	coord.Register("loop", shutdown.PhaseLoop, stopLoop)
//	coord.RegisterCloser("bus", shutdown.PhaseBackends, bus)
//
//	ctx := coord.NotifyContext(context.Background())
//	<-ctx.Done()
//	err := coord.ShutdownWithTimeout(0)
package shutdown

import (
	"context"
	"errors"
	"time"
)

// Phases used by the lifeline commands. Endpoints close first so peers
// see a normal close before the transport server and the loop go away.
const (
	PhaseEndpoints = 10
	PhaseServer    = 20
	PhaseLoop      = 30
	PhaseBackends  = 40
)

var (
	// ErrAlreadyShutdown is returned by a second concurrent Shutdown.
	ErrAlreadyShutdown = errors.New("shutdown already initiated")

	// ErrTimeout is returned when the context expires between phases.
	ErrTimeout = errors.New("shutdown timeout exceeded")

	// ErrHandlerFailed is returned when at least one handler failed.
	ErrHandlerFailed = errors.New("one or more handlers failed")
)

// Handler releases one component.
type Handler interface {
	OnShutdown(ctx context.Context) error
}

// Func adapts a function to Handler.
type Func func(ctx context.Context) error

// OnShutdown implements Handler.
func (f Func) OnShutdown(ctx context.Context) error {
	return f(ctx)
}

// HandlerResult is the outcome of one handler.
type HandlerResult struct {
	Name     string
	Phase    int
	Duration time.Duration
	Err      error
}

// Result is the outcome of a whole shutdown.
type Result struct {
	TotalDuration time.Duration
	Results       []HandlerResult
	Err           error
}

// FailedHandlers returns the names of handlers that returned an error.
func (r *Result) FailedHandlers() []string {
	var failed []string
	for _, hr := range r.Results {
		if hr.Err != nil {
			failed = append(failed, hr.Name)
		}
	}
	return failed
}

// Config configures a Coordinator.
type Config struct {
	// Timeout bounds ShutdownWithTimeout(0).
	// Default: 10s
	Timeout time.Duration `toml:"timeout"`

	// ContinueOnError runs later phases after a handler fails.
	// Default: true
	ContinueOnError bool `toml:"continue_on_error"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		ContinueOnError: true,
	}
}

type registration struct {
	name    string
	handler Handler
	phase   int
}
