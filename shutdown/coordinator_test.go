package shutdown

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vinayprograms/lifeline/logging"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// TestPhasesRunInOrder tests that lower phases finish before higher ones start.
func TestPhasesRunInOrder(t *testing.T) {
	coord := NewCoordinator(DefaultConfig(), nil)

	var mu sync.Mutex
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	coord.RegisterFunc("bus", PhaseBackends, record("bus"))
	coord.RegisterFunc("loop", PhaseLoop, record("loop"))
	coord.RegisterFunc("endpoints", PhaseEndpoints, record("endpoints"))
	coord.RegisterFunc("server", PhaseServer, record("server"))

	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	want := []string{"endpoints", "server", "loop", "bus"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("order = %v, want %v", order, want)
	}

	select {
	case <-coord.Done():
	default:
		t.Fatal("Done should be closed")
	}
	if got := len(coord.Result().Results); got != 4 {
		t.Errorf("results = %d, want 4", got)
	}
}

// TestSamePhaseRunsConcurrently tests that handlers sharing a phase overlap.
func TestSamePhaseRunsConcurrently(t *testing.T) {
	coord := NewCoordinator(DefaultConfig(), nil)

	var running, peak int32
	handler := func(context.Context) error {
		n := atomic.AddInt32(&running, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&running, -1)
		return nil
	}

	for _, name := range []string{"a", "b", "c"} {
		coord.RegisterFunc(name, PhaseEndpoints, handler)
	}

	if err := coord.ShutdownWithTimeout(time.Second); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if atomic.LoadInt32(&peak) < 2 {
		t.Errorf("peak concurrency = %d, want at least 2", peak)
	}
}

func TestHandlerFailure(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name            string
		continueOnError bool
		wantLaterCalled bool
	}{
		{"continue", true, true},
		{"stop", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			log := logging.New()
			log.SetOutput(&out)

			cfg := DefaultConfig()
			cfg.ContinueOnError = tt.continueOnError
			coord := NewCoordinator(cfg, log)

			later := false
			coord.RegisterFunc("endpoints", PhaseEndpoints, func(context.Context) error { return boom })
			coord.RegisterFunc("bus", PhaseBackends, func(context.Context) error {
				later = true
				return nil
			})

			err := coord.ShutdownWithTimeout(time.Second)
			if !errors.Is(err, ErrHandlerFailed) {
				t.Fatalf("err = %v, want ErrHandlerFailed", err)
			}
			if later != tt.wantLaterCalled {
				t.Errorf("later phase called = %v, want %v", later, tt.wantLaterCalled)
			}

			failed := coord.Result().FailedHandlers()
			if len(failed) != 1 || failed[0] != "endpoints" {
				t.Errorf("FailedHandlers() = %v", failed)
			}
			if !strings.Contains(out.String(), "shutdown_handler_failed") {
				t.Errorf("expected failure to be logged, got %q", out.String())
			}
		})
	}
}

// TestTimeoutBetweenPhases tests that an expired context stops later phases.
func TestTimeoutBetweenPhases(t *testing.T) {
	coord := NewCoordinator(DefaultConfig(), nil)

	later := false
	coord.RegisterFunc("slow", PhaseEndpoints, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	coord.RegisterFunc("bus", PhaseBackends, func(context.Context) error {
		later = true
		return nil
	})

	err := coord.ShutdownWithTimeout(20 * time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if later {
		t.Error("later phase should not run after timeout")
	}
}

func TestShutdownOnce(t *testing.T) {
	coord := NewCoordinator(DefaultConfig(), nil)

	var calls int32
	release := make(chan struct{})
	coord.RegisterFunc("endpoints", PhaseEndpoints, func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		<-release
		return nil
	})

	first := make(chan error, 1)
	go func() { first <- coord.ShutdownWithTimeout(time.Second) }()

	// Wait for the first call to enter the handler.
	for atomic.LoadInt32(&calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	if err := coord.Shutdown(context.Background()); !errors.Is(err, ErrAlreadyShutdown) {
		t.Errorf("concurrent Shutdown = %v, want ErrAlreadyShutdown", err)
	}

	close(release)
	if err := <-first; err != nil {
		t.Fatalf("first Shutdown: %v", err)
	}
	if err := coord.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown after completion = %v, want first result", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("handler called %d times, want 1", n)
	}
}

func TestRegisterCloser(t *testing.T) {
	coord := NewCoordinator(DefaultConfig(), nil)

	closed := false
	coord.RegisterCloser("bus", PhaseBackends, closerFunc(func() error {
		closed = true
		return nil
	}))
	coord.RegisterCloser("absent", PhaseBackends, nil)

	if err := coord.ShutdownWithTimeout(0); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !closed {
		t.Error("closer not called")
	}
	if got := len(coord.Result().Results); got != 1 {
		t.Errorf("results = %d, want 1 (nil closer skipped)", got)
	}
}

func TestResultBeforeShutdown(t *testing.T) {
	coord := NewCoordinator(Config{}, nil)
	if coord.Result() != nil {
		t.Error("Result should be nil before shutdown")
	}
	if coord.config.Timeout != DefaultConfig().Timeout {
		t.Errorf("Timeout = %v, want default", coord.config.Timeout)
	}
}
