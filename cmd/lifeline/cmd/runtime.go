package cmd

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/vinayprograms/lifeline/bus"
	"github.com/vinayprograms/lifeline/config"
	"github.com/vinayprograms/lifeline/endpoint"
	"github.com/vinayprograms/lifeline/logging"
	"github.com/vinayprograms/lifeline/metrics"
	"github.com/vinayprograms/lifeline/scheduler"
	"github.com/vinayprograms/lifeline/shutdown"
	"github.com/vinayprograms/lifeline/status"
	"github.com/vinayprograms/lifeline/telemetry"
)

// runtime holds the collaborators shared by every endpoint in the process.
type runtime struct {
	cfg      *config.File
	log      *logging.Logger
	loop     *scheduler.Loop
	metrics  *metrics.Recorder
	tracer   *telemetry.Tracer
	provider *telemetry.Provider
	bus      bus.MessageBus
	status   *status.Publisher
	store    status.Store
	coord    *shutdown.Coordinator

	stopLoop context.CancelFunc
	loopDone chan struct{}
}

// newRuntime builds the process collaborators from f. Logs go to logOut.
func newRuntime(ctx context.Context, f *config.File, logOut io.Writer) (*runtime, error) {
	log, err := f.Logger()
	if err != nil {
		return nil, err
	}
	log.SetOutput(logOut)

	rt := &runtime{
		cfg:      f,
		log:      log,
		loop:     scheduler.NewLoop(),
		tracer:   telemetry.GetTracer(),
		coord:    shutdown.NewCoordinator(f.Shutdown, log),
		loopDone: make(chan struct{}),
	}

	if f.Metrics.Enabled {
		rt.metrics = metrics.NewRecorder()
	}

	provider, err := telemetry.InitProvider(ctx, f.Telemetry)
	switch {
	case errors.Is(err, telemetry.ErrDisabled):
	case err != nil:
		return nil, err
	default:
		rt.provider = provider
		rt.tracer = provider.Tracer()
		rt.coord.RegisterFunc("telemetry", shutdown.PhaseBackends, provider.Shutdown)
	}

	b, err := f.Bus()
	if err != nil {
		rt.shutdownProvider()
		return nil, err
	}
	if b != nil {
		rt.bus = b
		rt.status = status.NewPublisher(b)
		rt.coord.RegisterCloser("status-bus", shutdown.PhaseBackends, b)

		store, err := f.Store(b)
		if err != nil {
			b.Close()
			rt.shutdownProvider()
			return nil, err
		}
		if store != nil {
			rt.store = store
			rt.coord.RegisterCloser("status-store", shutdown.PhaseBackends, store)
		}
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	rt.stopLoop = cancel
	go func() {
		defer close(rt.loopDone)
		rt.loop.Run(loopCtx)
	}()
	rt.coord.RegisterFunc("loop", shutdown.PhaseLoop, func(ctx context.Context) error {
		rt.stopLoop()
		select {
		case <-rt.loopDone:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	return rt, nil
}

// startRecorder copies every status update seen on the bus into the
// snapshot store. It is a no-op without a store.
func (rt *runtime) startRecorder() error {
	if rt.store == nil {
		return nil
	}
	mon, err := status.NewMonitor(rt.bus)
	if err != nil {
		return err
	}
	mon.Record(rt.store, func(err error) {
		rt.log.Warn("status_record_failed", map[string]interface{}{"error": err.Error()})
	})
	if err := mon.Start(); err != nil {
		return err
	}
	rt.coord.RegisterFunc("status-recorder", shutdown.PhaseLoop, func(context.Context) error {
		return mon.Stop()
	})
	return nil
}

// endpointOptions returns the options every endpoint in this process gets.
func (rt *runtime) endpointOptions(id string) []endpoint.Option {
	opts := []endpoint.Option{
		endpoint.WithLogger(rt.log),
		endpoint.WithTracer(rt.tracer),
	}
	if id != "" {
		opts = append(opts, endpoint.WithID(id))
	}
	if rt.metrics != nil {
		opts = append(opts, endpoint.WithMetrics(rt.metrics))
	}
	if rt.status != nil {
		opts = append(opts, endpoint.WithStatus(rt.status))
	}
	return opts
}

// mountMetrics adds the Prometheus handler to mux when metrics are enabled.
func (rt *runtime) mountMetrics(mux *http.ServeMux) bool {
	if rt.metrics == nil {
		return false
	}
	mux.Handle(rt.cfg.Metrics.Path, rt.metrics.Handler())
	return true
}

// serveHTTP runs srv in the background and registers its shutdown.
func (rt *runtime) serveHTTP(name string, srv *http.Server) {
	rt.coord.RegisterFunc(name, shutdown.PhaseServer, srv.Shutdown)
	go func() {
		rt.log.Info("http_listen", map[string]interface{}{"server": name, "addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			rt.log.Error("http_failed", map[string]interface{}{"server": name, "error": err.Error()})
		}
	}()
}

// shutdown tears everything down and reports handler failures.
func (rt *runtime) shutdown() error {
	err := rt.coord.ShutdownWithTimeout(0)
	if err != nil {
		if res := rt.coord.Result(); res != nil {
			rt.log.Warn("shutdown_incomplete", map[string]interface{}{"failed": res.FailedHandlers()})
		}
	}
	return err
}

func (rt *runtime) shutdownProvider() {
	if rt.provider != nil {
		_ = rt.provider.Shutdown(context.Background())
	}
}
