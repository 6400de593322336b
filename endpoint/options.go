package endpoint

import (
	"github.com/google/uuid"

	"github.com/vinayprograms/lifeline/logging"
	"github.com/vinayprograms/lifeline/metrics"
	"github.com/vinayprograms/lifeline/status"
	"github.com/vinayprograms/lifeline/telemetry"
)

// Option configures the ambient collaborators of an endpoint.
type Option func(*options)

type options struct {
	id      string
	logger  *logging.Logger
	metrics *metrics.Recorder
	tracer  *telemetry.Tracer
	status  *status.Publisher
}

// WithID sets the endpoint id used in logs, spans and status updates.
// Default: a random UUID.
func WithID(id string) Option {
	return func(o *options) { o.id = id }
}

// WithLogger sets the logger. Default: logging.Nop().
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics records heartbeat and reconnection activity on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(o *options) { o.metrics = r }
}

// WithTracer sets the tracer for connection spans. Default: the global tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithStatus publishes liveness transitions through p.
func WithStatus(p *status.Publisher) Option {
	return func(o *options) { o.status = p }
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}
	if o.tracer == nil {
		o.tracer = telemetry.GetTracer()
	}
	return o
}
