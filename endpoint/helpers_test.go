package endpoint

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/vinayprograms/lifeline/events"
	"github.com/vinayprograms/lifeline/metrics"
	"github.com/vinayprograms/lifeline/scheduler"
	"github.com/vinayprograms/lifeline/transport"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// recorder captures notifications in arrival order.
type recorder struct {
	kinds []events.Kind
}

func (r *recorder) listen(ep Endpoint, kinds ...events.Kind) {
	for _, k := range kinds {
		ep.AddListener(k, func(ev transport.Event) { r.kinds = append(r.kinds, ev.Kind) })
	}
}

func (r *recorder) count(kind events.Kind) int {
	n := 0
	for _, k := range r.kinds {
		if k == kind {
			n++
		}
	}
	return n
}

func heartbeats(frames []transport.Frame) int {
	n := 0
	for _, f := range frames {
		if events.IsHeartbeat(f) {
			n++
		}
	}
	return n
}

func newTestInitiator(t *testing.T, cfg InitiatorConfig, opts ...Option) (*Initiator, *scheduler.Virtual, *[]*transport.MemoryConn) {
	t.Helper()
	v := scheduler.NewVirtual(epoch)
	var conns []*transport.MemoryConn
	ep, err := NewInitiator(transport.NewMemoryFactory(&conns), v, cfg, opts...)
	if err != nil {
		t.Fatalf("NewInitiator error: %v", err)
	}
	return ep, v, &conns
}

func last(conns *[]*transport.MemoryConn) *transport.MemoryConn {
	return (*conns)[len(*conns)-1]
}

// metricValue reads a metric value for a role from the recorder's registry.
func metricValue(t *testing.T, rec *metrics.Recorder, name, role string) float64 {
	t.Helper()
	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather error: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range f.GetMetric() {
			if labelValue(m, "role") != role {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
		return total
	}
	return 0
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}
