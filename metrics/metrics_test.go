package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.SignalSent("initiator")
	r.SignalSent("initiator")
	r.SignalReceived("responder")
	r.SignalTimeout("responder")
	r.SignalRecovered("responder")
	r.ReconnectAttempt("initiator", true)
	r.ReconnectAttempt("initiator", false)
	r.ReconnectAttempt("initiator", false)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"sent", testutil.ToFloat64(r.signalsSent.WithLabelValues("initiator")), 2},
		{"received", testutil.ToFloat64(r.signalsReceived.WithLabelValues("responder")), 1},
		{"timeouts", testutil.ToFloat64(r.timeouts.WithLabelValues("responder")), 1},
		{"recoveries", testutil.ToFloat64(r.recoveries.WithLabelValues("responder")), 1},
		{"reconnect ok", testutil.ToFloat64(r.reconnects.WithLabelValues("initiator", "ok")), 1},
		{"reconnect error", testutil.ToFloat64(r.reconnects.WithLabelValues("initiator", "error")), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestRecorder_Gauges(t *testing.T) {
	r := NewRecorder()

	r.ConnectionOpened("responder")
	r.ConnectionOpened("responder")
	r.ConnectionClosed("responder")
	if got := testutil.ToFloat64(r.connected.WithLabelValues("responder")); got != 1 {
		t.Errorf("connected = %v, want 1", got)
	}

	r.SmoothedInterval("responder", 1500*time.Millisecond)
	if got := testutil.ToFloat64(r.smoothedInterval.WithLabelValues("responder")); got != 1.5 {
		t.Errorf("smoothed interval = %v, want 1.5", got)
	}
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	r.SignalSent("initiator")
	r.SignalReceived("initiator")
	r.SignalTimeout("initiator")
	r.SignalRecovered("initiator")
	r.ReconnectAttempt("initiator", false)
	r.ConnectionOpened("initiator")
	r.ConnectionClosed("initiator")
	r.SmoothedInterval("initiator", time.Second)
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.SignalSent("initiator")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `lifeline_signals_sent_total{role="initiator"} 1`) {
		t.Errorf("metrics output missing sent counter:\n%s", body)
	}
}
