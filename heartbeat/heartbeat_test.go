package heartbeat

import (
	"testing"
	"time"

	"github.com/vinayprograms/lifeline/events"
	"github.com/vinayprograms/lifeline/scheduler"
	"github.com/vinayprograms/lifeline/transport"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	clock *scheduler.Virtual
	mux   *events.Multiplexer
	conn  *transport.MemoryConn
	core  *Core
	seen  []events.Kind
}

func newFixture(t *testing.T, policy Policy) *fixture {
	t.Helper()
	f := &fixture{
		clock: scheduler.NewVirtual(epoch),
		mux:   events.New(),
		conn:  transport.NewMemoryConn(),
	}
	f.core = New(f.mux, f.clock, policy)
	f.mux.Attach(f.conn)
	f.conn.Open()

	for _, k := range []events.Kind{
		events.KindSignalTimeout, events.KindSignalRecovered,
		events.KindSignalSent, events.KindSignalReceived,
	} {
		f.mux.Add(k, func(ev transport.Event) { f.seen = append(f.seen, ev.Kind) })
	}
	return f
}

func (f *fixture) count(kind events.Kind) int {
	n := 0
	for _, k := range f.seen {
		if k == kind {
			n++
		}
	}
	return n
}

func TestCore_SendSignal(t *testing.T) {
	f := newFixture(t, Policy{})

	if !f.core.SendSignal() {
		t.Fatal("SendSignal should succeed on an open transport")
	}
	sent := f.conn.Sent()
	if len(sent) != 1 || !events.IsHeartbeat(sent[0]) {
		t.Fatalf("sent = %v, want one heartbeat frame", sent)
	}
	if f.count(events.KindSignalSent) != 1 {
		t.Errorf("signal-sent = %d, want 1", f.count(events.KindSignalSent))
	}
}

func TestCore_SendSignalWithoutTransportIsNoop(t *testing.T) {
	clock := scheduler.NewVirtual(epoch)
	mux := events.New()
	sentNotifications := 0
	mux.Add(events.KindSignalSent, func(transport.Event) { sentNotifications++ })
	core := New(mux, clock, Policy{})

	if core.SendSignal() {
		t.Error("SendSignal without transport should return false")
	}

	conn := transport.NewMemoryConn()
	mux.Attach(conn) // still connecting
	if core.SendSignal() {
		t.Error("SendSignal on a connecting transport should return false")
	}
	if sentNotifications != 0 || len(conn.Sent()) != 0 {
		t.Error("no-op SendSignal must not transmit or notify")
	}
}

func TestCore_AfterSendHook(t *testing.T) {
	f := newFixture(t, Policy{
		AfterSend: func(c *Core) { c.ArmTimeout(time.Second) },
	})

	f.core.SendSignal()
	if !f.core.State().TimeoutPending {
		t.Fatal("AfterSend should have armed a timeout")
	}

	f.clock.Advance(time.Second)
	if !f.core.TimedOut() {
		t.Error("core should be timed out after deadline")
	}
	if f.count(events.KindSignalTimeout) != 1 {
		t.Errorf("signal-timeout = %d, want 1", f.count(events.KindSignalTimeout))
	}
}

func TestCore_TimeoutFiresOncePerEpisode(t *testing.T) {
	f := newFixture(t, Policy{})

	f.core.ArmTimeout(time.Second)
	f.clock.Advance(time.Second)
	f.core.ArmTimeout(time.Second)
	f.clock.Advance(time.Second)
	f.core.ArmTimeout(time.Second)
	f.clock.Advance(time.Second)

	if got := f.count(events.KindSignalTimeout); got != 1 {
		t.Fatalf("signal-timeout = %d, want 1 while already timed out", got)
	}

	f.conn.Deliver(events.HeartbeatFrame())
	if f.core.TimedOut() {
		t.Fatal("heartbeat should recover the core")
	}
	if got := f.count(events.KindSignalRecovered); got != 1 {
		t.Fatalf("signal-recovered = %d, want 1", got)
	}

	f.core.ArmTimeout(time.Second)
	f.clock.Advance(time.Second)
	if got := f.count(events.KindSignalTimeout); got != 2 {
		t.Errorf("signal-timeout = %d, want 2 after a new episode", got)
	}
}

func TestCore_TimeoutsBetweenRecoveriesAtMostOne(t *testing.T) {
	f := newFixture(t, Policy{
		OnReceive: func(c *Core) { c.ArmTimeout(500 * time.Millisecond) },
	})

	// Irregular arrivals, some far apart.
	gaps := []time.Duration{100, 700, 200, 2000, 50, 1500, 300, 300, 3000, 10}
	for _, g := range gaps {
		f.clock.Advance(g * time.Millisecond)
		f.conn.Deliver(events.HeartbeatFrame())
	}
	f.clock.Advance(5 * time.Second)

	timeouts := 0
	for _, k := range f.seen {
		switch k {
		case events.KindSignalTimeout:
			timeouts++
			if timeouts > 1 {
				t.Fatalf("more than one timeout between recoveries: %v", f.seen)
			}
		case events.KindSignalRecovered:
			timeouts = 0
		}
	}
}

func TestCore_ReceiveOrder(t *testing.T) {
	var order []string
	f := newFixture(t, Policy{
		OnReceive: func(c *Core) { order = append(order, "policy") },
	})
	f.mux.Add(events.KindSignalReceived, func(transport.Event) { order = append(order, "received") })
	f.mux.Add(events.KindSignalRecovered, func(transport.Event) { order = append(order, "recovered") })

	f.core.ArmTimeout(time.Millisecond)
	f.clock.Advance(time.Millisecond)
	f.conn.Deliver(events.HeartbeatFrame())

	want := []string{"policy", "received", "recovered"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestCore_CancelTimeout(t *testing.T) {
	f := newFixture(t, Policy{})

	f.core.CancelTimeout() // idempotent when idle
	f.core.ArmTimeout(time.Second)
	f.core.CancelTimeout()
	f.core.CancelTimeout()
	f.clock.Advance(time.Minute)

	if f.core.TimedOut() {
		t.Error("cancelled timeout fired")
	}
	if f.clock.Pending() != 0 {
		t.Errorf("Pending = %d, want 0", f.clock.Pending())
	}
}

func TestCore_ArmReplacesPending(t *testing.T) {
	f := newFixture(t, Policy{})

	f.core.ArmTimeout(time.Second)
	f.core.ArmTimeout(3 * time.Second)
	if f.clock.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", f.clock.Pending())
	}

	f.clock.Advance(2 * time.Second)
	if f.core.TimedOut() {
		t.Error("replaced timeout fired early")
	}
	f.clock.Advance(time.Second)
	if !f.core.TimedOut() {
		t.Error("replacement timeout did not fire")
	}
}

func TestCore_ResetIsSilent(t *testing.T) {
	f := newFixture(t, Policy{})

	f.core.ArmTimeout(time.Millisecond)
	f.clock.Advance(time.Millisecond)
	f.core.Reset()

	if f.core.TimedOut() {
		t.Error("Reset should clear the flag")
	}
	if f.count(events.KindSignalRecovered) != 0 {
		t.Error("Reset must not emit signal-recovered")
	}
}

func TestCore_RecoveryRestartsWarmup(t *testing.T) {
	f := newFixture(t, Policy{
		OnReceive: func(c *Core) { c.ObserveSignal(c.Now()) },
	})

	for i := 0; i < 4; i++ {
		f.clock.Advance(time.Second)
		f.conn.Deliver(events.HeartbeatFrame())
	}
	if f.core.State().WarmupCount != warmupSignals {
		t.Fatalf("WarmupCount = %d, want %d", f.core.State().WarmupCount, warmupSignals)
	}

	f.core.ArmTimeout(time.Millisecond)
	f.clock.Advance(10 * time.Second)
	f.conn.Deliver(events.HeartbeatFrame())

	st := f.core.State()
	if st.WarmupCount != 1 {
		t.Errorf("WarmupCount = %d, want 1 after recovery", st.WarmupCount)
	}
	if st.SmoothedInterval != time.Second {
		t.Errorf("SmoothedInterval = %v, stale gap must not be folded in", st.SmoothedInterval)
	}
}
