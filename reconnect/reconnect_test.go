package reconnect

import (
	"testing"
	"time"

	"github.com/vinayprograms/lifeline/scheduler"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{MinDelay: 250 * time.Millisecond, MaxDelay: 10 * time.Second}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"default", DefaultConfig(), false},
		{"disabled ignores min", Config{MinDelay: 0, MaxDelay: -1}, false},
		{"zero min", Config{MinDelay: 0, MaxDelay: time.Second}, true},
		{"min above max", Config{MinDelay: 2 * time.Second, MaxDelay: time.Second}, true},
		{"min equals max", Config{MinDelay: time.Second, MaxDelay: time.Second}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestController_DelayAfterFailures(t *testing.T) {
	for n := 0; n <= 10; n++ {
		clock := scheduler.NewVirtual(epoch)
		c := New(clock, testConfig(), func() {})
		for i := 0; i < n; i++ {
			c.OnClose()
		}

		want := 250 * time.Millisecond * time.Duration(1<<n)
		if want > 10*time.Second {
			want = 10 * time.Second
		}
		if got := c.CurrentDelay(); got != want {
			t.Errorf("after %d failures CurrentDelay = %v, want %v", n, got, want)
		}

		c.OnOpen()
		if got := c.CurrentDelay(); got != 250*time.Millisecond {
			t.Errorf("after open CurrentDelay = %v, want 250ms", got)
		}
	}
}

func TestController_SchedulesAttemptAfterDelay(t *testing.T) {
	clock := scheduler.NewVirtual(epoch)
	attempts := 0
	c := New(clock, testConfig(), func() { attempts++ })

	delay, ok := c.OnClose()
	if !ok || delay != 250*time.Millisecond {
		t.Fatalf("OnClose = %v, %v; want 250ms, true", delay, ok)
	}
	if !c.Pending() {
		t.Fatal("attempt should be pending")
	}

	clock.Advance(249 * time.Millisecond)
	if attempts != 0 {
		t.Fatal("attempt fired early")
	}
	clock.Advance(time.Millisecond)
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
	if c.Pending() {
		t.Error("no attempt should be pending after firing")
	}

	// The attempt failed: next close waits twice as long.
	delay, _ = c.OnClose()
	if delay != 500*time.Millisecond {
		t.Errorf("second delay = %v, want 500ms", delay)
	}
}

func TestController_AtMostOnePendingAttempt(t *testing.T) {
	clock := scheduler.NewVirtual(epoch)
	attempts := 0
	c := New(clock, testConfig(), func() { attempts++ })

	c.OnClose()
	c.OnClose()
	if clock.Pending() != 1 {
		t.Fatalf("Pending = %d, want 1", clock.Pending())
	}
	clock.Advance(time.Minute)
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestController_OpenCancelsPendingAttempt(t *testing.T) {
	clock := scheduler.NewVirtual(epoch)
	attempts := 0
	c := New(clock, testConfig(), func() { attempts++ })

	c.OnClose()
	c.OnOpen()
	clock.Advance(time.Minute)

	if attempts != 0 {
		t.Errorf("attempts = %d, want 0", attempts)
	}
	if c.Failures() != 0 {
		t.Errorf("Failures = %d, want 0", c.Failures())
	}
}

func TestController_Disabled(t *testing.T) {
	clock := scheduler.NewVirtual(epoch)
	attempts := 0
	c := New(clock, Config{MinDelay: 250 * time.Millisecond, MaxDelay: -1}, func() { attempts++ })

	for i := 0; i < 5; i++ {
		if _, ok := c.OnClose(); ok {
			t.Fatal("OnClose should not schedule when disabled")
		}
	}
	clock.Advance(time.Hour)

	if attempts != 0 || clock.Pending() != 0 {
		t.Errorf("attempts = %d, pending = %d; want 0, 0", attempts, clock.Pending())
	}
}

func TestController_Stop(t *testing.T) {
	clock := scheduler.NewVirtual(epoch)
	attempts := 0
	c := New(clock, testConfig(), func() { attempts++ })

	c.OnClose()
	c.OnClose()
	c.OnClose()
	c.Stop()
	clock.Advance(time.Minute)

	if attempts != 0 {
		t.Errorf("attempts = %d, want 0", attempts)
	}
	if c.CurrentDelay() != 250*time.Millisecond {
		t.Errorf("CurrentDelay = %v, want 250ms", c.CurrentDelay())
	}
}

func TestNextDelay(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		in, want time.Duration
	}{
		{250 * time.Millisecond, 500 * time.Millisecond},
		{4 * time.Second, 8 * time.Second},
		{8 * time.Second, 10 * time.Second},
		{10 * time.Second, 10 * time.Second},
		{0, 250 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := NextDelay(cfg, tt.in); got != tt.want {
			t.Errorf("NextDelay(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
