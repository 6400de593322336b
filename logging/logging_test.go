package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	logger.Info("info message")
	output := buf.String()
	if !strings.Contains(output, "INFO") {
		t.Error("log should contain INFO level")
	}
	if !strings.Contains(output, "info message") {
		t.Error("log should contain the message")
	}
}

func TestLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("initiator")
	logger.SetOutput(&buf)

	logger.Info("hello world", map[string]interface{}{"b": 2, "a": 1})

	output := buf.String()
	// Format: LEVEL TIMESTAMP [component] message key=value
	if !strings.HasPrefix(output, "INFO ") {
		t.Errorf("expected line to start with 'INFO ', got: %s", output)
	}
	if !strings.Contains(output, "[initiator]") {
		t.Errorf("expected component [initiator], got: %s", output)
	}
	if !strings.Contains(output, "hello world a=1 b=2") {
		t.Errorf("expected sorted fields, got: %s", output)
	}
}

func TestLogger_WithEndpoint(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithEndpoint("ep-42")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "endpoint=ep-42") {
		t.Errorf("expected endpoint field, got: %s", buf.String())
	}
}

func TestLogger_DerivedDoesNotMutateParent(t *testing.T) {
	parent := New()
	child := parent.WithComponent("child")
	if parent.component != "" {
		t.Error("WithComponent mutated the parent")
	}
	if child.component != "child" {
		t.Error("child lost its component")
	}
}

func TestLogger_ConnectionClosed(t *testing.T) {
	tests := []struct {
		name      string
		expected  bool
		wantLevel string
		wantMsg   string
	}{
		{"deliberate", true, "INFO", "connection_closed"},
		{"unexpected", false, "WARN", "connection_lost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := New()
			logger.SetOutput(&buf)

			logger.ConnectionClosed("initiator", 1006, "", tt.expected)

			output := buf.String()
			if !strings.HasPrefix(output, tt.wantLevel) {
				t.Errorf("expected level %s, got: %s", tt.wantLevel, output)
			}
			if !strings.Contains(output, tt.wantMsg) || !strings.Contains(output, "code=1006") {
				t.Errorf("unexpected output: %s", output)
			}
			if strings.Contains(output, "reason=") {
				t.Errorf("empty reason should be omitted: %s", output)
			}
		})
	}
}

func TestLogger_LifecycleHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.ConnectionOpened("responder")
	logger.SignalTimeout("responder", 1250*time.Millisecond)
	logger.SignalRecovered("responder")
	logger.Signal("responder", "in")
	logger.ReconnectScheduled("initiator", 500*time.Millisecond, 2)
	logger.ReconnectFailed("initiator", errors.New("refused"))
	logger.TransportError("initiator", errors.New("reset"))

	output := buf.String()
	for _, want := range []string{
		"connection_open", "signal_timeout", "window=1.25s", "signal_recovered",
		"direction=in", "delay=500ms", "failures=2", "reconnect_failed error=refused",
		"transport_error error=reset",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output:\n%s", want, output)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"", LevelInfo, false},
		{"debug", LevelDebug, false},
		{" WARN ", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", "", true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNop(t *testing.T) {
	logger := Nop()
	if logger.Enabled(LevelWarn) {
		t.Error("Nop logger should only enable ERROR")
	}
	logger.Error("discarded") // must not panic
}
