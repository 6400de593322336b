// Package logging provides leveled console logging for endpoints.
// Connection lifecycle transitions are logged at INFO/WARN; per-frame
// heartbeat traffic only at DEBUG.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel converts a case-insensitive level name. Empty means INFO.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return LevelInfo, nil
	}
	level := Level(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelPriority[level]; !ok {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// Logger writes one line per entry: LEVEL TIMESTAMP [component] message key=value ...
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	endpoint  string
}

// New creates a Logger writing INFO and above to stdout.
func New() *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	l := New()
	l.output = io.Discard
	l.minLevel = LevelError
	return l
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	c := *l
	c.component = component
	return &c
}

// WithEndpoint returns a new logger tagging every entry with an endpoint id.
func (l *Logger) WithEndpoint(id string) *Logger {
	c := *l
	c.endpoint = id
	return &c
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return levelPriority[level] >= levelPriority[l.minLevel]
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats fields as key=value pairs in key order.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if !l.Enabled(level) {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	merged := make(map[string]interface{})
	if len(fields) > 0 && fields[0] != nil {
		for k, v := range fields[0] {
			merged[k] = v
		}
	}
	if l.endpoint != "" {
		merged["endpoint"] = l.endpoint
	}
	fieldStr := formatFields(merged)

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Connection lifecycle ---

// ConnectionOpened logs a transport reaching the open state.
func (l *Logger) ConnectionOpened(role string) {
	l.Info("connection_open", map[string]interface{}{
		"role": role,
	})
}

// ConnectionClosed logs a transport close. Deliberate closes log at INFO,
// unexpected ones at WARN.
func (l *Logger) ConnectionClosed(role string, code int, reason string, expected bool) {
	fields := map[string]interface{}{
		"role": role,
		"code": code,
	}
	if reason != "" {
		fields["reason"] = reason
	}
	if expected {
		l.Info("connection_closed", fields)
	} else {
		l.Warn("connection_lost", fields)
	}
}

// TransportError logs an error reported by the transport.
func (l *Logger) TransportError(role string, err error) {
	l.Warn("transport_error", map[string]interface{}{
		"role":  role,
		"error": err.Error(),
	})
}

// SignalTimeout logs the peer being declared dead.
func (l *Logger) SignalTimeout(role string, window time.Duration) {
	l.Warn("signal_timeout", map[string]interface{}{
		"role":   role,
		"window": window.String(),
	})
}

// SignalRecovered logs the peer coming back after a timeout.
func (l *Logger) SignalRecovered(role string) {
	l.Info("signal_recovered", map[string]interface{}{
		"role": role,
	})
}

// Signal logs heartbeat traffic (DEBUG only).
func (l *Logger) Signal(role, direction string) {
	l.Debug("signal", map[string]interface{}{
		"role":      role,
		"direction": direction,
	})
}

// ReconnectScheduled logs a pending reconnection attempt.
func (l *Logger) ReconnectScheduled(role string, delay time.Duration, failures int) {
	l.Info("reconnect_scheduled", map[string]interface{}{
		"role":     role,
		"delay":    delay.String(),
		"failures": failures,
	})
}

// ReconnectFailed logs a transport factory failure.
func (l *Logger) ReconnectFailed(role string, err error) {
	l.Warn("reconnect_failed", map[string]interface{}{
		"role":  role,
		"error": err.Error(),
	})
}
