// Package config loads lifeline settings from a TOML file.
//
// Every section is optional; missing keys keep their defaults. Durations
// are written as Go duration strings ("250ms", "5s").
//
//	[initiator]
//	ping_interval = "5s"
//	ping_timeout = "2s"
//
//	[responder]
//	ping_window_threshold = 1.25
//
//	[reconnect]
//	min_delay = "250ms"
//	max_delay = "10s"      # negative disables reconnection
//
//	[status]
//	enabled = true
//	backend = "nats"
//	[status.nats]
//	url = "nats://localhost:4222"
//
//	[status.snapshot]
//	enabled = true
//	bucket = "lifeline-status"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/vinayprograms/lifeline/bus"
	"github.com/vinayprograms/lifeline/endpoint"
	"github.com/vinayprograms/lifeline/errors"
	"github.com/vinayprograms/lifeline/logging"
	"github.com/vinayprograms/lifeline/reconnect"
	"github.com/vinayprograms/lifeline/shutdown"
	"github.com/vinayprograms/lifeline/status"
	"github.com/vinayprograms/lifeline/telemetry"
	"github.com/vinayprograms/lifeline/transport"
)

// EnvPath names the environment variable that overrides the search path.
const EnvPath = "LIFELINE_CONFIG"

// Status backends.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// File is the decoded configuration file.
type File struct {
	Initiator endpoint.InitiatorConfig  `toml:"initiator"`
	Responder endpoint.ResponderConfig  `toml:"responder"`
	Reconnect reconnect.Config          `toml:"reconnect"`
	WebSocket transport.WebSocketConfig `toml:"websocket"`
	Logging   LoggingConfig             `toml:"logging"`
	Metrics   MetricsConfig             `toml:"metrics"`
	Telemetry telemetry.ProviderConfig  `toml:"telemetry"`
	Status    StatusConfig              `toml:"status"`
	Shutdown  shutdown.Config           `toml:"shutdown"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `toml:"level"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `toml:"enabled"`

	// Path is where the handler is mounted. Default: /metrics
	Path string `toml:"path"`

	// Addr is a separate listen address for dial mode, which has no
	// server of its own. Default: :9090
	Addr string `toml:"addr"`
}

// StatusConfig configures liveness status fan-out.
type StatusConfig struct {
	Enabled bool `toml:"enabled"`

	// Backend is "memory" or "nats". Default: memory
	Backend string `toml:"backend"`

	NATS bus.NATSConfig `toml:"nats"`

	// Snapshot keeps the last transition per endpoint in a JetStream KV
	// bucket so watchers that start late can catch up.
	Snapshot status.KVConfig `toml:"snapshot"`
}

// Default returns the configuration used when no file is found.
func Default() *File {
	return &File{
		Initiator: endpoint.DefaultInitiatorConfig(),
		Responder: endpoint.DefaultResponderConfig(),
		Reconnect: reconnect.DefaultConfig(),
		WebSocket: transport.DefaultWebSocketConfig(),
		Logging:   LoggingConfig{Level: "info"},
		Metrics:   MetricsConfig{Path: "/metrics", Addr: ":9090"},
		Telemetry: telemetry.DefaultProviderConfig(),
		Status: StatusConfig{
			Backend:  BackendMemory,
			NATS:     bus.DefaultNATSConfig(),
			Snapshot: status.DefaultKVConfig(),
		},
		Shutdown: shutdown.DefaultConfig(),
	}
}

// StandardPaths returns the config file locations in order of priority.
func StandardPaths() []string {
	if p := os.Getenv(EnvPath); p != "" {
		return []string{p}
	}

	paths := []string{"lifeline.toml"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "lifeline", "lifeline.toml"))
	}
	return paths
}

// Load loads the first available standard location. With no file present
// it returns the defaults and an empty path.
func Load() (*File, string, error) {
	for _, path := range StandardPaths() {
		if _, err := os.Stat(path); err == nil {
			f, err := LoadFile(path)
			if err != nil {
				return nil, path, err
			}
			return f, path, nil
		}
	}
	return Default(), "", nil
}

// LoadFile decodes path over the defaults and validates the result.
// Unknown keys are rejected so typos do not pass silently.
func LoadFile(path string) (*File, error) {
	f := Default()
	md, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, errors.InvalidConfig(fmt.Errorf("%s: %w", path, err))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, errors.InvalidConfig(fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", ")))
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks every section.
func (f *File) Validate() error {
	if err := f.InitiatorConfig().Validate(); err != nil {
		return err
	}
	if err := f.ResponderConfig().Validate(); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(f.Logging.Level); err != nil {
		return errors.InvalidConfig(err)
	}
	if err := f.Telemetry.Validate(); err != nil {
		return errors.InvalidConfig(err)
	}
	switch f.Status.Backend {
	case "", BackendMemory, BackendNATS:
	default:
		return errors.InvalidConfig(fmt.Errorf("unknown status backend %q", f.Status.Backend))
	}
	if f.Status.Snapshot.Enabled && f.Status.Snapshot.TTL < 0 {
		return errors.InvalidConfig(fmt.Errorf("snapshot ttl must not be negative, got %v", f.Status.Snapshot.TTL))
	}
	if f.Metrics.Enabled && !strings.HasPrefix(f.Metrics.Path, "/") {
		return errors.InvalidConfig(fmt.Errorf("metrics path must start with /, got %q", f.Metrics.Path))
	}
	if f.Shutdown.Timeout < 0 {
		return errors.InvalidConfig(fmt.Errorf("shutdown timeout must not be negative, got %v", f.Shutdown.Timeout))
	}
	return nil
}

// InitiatorConfig returns the initiator settings with the shared
// reconnection bounds applied.
func (f *File) InitiatorConfig() endpoint.InitiatorConfig {
	cfg := f.Initiator
	cfg.Reconnect = f.Reconnect
	return cfg
}

// ResponderConfig returns the responder settings with the shared
// reconnection bounds applied.
func (f *File) ResponderConfig() endpoint.ResponderConfig {
	cfg := f.Responder
	cfg.Reconnect = f.Reconnect
	return cfg
}

// Logger builds the process logger at the configured level.
func (f *File) Logger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(f.Logging.Level)
	if err != nil {
		return nil, errors.InvalidConfig(err)
	}
	l := logging.New()
	l.SetLevel(level)
	return l, nil
}

// Bus connects the configured status backend. It returns nil when status
// fan-out is disabled.
func (f *File) Bus() (bus.MessageBus, error) {
	if !f.Status.Enabled {
		return nil, nil
	}
	if f.Status.Backend == BackendNATS {
		b, err := bus.NewNATSBus(f.Status.NATS)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrCodeNetworkErr, "status bus")
		}
		return b, nil
	}
	return bus.NewMemoryBus(f.Status.NATS.Config), nil
}

// Store opens the snapshot store on b. It returns nil when snapshots are
// disabled. A NATS bus gets a JetStream bucket; any other bus a memory store.
func (f *File) Store(b bus.MessageBus) (status.Store, error) {
	if !f.Status.Enabled || !f.Status.Snapshot.Enabled || b == nil {
		return nil, nil
	}
	nb, ok := b.(*bus.NATSBus)
	if !ok {
		return status.NewMemoryStore(), nil
	}
	s, err := status.NewKVStore(nb.Conn(), f.Status.Snapshot)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrCodeNetworkErr, "status snapshot")
	}
	return s, nil
}
