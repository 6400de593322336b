package endpoint

import (
	"fmt"
	"time"

	"github.com/vinayprograms/lifeline/errors"
	"github.com/vinayprograms/lifeline/reconnect"
)

// InitiatorConfig configures an Initiator.
type InitiatorConfig struct {
	// PingInterval is the emission period. Zero disables emission.
	// Default: 5s
	PingInterval time.Duration `toml:"ping_interval"`

	// PingTimeout is the reply deadline armed after each emission.
	// Default: 2s
	PingTimeout time.Duration `toml:"ping_timeout"`

	// Reconnect bounds the backoff.
	Reconnect reconnect.Config `toml:"-"`
}

// DefaultInitiatorConfig returns configuration with sensible defaults.
func DefaultInitiatorConfig() InitiatorConfig {
	return InitiatorConfig{
		PingInterval: 5 * time.Second,
		PingTimeout:  2 * time.Second,
		Reconnect:    reconnect.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c InitiatorConfig) Validate() error {
	if err := validateInterval(c.PingInterval, c.PingTimeout); err != nil {
		return err
	}
	if err := c.Reconnect.Validate(); err != nil {
		return errors.InvalidConfig(err)
	}
	return nil
}

func validateInterval(interval, timeout time.Duration) error {
	if interval < 0 {
		return errors.InvalidConfig(fmt.Errorf("ping interval must not be negative, got %v", interval))
	}
	if interval > 0 && timeout <= 0 {
		return errors.InvalidConfig(fmt.Errorf("ping timeout must be positive, got %v", timeout))
	}
	return nil
}

// ResponderConfig configures a Responder.
type ResponderConfig struct {
	// PingWindowThreshold multiplies the smoothed interval to get the
	// deadline for the next heartbeat.
	// Default: 1.25
	PingWindowThreshold float64 `toml:"ping_window_threshold"`

	// Reconnect bounds the backoff. It only applies when the Responder
	// was given a factory.
	Reconnect reconnect.Config `toml:"-"`
}

// DefaultResponderConfig returns configuration with sensible defaults.
func DefaultResponderConfig() ResponderConfig {
	return ResponderConfig{
		PingWindowThreshold: 1.25,
		Reconnect:           reconnect.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c ResponderConfig) Validate() error {
	if c.PingWindowThreshold < 1 {
		return errors.InvalidConfig(fmt.Errorf("ping window threshold must be at least 1, got %v", c.PingWindowThreshold))
	}
	if err := c.Reconnect.Validate(); err != nil {
		return errors.InvalidConfig(err)
	}
	return nil
}
