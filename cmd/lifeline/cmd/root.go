// Package cmd implements the lifeline CLI commands.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/lifeline/config"
)

var (
	// Version is set at build time
	Version = "0.1.0"

	// Global flags
	configPath string
	logLevel   string

	// Loaded configuration, set by PersistentPreRunE
	cfg *config.File
)

var rootCmd = &cobra.Command{
	Use:   "lifeline",
	Short: "Heartbeat-supervised WebSocket endpoints",
	Long: `lifeline keeps WebSocket connections honest.

The initiating side emits a heartbeat on a fixed interval and expects a
reply before a deadline. The responding side echoes every heartbeat and
learns the peer's rhythm to detect silence. Both sides reconnect with
exponential backoff when the transport drops.

Configuration is read from --config, $LIFELINE_CONFIG, ./lifeline.toml or
~/.config/lifeline/lifeline.toml, in that order.`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" {
			return nil
		}
		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: search standard paths)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (*config.File, error) {
	var (
		f   *config.File
		err error
	)
	if configPath != "" {
		f, err = config.LoadFile(configPath)
	} else {
		f, _, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel != "" {
		f.Logging.Level = logLevel
		if err := f.Validate(); err != nil {
			return nil, err
		}
	}
	return f, nil
}
