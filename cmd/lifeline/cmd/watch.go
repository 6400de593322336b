package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/lifeline/config"
	"github.com/vinayprograms/lifeline/errors"
	"github.com/vinayprograms/lifeline/status"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print liveness transitions published by other endpoints",
	Long: `Subscribe to the status bus and print every liveness transition.

Requires [status] enabled with the nats backend, since the memory bus
does not cross process boundaries. An endpoint is reported DEAD once per
episode, on the first close or timeout after it was last alive.

With [status.snapshot] enabled the last known transition of every
endpoint is printed first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.Status.Enabled || cfg.Status.Backend != config.BackendNATS {
			return errors.New(errors.ErrCodeInvalidConfig, "watch requires [status] enabled = true and backend = \"nats\"")
		}

		rt, err := newRuntime(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		mon, err := status.NewMonitor(rt.bus)
		if err != nil {
			rt.shutdown()
			return err
		}
		out := cmd.OutOrStdout()
		if rt.store != nil {
			seeded, err := mon.Seed(rt.store)
			if err != nil {
				rt.shutdown()
				return err
			}
			for _, u := range seeded {
				fmt.Fprintln(out, formatUpdate(u))
			}
		}
		watchMonitor(mon, out)
		if err := mon.Start(); err != nil {
			rt.shutdown()
			return err
		}

		<-rt.coord.NotifyContext(cmd.Context()).Done()
		mon.Stop()
		return rt.shutdown()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchMonitor prints every update and each death to out.
func watchMonitor(mon *status.Monitor, out io.Writer) {
	mon.OnUpdate(func(u *status.Update) {
		fmt.Fprintln(out, formatUpdate(u))
	})
	mon.OnDead(func(id string) {
		fmt.Fprintf(out, "DEAD %s\n", id)
	})
}

func formatUpdate(u *status.Update) string {
	line := fmt.Sprintf("%s %-9s %-10s %s", u.Timestamp.Format(time.RFC3339), u.Role, u.Transition, u.EndpointID)
	if u.Code != 0 {
		line += fmt.Sprintf(" code=%d", u.Code)
	}
	if u.Reason != "" {
		line += fmt.Sprintf(" reason=%q", u.Reason)
	}
	return line
}
