package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/lifeline/endpoint"
	"github.com/vinayprograms/lifeline/events"
	"github.com/vinayprograms/lifeline/shutdown"
	"github.com/vinayprograms/lifeline/transport"
)

var (
	dialID       string
	dialInterval time.Duration
	dialTimeout  time.Duration
)

var dialCmd = &cobra.Command{
	Use:   "dial <url>",
	Short: "Connect to a peer and keep the connection alive",
	Long: `Connect to a WebSocket peer as the initiating endpoint.

Each line read from stdin is sent as a text frame and every frame received
is printed to stdout. Lifecycle notices go to stderr. Lines starting with
a colon are commands:

  :interval <duration>   change the heartbeat interval from the next cycle
  :restart               restart the heartbeat cycle now
  :stop                  cancel the in-flight heartbeat cycle
  :reconnect             replace the transport with a fresh one
  :state                 print the endpoint state

The command exits on SIGINT, SIGTERM or end of input.`,
	Example: `  lifeline dial ws://localhost:8080/ws
  lifeline dial --interval 1s --timeout 500ms ws://peer:8080/ws`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		icfg := cfg.InitiatorConfig()
		if cmd.Flags().Changed("interval") {
			icfg.PingInterval = dialInterval
		}
		if cmd.Flags().Changed("timeout") {
			icfg.PingTimeout = dialTimeout
		}
		if err := icfg.Validate(); err != nil {
			return err
		}

		rt, err := newRuntime(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		if err := rt.startRecorder(); err != nil {
			rt.shutdown()
			return err
		}

		mux := http.NewServeMux()
		if rt.mountMetrics(mux) {
			rt.serveHTTP("metrics", &http.Server{Addr: rt.cfg.Metrics.Addr, Handler: mux})
		}

		d := &dialer{rt: rt, out: cmd.OutOrStdout(), notices: cmd.ErrOrStderr()}
		var startErr error
		if err := rt.loop.Do(cmd.Context(), func() { startErr = d.start(args[0], icfg) }); err != nil {
			rt.shutdown()
			return err
		}
		if startErr != nil {
			rt.shutdown()
			return startErr
		}
		rt.coord.RegisterFunc("initiator", shutdown.PhaseEndpoints, d.close)

		ctx := rt.coord.NotifyContext(cmd.Context())
		input := make(chan struct{})
		go func() {
			defer close(input)
			d.readInput(ctx, cmd.InOrStdin())
		}()

		select {
		case <-ctx.Done():
		case <-input:
		}
		return rt.shutdown()
	},
}

func init() {
	dialCmd.Flags().StringVar(&dialID, "id", "", "Endpoint id (default: random UUID)")
	dialCmd.Flags().DurationVar(&dialInterval, "interval", 0, "Heartbeat interval (overrides config)")
	dialCmd.Flags().DurationVar(&dialTimeout, "timeout", 0, "Heartbeat reply deadline (overrides config)")
	rootCmd.AddCommand(dialCmd)
}

// dialer owns one Initiator. Its methods other than readInput run on the
// runtime loop.
type dialer struct {
	rt      *runtime
	ep      *endpoint.Initiator
	out     io.Writer
	notices io.Writer
}

func (d *dialer) start(url string, icfg endpoint.InitiatorConfig) error {
	factory := transport.NewDialFactory(url, d.rt.loop, d.rt.cfg.WebSocket)
	ep, err := endpoint.NewInitiator(factory, d.rt.loop, icfg, d.rt.endpointOptions(dialID)...)
	if err != nil {
		return err
	}
	d.ep = ep

	ep.AddListener(events.KindMessage, func(ev transport.Event) {
		fmt.Fprintf(d.out, "%s\n", ev.Frame.Data)
	})
	ep.AddListener(events.KindOpen, d.notice("connected to %s", url))
	ep.AddListener(events.KindClose, func(ev transport.Event) {
		fmt.Fprintf(d.notices, "* disconnected (%d %s)\n", ev.Code, ev.Reason)
	})
	ep.AddListener(events.KindSignalTimeout, d.notice("peer silent"))
	ep.AddListener(events.KindSignalRecovered, d.notice("peer recovered"))

	// A factory failure is already scheduled for retry.
	_ = ep.InitializeConnection()
	return nil
}

func (d *dialer) notice(format string, args ...interface{}) events.Listener {
	msg := fmt.Sprintf(format, args...)
	return func(transport.Event) {
		fmt.Fprintf(d.notices, "* %s\n", msg)
	}
}

func (d *dialer) close(ctx context.Context) error {
	var err error
	if doErr := d.rt.loop.Do(ctx, func() { err = d.ep.Close() }); doErr != nil {
		return doErr
	}
	return err
}

// readInput forwards stdin to the loop until EOF or ctx is done.
func (d *dialer) readInput(ctx context.Context, in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if err := d.rt.loop.Do(ctx, func() { d.handleLine(line) }); err != nil {
			return
		}
	}
}

func (d *dialer) handleLine(line string) {
	if !strings.HasPrefix(line, ":") {
		if err := d.ep.Send(transport.Text(line)); err != nil {
			fmt.Fprintf(d.notices, "* send failed: %v\n", err)
		}
		return
	}

	fields := strings.Fields(line[1:])
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "interval":
		if len(fields) != 2 {
			fmt.Fprintln(d.notices, "* usage: :interval <duration>")
			return
		}
		interval, err := time.ParseDuration(fields[1])
		if err == nil {
			err = d.ep.Reconfigure(interval)
		}
		if err != nil {
			fmt.Fprintf(d.notices, "* interval: %v\n", err)
		}
	case "restart":
		d.ep.RestartPingInterval()
	case "stop":
		d.ep.StopPingImmediately()
	case "reconnect":
		if err := d.ep.InitializeConnection(); err != nil {
			fmt.Fprintf(d.notices, "* reconnect: %v\n", err)
		}
	case "state":
		st := d.ep.State()
		fmt.Fprintf(d.notices, "* %s %s connection=%s heartbeat=%+v reconnect_delay=%s pending=%v\n",
			st.Role, st.ID, st.Connection, st.Heartbeat, st.ReconnectDelay, st.ReconnectPending)
	default:
		fmt.Fprintf(d.notices, "* unknown command %q\n", fields[0])
	}
}
