package cmd

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/vinayprograms/lifeline/endpoint"
	"github.com/vinayprograms/lifeline/events"
	"github.com/vinayprograms/lifeline/shutdown"
	"github.com/vinayprograms/lifeline/transport"
)

var (
	serveAddr string
	servePath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept connections and answer heartbeats",
	Long: `Accept WebSocket connections and run a responding endpoint on each.

Every heartbeat is echoed back. Application frames are echoed too, so
serve doubles as a test peer for dial. When metrics are enabled the
Prometheus handler is mounted on the same listener.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context(), cfg, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		if err := rt.startRecorder(); err != nil {
			rt.shutdown()
			return err
		}

		srv := newEchoServer(rt)
		mux := http.NewServeMux()
		mux.Handle(servePath, srv)
		rt.mountMetrics(mux)

		rt.coord.RegisterFunc("responders", shutdown.PhaseEndpoints, srv.closeAll)
		rt.serveHTTP("serve", &http.Server{Addr: serveAddr, Handler: mux})

		<-rt.coord.NotifyContext(cmd.Context()).Done()
		return rt.shutdown()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "Listen address")
	serveCmd.Flags().StringVar(&servePath, "path", "/ws", "WebSocket path")
	rootCmd.AddCommand(serveCmd)
}

// echoServer upgrades requests and attaches a Responder to each socket.
// The responders map is only touched on the runtime loop.
type echoServer struct {
	rt         *runtime
	responders map[string]*endpoint.Responder
}

func newEchoServer(rt *runtime) *echoServer {
	return &echoServer{
		rt:         rt,
		responders: make(map[string]*endpoint.Responder),
	}
}

func (s *echoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := transport.NewWebSocketUpgrader().Upgrade(w, r, nil)
	if err != nil {
		s.rt.log.Warn("upgrade_failed", map[string]interface{}{"remote": r.RemoteAddr, "error": err.Error()})
		return
	}

	err = s.rt.loop.Do(r.Context(), func() {
		conn := transport.Accept(ws, s.rt.loop, s.rt.cfg.WebSocket)
		if err := s.accept(conn, r.RemoteAddr); err != nil {
			s.rt.log.Error("responder_failed", map[string]interface{}{"remote": r.RemoteAddr, "error": err.Error()})
			conn.Close(transport.CloseGoingAway, "responder unavailable")
		}
	})
	if err != nil {
		ws.Close()
	}
}

// accept runs on the loop.
func (s *echoServer) accept(conn transport.Conn, remote string) error {
	resp, err := endpoint.NewResponder(conn, nil, s.rt.loop, s.rt.cfg.ResponderConfig(), s.rt.endpointOptions("")...)
	if err != nil {
		return err
	}
	id := resp.ID()
	s.responders[id] = resp
	s.rt.log.Info("peer_accepted", map[string]interface{}{"remote": remote, "endpoint": id})

	resp.AddListener(events.KindMessage, func(ev transport.Event) {
		if err := resp.Send(ev.Frame); err != nil {
			s.rt.log.Warn("echo_failed", map[string]interface{}{"endpoint": id, "error": err.Error()})
		}
	})
	resp.AddListener(events.KindClose, func(transport.Event) {
		delete(s.responders, id)
	})
	return nil
}

// closeAll closes every live responder with a normal close.
func (s *echoServer) closeAll(ctx context.Context) error {
	return s.rt.loop.Do(ctx, func() {
		for id, resp := range s.responders {
			resp.Close()
			delete(s.responders, id)
		}
	})
}

// count runs on the loop.
func (s *echoServer) count() int {
	return len(s.responders)
}
