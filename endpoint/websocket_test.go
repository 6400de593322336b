package endpoint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/lifeline/events"
	"github.com/vinayprograms/lifeline/scheduler"
	"github.com/vinayprograms/lifeline/transport"
)

func signal(ch chan struct{}) events.Listener {
	return func(transport.Event) {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func waitFor(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for %s", what)
	}
}

// --- Integration Tests ---

func TestEndToEnd_WebSocket(t *testing.T) {
	loop := scheduler.NewLoop()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go loop.Run(ctx)

	responders := make(chan *Responder, 4)
	upgrader := transport.NewWebSocketUpgrader()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		loop.Do(ctx, func() {
			conn := transport.Accept(ws, loop, transport.DefaultWebSocketConfig())
			resp, err := NewResponder(conn, nil, loop, DefaultResponderConfig())
			if err != nil {
				t.Errorf("NewResponder error: %v", err)
				return
			}
			responders <- resp
		})
	}))
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http")

	cfg := pingConfig(50*time.Millisecond, time.Second)
	cfg.Reconnect.MinDelay = 50 * time.Millisecond
	cfg.Reconnect.MaxDelay = 200 * time.Millisecond

	opened := make(chan struct{}, 4)
	received := make(chan struct{}, 64)
	messages := make(chan string, 4)

	var ep *Initiator
	loop.Do(ctx, func() {
		var err error
		ep, err = NewInitiator(transport.NewDialFactory(url, loop, transport.DefaultWebSocketConfig()), loop, cfg)
		if err != nil {
			t.Errorf("NewInitiator error: %v", err)
			return
		}
		ep.AddListener(events.KindOpen, signal(opened))
		ep.AddListener(events.KindSignalReceived, signal(received))
		ep.AddListener(events.KindMessage, func(ev transport.Event) {
			select {
			case messages <- string(ev.Frame.Data):
			default:
			}
		})
		ep.InitializeConnection()
	})
	if ep == nil {
		t.FailNow()
	}

	waitFor(t, opened, "first open")
	for k := 0; k < 3; k++ {
		waitFor(t, received, "echoed heartbeat")
	}

	// Application frames pass through untouched; the server side does
	// not echo them, so nothing comes back.
	var sendErr error
	loop.Do(ctx, func() { sendErr = ep.Send(transport.Text("payload")) })
	if sendErr != nil {
		t.Fatalf("Send error: %v", sendErr)
	}

	// The server drops the connection; the initiator rebuilds it.
	resp := <-responders
	loop.Do(ctx, func() { resp.Close() })

	waitFor(t, opened, "reopen after server close")
	for len(received) > 0 {
		<-received
	}
	waitFor(t, received, "heartbeat on the new transport")

	select {
	case m := <-messages:
		t.Errorf("unexpected message %q", m)
	default:
	}

	loop.Do(ctx, func() { ep.Close() })
}
