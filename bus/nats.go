package bus

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSConfig configures the NATS-backed bus.
type NATSConfig struct {
	Config

	// URL is the server URL.
	// Default: nats://127.0.0.1:4222
	URL string `toml:"url"`

	// Name identifies this client in server monitoring.
	// Default: lifeline
	Name string `toml:"name"`

	Token    string `toml:"token"`
	User     string `toml:"user"`
	Password string `toml:"password"`

	// ReconnectWait is the pause between client reconnects. The NATS client
	// reconnects on its own; status updates published while it is away are
	// buffered by the client up to its reconnect buffer.
	ReconnectWait time.Duration `toml:"reconnect_wait"`

	// MaxReconnects bounds client reconnects. -1 is unlimited.
	MaxReconnects int `toml:"max_reconnects"`

	ConnectTimeout time.Duration `toml:"connect_timeout"`
}

// DefaultNATSConfig returns configuration with sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		Config:         DefaultConfig(),
		URL:            nats.DefaultURL,
		Name:           "lifeline",
		ReconnectWait:  2 * time.Second,
		MaxReconnects:  -1,
		ConnectTimeout: 5 * time.Second,
	}
}

func (cfg NATSConfig) options() []nats.Option {
	opts := []nats.Option{
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.Timeout(cfg.ConnectTimeout),
	}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	switch {
	case cfg.Token != "":
		opts = append(opts, nats.Token(cfg.Token))
	case cfg.User != "":
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}
	return opts
}

// NATSBus carries status between processes through a NATS server.
// Wildcard matching is done by the server.
type NATSBus struct {
	conn       *nats.Conn
	bufferSize int
	dropped    atomic.Uint64

	mu   sync.Mutex
	subs map[*natsSubscription]struct{}
}

// NewNATSBus connects to the configured server.
func NewNATSBus(cfg NATSConfig) (*NATSBus, error) {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}

	conn, err := nats.Connect(cfg.URL, cfg.options()...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", cfg.URL, err)
	}
	return &NATSBus{
		conn:       conn,
		bufferSize: cfg.BufferSize,
		subs:       make(map[*natsSubscription]struct{}),
	}, nil
}

// Publish hands data to the client. It does not wait for the server.
func (b *NATSBus) Publish(subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	if b.conn.IsClosed() {
		return ErrClosed
	}
	if err := b.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Subscribe registers subject with the server.
func (b *NATSBus) Subscribe(subject string) (Subscription, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}
	if b.conn.IsClosed() {
		return nil, ErrClosed
	}

	s := &natsSubscription{
		bus: b,
		ch:  make(chan *Message, b.bufferSize),
	}
	sub, err := b.conn.Subscribe(subject, func(m *nats.Msg) {
		s.deliver(&Message{Subject: m.Subject, Data: m.Data})
	})
	if err != nil {
		return nil, fmt.Errorf("nats subscribe: %w", err)
	}
	s.sub = sub

	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	return s, nil
}

// Dropped returns how many messages were discarded because a subscriber
// was not keeping up.
func (b *NATSBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription and closes the connection.
func (b *NATSBus) Close() error {
	b.mu.Lock()
	subs := make([]*natsSubscription, 0, len(b.subs))
	for s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	b.conn.Close()
	return nil
}

// Conn returns the underlying connection. The status snapshot store
// opens JetStream on it.
func (b *NATSBus) Conn() *nats.Conn {
	return b.conn
}

type natsSubscription struct {
	bus  *NATSBus
	sub  *nats.Subscription
	ch   chan *Message
	once sync.Once

	mu   sync.Mutex
	done bool
}

// deliver runs on the NATS client's dispatch goroutine.
func (s *natsSubscription) deliver(msg *Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	select {
	case s.ch <- msg:
	default:
		s.bus.dropped.Add(1)
	}
}

func (s *natsSubscription) Messages() <-chan *Message {
	return s.ch
}

// Unsubscribe closes the channel once no handler can still be running.
func (s *natsSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		if !s.bus.conn.IsClosed() {
			err = s.sub.Unsubscribe()
		}
		s.mu.Lock()
		s.done = true
		close(s.ch)
		s.mu.Unlock()

		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
	return err
}
