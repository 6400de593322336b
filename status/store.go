package status

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Store errors.
var (
	ErrNotFound   = errors.New("endpoint not found")
	ErrClosed     = errors.New("store closed")
	ErrInvalidKey = errors.New("invalid endpoint id")
)

// Store keeps the last update of every endpoint so a watcher that starts
// late can catch up.
type Store interface {
	// Put replaces the stored update for u.EndpointID.
	Put(u *Update) error

	// Get returns the stored update. Returns ErrNotFound if absent.
	Get(endpointID string) (*Update, error)

	// List returns every stored update ordered by endpoint id.
	List() ([]*Update, error)

	Close() error
}

// validateKey accepts ids usable as JetStream KV keys.
func validateKey(id string) error {
	if id == "" || len(id) > 1024 {
		return ErrInvalidKey
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '=', r == '/', r == '.':
		default:
			return ErrInvalidKey
		}
	}
	if id[0] == '.' || id[len(id)-1] == '.' {
		return ErrInvalidKey
	}
	return nil
}

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu      sync.RWMutex
	updates map[string]*Update
	closed  bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{updates: make(map[string]*Update)}
}

// Put implements Store.
func (s *MemoryStore) Put(u *Update) error {
	if err := validateKey(u.EndpointID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	cp := *u
	s.updates[u.EndpointID] = &cp
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(endpointID string) (*Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	u, ok := s.updates[endpointID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// List implements Store.
func (s *MemoryStore) List() ([]*Update, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	out := make([]*Update, 0, len(s.updates))
	for _, u := range s.updates {
		cp := *u
		out = append(out, &cp)
	}
	sortUpdates(out)
	return out, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// KVConfig configures a JetStream-backed store.
type KVConfig struct {
	Enabled bool `toml:"enabled"`

	// Bucket is the KV bucket name.
	// Default: lifeline-status
	Bucket string `toml:"bucket"`

	// TTL expires entries of endpoints that stopped publishing.
	// Default: 24h
	TTL time.Duration `toml:"ttl"`

	// Timeout bounds each KV operation.
	// Default: 5s
	Timeout time.Duration `toml:"timeout"`
}

// DefaultKVConfig returns configuration with sensible defaults.
func DefaultKVConfig() KVConfig {
	return KVConfig{
		Bucket:  "lifeline-status",
		TTL:     24 * time.Hour,
		Timeout: 5 * time.Second,
	}
}

// KVStore implements Store on a NATS JetStream key-value bucket.
type KVStore struct {
	kv      jetstream.KeyValue
	timeout time.Duration
	closed  atomic.Bool
}

// NewKVStore creates or updates the bucket described by cfg.
func NewKVStore(conn *nats.Conn, cfg KVConfig) (*KVStore, error) {
	if conn == nil {
		return nil, fmt.Errorf("%w: nats connection required", ErrInvalidConfig)
	}
	def := DefaultKVConfig()
	if cfg.Bucket == "" {
		cfg.Bucket = def.Bucket
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "last liveness transition per endpoint",
		TTL:         cfg.TTL,
		History:     1,
	})
	if err != nil {
		return nil, fmt.Errorf("create kv bucket: %w", err)
	}

	return &KVStore{kv: kv, timeout: cfg.Timeout}, nil
}

// Put implements Store.
func (s *KVStore) Put(u *Update) error {
	if err := validateKey(u.EndpointID); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := u.Marshal()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.kv.Put(ctx, u.EndpointID, data); err != nil {
		return fmt.Errorf("kv put: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *KVStore) Get(endpointID string) (*Update, error) {
	if err := validateKey(endpointID); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	entry, err := s.kv.Get(ctx, endpointID)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kv get: %w", err)
	}
	return Unmarshal(entry.Value())
}

// List implements Store. Entries that fail to decode are skipped.
func (s *KVStore) List() ([]*Update, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	lister, err := s.kv.ListKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("kv list keys: %w", err)
	}
	defer lister.Stop()

	var out []*Update
	for key := range lister.Keys() {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, fmt.Errorf("kv get: %w", err)
		}
		u, err := Unmarshal(entry.Value())
		if err != nil {
			continue
		}
		out = append(out, u)
	}
	sortUpdates(out)
	return out, nil
}

// Close implements Store. The connection is owned by the caller.
func (s *KVStore) Close() error {
	s.closed.Store(true)
	return nil
}

func sortUpdates(us []*Update) {
	sort.Slice(us, func(i, j int) bool {
		return us[i].EndpointID < us[j].EndpointID
	})
}
