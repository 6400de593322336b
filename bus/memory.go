package bus

import (
	"sync"
	"sync/atomic"
)

// MemoryBus delivers within one process. Status fan-out uses it when no
// NATS server is configured, and tests use it everywhere.
//
// Delivery never blocks the publisher: a subscriber whose buffer is full
// misses the message and Dropped is incremented.
type MemoryBus struct {
	bufferSize int
	dropped    atomic.Uint64

	mu     sync.RWMutex
	subs   []*memorySub
	closed bool
}

type memorySub struct {
	bus     *MemoryBus
	pattern string
	ch      chan *Message
	done    bool // guarded by bus.mu
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus(cfg Config) *MemoryBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &MemoryBus{bufferSize: cfg.BufferSize}
}

// Publish delivers data to every subscription whose pattern matches.
func (b *MemoryBus) Publish(subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}

	// The read lock is held across delivery so no channel closes mid-send.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	msg := &Message{Subject: subject, Data: data}
	for _, sub := range b.subs {
		if !MatchSubject(sub.pattern, subject) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			b.dropped.Add(1)
		}
	}
	return nil
}

// Subscribe registers a pattern. See MatchSubject for wildcard rules.
func (b *MemoryBus) Subscribe(subject string) (Subscription, error) {
	if err := ValidateSubject(subject); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{
		bus:     b,
		pattern: subject,
		ch:      make(chan *Message, b.bufferSize),
	}
	b.subs = append(b.subs, sub)
	return sub, nil
}

// Dropped returns how many deliveries were skipped because a subscriber
// was not keeping up.
func (b *MemoryBus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close ends every subscription. Closing twice is a no-op.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.finish()
	}
	b.subs = nil
	return nil
}

// finish closes the channel once. Callers hold bus.mu.
func (s *memorySub) finish() {
	if !s.done {
		s.done = true
		close(s.ch)
	}
}

func (s *memorySub) Messages() <-chan *Message {
	return s.ch
}

func (s *memorySub) Unsubscribe() error {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			break
		}
	}
	s.finish()
	return nil
}
