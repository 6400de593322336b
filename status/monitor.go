package status

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/vinayprograms/lifeline/bus"
)

// Monitor consumes status updates and keeps the last one per endpoint.
// OnDead callbacks fire once per episode: the first closed or timed_out
// update after the endpoint was last seen alive.
type Monitor struct {
	bus bus.MessageBus

	mu       sync.RWMutex
	last     map[string]*Update
	deadCBs  []func(string)
	updCBs   []func(*Update)
	store    Store
	storeErr func(error)
	reported map[string]bool

	running atomic.Bool
	sub     bus.Subscription
	doneCh  chan struct{}
}

// NewMonitor creates a monitor reading from b.
func NewMonitor(b bus.MessageBus) (*Monitor, error) {
	if b == nil {
		return nil, ErrInvalidConfig
	}
	return &Monitor{
		bus:      b,
		last:     make(map[string]*Update),
		reported: make(map[string]bool),
	}, nil
}

// Start subscribes to every endpoint's status subject.
func (m *Monitor) Start() error {
	if m.running.Swap(true) {
		return ErrAlreadyStarted
	}

	sub, err := m.bus.Subscribe(SubjectPrefix + "*")
	if err != nil {
		m.running.Store(false)
		return err
	}
	m.sub = sub
	m.doneCh = make(chan struct{})

	go m.run()
	return nil
}

func (m *Monitor) run() {
	defer close(m.doneCh)
	for msg := range m.sub.Messages() {
		m.processMessage(msg)
	}
}

// processMessage handles an incoming status message.
func (m *Monitor) processMessage(msg *bus.Message) {
	u, err := Unmarshal(msg.Data)
	if err != nil {
		return
	}

	// Extract endpoint ID from subject if not in payload
	if u.EndpointID == "" && strings.HasPrefix(msg.Subject, SubjectPrefix) {
		u.EndpointID = strings.TrimPrefix(msg.Subject, SubjectPrefix)
	}
	m.Receive(u)
}

// Receive applies an update directly, bypassing the bus.
func (m *Monitor) Receive(u *Update) {
	if u == nil || u.EndpointID == "" {
		return
	}

	m.mu.Lock()
	m.last[u.EndpointID] = u
	store, storeErr := m.store, m.storeErr
	updates := make([]func(*Update), len(m.updCBs))
	copy(updates, m.updCBs)
	var callbacks []func(string)
	if u.Transition.Alive() {
		delete(m.reported, u.EndpointID) // alive again, next death is a new episode
	} else if !m.reported[u.EndpointID] {
		m.reported[u.EndpointID] = true
		callbacks = make([]func(string), len(m.deadCBs))
		copy(callbacks, m.deadCBs)
	}
	m.mu.Unlock()

	if store != nil {
		if err := store.Put(u); err != nil && storeErr != nil {
			storeErr(err)
		}
	}
	for _, cb := range updates {
		cb(u)
	}
	for _, cb := range callbacks {
		cb(u.EndpointID)
	}
}

// IsAlive reports whether the endpoint's last update was open or recovered.
// Unknown endpoints are not alive.
func (m *Monitor) IsAlive(endpointID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.last[endpointID]
	return ok && u.Transition.Alive()
}

// Last returns the last update from an endpoint, or nil.
func (m *Monitor) Last(endpointID string) *Update {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last[endpointID]
}

// OnDead registers a callback for when an endpoint stops being live.
func (m *Monitor) OnDead(callback func(endpointID string)) {
	m.mu.Lock()
	m.deadCBs = append(m.deadCBs, callback)
	m.mu.Unlock()
}

// Record writes every received update to s. onErr, if set, receives
// write failures.
func (m *Monitor) Record(s Store, onErr func(error)) {
	m.mu.Lock()
	m.store = s
	m.storeErr = onErr
	m.mu.Unlock()
}

// Seed loads the current contents of s without firing callbacks. Seeded
// endpoints that are not alive count as already reported dead.
func (m *Monitor) Seed(s Store) ([]*Update, error) {
	updates, err := s.List()
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	for _, u := range updates {
		m.last[u.EndpointID] = u
		if !u.Transition.Alive() {
			m.reported[u.EndpointID] = true
		}
	}
	m.mu.Unlock()
	return updates, nil
}

// OnUpdate registers a callback for every update received.
func (m *Monitor) OnUpdate(callback func(u *Update)) {
	m.mu.Lock()
	m.updCBs = append(m.updCBs, callback)
	m.mu.Unlock()
}

// Stop unsubscribes and waits for the reader to drain.
func (m *Monitor) Stop() error {
	if !m.running.Swap(false) {
		return ErrNotStarted
	}
	m.sub.Unsubscribe()
	<-m.doneCh
	return nil
}
