// Package status fans endpoint liveness transitions out over a message bus
// and tracks the last known state of every endpoint seen.
package status

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/vinayprograms/lifeline/bus"
)

// Common errors.
var (
	ErrAlreadyStarted = errors.New("monitor already started")
	ErrNotStarted     = errors.New("monitor not started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// SubjectPrefix is the subject prefix for status updates.
const SubjectPrefix = "lifeline.status."

// Transition names a liveness change of one endpoint.
type Transition string

const (
	TransitionOpen      Transition = "open"
	TransitionClosed    Transition = "closed"
	TransitionTimedOut  Transition = "timed_out"
	TransitionRecovered Transition = "recovered"
)

// Alive reports whether the endpoint is considered live after t.
func (t Transition) Alive() bool {
	return t == TransitionOpen || t == TransitionRecovered
}

// Update is one published liveness transition.
type Update struct {
	EndpointID string     `json:"endpoint_id"`
	Role       string     `json:"role"`
	Transition Transition `json:"transition"`
	Timestamp  time.Time  `json:"timestamp"`

	// Close code and reason, set for TransitionClosed.
	Code   int    `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Marshal serializes an update to JSON.
func (u *Update) Marshal() ([]byte, error) {
	return json.Marshal(u)
}

// Unmarshal deserializes an update from JSON.
func Unmarshal(data []byte) (*Update, error) {
	var u Update
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Subject returns the subject for this update.
func (u *Update) Subject() string {
	return SubjectPrefix + u.EndpointID
}

// Publisher writes updates to a bus. A nil *Publisher discards updates.
type Publisher struct {
	bus bus.MessageBus
	now func() time.Time
}

// NewPublisher creates a publisher over b.
func NewPublisher(b bus.MessageBus) *Publisher {
	return &Publisher{bus: b, now: time.Now}
}

// Publish stamps and sends an update. The timestamp is filled in when zero.
func (p *Publisher) Publish(u Update) error {
	if p == nil {
		return nil
	}
	if u.EndpointID == "" {
		return ErrInvalidConfig
	}
	if u.Timestamp.IsZero() {
		u.Timestamp = p.now()
	}
	data, err := u.Marshal()
	if err != nil {
		return err
	}
	return p.bus.Publish(u.Subject(), data)
}
