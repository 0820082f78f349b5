// Package link records the health of the broker link.
//
// Two views are kept. The overall link state (connecting, connected,
// disconnected, ...) lives in memory for the status endpoint and is
// persisted as a single link_status row. Per-topic health records when each
// subscribed topic last delivered a message, and is flagged disconnected,
// with the error, whenever the link drops.
package link

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the overall link state.
type State string

// Link states.
const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateStopped       State = "stopped"
	StateNotConfigured State = "not_configured"
)

// Snapshot is the current link status.
type Snapshot struct {
	State     State     `json:"state"`
	Connected bool      `json:"connected"`
	Broker    string    `json:"broker"`
	Port      int       `json:"port"`
	LastError string    `json:"last_error,omitempty"`
	Since     time.Time `json:"since"`
}

// TopicHealth is the health row of one topic.
type TopicHealth struct {
	Topic         string     `json:"topic"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty"`
	Connected     bool       `json:"connected"`
	LastError     string     `json:"last_error,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TopicWriter upserts topic health inside a message transaction.
type TopicWriter interface {
	TouchTopic(ctx context.Context, topic string, at time.Time) error
}

// Store persists link transitions and serves topic health.
type Store interface {
	// SaveTransition writes the link_status row and, when disconnectTopics
	// is set, marks every topic row disconnected with the snapshot's error.
	// Both happen atomically.
	SaveTransition(ctx context.Context, s Snapshot, disconnectTopics bool) error

	// TopicHealth returns all topic rows ordered by topic.
	TopicHealth(ctx context.Context) ([]TopicHealth, error)
}

// Recorder keeps the link snapshot and writes health records.
//
// Thread Safety:
//   - Status is safe to call from HTTP handlers while the bridge records.
type Recorder struct {
	store Store
	now   func() time.Time

	mu   sync.RWMutex
	snap Snapshot
}

// NewRecorder creates a Recorder for broker:port, starting disconnected.
func NewRecorder(store Store, broker string, port int) *Recorder {
	r := &Recorder{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	r.snap = Snapshot{
		State:  StateDisconnected,
		Broker: broker,
		Port:   port,
		Since:  r.now(),
	}
	return r
}

// TouchTopic marks topic as healthy: connected, no error, last message now.
// w is the message transaction.
func (r *Recorder) TouchTopic(ctx context.Context, w TopicWriter, topic string) error {
	if err := w.TouchTopic(ctx, topic, r.now()); err != nil {
		return fmt.Errorf("updating health of %s: %w", topic, err)
	}
	return nil
}

// Transition moves the link to state and persists it. cause is recorded as
// the last error; a nil cause clears it. Leaving the connected state for
// disconnected or stopped also flags every topic disconnected.
//
// The in-memory snapshot changes even when persisting fails.
func (r *Recorder) Transition(ctx context.Context, state State, cause error) (Snapshot, error) {
	r.mu.Lock()
	r.snap.State = state
	r.snap.Connected = state == StateConnected
	r.snap.LastError = ""
	if cause != nil {
		r.snap.LastError = cause.Error()
	}
	r.snap.Since = r.now()
	snap := r.snap
	r.mu.Unlock()

	disconnectTopics := state == StateDisconnected || state == StateStopped
	if err := r.store.SaveTransition(ctx, snap, disconnectTopics); err != nil {
		return snap, fmt.Errorf("persisting link state %s: %w", state, err)
	}
	return snap, nil
}

// Status returns the current snapshot.
func (r *Recorder) Status() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Topics returns per-topic health.
func (r *Recorder) Topics(ctx context.Context) ([]TopicHealth, error) {
	topics, err := r.store.TopicHealth(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading topic health: %w", err)
	}
	return topics, nil
}
