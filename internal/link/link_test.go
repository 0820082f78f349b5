package link

import (
	"context"
	"errors"
	"testing"
	"time"
)

type savedTransition struct {
	snap             Snapshot
	disconnectTopics bool
}

type memStore struct {
	saved  []savedTransition
	topics []TopicHealth
	err    error
}

func (m *memStore) SaveTransition(_ context.Context, s Snapshot, disconnectTopics bool) error {
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, savedTransition{s, disconnectTopics})
	return nil
}

func (m *memStore) TopicHealth(context.Context) ([]TopicHealth, error) {
	return m.topics, m.err
}

type memTopicWriter struct {
	touched map[string]time.Time
}

func (m *memTopicWriter) TouchTopic(_ context.Context, topic string, at time.Time) error {
	if m.touched == nil {
		m.touched = make(map[string]time.Time)
	}
	m.touched[topic] = at
	return nil
}

func TestNewRecorder_StartsDisconnected(t *testing.T) {
	r := NewRecorder(&memStore{}, "broker.example.com", 8883)

	s := r.Status()
	if s.State != StateDisconnected || s.Connected {
		t.Errorf("initial state = %+v, want disconnected", s)
	}
	if s.Broker != "broker.example.com" || s.Port != 8883 {
		t.Errorf("broker = %s:%d", s.Broker, s.Port)
	}
}

func TestTransition(t *testing.T) {
	store := &memStore{}
	r := NewRecorder(store, "b", 8883)
	ctx := context.Background()

	if _, err := r.Transition(ctx, StateConnecting, nil); err != nil {
		t.Fatalf("Transition(connecting) error = %v", err)
	}
	snap, err := r.Transition(ctx, StateConnected, nil)
	if err != nil {
		t.Fatalf("Transition(connected) error = %v", err)
	}
	if !snap.Connected || snap.LastError != "" {
		t.Errorf("connected snapshot = %+v", snap)
	}

	snap, err = r.Transition(ctx, StateDisconnected, errors.New("connection reset by peer"))
	if err != nil {
		t.Fatalf("Transition(disconnected) error = %v", err)
	}
	if snap.Connected || snap.LastError != "connection reset by peer" {
		t.Errorf("disconnected snapshot = %+v", snap)
	}

	if len(store.saved) != 3 {
		t.Fatalf("saved transitions = %d, want 3", len(store.saved))
	}
	wantDisconnect := []bool{false, false, true}
	for i, s := range store.saved {
		if s.disconnectTopics != wantDisconnect[i] {
			t.Errorf("transition %d (%s) disconnectTopics = %v, want %v", i, s.snap.State, s.disconnectTopics, wantDisconnect[i])
		}
	}
}

func TestTransition_PersistFailureKeepsSnapshot(t *testing.T) {
	r := NewRecorder(&memStore{err: errors.New("database is locked")}, "b", 8883)

	_, err := r.Transition(context.Background(), StateConnected, nil)
	if err == nil {
		t.Fatal("Transition() error = nil, want persist failure")
	}
	if r.Status().State != StateConnected {
		t.Errorf("State = %s, want connected despite persist failure", r.Status().State)
	}
}

func TestTouchTopic(t *testing.T) {
	r := NewRecorder(&memStore{}, "b", 8883)
	w := &memTopicWriter{}

	if err := r.TouchTopic(context.Background(), w, "estufa/temperatura"); err != nil {
		t.Fatalf("TouchTopic() error = %v", err)
	}
	if _, ok := w.touched["estufa/temperatura"]; !ok {
		t.Error("topic not touched")
	}
}
