package bridge

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/estufa-core/internal/alert"
	"github.com/nerrad567/estufa-core/internal/device"
	"github.com/nerrad567/estufa-core/internal/infrastructure/database"
	"github.com/nerrad567/estufa-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/estufa-core/internal/link"
	"github.com/nerrad567/estufa-core/internal/store"
	"github.com/nerrad567/estufa-core/internal/telemetry"
	_ "github.com/nerrad567/estufa-core/migrations"
)

type testBridge struct {
	*Bridge
	db        *database.DB
	store     *store.Store
	transport *fakeTransport
	hub       *fakeHub
	mirror    *fakeMirror
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()

	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "estufa.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	st := store.New(db)
	tr := newFakeTransport()
	hub := newFakeHub()
	mirror := &fakeMirror{}

	b, err := New(Options{
		Transport: tr,
		Store:     st,
		Recorder:  link.NewRecorder(st, "broker", 8883),
		Mirror:    mirror,
		Hub:       hub,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &testBridge{Bridge: b, db: db, store: st, transport: tr, hub: hub, mirror: mirror}
}

// seedSession inserts a session with a fixed id.
func (tb *testBridge) seedSession(t *testing.T, id int64) {
	t.Helper()
	ctx := context.Background()
	if _, err := tb.db.ExecContext(ctx, "INSERT OR IGNORE INTO crops (id, name) VALUES (1, 'alface')"); err != nil {
		t.Fatalf("seeding crop: %v", err)
	}
	if _, err := tb.db.ExecContext(ctx, "INSERT INTO sessions (id, name, crop_id) VALUES (?, ?, 1)", id, "canteiro"); err != nil {
		t.Fatalf("seeding session %d: %v", id, err)
	}
}

func (tb *testBridge) deliver(topic, payload string) {
	tb.handleEvent(context.Background(), mqtt.EventMessage{
		Topic:   topic,
		Payload: []byte(payload),
		At:      time.Now().UTC(),
	})
}

func (tb *testBridge) latest(t *testing.T, sessionID int64) *telemetry.Reading {
	t.Helper()
	r, err := tb.store.LatestReading(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("LatestReading() error = %v", err)
	}
	return r
}

func (tb *testBridge) topicHealth(t *testing.T) []link.TopicHealth {
	t.Helper()
	topics, err := tb.store.TopicHealth(context.Background())
	if err != nil {
		t.Fatalf("TopicHealth() error = %v", err)
	}
	return topics
}

func TestNew_RequiresDependencies(t *testing.T) {
	if _, err := New(Options{}); !errors.Is(err, ErrMissingTransport) {
		t.Errorf("New() without transport error = %v", err)
	}
	if _, err := New(Options{Transport: newFakeTransport()}); !errors.Is(err, ErrMissingStore) {
		t.Errorf("New() without store error = %v", err)
	}
}

func TestBridge_SoilHumidityMergesIntoSession(t *testing.T) {
	tb := newTestBridge(t)
	tb.seedSession(t, 7)

	prior := &telemetry.Reading{
		RecordedAt:   time.Now().UTC().Add(-time.Minute),
		Temperature:  22,
		AirHumidity:  55,
		SoilHumidity: 30,
		SessionID:    7,
		CropID:       1,
	}
	if err := tb.store.InsertReading(context.Background(), prior); err != nil {
		t.Fatalf("InsertReading() error = %v", err)
	}

	tb.deliver("estufa/umidade/solo/7", `{"umidade": 42.0}`)

	got := tb.latest(t, 7)
	if got == nil || got.ID == prior.ID {
		t.Fatalf("latest = %+v, want a new reading", got)
	}
	if got.Temperature != 22 || got.AirHumidity != 55 || got.SoilHumidity != 42 {
		t.Errorf("reading = {%v, %v, %v}, want {22, 55, 42}", got.Temperature, got.AirHumidity, got.SoilHumidity)
	}

	topics := tb.topicHealth(t)
	if len(topics) != 1 || topics[0].Topic != "estufa/umidade/solo/7" || !topics[0].Connected {
		t.Errorf("topic health = %+v", topics)
	}
	if n := len(tb.hub.ofType(EventReadingCreated)); n != 1 {
		t.Errorf("reading broadcasts = %d, want 1", n)
	}
	if tb.mirror.readings != 1 {
		t.Errorf("mirrored readings = %d, want 1", tb.mirror.readings)
	}
}

func TestBridge_SoilHumidityUnknownSession(t *testing.T) {
	tb := newTestBridge(t)

	tb.deliver("estufa/umidade/solo/99", `{"umidade": 42.0}`)

	if r := tb.latest(t, 99); r != nil {
		t.Errorf("reading created for unknown session: %+v", r)
	}
	// The message itself was fine, so its topic is still healthy.
	if topics := tb.topicHealth(t); len(topics) != 1 {
		t.Errorf("topic health = %+v, want one row", topics)
	}
}

func TestBridge_TemperatureFansOut(t *testing.T) {
	tb := newTestBridge(t)
	tb.seedSession(t, 1)
	tb.seedSession(t, 2)

	tb.deliver("estufa/temperatura", `{"temperatura": 24.5}`)

	for _, id := range []int64{1, 2} {
		r := tb.latest(t, id)
		if r == nil {
			t.Fatalf("session %d has no reading", id)
		}
		if r.Temperature != 24.5 || r.AirHumidity != 0 || r.SoilHumidity != 0 {
			t.Errorf("session %d reading = %+v, want temperature only", id, r)
		}
	}
	if n := len(tb.hub.ofType(EventReadingCreated)); n != 2 {
		t.Errorf("reading broadcasts = %d, want 2", n)
	}
}

func TestBridge_Image(t *testing.T) {
	tb := newTestBridge(t)
	tb.seedSession(t, 3)
	img := []byte("jpeg-bytes")

	tb.deliver("estufa/camera/imagem", `{"imagem": "`+base64.StdEncoding.EncodeToString(img)+`"}`)

	r := tb.latest(t, 3)
	if r == nil || !r.HasImage {
		t.Fatalf("latest = %+v, want a reading with image", r)
	}
	stored, err := tb.store.ReadingImage(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("ReadingImage() error = %v", err)
	}
	if string(stored) != string(img) {
		t.Errorf("image = %q, want %q", stored, img)
	}
	if tb.mirror.readings != 0 {
		t.Errorf("image mirrored as a reading: %d writes", tb.mirror.readings)
	}
}

func TestBridge_InvalidImageDoesNotTouchHealth(t *testing.T) {
	tb := newTestBridge(t)
	tb.seedSession(t, 3)

	tb.deliver("estufa/camera/imagem", `{"imagem": "%%% not base64 %%%"}`)

	if r := tb.latest(t, 3); r != nil {
		t.Errorf("reading created from invalid image: %+v", r)
	}
	if topics := tb.topicHealth(t); len(topics) != 0 {
		t.Errorf("topic health touched: %+v", topics)
	}
}

func TestBridge_DeviceStatus(t *testing.T) {
	tb := newTestBridge(t)
	ctx := context.Background()

	tb.deliver("estufa/irrigacao/status", `{"status": "ligado", "sessao_id": 7}`)
	tb.deliver("estufa/irrigacao/status", `{"status": "ligado", "sessao_id": 7}`)
	tb.deliver("estufa/ventilacao/status", `{"status": ""}`)

	statuses, err := tb.store.ListStatuses(ctx, device.StatusFilter{})
	if err != nil {
		t.Fatalf("ListStatuses() error = %v", err)
	}
	// Repeats are kept; the empty status is a no-op.
	if len(statuses) != 2 {
		t.Fatalf("statuses = %+v, want 2 irrigation rows", statuses)
	}
	for _, s := range statuses {
		if s.Class != device.Irrigation || s.SessionID == nil || *s.SessionID != 7 {
			t.Errorf("status = %+v", s)
		}
	}
	if n := len(tb.hub.ofType(EventDeviceStatus)); n != 2 {
		t.Errorf("status broadcasts = %d, want 2", n)
	}
	if tb.mirror.statuses != 2 {
		t.Errorf("mirrored statuses = %d, want 2", tb.mirror.statuses)
	}
	if topics := tb.topicHealth(t); len(topics) != 2 {
		t.Errorf("topic health = %+v, want both status topics", topics)
	}
}

func TestBridge_Alert(t *testing.T) {
	tb := newTestBridge(t)

	tb.deliver("estufa/alerta", `{"mensagem": "Temp alta", "nivel": "CRÍTICO"}`)
	tb.deliver("estufa/alerta", `{}`)

	alerts, err := tb.store.RecentAlerts(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentAlerts() error = %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("alerts = %+v, want 2", alerts)
	}

	var critical, defaulted *alert.Alert
	for i := range alerts {
		if alerts[i].Level == "CRÍTICO" {
			critical = &alerts[i]
		} else {
			defaulted = &alerts[i]
		}
	}
	if critical == nil || !strings.Contains(critical.Title, "CRÍTICO") || !strings.Contains(critical.Message, "Temp alta") {
		t.Errorf("critical alert = %+v", critical)
	}
	if defaulted == nil || defaulted.Message != alert.DefaultMessage || defaulted.Level != alert.DefaultLevel {
		t.Errorf("defaulted alert = %+v", defaulted)
	}
	if n := len(tb.hub.ofType(EventAlertCreated)); n != 2 {
		t.Errorf("alert broadcasts = %d, want 2", n)
	}
}

func TestBridge_DropsWithoutSideEffects(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
	}{
		{"unknown topic without object", "estufa/desconhecido", `oi`},
		{"malformed soil topic without object", "estufa/umidade/solo/abc", `40`},
		{"payload not json", "estufa/temperatura", `not json`},
		{"payload not an object", "estufa/temperatura", `[1, 2]`},
		{"missing field", "estufa/umidade/ar", `{"temperatura": 20}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t)
			tb.seedSession(t, 1)

			tb.deliver(tt.topic, tt.payload)

			if r := tb.latest(t, 1); r != nil {
				t.Errorf("reading created: %+v", r)
			}
			if topics := tb.topicHealth(t); len(topics) != 0 {
				t.Errorf("topic health touched: %+v", topics)
			}
			if n := len(tb.hub.ofType(EventReadingCreated)); n != 0 {
				t.Errorf("broadcasts = %d, want 0", n)
			}
		})
	}
}

func TestBridge_UnroutedTopicTouchesHealth(t *testing.T) {
	tests := []struct {
		name  string
		topic string
	}{
		{"unknown topic", "estufa/desconhecido"},
		{"malformed soil topic", "estufa/umidade/solo/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tb := newTestBridge(t)
			tb.seedSession(t, 1)

			tb.deliver(tt.topic, `{"umidade": 40}`)

			if r := tb.latest(t, 1); r != nil {
				t.Errorf("reading created: %+v", r)
			}
			topics := tb.topicHealth(t)
			if len(topics) != 1 || topics[0].Topic != tt.topic || !topics[0].Connected {
				t.Errorf("topic health = %+v, want one connected row for %s", topics, tt.topic)
			}
			if n := len(tb.hub.ofType(EventReadingCreated)); n != 0 {
				t.Errorf("broadcasts = %d, want 0", n)
			}
		})
	}
}

func TestBridge_PersistFailureRollsBackAndContinues(t *testing.T) {
	tb := newTestBridge(t)
	tb.seedSession(t, 1)

	if _, err := tb.db.ExecContext(context.Background(), `
		CREATE TRIGGER reject_hot BEFORE INSERT ON periodic_readings
		WHEN NEW.temperature > 90
		BEGIN SELECT RAISE(ABORT, 'sensor fault'); END`); err != nil {
		t.Fatalf("creating trigger: %v", err)
	}

	tb.deliver("estufa/temperatura", `{"temperatura": 99}`)

	if r := tb.latest(t, 1); r != nil {
		t.Fatalf("reading survived rollback: %+v", r)
	}
	if topics := tb.topicHealth(t); len(topics) != 0 {
		t.Fatalf("topic health survived rollback: %+v", topics)
	}

	tb.deliver("estufa/temperatura", `{"temperatura": 21}`)

	if r := tb.latest(t, 1); r == nil || r.Temperature != 21 {
		t.Errorf("latest = %+v, want the next message stored", r)
	}
}

func TestBridge_DisconnectEvents(t *testing.T) {
	tb := newTestBridge(t)
	ctx := context.Background()

	tb.handleEvent(ctx, mqtt.EventDisconnected{UserInitiated: true})
	if n := len(tb.supervisor.lost); n != 0 {
		t.Errorf("user-initiated disconnect scheduled a reconnect (%d pending)", n)
	}

	tb.handleEvent(ctx, mqtt.EventDisconnected{Err: errors.New("connection reset")})
	if n := len(tb.supervisor.lost); n != 1 {
		t.Errorf("unexpected disconnect pending = %d, want 1", n)
	}
}

func TestBridge_Run(t *testing.T) {
	tb := newTestBridge(t)
	tb.seedSession(t, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tb.Run(ctx) }()

	awaitConnect(t, tb.transport)
	tb.transport.events <- mqtt.EventMessage{Topic: "estufa/umidade/ar", Payload: []byte(`{"umidade_ar": 61}`)}

	deadline := time.After(5 * time.Second)
	for len(tb.hub.ofType(EventReadingCreated)) == 0 {
		select {
		case <-tb.hub.sent:
		case <-deadline:
			t.Fatal("timed out waiting for reading broadcast")
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return")
	}

	if !tb.transport.isClosed() {
		t.Error("transport not closed on shutdown")
	}
	if r := tb.latest(t, 1); r == nil || r.AirHumidity != 61 {
		t.Errorf("latest = %+v, want air humidity 61", r)
	}
	if state := tb.Recorder().Status().State; state != link.StateStopped {
		t.Errorf("link state = %s, want stopped", state)
	}
	if len(tb.hub.ofType(EventLinkState)) == 0 {
		t.Error("no link state broadcasts")
	}
}
