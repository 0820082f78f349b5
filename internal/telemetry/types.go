package telemetry

import (
	"context"
	"time"
)

// Reading is one row of periodic greenhouse data for a session.
type Reading struct {
	ID           int64     `json:"id"`
	RecordedAt   time.Time `json:"recorded_at"`
	Temperature  float64   `json:"temperature"`
	AirHumidity  float64   `json:"air_humidity"`
	SoilHumidity float64   `json:"soil_humidity"`
	Image        []byte    `json:"-"`
	HasImage     bool      `json:"has_image"`
	ExhaustOn    bool      `json:"exhaust_on"`
	SessionID    int64     `json:"session_id"`
	CropID       int64     `json:"crop_id"`
}

// Session is a greenhouse bed with the crop growing in it.
type Session struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	CropID int64  `json:"crop_id"`
}

// Store is the persistence the Ingestor needs, scoped to one transaction.
type Store interface {
	// Sessions returns every session ordered by id.
	Sessions(ctx context.Context) ([]Session, error)

	// Session returns ErrSessionNotFound when id does not exist.
	Session(ctx context.Context, id int64) (*Session, error)

	// LatestReading returns nil, nil when the session has no readings.
	LatestReading(ctx context.Context, sessionID int64) (*Reading, error)

	// InsertReading stores r and sets r.ID.
	InsertReading(ctx context.Context, r *Reading) error

	// SetReadingImage attaches an image to an existing row.
	SetReadingImage(ctx context.Context, id int64, image []byte) error
}

// Reader serves recent readings to the API.
type Reader interface {
	// RecentReadings returns the newest readings across all sessions.
	RecentReadings(ctx context.Context, limit int) ([]Reading, error)
}
