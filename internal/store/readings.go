package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nerrad567/estufa-core/internal/telemetry"
)

// Recent readings limits.
const (
	defaultReadingsLimit = 10
	maxReadingsLimit     = 500
)

// InsertCrop creates a crop. Crops belong to the web tier; the bridge only
// creates them when seeding a standalone database.
func (q queries) InsertCrop(ctx context.Context, name string) (int64, error) {
	res, err := q.q.ExecContext(ctx, "INSERT INTO crops (name) VALUES (?)", name)
	if err != nil {
		return 0, fmt.Errorf("inserting crop: %w", err)
	}
	return res.LastInsertId()
}

// InsertSession creates a session for cropID.
func (q queries) InsertSession(ctx context.Context, name string, cropID int64) (int64, error) {
	res, err := q.q.ExecContext(ctx, "INSERT INTO sessions (name, crop_id) VALUES (?, ?)", name, cropID)
	if err != nil {
		return 0, fmt.Errorf("inserting session: %w", err)
	}
	return res.LastInsertId()
}

// Sessions returns every session ordered by id.
func (q queries) Sessions(ctx context.Context) ([]telemetry.Session, error) {
	rows, err := q.q.QueryContext(ctx, "SELECT id, name, crop_id FROM sessions ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var sessions []telemetry.Session
	for rows.Next() {
		var s telemetry.Session
		if err := rows.Scan(&s.ID, &s.Name, &s.CropID); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// Session returns telemetry.ErrSessionNotFound for an unknown id.
func (q queries) Session(ctx context.Context, id int64) (*telemetry.Session, error) {
	var s telemetry.Session
	err := q.q.QueryRowContext(ctx,
		"SELECT id, name, crop_id FROM sessions WHERE id = ?", id,
	).Scan(&s.ID, &s.Name, &s.CropID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, telemetry.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying session %d: %w", id, err)
	}
	return &s, nil
}

const readingColumns = `id, recorded_at, temperature, air_humidity, soil_humidity,
	image IS NOT NULL, exhaust_on, session_id, crop_id`

func scanReading(row interface{ Scan(...any) error }) (telemetry.Reading, error) {
	var r telemetry.Reading
	var recordedAt string
	if err := row.Scan(&r.ID, &recordedAt, &r.Temperature, &r.AirHumidity, &r.SoilHumidity,
		&r.HasImage, &r.ExhaustOn, &r.SessionID, &r.CropID); err != nil {
		return r, err
	}
	t, err := parseTime(recordedAt)
	if err != nil {
		return r, err
	}
	r.RecordedAt = t
	return r, nil
}

// LatestReading returns nil, nil when the session has no readings. The
// image bytes are not loaded; HasImage reports whether one is attached.
func (q queries) LatestReading(ctx context.Context, sessionID int64) (*telemetry.Reading, error) {
	row := q.q.QueryRowContext(ctx,
		`SELECT `+readingColumns+`
		 FROM periodic_readings
		 WHERE session_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT 1`,
		sessionID,
	)
	r, err := scanReading(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest reading for session %d: %w", sessionID, err)
	}
	return &r, nil
}

// InsertReading stores r and sets r.ID.
func (q queries) InsertReading(ctx context.Context, r *telemetry.Reading) error {
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO periodic_readings
		 (recorded_at, temperature, air_humidity, soil_humidity, image, exhaust_on, session_id, crop_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		formatTime(r.RecordedAt),
		r.Temperature,
		r.AirHumidity,
		r.SoilHumidity,
		blob(r.Image),
		r.ExhaustOn,
		r.SessionID,
		r.CropID,
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	r.ID = id
	r.HasImage = len(r.Image) > 0
	return nil
}

// SetReadingImage attaches image to reading id.
func (q queries) SetReadingImage(ctx context.Context, id int64, image []byte) error {
	res, err := q.q.ExecContext(ctx, "UPDATE periodic_readings SET image = ? WHERE id = ?", blob(image), id)
	if err != nil {
		return fmt.Errorf("updating reading image: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("reading %d not found", id)
	}
	return nil
}

// ReadingImage returns the image attached to reading id, or nil.
func (q queries) ReadingImage(ctx context.Context, id int64) ([]byte, error) {
	var img []byte
	err := q.q.QueryRowContext(ctx, "SELECT image FROM periodic_readings WHERE id = ?", id).Scan(&img)
	if err != nil {
		return nil, fmt.Errorf("querying reading image: %w", err)
	}
	return img, nil
}

// RecentReadings returns the newest readings across all sessions
// (default 10, max 500).
func (q queries) RecentReadings(ctx context.Context, limit int) ([]telemetry.Reading, error) {
	limit = clamp(limit, defaultReadingsLimit, maxReadingsLimit)

	rows, err := q.q.QueryContext(ctx,
		`SELECT `+readingColumns+`
		 FROM periodic_readings
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent readings: %w", err)
	}
	defer rows.Close()

	readings := make([]telemetry.Reading, 0, limit)
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}
		readings = append(readings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}
	return readings, nil
}
