package telemetry

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// Logger is the logging surface the Ingestor needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Ingestor merges single-quantity sensor messages into periodic readings.
type Ingestor struct {
	logger Logger
	now    func() time.Time
}

// NewIngestor creates an Ingestor. A nil logger discards output.
func NewIngestor(logger Logger) *Ingestor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Ingestor{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Temperature records an air temperature for every session.
func (i *Ingestor) Temperature(ctx context.Context, s Store, celsius float64) ([]Reading, error) {
	readings, err := i.fanOut(ctx, s, func(r *Reading) { r.Temperature = celsius })
	if err != nil {
		return nil, fmt.Errorf("recording temperature: %w", err)
	}
	i.logger.Debug("temperature recorded", "value", celsius, "sessions", len(readings))
	return readings, nil
}

// AirHumidity records an air humidity for every session.
func (i *Ingestor) AirHumidity(ctx context.Context, s Store, percent float64) ([]Reading, error) {
	readings, err := i.fanOut(ctx, s, func(r *Reading) { r.AirHumidity = percent })
	if err != nil {
		return nil, fmt.Errorf("recording air humidity: %w", err)
	}
	i.logger.Debug("air humidity recorded", "value", percent, "sessions", len(readings))
	return readings, nil
}

// SoilHumidity records the soil humidity of one session's bed.
//
// An unknown session is logged and ignored; it returns no readings and no
// error so the message transaction still commits its health update.
func (i *Ingestor) SoilHumidity(ctx context.Context, s Store, sessionID int64, percent float64) ([]Reading, error) {
	sess, err := s.Session(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		i.logger.Warn("soil humidity for unknown session", "session_id", sessionID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %d: %w", sessionID, err)
	}

	r, err := i.merge(ctx, s, *sess, func(r *Reading) { r.SoilHumidity = percent })
	if err != nil {
		return nil, fmt.Errorf("recording soil humidity: %w", err)
	}
	i.logger.Debug("soil humidity recorded", "session_id", sessionID, "value", percent)
	return []Reading{r}, nil
}

// Image attaches a base64 camera frame to every session.
//
// The frame goes onto each session's latest reading in place. A session
// without readings gets a new zeroed row carrying only the image.
func (i *Ingestor) Image(ctx context.Context, s Store, encoded string) ([]Reading, error) {
	img, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}

	sessions, err := s.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	readings := make([]Reading, 0, len(sessions))
	for _, sess := range sessions {
		latest, err := s.LatestReading(ctx, sess.ID)
		if err != nil {
			return nil, fmt.Errorf("loading latest reading for session %d: %w", sess.ID, err)
		}

		if latest != nil {
			if err := s.SetReadingImage(ctx, latest.ID, img); err != nil {
				return nil, fmt.Errorf("attaching image to reading %d: %w", latest.ID, err)
			}
			latest.Image = img
			latest.HasImage = true
			readings = append(readings, *latest)
			continue
		}

		r := Reading{
			RecordedAt: i.now(),
			Image:      img,
			HasImage:   true,
			SessionID:  sess.ID,
			CropID:     sess.CropID,
		}
		if err := s.InsertReading(ctx, &r); err != nil {
			return nil, fmt.Errorf("inserting image reading for session %d: %w", sess.ID, err)
		}
		readings = append(readings, r)
	}

	i.logger.Debug("camera image recorded", "bytes", len(img), "sessions", len(readings))
	return readings, nil
}

// fanOut applies set to a merged reading for every session.
func (i *Ingestor) fanOut(ctx context.Context, s Store, set func(*Reading)) ([]Reading, error) {
	sessions, err := s.Sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	readings := make([]Reading, 0, len(sessions))
	for _, sess := range sessions {
		r, err := i.merge(ctx, s, sess, set)
		if err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, nil
}

// merge inserts a new reading for sess that copies the latest reading's
// values, then applies set. Without a prior reading every value is zero.
// Images are never carried forward.
func (i *Ingestor) merge(ctx context.Context, s Store, sess Session, set func(*Reading)) (Reading, error) {
	prev, err := s.LatestReading(ctx, sess.ID)
	if err != nil {
		return Reading{}, fmt.Errorf("loading latest reading for session %d: %w", sess.ID, err)
	}

	r := Reading{
		RecordedAt: i.now(),
		SessionID:  sess.ID,
		CropID:     sess.CropID,
	}
	if prev != nil {
		r.Temperature = prev.Temperature
		r.AirHumidity = prev.AirHumidity
		r.SoilHumidity = prev.SoilHumidity
		r.ExhaustOn = prev.ExhaustOn
	}
	set(&r)

	if err := s.InsertReading(ctx, &r); err != nil {
		return Reading{}, fmt.Errorf("inserting reading for session %d: %w", sess.ID, err)
	}
	return r, nil
}
