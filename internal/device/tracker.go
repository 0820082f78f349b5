package device

import (
	"context"
	"fmt"
	"time"
)

// Tracker records actuator status reports.
type Tracker struct {
	now func() time.Time
}

// NewTracker creates a Tracker.
func NewTracker() *Tracker {
	return &Tracker{now: func() time.Time { return time.Now().UTC() }}
}

// Record appends a status row for class. An empty status is ignored and
// returns nil, nil. sessionID is optional and only meaningful for irrigation.
func (t *Tracker) Record(ctx context.Context, w StatusWriter, class Class, status string, sessionID *int64) (*Status, error) {
	if !class.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDeviceClass, class)
	}
	if status == "" {
		return nil, nil
	}

	s := &Status{
		Class:      class,
		Status:     status,
		SessionID:  sessionID,
		RecordedAt: t.now(),
	}
	if err := w.InsertStatus(ctx, s); err != nil {
		return nil, fmt.Errorf("recording %s status: %w", class, err)
	}
	return s, nil
}
