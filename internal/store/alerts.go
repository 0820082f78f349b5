package store

import (
	"context"
	"fmt"

	"github.com/nerrad567/estufa-core/internal/alert"
)

const (
	defaultAlertsLimit = 50
	maxAlertsLimit     = 200
)

// InsertAlert stores a and sets a.ID.
func (q queries) InsertAlert(ctx context.Context, a *alert.Alert) error {
	res, err := q.q.ExecContext(ctx,
		"INSERT INTO alerts (title, message, level, created_at) VALUES (?, ?, ?, ?)",
		a.Title, a.Message, a.Level, formatTime(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	a.ID = id
	return nil
}

// RecentAlerts returns alerts newest first (default 50, max 200).
func (q queries) RecentAlerts(ctx context.Context, limit int) ([]alert.Alert, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT id, title, message, level, created_at
		 FROM alerts
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		clamp(limit, defaultAlertsLimit, maxAlertsLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying alerts: %w", err)
	}
	defer rows.Close()

	alerts := []alert.Alert{}
	for rows.Next() {
		var a alert.Alert
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Title, &a.Message, &a.Level, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		t, err := parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		a.CreatedAt = t
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}
	return alerts, nil
}
