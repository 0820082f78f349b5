// Package alert records alerts raised by the greenhouse controllers.
//
// Controllers publish {"mensagem": ..., "nivel": ...} on estufa/alerta. Both
// fields are optional; an absent message becomes "Alerta recebido" and an
// absent level becomes "INFO".
package alert

import (
	"context"
	"fmt"
	"time"
)

// Defaults for absent payload fields.
const (
	DefaultMessage = "Alerta recebido"
	DefaultLevel   = "INFO"
)

// Alert is one stored alert.
type Alert struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Level     string    `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// Writer stores alerts. Implementations may be bound to a transaction.
type Writer interface {
	InsertAlert(ctx context.Context, a *Alert) error
}

// Reader serves recent alerts to the API.
type Reader interface {
	RecentAlerts(ctx context.Context, limit int) ([]Alert, error)
}

// Title formats the alert title for a level.
func Title(level string) string {
	return fmt.Sprintf("Alerta %s na Estufa", level)
}

// Raise builds an alert from optional message and level and stores it.
// A present but empty field is kept as given.
func Raise(ctx context.Context, w Writer, message, level *string, now time.Time) (*Alert, error) {
	msg := DefaultMessage
	if message != nil {
		msg = *message
	}
	lvl := DefaultLevel
	if level != nil {
		lvl = *level
	}

	a := &Alert{
		Title:     Title(lvl),
		Message:   msg,
		Level:     lvl,
		CreatedAt: now.UTC(),
	}
	if err := w.InsertAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("storing alert: %w", err)
	}
	return a, nil
}
