package device

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Class is a greenhouse actuator class, stored in its wire form.
type Class string

// Actuator classes.
const (
	Irrigation  Class = "irrigacao"
	Ventilation Class = "ventilacao"
	Lighting    Class = "iluminacao"
)

// Classes returns every actuator class.
func Classes() []Class {
	return []Class{Irrigation, Ventilation, Lighting}
}

// aliases maps accepted spellings to classes.
var aliases = map[string]Class{
	"irrigacao":   Irrigation,
	"irrigação":   Irrigation,
	"irrigation":  Irrigation,
	"ventilacao":  Ventilation,
	"ventilação":  Ventilation,
	"ventilation": Ventilation,
	"iluminacao":  Lighting,
	"iluminação":  Lighting,
	"lighting":    Lighting,
}

// ParseClass normalises a class name. Both the wire form and the English
// names are accepted, case-insensitively.
func ParseClass(s string) (Class, error) {
	if c, ok := aliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDeviceClass, s)
}

// Valid reports whether c is one of the actuator classes.
func (c Class) Valid() bool {
	switch c {
	case Irrigation, Ventilation, Lighting:
		return true
	}
	return false
}

// QoS is the publish QoS for commands of this class. Irrigation and
// ventilation must arrive exactly once; a repeated lighting command is harmless.
func (c Class) QoS() byte {
	if c == Lighting {
		return 1
	}
	return 2
}

// RequiresSession reports whether commands must name a session.
func (c Class) RequiresSession() bool {
	return c == Irrigation
}

// StatusTopic is where controllers of this class report state.
func (c Class) StatusTopic() string {
	return "estufa/" + string(c) + "/status"
}

// CommandTopic is where manual commands for this class are published.
func (c Class) CommandTopic() string {
	return "estufa/" + string(c) + "/manual"
}

// Status is one reported actuator state.
type Status struct {
	ID         int64     `json:"id"`
	Class      Class     `json:"device_type"`
	Status     string    `json:"status"`
	SessionID  *int64    `json:"session_id,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Command is one manual command that the broker acknowledged.
type Command struct {
	ID        int64     `json:"id"`
	Class     Class     `json:"device_type"`
	Command   string    `json:"command"`
	UserRef   string    `json:"user_ref"`
	SessionID *int64    `json:"session_id,omitempty"`
	Executed  bool      `json:"executed"`
	IssuedAt  time.Time `json:"issued_at"`
}

// StatusFilter narrows ListStatuses. A zero Class lists every class.
type StatusFilter struct {
	Class Class
	Limit int
}

// Listing limits for status queries.
const (
	DefaultStatusLimit = 50
	MaxStatusLimit     = 200
)

// ClampLimit applies the default and maximum listing limits.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultStatusLimit
	}
	if limit > MaxStatusLimit {
		return MaxStatusLimit
	}
	return limit
}

// StatusWriter appends status rows. Implementations may be bound to a
// transaction.
type StatusWriter interface {
	InsertStatus(ctx context.Context, s *Status) error
}

// StatusReader serves status history to the API.
type StatusReader interface {
	// ListStatuses returns rows newest first.
	ListStatuses(ctx context.Context, f StatusFilter) ([]Status, error)

	// CurrentStatuses returns the newest row per (class, session).
	CurrentStatuses(ctx context.Context) ([]Status, error)
}

// CommandStore records acknowledged commands.
type CommandStore interface {
	InsertCommand(ctx context.Context, c *Command) error
}
