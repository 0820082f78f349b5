package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/nerrad567/estufa-core/internal/device"
)

// InsertStatus appends a device status row and sets s.ID.
func (q queries) InsertStatus(ctx context.Context, s *device.Status) error {
	res, err := q.q.ExecContext(ctx,
		"INSERT INTO device_statuses (device_class, status, session_id, recorded_at) VALUES (?, ?, ?, ?)",
		string(s.Class),
		s.Status,
		nullInt64(s.SessionID),
		formatTime(s.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting device status: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	s.ID = id
	return nil
}

func scanStatus(rows *sql.Rows) (device.Status, error) {
	var s device.Status
	var class, recordedAt string
	var session sql.NullInt64
	if err := rows.Scan(&s.ID, &class, &s.Status, &session, &recordedAt); err != nil {
		return s, fmt.Errorf("scanning device status: %w", err)
	}
	t, err := parseTime(recordedAt)
	if err != nil {
		return s, err
	}
	s.Class = device.Class(class)
	s.SessionID = int64Ptr(session)
	s.RecordedAt = t
	return s, nil
}

func collectStatuses(rows *sql.Rows) ([]device.Status, error) {
	defer rows.Close()

	statuses := []device.Status{}
	for rows.Next() {
		s, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device statuses: %w", err)
	}
	return statuses, nil
}

// ListStatuses returns status rows newest first, optionally for one class.
func (q queries) ListStatuses(ctx context.Context, f device.StatusFilter) ([]device.Status, error) {
	var (
		where strings.Builder
		args  []any
	)
	if f.Class != "" {
		where.WriteString("WHERE device_class = ? ")
		args = append(args, string(f.Class))
	}
	args = append(args, device.ClampLimit(f.Limit))

	rows, err := q.q.QueryContext(ctx,
		`SELECT id, device_class, status, session_id, recorded_at
		 FROM device_statuses `+where.String()+`
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying device statuses: %w", err)
	}
	return collectStatuses(rows)
}

// CurrentStatuses returns the newest status per (class, session).
func (q queries) CurrentStatuses(ctx context.Context) ([]device.Status, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT d.id, d.device_class, d.status, d.session_id, d.recorded_at
		 FROM device_statuses d
		 WHERE d.id = (
			SELECT d2.id FROM device_statuses d2
			WHERE d2.device_class = d.device_class AND d2.session_id IS d.session_id
			ORDER BY d2.recorded_at DESC, d2.id DESC
			LIMIT 1
		 )
		 ORDER BY d.device_class, d.session_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying current device statuses: %w", err)
	}
	return collectStatuses(rows)
}

// InsertCommand records an acknowledged command and sets c.ID.
func (q queries) InsertCommand(ctx context.Context, c *device.Command) error {
	res, err := q.q.ExecContext(ctx,
		`INSERT INTO device_commands (device_class, command, user_ref, session_id, executed, issued_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(c.Class),
		c.Command,
		c.UserRef,
		nullInt64(c.SessionID),
		c.Executed,
		formatTime(c.IssuedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting device command: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading inserted id: %w", err)
	}
	c.ID = id
	return nil
}

// RecentCommands returns commands newest first.
func (q queries) RecentCommands(ctx context.Context, limit int) ([]device.Command, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT id, device_class, command, user_ref, session_id, executed, issued_at
		 FROM device_commands
		 ORDER BY issued_at DESC, id DESC
		 LIMIT ?`,
		device.ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying device commands: %w", err)
	}
	defer rows.Close()

	commands := []device.Command{}
	for rows.Next() {
		var c device.Command
		var class, issuedAt string
		var session sql.NullInt64
		if err := rows.Scan(&c.ID, &class, &c.Command, &c.UserRef, &session, &c.Executed, &issuedAt); err != nil {
			return nil, fmt.Errorf("scanning device command: %w", err)
		}
		t, err := parseTime(issuedAt)
		if err != nil {
			return nil, err
		}
		c.Class = device.Class(class)
		c.SessionID = int64Ptr(session)
		c.IssuedAt = t
		commands = append(commands, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device commands: %w", err)
	}
	return commands, nil
}
