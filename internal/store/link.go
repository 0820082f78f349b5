package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/estufa-core/internal/link"
)

// TouchTopic marks topic connected with a fresh last message time.
func (q queries) TouchTopic(ctx context.Context, topic string, at time.Time) error {
	ts := formatTime(at)
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO link_topic_health (topic, last_message_at, connected, last_error, updated_at)
		 VALUES (?, ?, 1, NULL, ?)
		 ON CONFLICT(topic) DO UPDATE SET
			last_message_at = excluded.last_message_at,
			connected = 1,
			last_error = NULL,
			updated_at = excluded.updated_at`,
		topic, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("upserting topic health: %w", err)
	}
	return nil
}

// TopicHealth returns every topic row ordered by topic.
func (q queries) TopicHealth(ctx context.Context) ([]link.TopicHealth, error) {
	rows, err := q.q.QueryContext(ctx,
		`SELECT topic, last_message_at, connected, last_error, updated_at
		 FROM link_topic_health
		 ORDER BY topic`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying topic health: %w", err)
	}
	defer rows.Close()

	topics := []link.TopicHealth{}
	for rows.Next() {
		var h link.TopicHealth
		var lastMessage, lastError sql.NullString
		var updatedAt string
		if err := rows.Scan(&h.Topic, &lastMessage, &h.Connected, &lastError, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning topic health: %w", err)
		}
		if lastMessage.Valid {
			t, err := parseTime(lastMessage.String)
			if err != nil {
				return nil, err
			}
			h.LastMessageAt = &t
		}
		h.LastError = lastError.String
		t, err := parseTime(updatedAt)
		if err != nil {
			return nil, err
		}
		h.UpdatedAt = t
		topics = append(topics, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating topic health: %w", err)
	}
	return topics, nil
}

// saveLinkStatus upserts the single link_status row.
func (q queries) saveLinkStatus(ctx context.Context, s link.Snapshot) error {
	_, err := q.q.ExecContext(ctx,
		`INSERT INTO link_status (id, state, connected, last_error, changed_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			connected = excluded.connected,
			last_error = excluded.last_error,
			changed_at = excluded.changed_at`,
		string(s.State), s.Connected, nullString(s.LastError), formatTime(s.Since),
	)
	if err != nil {
		return fmt.Errorf("upserting link status: %w", err)
	}
	return nil
}

// disconnectTopics flags every topic row disconnected with lastError.
func (q queries) disconnectTopics(ctx context.Context, lastError string, at time.Time) error {
	_, err := q.q.ExecContext(ctx,
		"UPDATE link_topic_health SET connected = 0, last_error = ?, updated_at = ?",
		nullString(lastError), formatTime(at),
	)
	if err != nil {
		return fmt.Errorf("marking topics disconnected: %w", err)
	}
	return nil
}

// LinkStatus returns the persisted link row, or nil before the first transition.
func (q queries) LinkStatus(ctx context.Context) (*link.Snapshot, error) {
	var s link.Snapshot
	var state, changedAt string
	var lastError sql.NullString
	err := q.q.QueryRowContext(ctx,
		"SELECT state, connected, last_error, changed_at FROM link_status WHERE id = 1",
	).Scan(&state, &s.Connected, &lastError, &changedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying link status: %w", err)
	}
	t, err := parseTime(changedAt)
	if err != nil {
		return nil, err
	}
	s.State = link.State(state)
	s.LastError = lastError.String
	s.Since = t
	return &s, nil
}

// SaveTransition persists a link transition atomically.
func (s *Store) SaveTransition(ctx context.Context, snap link.Snapshot, disconnectTopics bool) error {
	return s.Atomic(ctx, func(tx *Tx) error {
		if err := tx.saveLinkStatus(ctx, snap); err != nil {
			return err
		}
		if disconnectTopics {
			return tx.disconnectTopics(ctx, snap.LastError, snap.Since)
		}
		return nil
	})
}
