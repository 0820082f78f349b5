// Package store is the SQLite persistence for Estufa Core.
//
// One set of queries serves two receivers: Store runs each call on the
// database directly, and Tx runs it inside a transaction opened by
// Store.Atomic. Both satisfy the persistence interfaces declared by the
// domain packages (telemetry.Store, device.StatusWriter, alert.Writer,
// link.TopicWriter, ...), so a handler written against those interfaces
// does not know whether it is inside a transaction.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/nerrad567/estufa-core/internal/infrastructure/database"
)

// timeLayout is fixed width so lexical order equals chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// queries holds every statement; q is either the database or a transaction.
type queries struct {
	q database.Querier
}

// Store executes queries directly on the database.
type Store struct {
	queries
	db *database.DB
}

// Tx executes queries inside one transaction.
type Tx struct {
	queries
}

// New creates a Store on an open, migrated database.
func New(db *database.DB) *Store {
	return &Store{queries: queries{q: db}, db: db}
}

// Atomic runs fn in a transaction that commits when fn returns nil.
//
// fn must only use the Tx it receives: the pool has a single connection,
// so calling back into Store from fn blocks forever.
func (s *Store) Atomic(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return fn(&Tx{queries: queries{q: tx}})
	})
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", value, err)
	}
	return t, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// blob maps an empty image to NULL.
func blob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// clamp applies a default and an upper bound to a listing limit.
func clamp(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
