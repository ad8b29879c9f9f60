package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Registers the "sqlite" driver.

	domain "github.com/oshokin/alarm-coordinator/internal/domain/alarm"
)

// DefaultListLimit is used when List is called without a positive limit.
const DefaultListLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	from_status TEXT NOT NULL,
	to_status   TEXT NOT NULL,
	alarm_id    TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL DEFAULT '',
	event       TEXT NOT NULL DEFAULT '',
	actor       TEXT NOT NULL DEFAULT '',
	at          TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transitions_alarm_id ON transitions(alarm_id);
`

// Store is a sqlite backed transition journal.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the journal at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}

	if err = os.Chmod(path, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = db.Close()
		return nil, fmt.Errorf("chmod journal: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Append records a transition.
func (s *Store) Append(ctx context.Context, t *domain.Transition) error {
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO transitions(from_status, to_status, alarm_id, kind, event, actor, at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(t.From), string(t.To), t.AlarmID, t.Kind, t.Event, t.Actor, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}

	return nil
}

// List returns up to limit transitions, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*domain.Transition, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, from_status, to_status, alarm_id, kind, event, actor, at
FROM transitions
ORDER BY id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var result []*domain.Transition

	for rows.Next() {
		var (
			t          domain.Transition
			from, to   string
			recordedAt string
		)

		if err = rows.Scan(&t.ID, &from, &to, &t.AlarmID, &t.Kind, &t.Event, &t.Actor, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}

		t.From = domain.Status(from)
		t.To = domain.Status(to)

		if t.At, err = time.Parse(time.RFC3339Nano, recordedAt); err != nil {
			return nil, fmt.Errorf("parse transition time: %w", err)
		}

		result = append(result, &t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}

	return result, nil
}
