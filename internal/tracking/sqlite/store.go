// Package sqlite is a local tracking.Sink backed by a SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/thalesfsp/hotune/internal/tracking"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	project     TEXT NOT NULL,
	workspace   TEXT NOT NULL,
	created_at  TEXT NOT NULL,
	start_time  REAL,
	end_time    REAL,
	ended       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS session_params (
	session_id  TEXT NOT NULL,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	value       TEXT NOT NULL,
	PRIMARY KEY (session_id, position),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS session_others (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	value       TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS session_metrics (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id  TEXT NOT NULL,
	name        TEXT NOT NULL,
	value       REAL NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS session_tags (
	session_id  TEXT NOT NULL,
	tag         TEXT NOT NULL,
	PRIMARY KEY (session_id, tag),
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);
`

// Store keeps tracking sessions in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path and runs migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()

		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return nil, fmt.Errorf("migrate: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// OpenSession implements tracking.Sink.
func (s *Store) OpenSession(ctx context.Context, config tracking.SessionConfig) (tracking.Session, error) {
	id := uuid.NewString()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, project, workspace, created_at) VALUES (?, ?, ?, ?)`,
		id, config.ProjectName, config.Workspace, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return &session{db: s.db, id: id}, nil
}

type session struct {
	db *sql.DB
	id string

	mu     sync.Mutex
	params int
	ended  bool
}

func (s *session) exec(ctx context.Context, query string, args ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ended {
		return tracking.ErrSessionFinalized
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("session %s: %w", s.id, err)
	}

	return nil
}

func (s *session) LogParameter(ctx context.Context, name string, value any) error {
	kind, text := encodeValue(value)

	s.mu.Lock()
	position := s.params
	s.params++
	s.mu.Unlock()

	return s.exec(ctx,
		`INSERT INTO session_params (session_id, position, name, kind, value) VALUES (?, ?, ?, ?, ?)`,
		s.id, position, name, kind, text)
}

func (s *session) LogOther(ctx context.Context, name string, value any) error {
	kind, text := encodeValue(value)

	return s.exec(ctx,
		`INSERT INTO session_others (session_id, name, kind, value) VALUES (?, ?, ?, ?)`,
		s.id, name, kind, text)
}

func (s *session) LogMetric(ctx context.Context, name string, value float64) error {
	return s.exec(ctx,
		`INSERT INTO session_metrics (session_id, name, value) VALUES (?, ?, ?)`,
		s.id, name, value)
}

func (s *session) AddTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		err := s.exec(ctx,
			`INSERT OR IGNORE INTO session_tags (session_id, tag) VALUES (?, ?)`,
			s.id, tag)
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *session) SetStartTime(ctx context.Context, epochSeconds float64) error {
	return s.exec(ctx, `UPDATE sessions SET start_time = ? WHERE id = ?`, epochSeconds, s.id)
}

func (s *session) SetEndTime(ctx context.Context, epochSeconds float64) error {
	return s.exec(ctx, `UPDATE sessions SET end_time = ? WHERE id = ?`, epochSeconds, s.id)
}

func (s *session) End(ctx context.Context) error {
	if err := s.exec(ctx, `UPDATE sessions SET ended = 1 WHERE id = ?`, s.id); err != nil {
		return err
	}

	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()

	return nil
}

// encodeValue stores parameter values as text with their Go kind so they
// can be read back typed.
func encodeValue(v any) (kind, text string) {
	switch v := v.(type) {
	case string:
		return "string", v
	case float64:
		return "float", strconv.FormatFloat(v, 'g', -1, 64)
	case int64:
		return "int", strconv.FormatInt(v, 10)
	case int:
		return "int", strconv.Itoa(v)
	default:
		return "text", fmt.Sprint(v)
	}
}

func decodeValue(kind, text string) any {
	switch kind {
	case "float":
		if f, err := strconv.ParseFloat(text, 64); err == nil {
			return f
		}
	case "int":
		if i, err := strconv.ParseInt(text, 10, 64); err == nil {
			return i
		}
	}

	return text
}
