package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/thalesfsp/hotune/internal/tracking"
)

// SessionRecord is a stored session read back. Integer values come back as
// int64.
type SessionRecord struct {
	ID          string
	ProjectName string
	Workspace   string
	CreatedAt   string
	StartTime   float64
	EndTime     float64
	Ended       bool

	Params  []tracking.Field
	Others  []tracking.Field
	Metrics []tracking.Field
	Tags    []string
}

// Sessions returns every stored session in creation order.
func (s *Store) Sessions(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project, workspace, created_at, start_time, end_time, ended
		 FROM sessions ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}

	var out []SessionRecord

	for rows.Next() {
		var (
			rec        SessionRecord
			start, end sql.NullFloat64
		)

		if err := rows.Scan(&rec.ID, &rec.ProjectName, &rec.Workspace, &rec.CreatedAt, &start, &end, &rec.Ended); err != nil {
			rows.Close()

			return nil, fmt.Errorf("scan session: %w", err)
		}

		rec.StartTime = start.Float64
		rec.EndTime = end.Float64

		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		rows.Close()

		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	rows.Close()

	for i := range out {
		if err := s.loadChildren(ctx, &out[i]); err != nil {
			return nil, err
		}
	}

	return out, nil
}

func (s *Store) loadChildren(ctx context.Context, rec *SessionRecord) error {
	var err error

	rec.Params, err = s.fields(ctx,
		`SELECT name, kind, value FROM session_params WHERE session_id = ? ORDER BY position`, rec.ID)
	if err != nil {
		return fmt.Errorf("load params: %w", err)
	}

	rec.Others, err = s.fields(ctx,
		`SELECT name, kind, value FROM session_others WHERE session_id = ? ORDER BY id`, rec.ID)
	if err != nil {
		return fmt.Errorf("load others: %w", err)
	}

	rec.Metrics, err = s.fields(ctx,
		`SELECT name, 'float', value FROM session_metrics WHERE session_id = ? ORDER BY id`, rec.ID)
	if err != nil {
		return fmt.Errorf("load metrics: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM session_tags WHERE session_id = ? ORDER BY tag`, rec.ID)
	if err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return fmt.Errorf("scan tag: %w", err)
		}

		rec.Tags = append(rec.Tags, tag)
	}

	return rows.Err()
}

func (s *Store) fields(ctx context.Context, query, id string) ([]tracking.Field, error) {
	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tracking.Field

	for rows.Next() {
		var name, kind, text string
		if err := rows.Scan(&name, &kind, &text); err != nil {
			return nil, err
		}

		out = append(out, tracking.Field{Name: name, Value: decodeValue(kind, text)})
	}

	return out, rows.Err()
}
