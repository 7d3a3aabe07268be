// Package store persists sessions and their traces in SQLite. Rows are keyed
// by site, session start and task start, so saving the same log twice updates
// rows in place instead of duplicating them.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/crimson-sun/plantrace/internal/idgen"
	"github.com/crimson-sun/plantrace/internal/model"
)

// UnknownSite names sessions whose log never announced a site.
const UnknownSite = "unknown"

// Fixed-width so stored times sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNotFound is returned when a session does not exist.
var ErrNotFound = errors.New("not found")

// Store reads and writes sessions and traces.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database whose schema is already applied.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the database at path and wraps it in a Store.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return NewStore(db), nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SessionRow is a stored session.
type SessionRow struct {
	ID     string    `json:"id"`
	Site   string    `json:"site"`
	Type   string    `json:"type"`
	Args   []string  `json:"args,omitempty"`
	Run    string    `json:"run,omitempty"`
	Start  time.Time `json:"start"`
	Finish time.Time `json:"finish"`
}

// Saved reports what a Save wrote.
type Saved struct {
	SessionID string
	Traces    int
}

// Save upserts the session and all its traces in one transaction.
func (s *Store) Save(ctx context.Context, sess model.Session, run string, traces []model.Trace) (Saved, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Saved{}, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	siteID, err := upsertSite(ctx, tx, sess.Site)
	if err != nil {
		return Saved{}, err
	}
	sessionID, err := upsertSession(ctx, tx, siteID, sess, run)
	if err != nil {
		return Saved{}, err
	}
	for _, tr := range traces {
		if err := upsertTrace(ctx, tx, sessionID, tr); err != nil {
			return Saved{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return Saved{}, fmt.Errorf("store: commit: %w", err)
	}
	return Saved{SessionID: sessionID, Traces: len(traces)}, nil
}

func upsertSite(ctx context.Context, tx *sql.Tx, name string) (string, error) {
	if name == "" {
		name = UnknownSite
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO site (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT(name) DO NOTHING`,
		idgen.New(), name, formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("store: upsert site %s: %w", name, err)
	}
	var id string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM site WHERE name = ?`, name).Scan(&id); err != nil {
		return "", fmt.Errorf("store: site %s: %w", name, err)
	}
	return id, nil
}

func upsertSession(ctx context.Context, tx *sql.Tx, siteID string, sess model.Session, run string) (string, error) {
	args, err := encodeJSON(sess.Args)
	if err != nil {
		return "", err
	}
	start := formatTime(sess.Start)
	_, err = tx.ExecContext(ctx, `
INSERT INTO session (id, site_id, start, finish, type, args, run, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(site_id, start) DO UPDATE SET
  finish = excluded.finish, type = excluded.type, args = excluded.args, run = excluded.run, updated_at = excluded.updated_at`,
		idgen.New(), siteID, start, formatTime(sess.Finish), nullString(sess.Type), args, nullString(run), formatTime(time.Now()))
	if err != nil {
		return "", fmt.Errorf("store: upsert session: %w", err)
	}
	var id string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM session WHERE site_id = ? AND start = ?`, siteID, start).Scan(&id); err != nil {
		return "", fmt.Errorf("store: session: %w", err)
	}
	return id, nil
}

func upsertTrace(ctx context.Context, tx *sql.Tx, sessionID string, tr model.Trace) error {
	data, err := encodeJSON(tr)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
INSERT INTO trace (id, session_id, task, start, finish, type, optype, agent, data) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(session_id, task, start) DO UPDATE SET
  finish = excluded.finish, type = excluded.type, optype = excluded.optype, agent = excluded.agent, data = excluded.data`,
		idgen.New(), sessionID, tr.Task, formatTime(tr.Start), formatTime(tr.Finish), tr.Type, string(tr.Optype), nullString(tr.Agent), data)
	if err != nil {
		return fmt.Errorf("store: upsert trace %s: %w", tr.Task, err)
	}
	return nil
}

// Sessions lists stored sessions, newest first. An empty site lists all sites.
func (s *Store) Sessions(ctx context.Context, site string, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT session.id, site.name, session.start, session.finish, session.type, session.args, session.run
FROM session JOIN site ON site.id = session.site_id
WHERE ? = '' OR site.name = ?
ORDER BY session.start DESC LIMIT ?`, site, site, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var row SessionRow
		var start string
		var finish, typ, args, run sql.NullString
		if err := rows.Scan(&row.ID, &row.Site, &start, &finish, &typ, &args, &run); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		row.Start = parseTime(start)
		row.Finish = parseTime(finish.String)
		row.Type = typ.String
		row.Run = run.String
		if args.Valid {
			_ = json.Unmarshal([]byte(args.String), &row.Args)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate sessions: %w", err)
	}
	return out, nil
}

// Traces returns a session's traces ordered by start time.
func (s *Store) Traces(ctx context.Context, sessionID string) ([]model.Trace, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM session WHERE id = ?`, sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: session %s: %w", sessionID, err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM trace WHERE session_id = ? ORDER BY start, task`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("store: list traces: %w", err)
	}
	defer rows.Close()

	var out []model.Trace
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("store: scan trace: %w", err)
		}
		var tr model.Trace
		if err := json.Unmarshal([]byte(data), &tr); err != nil {
			return nil, fmt.Errorf("store: decode trace: %w", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate traces: %w", err)
	}
	return out, nil
}

func encodeJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("store: encode: %w", err)
	}
	return string(b), nil
}

func nullString(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(timeLayout, s)
	return t
}
