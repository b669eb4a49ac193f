package recorder

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"bodytrack/pkg/engine"
)

//go:embed schema.sql
var schemaSQL string

// Bump when schema.sql changes; older databases must be recreated.
const schemaVersion = 1

var (
	ErrSchemaMismatch = errors.New("schema version mismatch")
	ErrNoSession      = errors.New("session not found")
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store persists recording sessions and their frames in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

type Session struct {
	ID        string
	Source    string
	StartedAt time.Time
	EndedAt   time.Time
	Frames    int
}

func Open(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate it)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// BeginSession starts a new recording session labelled with source.
func (s *Store) BeginSession(ctx context.Context, source string) (Session, error) {
	sess := Session{
		ID:        uuid.NewString(),
		Source:    source,
		StartedAt: time.Now().UTC(),
	}
	err := s.exec(ctx,
		"INSERT INTO sessions (id, source, started_at) VALUES (?, ?, ?)",
		sess.ID, sess.Source, formatTime(sess.StartedAt),
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

func (s *Store) EndSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE sessions SET ended_at = ? WHERE id = ?",
		formatTime(time.Now().UTC()), id,
	)
	if err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	return nil
}

// Append stores one frame. A repeated sequence number within a session
// replaces the earlier row.
func (s *Store) Append(ctx context.Context, f Frame) error {
	joints, err := json.Marshal(f.Joints)
	if err != nil {
		return fmt.Errorf("encode joints: %w", err)
	}
	offset, err := json.Marshal(f.Offset)
	if err != nil {
		return fmt.Errorf("encode offset: %w", err)
	}
	device, err := json.Marshal(f.Device)
	if err != nil {
		return fmt.Errorf("encode device: %w", err)
	}
	bootstrap := 0
	if f.Bootstrap {
		bootstrap = 1
	}
	err = s.exec(ctx,
		`INSERT OR REPLACE INTO frames (session_id, seq, ts, joints_json, offset_json, device_json, bootstrap)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.Session, int64(f.Seq), formatTime(f.Timestamp), string(joints), string(offset), string(device), bootstrap,
	)
	if err != nil {
		return fmt.Errorf("insert frame %d: %w", f.Seq, err)
	}
	return nil
}

// Consume records samples from in under session until in closes or ctx is
// done.
func (s *Store) Consume(ctx context.Context, session string, in <-chan engine.Sample) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case sample, ok := <-in:
			if !ok {
				return nil
			}
			if err := s.Append(ctx, FrameFromSample(session, sample)); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// Sessions lists sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.source, s.started_at, s.ended_at, COUNT(f.seq)
		FROM sessions s LEFT JOIN frames f ON f.session_id = s.id
		GROUP BY s.id
		ORDER BY s.started_at DESC, s.id`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var (
			sess       Session
			startedRaw string
			endedRaw   sql.NullString
		)
		if err := rows.Scan(&sess.ID, &sess.Source, &startedRaw, &endedRaw, &sess.Frames); err != nil {
			return nil, err
		}
		sess.StartedAt = parseTime(startedRaw)
		if endedRaw.Valid {
			sess.EndedAt = parseTime(endedRaw.String)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// LatestSession returns the most recently started session.
func (s *Store) LatestSession(ctx context.Context) (Session, error) {
	sessions, err := s.Sessions(ctx)
	if err != nil {
		return Session{}, err
	}
	if len(sessions) == 0 {
		return Session{}, ErrNoSession
	}
	return sessions[0], nil
}

// Frames returns a session's frames in sequence order.
func (s *Store) Frames(ctx context.Context, session string) ([]Frame, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, ts, joints_json, offset_json, device_json, bootstrap
		FROM frames WHERE session_id = ? ORDER BY seq`, session)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	var out []Frame
	for rows.Next() {
		var (
			f                      Frame
			seq                    int64
			tsRaw                  string
			joints, offset, device string
			bootstrap              int
		)
		if err := rows.Scan(&seq, &tsRaw, &joints, &offset, &device, &bootstrap); err != nil {
			return nil, err
		}
		f.Session = session
		f.Seq = uint64(seq)
		f.Timestamp = parseTime(tsRaw)
		f.Bootstrap = bootstrap != 0
		if err := json.Unmarshal([]byte(joints), &f.Joints); err != nil {
			return nil, fmt.Errorf("decode joints for frame %d: %w", seq, err)
		}
		if err := json.Unmarshal([]byte(offset), &f.Offset); err != nil {
			return nil, fmt.Errorf("decode offset for frame %d: %w", seq, err)
		}
		if err := json.Unmarshal([]byte(device), &f.Device); err != nil {
			return nil, fmt.Errorf("decode device for frame %d: %w", seq, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}

// Fixed-width so text ordering matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
