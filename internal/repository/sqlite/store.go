package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jaakkos/titandash/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id INTEGER PRIMARY KEY,
	sender TEXT NOT NULL,
	message TEXT NOT NULL,
	kind TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS meta (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

const indexes = `
CREATE INDEX IF NOT EXISTS idx_alerts_created ON alerts(created_at);
`

// timeLayout is fixed width so stored timestamps compare as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DefaultRecentAlerts is how many alerts RecentAlerts returns for a
// non-positive limit.
const DefaultRecentAlerts = 50

// ErrClosed is returned by every method after Close.
var ErrClosed = errors.New("sqlite: store closed")

// Store keeps the alert history and small key/value state in SQLite.
type Store struct {
	mu sync.RWMutex
	db *sql.DB
}

// New opens the SQLite database at path, creating parent dirs and schema.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	if _, err := db.Exec(indexes); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite indexes: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database connection. Call on shutdown for clean exit.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, ErrClosed
	}
	return s.db, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTime parses a stored timestamp or returns zero time and error.
func parseTime(s, context string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: parse timestamp %q: %w", context, s, err)
	}
	return t, nil
}

// SaveAlert appends a to the history and returns its id. A zero CreatedAt is
// set to now.
func (s *Store) SaveAlert(ctx context.Context, a domain.Alert) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO alerts (sender, message, kind, created_at) VALUES (?, ?, ?, ?)",
		a.Sender, a.Message, a.Kind, formatTime(a.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("save alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("save alert: %w", err)
	}
	return id, nil
}

// RecentAlerts returns up to limit alerts, newest first.
func (s *Store) RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentAlerts
	}
	rows, err := db.QueryContext(ctx,
		"SELECT id, sender, message, kind, created_at FROM alerts ORDER BY id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("recent alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var created string
		if err := rows.Scan(&a.ID, &a.Sender, &a.Message, &a.Kind, &created); err != nil {
			return nil, fmt.Errorf("recent alerts: %w", err)
		}
		if a.CreatedAt, err = parseTime(created, "recent alerts"); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneAlerts removes alerts older than maxAgeDays and then all but the
// newest maxCount. A non-positive limit is not applied. Returns number pruned.
func (s *Store) PruneAlerts(ctx context.Context, maxCount, maxAgeDays int) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	pruned := 0
	if maxAgeDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
		res, err := db.ExecContext(ctx, "DELETE FROM alerts WHERE created_at < ?", formatTime(cutoff))
		if err != nil {
			return pruned, fmt.Errorf("prune alerts by age: %w", err)
		}
		n, _ := res.RowsAffected()
		pruned += int(n)
	}
	if maxCount > 0 {
		res, err := db.ExecContext(ctx,
			"DELETE FROM alerts WHERE id NOT IN (SELECT id FROM alerts ORDER BY id DESC LIMIT ?)", maxCount)
		if err != nil {
			return pruned, fmt.Errorf("prune alerts by count: %w", err)
		}
		n, _ := res.RowsAffected()
		pruned += int(n)
	}
	return pruned, nil
}

// SetMeta stores value under key, replacing any previous value.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}

// Meta returns the value stored under key, or "" if there is none.
func (s *Store) Meta(ctx context.Context, key string) (string, error) {
	db, err := s.conn()
	if err != nil {
		return "", err
	}
	var value string
	err = db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("meta %s: %w", key, err)
	}
	return value, nil
}
