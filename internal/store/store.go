// Package store persists visitor metrics, contact enquiries and carousel
// interactions in sqlite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

// Retention is how long visitor rows are kept.
const Retention = 365 * 24 * time.Hour

// EventRetention is how long carousel interaction rows are kept.
const EventRetention = 90 * 24 * time.Hour

// Visit is a privacy-conscious page view: the client IP is stored hashed.
type Visit struct {
	ID        int64     `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// ContactMessage is an enquiry from the contact form.
type ContactMessage struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	BusinessName string    `json:"business_name,omitempty"`
	Email        string    `json:"email"`
	WhatsApp     string    `json:"whatsapp,omitempty"`
	ProjectType  string    `json:"project_type"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"created_at"`
}

// CarouselEvent records one state change of a live carousel.
type CarouselEvent struct {
	SessionID   string    `json:"session_id"`
	Kind        string    `json:"kind"`
	Action      string    `json:"action"`
	Origin      string    `json:"origin"`
	ActiveIndex int       `json:"active_index"`
	At          time.Time `json:"at"`
}

// CarouselCount aggregates interactions per carousel kind and origin.
type CarouselCount struct {
	Kind   string `json:"kind"`
	Origin string `json:"origin"`
	Count  int64  `json:"count"`
}

// Stats is the admin dashboard summary.
type Stats struct {
	TotalVisitors    int64           `json:"total_visitors"`
	UniqueVisitors   int64           `json:"unique_visitors"`
	VisitorsToday    int64           `json:"visitors_today"`
	VisitorsThisWeek int64           `json:"visitors_this_week"`
	TotalMessages    int64           `json:"total_messages"`
	Carousels        []CarouselCount `json:"carousels"`
	RecentVisitors   []Visit         `json:"recent_visitors"`
}

type Store struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS visitors (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hashed_ip TEXT NOT NULL,
	user_agent TEXT,
	path TEXT,
	ts INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS visitors_ts ON visitors (ts);

CREATE TABLE IF NOT EXISTS contact_messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	business_name TEXT,
	email TEXT NOT NULL,
	whatsapp TEXT,
	project_type TEXT,
	message TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS carousel_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	kind TEXT NOT NULL,
	action TEXT NOT NULL,
	origin TEXT NOT NULL,
	active_index INTEGER NOT NULL,
	at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS carousel_events_kind ON carousel_events (kind);
CREATE INDEX IF NOT EXISTS carousel_events_at ON carousel_events (at);
`

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// sqlite serializes writers; one connection also keeps :memory: shared
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	logger.Info("database ready", zap.String("path", path))
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// RecordVisit stores a page view.
func (s *Store) RecordVisit(ctx context.Context, v Visit) error {
	if v.Timestamp.IsZero() {
		v.Timestamp = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO visitors (hashed_ip, user_agent, path, ts) VALUES (?, ?, ?, ?)`,
		v.HashedIP, v.UserAgent, v.Path, v.Timestamp.UnixMilli())
	if err != nil {
		return fmt.Errorf("record visit: %w", err)
	}
	return nil
}

// RecentVisitors returns up to limit visits, newest first.
func (s *Store) RecentVisitors(ctx context.Context, limit int) ([]Visit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_ip, COALESCE(user_agent, ''), COALESCE(path, ''), ts
		FROM visitors
		ORDER BY ts DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent visitors: %w", err)
	}
	defer rows.Close()

	var out []Visit
	for rows.Next() {
		var (
			v  Visit
			ts int64
		)
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &ts); err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		v.Timestamp = time.UnixMilli(ts)
		out = append(out, v)
	}
	return out, rows.Err()
}

// PruneVisitors deletes visits older than maxAge and reports how many went.
func (s *Store) PruneVisitors(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune visitors: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("privacy cleanup removed old visitor records", zap.Int64("rows", n))
	}
	return n, nil
}

// PruneCarouselEvents deletes carousel events older than maxAge.
func (s *Store) PruneCarouselEvents(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge).UnixMilli()
	res, err := s.db.ExecContext(ctx, `DELETE FROM carousel_events WHERE at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune carousel events: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("removed old carousel events", zap.Int64("rows", n))
	}
	return n, nil
}

// SaveContact stores an enquiry and returns its id.
func (s *Store) SaveContact(ctx context.Context, m ContactMessage) (int64, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.now()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO contact_messages (name, business_name, email, whatsapp, project_type, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.BusinessName, m.Email, m.WhatsApp, m.ProjectType, m.Message, m.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("save contact: %w", err)
	}
	return res.LastInsertId()
}

// Messages returns enquiries, newest first.
func (s *Store) Messages(ctx context.Context, limit int) ([]ContactMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(business_name, ''), email, COALESCE(whatsapp, ''),
		       COALESCE(project_type, ''), message, created_at
		FROM contact_messages
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []ContactMessage
	for rows.Next() {
		var (
			m  ContactMessage
			at int64
		)
		if err := rows.Scan(&m.ID, &m.Name, &m.BusinessName, &m.Email, &m.WhatsApp, &m.ProjectType, &m.Message, &at); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = time.UnixMilli(at)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteMessage removes an enquiry.
func (s *Store) DeleteMessage(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contact_messages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete message %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordCarouselEvent stores one carousel state change.
func (s *Store) RecordCarouselEvent(ctx context.Context, e CarouselEvent) error {
	if e.At.IsZero() {
		e.At = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO carousel_events (session_id, kind, action, origin, active_index, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Kind, e.Action, e.Origin, e.ActiveIndex, e.At.UnixMilli())
	if err != nil {
		return fmt.Errorf("record carousel event: %w", err)
	}
	return nil
}

// Stats gathers the admin dashboard numbers.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	stats := &Stats{}

	counts := []struct {
		dst   *int64
		query string
		args  []any
	}{
		{&stats.TotalVisitors, `SELECT COUNT(*) FROM visitors`, nil},
		{&stats.UniqueVisitors, `SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil},
		{&stats.VisitorsToday, `SELECT COUNT(*) FROM visitors WHERE ts >= ?`, []any{dayStart.UnixMilli()}},
		{&stats.VisitorsThisWeek, `SELECT COUNT(*) FROM visitors WHERE ts >= ?`, []any{now.Add(-7 * 24 * time.Hour).UnixMilli()}},
		{&stats.TotalMessages, `SELECT COUNT(*) FROM contact_messages`, nil},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("stats: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, origin, COUNT(*)
		FROM carousel_events
		GROUP BY kind, origin
		ORDER BY kind, origin`)
	if err != nil {
		return nil, fmt.Errorf("stats: carousel counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c CarouselCount
		if err := rows.Scan(&c.Kind, &c.Origin, &c.Count); err != nil {
			return nil, fmt.Errorf("stats: scan carousel count: %w", err)
		}
		stats.Carousels = append(stats.Carousels, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.RecentVisitors, err = s.RecentVisitors(ctx, 50)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
