// Package ledger persists ingestion watermarks and synced records in
// SQLite. Each (source, stream) pair carries a monotonic high-watermark;
// sync jobs advance it only after a batch lands, so a crashed sync resumes
// from the last durable position.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/sophiahq/sophia-gateway/internal/metrics"
)

// ErrRegress is returned when an advance would move a watermark backwards.
var ErrRegress = errors.New("watermark regress")

// PositionLayout is the fixed-width timestamp layout for time-based
// watermark positions. Advance orders positions by string comparison, so
// the fractional second must always render at full width; RFC3339Nano
// drops trailing zeros and would sort "10:00:00.5Z" below "10:00:00Z".
const PositionLayout = "2006-01-02T15:04:05.000000000Z07:00"

// FormatPosition renders t as a watermark position in PositionLayout.
func FormatPosition(t time.Time) string {
	return t.UTC().Format(PositionLayout)
}

// Watermark is the durable position of one ingestion stream
type Watermark struct {
	Source    string    `json:"source"`
	Stream    string    `json:"stream"`
	Position  string    `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HistoryEntry records one watermark transition
type HistoryEntry struct {
	Source      string    `json:"source"`
	Stream      string    `json:"stream"`
	OldPosition string    `json:"old_position"`
	NewPosition string    `json:"new_position"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record is one synced row from an upstream source
type Record struct {
	ID           int64
	Source       string
	ExternalID   string
	Kind         string
	Content      string
	Tier         int
	Archived     bool
	CreatedAt    time.Time
	LastAccessed time.Time
}

// Storage tiers for synced records.
const (
	TierHot  = 0
	TierWarm = 1
	TierCold = 2
)

// Store is the SQLite-backed watermark ledger and record store
type Store struct {
	db           *sql.DB
	mu           sync.Mutex
	historyLimit int
}

// Open opens (creating if needed) the ledger database at dbPath
func Open(dbPath string, historyLimit int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if historyLimit <= 0 {
		historyLimit = 100
	}
	s := &Store{db: db, historyLimit: historyLimit}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS watermarks (
			source TEXT NOT NULL,
			stream TEXT NOT NULL,
			position TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now')),
			PRIMARY KEY (source, stream)
		)`,
		`CREATE TABLE IF NOT EXISTS watermark_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			stream TEXT NOT NULL,
			old_position TEXT NOT NULL DEFAULT '',
			new_position TEXT NOT NULL,
			created_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_stream ON watermark_history(source, stream, created_at)`,
		`CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			external_id TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			tier INTEGER NOT NULL DEFAULT 0,
			is_archived INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			last_accessed TEXT NOT NULL DEFAULT (datetime('now')),
			UNIQUE(source, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_tier ON records(tier, is_archived, last_accessed)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for packages sharing this database
func (s *Store) DB() *sql.DB {
	return s.db
}

// Get returns the current watermark position for (source, stream).
// ok is false when no watermark has been set yet.
func (s *Store) Get(source, stream string) (string, bool, error) {
	var pos string
	err := s.db.QueryRow(
		`SELECT position FROM watermarks WHERE source = ? AND stream = ?`,
		source, stream,
	).Scan(&pos)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get watermark: %w", err)
	}
	return pos, true, nil
}

// Advance moves the watermark forward. Positions compare as strings, which
// orders correctly for RFC 3339 timestamps and zero-padded cursors. A
// position behind the current one returns ErrRegress and changes nothing.
func (s *Store) Advance(source, stream, position string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin advance: %w", err)
	}
	defer tx.Rollback()

	var current string
	err = tx.QueryRow(
		`SELECT position FROM watermarks WHERE source = ? AND stream = ?`,
		source, stream,
	).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read watermark: %w", err)
	}

	if err == nil && position < current {
		return fmt.Errorf("%w: %s/%s %q behind %q", ErrRegress, source, stream, position, current)
	}

	if _, err := tx.Exec(
		`INSERT INTO watermarks (source, stream, position, updated_at)
		 VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(source, stream) DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`,
		source, stream, position,
	); err != nil {
		return fmt.Errorf("upsert watermark: %w", err)
	}

	if _, err := tx.Exec(
		`INSERT INTO watermark_history (source, stream, old_position, new_position)
		 VALUES (?, ?, ?, ?)`,
		source, stream, current, position,
	); err != nil {
		return fmt.Errorf("record history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit advance: %w", err)
	}
	metrics.WatermarkAdvances.WithLabelValues(source).Inc()
	return nil
}

// Reset forces the watermark to position regardless of ordering. Used for
// operator-driven replays.
func (s *Store) Reset(source, stream, position string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer tx.Rollback()

	var current string
	_ = tx.QueryRow(
		`SELECT position FROM watermarks WHERE source = ? AND stream = ?`,
		source, stream,
	).Scan(&current)

	if _, err := tx.Exec(
		`INSERT INTO watermarks (source, stream, position, updated_at)
		 VALUES (?, ?, ?, datetime('now'))
		 ON CONFLICT(source, stream) DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`,
		source, stream, position,
	); err != nil {
		return fmt.Errorf("reset watermark: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO watermark_history (source, stream, old_position, new_position)
		 VALUES (?, ?, ?, ?)`,
		source, stream, current, position,
	); err != nil {
		return fmt.Errorf("record history: %w", err)
	}
	return tx.Commit()
}

// List returns all watermarks ordered by source and stream
func (s *Store) List() ([]Watermark, error) {
	rows, err := s.db.Query(
		`SELECT source, stream, position, updated_at FROM watermarks ORDER BY source, stream`,
	)
	if err != nil {
		return nil, fmt.Errorf("list watermarks: %w", err)
	}
	defer rows.Close()

	var out []Watermark
	for rows.Next() {
		var w Watermark
		var ts string
		if err := rows.Scan(&w.Source, &w.Stream, &w.Position, &ts); err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}
		w.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", ts)
		out = append(out, w)
	}
	return out, rows.Err()
}

// History returns the most recent transitions for (source, stream)
func (s *Store) History(source, stream string, limit int) ([]HistoryEntry, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	rows, err := s.db.Query(
		`SELECT source, stream, old_position, new_position, created_at
		 FROM watermark_history
		 WHERE source = ? AND stream = ?
		 ORDER BY id DESC LIMIT ?`,
		source, stream, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("watermark history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var ts string
		if err := rows.Scan(&h.Source, &h.Stream, &h.OldPosition, &h.NewPosition, &ts); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		h.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", ts)
		out = append(out, h)
	}
	return out, rows.Err()
}

// Prune keeps only the newest historyLimit entries per stream
func (s *Store) Prune() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`DELETE FROM watermark_history WHERE id NOT IN (
			SELECT id FROM watermark_history wh
			WHERE (
				SELECT COUNT(*) FROM watermark_history newer
				WHERE newer.source = wh.source AND newer.stream = wh.stream AND newer.id >= wh.id
			) <= ?
		)`,
		s.historyLimit,
	)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}

// UpsertRecord stores a synced record, refreshing content and access time
// on conflict
func (s *Store) UpsertRecord(rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO records (source, external_id, kind, content, tier)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(source, external_id) DO UPDATE SET
			content = excluded.content,
			kind = excluded.kind,
			last_accessed = datetime('now')`,
		rec.Source, rec.ExternalID, rec.Kind, rec.Content, TierHot,
	)
	if err != nil {
		return fmt.Errorf("upsert record: %w", err)
	}
	return nil
}

// TouchRecord promotes an accessed record back to the hot tier
func (s *Store) TouchRecord(source, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE records SET last_accessed = datetime('now'), tier = ?
		 WHERE source = ? AND external_id = ? AND is_archived = 0`,
		TierHot, source, externalID,
	)
	if err != nil {
		return fmt.Errorf("touch record: %w", err)
	}
	return nil
}

// SearchRecords returns unarchived records matching a LIKE pattern on content
func (s *Store) SearchRecords(source, pattern string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, source, external_id, kind, content, tier, is_archived
		 FROM records
		 WHERE source = ? AND is_archived = 0 AND content LIKE ?
		 ORDER BY last_accessed DESC LIMIT ?`,
		source, "%"+pattern+"%", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var archived int
		if err := rows.Scan(&r.ID, &r.Source, &r.ExternalID, &r.Kind, &r.Content, &r.Tier, &archived); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.Archived = archived != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountByTier returns record counts keyed by tier, excluding archived rows
func (s *Store) CountByTier() (map[int]int, error) {
	rows, err := s.db.Query(
		`SELECT tier, COUNT(*) FROM records WHERE is_archived = 0 GROUP BY tier`,
	)
	if err != nil {
		return nil, fmt.Errorf("count by tier: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var tier, n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		out[tier] = n
	}
	return out, rows.Err()
}
