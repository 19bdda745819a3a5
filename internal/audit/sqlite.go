package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const defaultIndexQueue = 4096

// SQLiteIndex keeps a queryable copy of rejections. Inserts are queued and
// written by a single goroutine so Record never waits on disk.
type SQLiteIndex struct {
	db *sql.DB

	mu     sync.RWMutex
	ch     chan Rejection
	wg     sync.WaitGroup
	closed bool
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initIndex(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing %s: %w", path, err)
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan Rejection, defaultIndexQueue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initIndex(db *sql.DB) error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS rejections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			player_id TEXT NOT NULL,
			reason TEXT NOT NULL,
			from_x REAL NOT NULL, from_y REAL NOT NULL, from_z REAL NOT NULL,
			to_x REAL NOT NULL, to_y REAL NOT NULL, to_z REAL NOT NULL,
			measured REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rejections_player ON rejections(player_id, at);`,
		`CREATE INDEX IF NOT EXISTS idx_rejections_reason ON rejections(reason);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Start closes the index once ctx is done, flushing queued rows.
func (s *SQLiteIndex) Start(ctx context.Context) error {
	<-ctx.Done()
	return s.Close()
}

// Record queues the rejection. Rows are dropped when the writer falls behind.
func (s *SQLiteIndex) Record(ctx context.Context, r Rejection) {
	if s == nil {
		return
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- r:
	default:
		slog.WarnContext(ctx, "audit index queue full, dropping row", "player", r.PlayerID)
	}
}

func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}

// CountByReason reports how many rejections each check produced.
func (s *SQLiteIndex) CountByReason(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT reason, COUNT(*) FROM rejections GROUP BY reason`)
	if err != nil {
		return nil, fmt.Errorf("querying rejections: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, err
		}
		out[reason] = n
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()
	insert, err := s.db.Prepare(`INSERT INTO rejections(at,player_id,reason,from_x,from_y,from_z,to_x,to_y,to_z,measured) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		slog.ErrorContext(ctx, "preparing audit insert", "error", err)
		for range s.ch {
		}
		return
	}
	defer insert.Close()

	for r := range s.ch {
		_, err := insert.Exec(
			r.Time.UTC().Format(time.RFC3339Nano),
			r.PlayerID,
			r.Reason,
			r.From.X, r.From.Y, r.From.Z,
			r.Proposed.X, r.Proposed.Y, r.Proposed.Z,
			r.Measured,
		)
		if err != nil {
			slog.ErrorContext(ctx, "inserting audit row", "player", r.PlayerID, "error", err)
		}
	}
}
