// Package results persists speed test history in a local sqlite database.
package results

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/syncstream/netpulse/internal/logging"
	"github.com/syncstream/netpulse/pkg/types"
)

const (
	retentionDays   = 90
	cleanupInterval = 1 * time.Hour
)

type Store struct {
	db         *sql.DB
	maxResults int
	stopCh     chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func New(dbPath string, maxResults int) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(3)
	db.SetMaxIdleConns(2)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// modernc.org/sqlite requires explicit PRAGMAs (not query-string params)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	s := &Store{
		db:         db,
		maxResults: maxResults,
		stopCh:     make(chan struct{}),
	}

	s.cleanup()

	s.wg.Add(1)
	go s.cleanupLoop()

	return s, nil
}

func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		if err := s.db.Close(); err != nil {
			logging.Warn("results store: close failed", logging.Field{Key: "error", Value: err})
		}
	})
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS speedtests (
		id TEXT PRIMARY KEY,
		download_mbps REAL NOT NULL,
		upload_mbps REAL NOT NULL,
		ping_ms REAL NOT NULL,
		server_name TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return err
	}
	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_speedtests_created_at ON speedtests(created_at)`)
	return err
}

// Save records one speed test result. The probe already assigned the ID;
// replaying the same result is a no-op rather than an error.
func (s *Store) Save(r types.SpeedTestResult) error {
	_, err := s.db.Exec(
		`INSERT INTO speedtests (id, download_mbps, upload_mbps, ping_ms, server_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.DownloadMbps, r.UploadMbps, r.PingMs, r.ServerName, r.Timestamp.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

// Get returns a stored result by ID, or nil when it does not exist.
func (s *Store) Get(id string) (*types.SpeedTestResult, error) {
	var r types.SpeedTestResult
	err := s.db.QueryRow(
		`SELECT id, download_mbps, upload_mbps, ping_ms, server_name, created_at
		FROM speedtests WHERE id = ?`, id,
	).Scan(&r.ID, &r.DownloadMbps, &r.UploadMbps, &r.PingMs, &r.ServerName, &r.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query result: %w", err)
	}
	return &r, nil
}

// List returns the newest results first, capped at limit.
func (s *Store) List(limit int) ([]types.SpeedTestResult, error) {
	rows, err := s.db.Query(
		`SELECT id, download_mbps, upload_mbps, ping_ms, server_name, created_at
		FROM speedtests ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := make([]types.SpeedTestResult, 0, limit)
	for rows.Next() {
		var r types.SpeedTestResult
		if err := rows.Scan(&r.ID, &r.DownloadMbps, &r.UploadMbps, &r.PingMs,
			&r.ServerName, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) cleanup() {
	cutoff := time.Now().UTC().Add(-retentionDays * 24 * time.Hour)
	res, err := s.db.Exec(`DELETE FROM speedtests WHERE created_at < ?`, cutoff)
	if err != nil {
		logging.Warn("results cleanup (age) failed", logging.Field{Key: "error", Value: err})
	} else if n, _ := res.RowsAffected(); n > 0 {
		logging.Info("results cleanup: removed expired",
			logging.Field{Key: "count", Value: n})
	}

	// Trim to max count, keeping newest
	if s.maxResults > 0 {
		res, err = s.db.Exec(
			`DELETE FROM speedtests WHERE id NOT IN (
				SELECT id FROM speedtests ORDER BY created_at DESC LIMIT ?
			)`, s.maxResults)
		if err != nil {
			logging.Warn("results cleanup (count) failed", logging.Field{Key: "error", Value: err})
		} else if n, _ := res.RowsAffected(); n > 0 {
			logging.Info("results cleanup: trimmed to max",
				logging.Field{Key: "removed", Value: n},
				logging.Field{Key: "max", Value: s.maxResults})
		}
	}
}

func (s *Store) cleanupLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}
