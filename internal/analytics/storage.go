/*
Package analytics is a best-effort usage sidecar: it records which tools
were searched for and called, purely for later inspection, and never
influences search ranking or dispatch. It persists to a local
modernc.org/sqlite database and degrades to a no-op when that database is
unavailable, the same way the teacher's history store does.
*/
package analytics

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Storage is the persistence seam Tracker writes through.
type Storage interface {
	Init() error
	RecordUsage(event UsageEvent) error
	GetUsageHistory(toolName string, since time.Time) ([]UsageEvent, error)
	RecordSearch(record SearchRecord) error
	Cleanup(retention time.Duration) error
	Close() error
}

// SQLiteStorage implements Storage. A construction-time failure to resolve
// a writable path, or an init-time failure to open the database, disables
// the store rather than failing the caller — usage analytics are never
// load-bearing for the aggregator's actual job.
type SQLiteStorage struct {
	db       *sql.DB
	dbPath   string
	enabled  bool
	mu       sync.Mutex
	initOnce sync.Once
	logger   *zap.Logger
}

// NewStorage resolves the database path under the user's home directory
// and returns a store ready for Init. logger may be nil.
func NewStorage(logger *zap.Logger) *SQLiteStorage {
	if logger == nil {
		logger = zap.NewNop()
	}

	home, err := os.UserHomeDir()
	if err != nil {
		logger.Warn("usage analytics disabled: no home directory", zap.Error(err))
		return &SQLiteStorage{enabled: false, logger: logger}
	}

	dbPath := filepath.Join(home, ".toolmesh", "usage.db")
	return &SQLiteStorage{dbPath: dbPath, enabled: true, logger: logger}
}

// Init opens the database and runs migrations, once. A failure disables
// the store for the rest of the process.
func (s *SQLiteStorage) Init() error {
	if !s.enabled {
		return nil
	}

	var initErr error
	s.initOnce.Do(func() {
		if err := os.MkdirAll(filepath.Dir(s.dbPath), 0o755); err != nil {
			initErr = fmt.Errorf("create analytics db directory: %w", err)
			s.enabled = false
			return
		}

		db, err := sql.Open("sqlite", s.dbPath)
		if err != nil {
			initErr = fmt.Errorf("open analytics database: %w", err)
			s.enabled = false
			s.logger.Warn("usage analytics disabled", zap.Error(initErr))
			return
		}
		s.db = db

		if err := db.Ping(); err != nil {
			initErr = fmt.Errorf("ping analytics database: %w", err)
			s.enabled = false
			s.logger.Warn("usage analytics disabled", zap.Error(initErr))
			return
		}

		if err := s.runMigrations(); err != nil {
			initErr = fmt.Errorf("run analytics migrations: %w", err)
			s.enabled = false
			s.logger.Warn("usage analytics disabled", zap.Error(initErr))
			return
		}
	})
	return initErr
}

// RecordUsage inserts a single tool-call event.
func (s *SQLiteStorage) RecordUsage(event UsageEvent) error {
	if !s.enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO tool_usage (tool_name, server_name, context_hash, selected) VALUES (?, ?, ?, ?)`,
		event.ToolName, event.Server, event.ContextHash, boolToInt(event.Selected),
	)
	return err
}

// GetUsageHistory returns usage events for a tool since a point in time,
// most recent first.
func (s *SQLiteStorage) GetUsageHistory(toolName string, since time.Time) ([]UsageEvent, error) {
	if !s.enabled {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT tool_name, server_name, context_hash, selected, timestamp
		 FROM tool_usage WHERE tool_name = ? AND timestamp >= ? ORDER BY timestamp DESC`,
		toolName, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []UsageEvent
	for rows.Next() {
		var e UsageEvent
		var selected int
		if err := rows.Scan(&e.ToolName, &e.Server, &e.ContextHash, &selected, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Selected = selected != 0
		events = append(events, e)
	}
	return events, rows.Err()
}

// RecordSearch inserts a search-history record.
func (s *SQLiteStorage) RecordSearch(record SearchRecord) error {
	if !s.enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO search_history (search_id, query_hash, results_count) VALUES (?, ?, ?)`,
		record.SearchID, record.QueryHash, record.ResultsCount,
	)
	return err
}

// Cleanup deletes rows older than retention.
func (s *SQLiteStorage) Cleanup(retention time.Duration) error {
	if !s.enabled {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-retention)
	if _, err := s.db.Exec(`DELETE FROM tool_usage WHERE timestamp < ?`, cutoff); err != nil {
		return err
	}
	_, err := s.db.Exec(`DELETE FROM search_history WHERE timestamp < ?`, cutoff)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStorage) Close() error {
	if !s.enabled || s.db == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close analytics database: %w", err)
	}
	s.db = nil
	return nil
}

// HashQuery hashes a search query for storage without retaining its raw
// text.
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
