// Package storage persists linktrack records in PostgreSQL. Per-affiliate
// aggregates use single-statement appends so counters and entry arrays can
// never drift apart under concurrent writes.
package storage

import (
	"database/sql"
	"time"

	"github.com/afftrack/linktrack/internal/logger"
)

// queryTimeout bounds each storage operation.
const queryTimeout = 5 * time.Second

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = sql.ErrNoRows

// Store provides access to click records, user sessions, and per-affiliate
// aggregate documents.
type Store struct {
	db  *sql.DB
	log logger.Logger
}

// New creates a Store backed by db.
func New(db *sql.DB, log logger.Logger) *Store {
	return &Store{db: db, log: log}
}

// Ping verifies database connectivity, for health checks.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// statusRankCase maps a lifecycle status column or parameter to its ordinal
// so SQL can enforce forward-only transitions without a read-modify-write.
const statusRankCase = `CASE %s
	WHEN 'generated' THEN 0
	WHEN 'pending' THEN 1
	WHEN 'redirected' THEN 2
	WHEN 'clicked' THEN 3
	ELSE -1
END`
