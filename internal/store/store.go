package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/erazemk/closet/internal/db"
)

// Store is the persistence handle shared by the inventory and referral
// services. It is constructed once at startup and closed at shutdown.
type Store struct {
	db      *sql.DB
	dialect db.Dialect

	// Now returns the current time. Tests may replace it.
	Now func() time.Time
}

// New wraps an open database.
func New(database *sql.DB, dialect db.Dialect) *Store {
	return &Store{
		db:      database,
		dialect: dialect,
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// q rebinds a query written with ? placeholders for the store's dialect.
func (s *Store) q(query string) string {
	return s.dialect.Rebind(query)
}
