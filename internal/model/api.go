// Package model provides action log and guild settings repository
package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // SQLite driver
)

// Known database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultLogLimit is the number of entries returned when no limit is specified
const DefaultLogLimit = 50

// MaxLogLimit caps number of entries returned by LogList
const MaxLogLimit = 500

var (
	// ErrUnknownDriver is returned when database driver is not supported
	ErrUnknownDriver = errors.New("unknown database driver")
	// ErrEmptyAction is returned when appending log entry without action text
	ErrEmptyAction = errors.New("empty action")
)

// Entry is a single administrative action log row
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	ID        int64     `json:"id"`
}

// Repository provides access to action log and per-guild settings
type Repository struct {
	DB    *sqlx.DB
	Clock clockwork.Clock
}

// NewRepository provides Repository instance over already opened database, nil clock means real time
func NewRepository(db *sqlx.DB, clock clockwork.Clock) *Repository {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Repository{
		DB:    db,
		Clock: clock,
	}
}

// Open opens database with given driver and returns repository
func Open(driver, dsn string, clock clockwork.Clock) (*Repository, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if driver == DriverSQLite {
		// single writer, avoids SQLITE_BUSY on concurrent inserts
		db.SetMaxOpenConns(1)
	}

	return NewRepository(db, clock), nil
}

// Ping checks database connectivity
func (repo *Repository) Ping(ctx context.Context) error {
	return repo.DB.PingContext(ctx)
}

// Close closes underlying database
func (repo *Repository) Close() error {
	return repo.DB.Close()
}
