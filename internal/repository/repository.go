// Package repository implements the persistence facade on PostgreSQL.
// It maps driver errors onto the service sentinels so the core never
// inspects SQLSTATEs, and enforces the bounded row-lock wait.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/saalistaja/powerauth-server/internal/service"
)

const (
	pqLockNotAvailable = "55P03"
	pqUniqueViolation  = "23505"
)

// Facade opens transactions over the typed store.
type Facade struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// New creates a facade. lockTimeout bounds every row-lock wait inside a
// transaction; zero selects the 10 s default.
func New(db *sql.DB, lockTimeout time.Duration) *Facade {
	if lockTimeout <= 0 {
		lockTimeout = 10 * time.Second
	}
	return &Facade{db: db, lockTimeout: lockTimeout}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// InTx implements service.Repository. fn runs with read-committed
// isolation and the configured lock timeout; returning nil commits.
func (f *Facade) InTx(ctx context.Context, fn func(service.Store) error) error {
	tx, err := f.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return mapError(err)
	}
	defer func() { _ = tx.Rollback() }()

	millis := f.lockTimeout.Milliseconds()
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", millis)); err != nil {
		return mapError(err)
	}
	if err := fn(&store{tx: tx}); err != nil {
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(err)
	}
	return nil
}

// store implements service.Store over one transaction.
type store struct {
	tx *sql.Tx
}

// mapError translates driver errors onto the service sentinels. Service
// errors pass through untouched.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return service.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqLockNotAvailable:
			return fmt.Errorf("%w: %v", service.ErrConcurrency, err)
		case pqUniqueViolation:
			return fmt.Errorf("%w: %v", service.ErrDuplicate, err)
		}
	}
	return err
}
