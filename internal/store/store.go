// Package store is the single analytical-store adapter every stage writes
// and reads through. It wraps a *sql.DB with the retry/circuit-breaker
// policy reserved for the store, a single-writer mutex, and the small set
// of table-level primitives (exists/count/delete-year) the scheduler and
// validation engine both need regardless of which domain table they touch.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/planwise-labs/navigator-core/infrastructure/resilience"
)

// Store is the analytical-store adapter.
type Store struct {
	db    *sqlx.DB
	mu    sync.Mutex
	cb    *resilience.CircuitBreaker
	retry resilience.RetryConfig
}

// New wraps an open *sql.DB in sqlx (the "postgres" driver, matching
// lib/pq), so read paths that benefit from struct scanning can use
// Select/Get alongside the plain database/sql calls the rest of the
// adapter already makes. The circuit breaker uses the strict preset
// reserved for the store (fail fast on sustained lock contention); the
// retry policy uses the package default (3 attempts, 100ms..10s backoff).
func New(db *sql.DB) *Store {
	return &Store{
		db:    sqlx.NewDb(db, "postgres"),
		cb:    resilience.New(resilience.StrictServiceCBConfig(nil)),
		retry: resilience.DefaultRetryConfig(),
	}
}

// DB returns the underlying connection, for adapters (checkpoint, registry)
// that need direct access to build their own queries against this Store's
// connection pool.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// ExecuteWithRetry serializes fn against every other writer on this Store
// and retries it under the circuit breaker + exponential backoff policy.
// Every write path in the orchestrator (event insertion, snapshot upsert,
// registry folds, year deletes) goes through this one entry point, so
// two stages racing to write the same year never interleave at the
// statement level. Per §4.3, only transient lock/IO failures are retried —
// a syntax or constraint error fails fast instead of spending the retry
// budget (and risking a spurious circuit-breaker trip) on an error another
// attempt can't fix.
func (s *Store) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cb.Execute(ctx, func() error {
		return resilience.Retry(ctx, s.retry, func() error {
			if err := fn(ctx); err != nil {
				if !isTransientStoreError(err) {
					return resilience.Permanent(err)
				}
				return err
			}
			return nil
		})
	})
}

// isTransientStoreError reports whether err is a connection- or
// lock-contention-level failure worth retrying. Postgres error classes
// "08" (connection exception), "40" (transaction rollback: serialization
// failure, deadlock), "53" (insufficient resources), "55" (object not in
// prerequisite state: lock_not_available) and "57" (operator intervention:
// query canceled) are the transient ones; everything else a *pq.Error
// reports — syntax errors, constraint violations, undefined columns — is
// not, since another attempt at the same statement can't fix it.
func isTransientStoreError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "55", "57":
			return true
		default:
			return false
		}
	}
	return false
}

// ExecuteMany runs each statement under one ExecuteWithRetry call, so a
// retry re-runs the whole batch rather than resuming partway through it.
func (s *Store) ExecuteMany(ctx context.Context, statements []string, args [][]any) error {
	if len(statements) != len(args) {
		return fmt.Errorf("store: ExecuteMany statement/args length mismatch: %d vs %d", len(statements), len(args))
	}
	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		for i, stmt := range statements {
			if _, err := s.db.ExecContext(ctx, stmt, args[i]...); err != nil {
				return fmt.Errorf("store: exec statement %d: %w", i, err)
			}
		}
		return nil
	})
}

// TableExists reports whether table is present in the current schema.
func (s *Store) TableExists(ctx context.Context, table string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`,
		table,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("store: table_exists %s: %w", table, err)
	}
	return exists, nil
}

// TableRowCount returns table's row count, or 0 if the table does not exist
// yet (the FOUNDATION stage may run validation before creating every table).
func (s *Store) TableRowCount(ctx context.Context, table string) (int64, error) {
	ok, err := s.TableExists(ctx, table)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(table))
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: table_row_count %s: %w", table, err)
	}
	return count, nil
}

// Count returns the number of rows in table matching whereClause (a raw SQL
// fragment using $1, $2, ... placeholders, e.g. "simulation_year = $1").
func (s *Store) Count(ctx context.Context, table, whereClause string, args ...any) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", pq.QuoteIdentifier(table))
	if whereClause != "" {
		query += " WHERE " + whereClause
	}
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("store: count %s: %w", table, err)
	}
	return count, nil
}

// DeleteYear removes every row in table for simulation_year = year. Used by
// the scheduler's self-healing rebuild path and by setup.clear_mode = "year".
func (s *Store) DeleteYear(ctx context.Context, table string, year int) error {
	return s.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		query := fmt.Sprintf("DELETE FROM %s WHERE simulation_year = $1", pq.QuoteIdentifier(table))
		_, err := s.db.ExecContext(ctx, query, year)
		if err != nil {
			return fmt.Errorf("store: delete_year %s year=%d: %w", table, year, err)
		}
		return nil
	})
}
