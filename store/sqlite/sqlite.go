/*
Package sqlite provides the embedded SQLite store for the inventory core.

PURPOSE:
  Persists products, consumable lots and the non-consumable ledger, and
  computes the derived stock views. Every invariant from the inventory
  package is checked inside the same transaction as the write it guards,
  so the check-then-write is atomic. The DDL repeats the same rules as
  CHECK and FOREIGN KEY constraints.

CONCURRENCY:
  Single-process, single-writer. A sync.RWMutex serializes writers inside
  the process; the file lock serializes processes. Write transactions
  start with BEGIN IMMEDIATE (_txlock=immediate) so lock contention shows
  up at BEGIN rather than mid-transaction. A locked store surfaces as
  inventory.BusyError after a bounded number of attempts with doubling
  backoff.

ERRORS:
  Raw driver errors never leave this package. sqlite3.Error codes map to:
    SQLITE_BUSY / SQLITE_LOCKED            -> BusyError
    UNIQUE / PRIMARY KEY constraint        -> DuplicateKeyError
    FOREIGN KEY constraint                 -> ReferentialError
    CHECK / NOT NULL constraint            -> ValidationError
    anything else                          -> StoreError (raw text kept)

WAL MODE:
  The file is opened with WAL so a second reader can overlap the writer.

USAGE:
  store, err := sqlite.New("./inventory.db", sqlite.WithBusyRetries(3))
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - schema.go:      DDL and views
  - records.go:     create/update/delete per entity
  - search.go:      filtered reads
*/
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benchtrack/inventory/inventory"
	"github.com/benchtrack/inventory/logger"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
)

// Store implements the orchestrator's storage on SQLite.
type Store struct {
	db  *sqlx.DB
	mu  sync.RWMutex
	log *logger.Logger
	now func() time.Time

	busyRetries int
	busyBackoff time.Duration
}

type options struct {
	busyTimeout time.Duration
	busyRetries int
	busyBackoff time.Duration
	log         *logger.Logger
	now         func() time.Time
}

// Option configures a Store.
type Option func(*options)

// WithBusyTimeout sets how long SQLite itself waits on a lock per attempt.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithBusyRetries sets the total number of attempts for a locked operation.
func WithBusyRetries(n int) Option {
	return func(o *options) { o.busyRetries = n }
}

// WithBusyBackoff sets the first backoff; it doubles on each retry.
func WithBusyBackoff(d time.Duration) Option {
	return func(o *options) { o.busyBackoff = d }
}

func WithLogger(l *logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithClock sets the clock used for created_at.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func defaultOptions() options {
	return options{
		busyTimeout: 250 * time.Millisecond,
		busyRetries: 3,
		busyBackoff: 50 * time.Millisecond,
		log:         logger.Nop(),
		now:         time.Now,
	}
}

// New opens (and migrates) the store at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string, opts ...Option) (*Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d&_txlock=immediate&_cslike=true",
		dbPath, o.busyTimeout.Milliseconds())
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps ":memory:" a single database and makes every
	// statement go through the same lock.
	db.SetMaxOpenConns(1)

	store := newStore(db, o)
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

func newStore(db *sqlx.DB, o options) *Store {
	if o.busyRetries < 1 {
		o.busyRetries = 1
	}
	return &Store{
		db:          db,
		log:         o.log.WithComponent("store"),
		now:         o.now,
		busyRetries: o.busyRetries,
		busyBackoff: o.busyBackoff,
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schemaDDL)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	return s.write(ctx, "reset", func(tx *sqlx.Tx) error {
		for _, table := range resetOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return err
			}
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM sqlite_sequence")
		return err
	})
}

// =============================================================================
// TRANSACTIONS AND RETRY
// =============================================================================

// write runs fn in one write transaction, retrying the whole transaction
// while the store is busy. fn may run more than once.
func (s *Store) write(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.retry(ctx, op, func() error {
		tx, err := s.db.BeginTxx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error().Err(rbErr).Str("op", op).Msg("failed to rollback transaction")
			}
			return err
		}
		return tx.Commit()
	})
	if err != nil && inventory.KindOf(err) == inventory.KindUnknown {
		s.log.Error().Err(err).Str("op", op).Msg("write rolled back")
	}
	return err
}

// read runs fn against the database under the read lock, with the same
// busy handling as writes.
func (s *Store) read(ctx context.Context, op string, fn func(q sqlx.QueryerContext) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.retry(ctx, op, func() error {
		return fn(s.db)
	})
}

func (s *Store) retry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.busyRetries; attempt++ {
		err = fn()
		if !isBusy(err) {
			return classify(op, err)
		}
		if attempt == s.busyRetries {
			break
		}
		delay := s.busyBackoff << (attempt - 1)
		s.log.Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt).
			Dur("backoff", delay).
			Msg("store busy, retrying")

		select {
		case <-ctx.Done():
			return &inventory.BusyError{Op: op, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(delay):
		}
	}
	return &inventory.BusyError{Op: op, Attempts: s.busyRetries, Err: err}
}

// =============================================================================
// ERROR CLASSIFICATION
// =============================================================================

func isBusy(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

// classify turns driver errors into the inventory taxonomy. Errors that
// already carry a kind pass through.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if inventory.KindOf(err) != inventory.KindUnknown {
		return err
	}

	var se sqlite3.Error
	if !errors.As(err, &se) {
		return &inventory.StoreError{Op: op, Err: err}
	}

	switch se.Code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return &inventory.BusyError{Op: op, Attempts: 1, Err: err}
	case sqlite3.ErrConstraint:
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return &inventory.DuplicateKeyError{Entity: entityOf(err), Key: se.Error()}
		case sqlite3.ErrConstraintForeignKey:
			return &inventory.ReferentialError{Entity: entityOf(err), Reason: se.Error()}
		case sqlite3.ErrConstraintCheck, sqlite3.ErrConstraintNotNull:
			return &inventory.ValidationError{Entity: entityOf(err), Reason: se.Error()}
		}
	}
	return &inventory.StoreError{Op: op, Err: err}
}

// entityOf pulls the table name out of messages like
// "UNIQUE constraint failed: products.name".
func entityOf(err error) inventory.Entity {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		ref := msg[i+2:]
		if j := strings.IndexByte(ref, '.'); j > 0 {
			return inventory.Entity(ref[:j])
		}
	}
	return ""
}
