// Package db implements the persistent cache store for merged browsing
// history, favicons and search tokens.
//
// All access goes through a process-wide mutex: at most one transaction is
// in flight against the store at any time, readers and writers alike. The
// store is local and operations are short, so serialization is preferred
// over the engine's native concurrency control.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mateconpizza/hsearch/internal/sys/files"
)

// busyTimeoutMS bounds internal lock waits.
const busyTimeoutMS = 5000

// SQLite is the cache store handle.
type SQLite struct {
	DB        *sqlx.DB
	path      string
	mu        sync.Mutex
	closeOnce sync.Once
}

// Path returns the filesystem path of the store.
func (r *SQLite) Path() string {
	return r.path
}

// Close closes the database connection and logs any errors encountered.
func (r *SQLite) Close() {
	r.closeOnce.Do(func() {
		if err := r.DB.Close(); err != nil {
			slog.Error("closing database", "path", r.path, "error", err)
		} else {
			slog.Debug("database closed", "path", r.path)
		}
	})
}

// Open opens (or creates) the cache store at path and ensures the schema
// exists. Failure here is fatal to the caller: nothing works without the
// store.
func Open(path string) (*SQLite, error) {
	if path == "" {
		return nil, files.ErrPathEmpty
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d", path, busyTimeoutMS)
	database, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := database.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("%w: on ping context", err)
	}

	r := &SQLite{DB: database, path: path}
	if err := r.Init(); err != nil {
		r.Close()
		return nil, err
	}

	slog.Debug("database opened", "path", path)

	return r, nil
}

// withTx executes fn within a transaction, serialized through the store
// mutex.
func (r *SQLite) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback() // ensure rollback on panic
			panic(p)          // re-throw the panic after rollback
		} else if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Warn("rollback", "error", err)
		}
	}()

	if err := fn(tx); err != nil {
		return fmt.Errorf("fn transaction: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	return nil
}
