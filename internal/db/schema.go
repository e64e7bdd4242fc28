package db

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

type tableSchema struct {
	name  string
	sql   string
	index string
}

var schemaHistory = tableSchema{
	name: "history",
	sql: `
    CREATE TABLE IF NOT EXISTS history (
        id          INTEGER PRIMARY KEY AUTOINCREMENT,
        browser     TEXT    NOT NULL,
        profile     TEXT    NOT NULL DEFAULT "",
        url         TEXT    NOT NULL UNIQUE,
        title       TEXT    NOT NULL DEFAULT "",
        last_visit  INTEGER NOT NULL DEFAULT 0,
        visit_count INTEGER NOT NULL DEFAULT 0,
        domain      TEXT    NOT NULL DEFAULT "",
        favicon_id  INTEGER REFERENCES favicons (id) ON DELETE SET NULL
    );`,
	index: `CREATE INDEX IF NOT EXISTS idx_history_last_visit ON history (last_visit DESC);`,
}

var schemaFavicons = tableSchema{
	name: "favicons",
	sql: `
    CREATE TABLE IF NOT EXISTS favicons (
        id         INTEGER PRIMARY KEY AUTOINCREMENT,
        url        TEXT    NOT NULL UNIQUE,
        image_data BLOB
    );`,
}

var schemaTokens = tableSchema{
	name: "tokens",
	sql: `
    CREATE TABLE IF NOT EXISTS tokens (
        id        INTEGER PRIMARY KEY AUTOINCREMENT,
        text      TEXT    NOT NULL UNIQUE,
        frequency INTEGER NOT NULL DEFAULT 0,
        last_used INTEGER NOT NULL DEFAULT 0
    );`,
	index: `CREATE INDEX IF NOT EXISTS idx_tokens_freq ON tokens (frequency DESC, last_used DESC);`,
}

// tablesAndSchema returns all tables and their schema. Favicons first, the
// history table references it.
func tablesAndSchema() []tableSchema {
	return []tableSchema{schemaFavicons, schemaHistory, schemaTokens}
}

// Init creates the required tables, idempotently.
func (r *SQLite) Init() error {
	return r.withTx(context.Background(), func(tx *sqlx.Tx) error {
		for _, s := range tablesAndSchema() {
			if _, err := tx.Exec(s.sql); err != nil {
				return fmt.Errorf("creating %q table: %w", s.name, err)
			}
			if s.index != "" {
				if _, err := tx.Exec(s.index); err != nil {
					return fmt.Errorf("creating %q index: %w", s.name, err)
				}
			}
		}

		return nil
	})
}

// IsEmpty returns true if the history table has no rows.
func (r *SQLite) IsEmpty(ctx context.Context) bool {
	var n int
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.Get(&n, "SELECT COUNT(*) FROM history")
	})

	return err != nil || n == 0
}
