package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/mateconpizza/hsearch/internal/history"
)

// FaviconByDomain returns the cached favicon for a domain, or
// ErrRecordNotFound.
func (r *SQLite) FaviconByDomain(ctx context.Context, domain string) (*history.Favicon, error) {
	if domain == "" {
		return nil, ErrDomainEmpty
	}

	var f history.Favicon
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.Get(&f, "SELECT id, url, image_data FROM favicons WHERE url = ?", domain)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: favicon for %q", ErrRecordNotFound, domain)
		}

		return nil, fmt.Errorf("favicon by domain: %w", err)
	}

	return &f, nil
}

// SaveFavicon stores the icon bytes for a domain, lookup-or-create keyed by
// the domain string. An existing row is overwritten. History rows for the
// domain that are not yet linked pick up the new favicon.
func (r *SQLite) SaveFavicon(ctx context.Context, domain string, imageData []byte) (*history.Favicon, error) {
	if domain == "" {
		return nil, ErrDomainEmpty
	}

	f := &history.Favicon{URL: domain, ImageData: imageData}

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		var id int64
		err := tx.Get(&id, "SELECT id FROM favicons WHERE url = ?", domain)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.Exec("INSERT INTO favicons (url, image_data) VALUES (?, ?)", domain, imageData)
			if err != nil {
				return fmt.Errorf("insert favicon: %w", err)
			}
			id, err = res.LastInsertId()
			if err != nil {
				return fmt.Errorf("favicon id: %w", err)
			}
		case err != nil:
			return fmt.Errorf("favicon lookup: %w", err)
		default:
			if _, err := tx.Exec("UPDATE favicons SET image_data = ? WHERE id = ?", imageData, id); err != nil {
				return fmt.Errorf("update favicon: %w", err)
			}
		}

		f.ID = id

		_, err = tx.Exec(
			"UPDATE history SET favicon_id = ? WHERE domain = ? AND favicon_id IS NULL",
			id, domain,
		)
		if err != nil {
			return fmt.Errorf("linking favicon: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("favicon saved", "domain", domain, "bytes", len(imageData))

	return f, nil
}

// DeleteAllFavicons purges the favicons table. History rows lose their
// favicon reference via ON DELETE SET NULL, but SQLite only fires that on
// row deletes, so the links are cleared explicitly.
func (r *SQLite) DeleteAllFavicons(ctx context.Context) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec("UPDATE history SET favicon_id = NULL"); err != nil {
			return fmt.Errorf("unlinking favicons: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM favicons"); err != nil {
			return fmt.Errorf("deleting favicons: %w", err)
		}

		return nil
	})
}

// CountFavicons returns the number of favicon rows.
func (r *SQLite) CountFavicons(ctx context.Context) int {
	var n int
	if err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.Get(&n, "SELECT COUNT(*) FROM favicons")
	}); err != nil {
		slog.Warn("count favicons", "error", err)
		return 0
	}

	return n
}
