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

// historyRow mirrors a history row joined with its optional favicon.
type historyRow struct {
	ID         int64          `db:"id"`
	Browser    string         `db:"browser"`
	Profile    string         `db:"profile"`
	URL        string         `db:"url"`
	Title      string         `db:"title"`
	LastVisit  int64          `db:"last_visit"`
	VisitCount int            `db:"visit_count"`
	Domain     string         `db:"domain"`
	FaviconID  sql.NullInt64  `db:"favicon_id"`
	IconURL    sql.NullString `db:"icon_url"`
	IconData   []byte         `db:"icon_data"`
}

func (h *historyRow) toModel() *history.Item {
	it := &history.Item{
		ID:         h.ID,
		Browser:    history.Browser(h.Browser),
		Profile:    h.Profile,
		URL:        h.URL,
		Title:      h.Title,
		LastVisit:  h.LastVisit,
		VisitCount: h.VisitCount,
		Domain:     h.Domain,
	}
	if h.FaviconID.Valid && h.IconURL.Valid {
		it.Favicon = &history.Favicon{
			ID:        h.FaviconID.Int64,
			URL:       h.IconURL.String,
			ImageData: h.IconData,
		}
	}

	return it
}

const selectItems = `
    SELECT
      h.id, h.browser, h.profile, h.url, h.title,
      h.last_visit, h.visit_count, h.domain, h.favicon_id,
      f.url AS icon_url, f.image_data AS icon_data
    FROM history h
    LEFT JOIN favicons f ON h.favicon_id = f.id`

// UpsertItems persists merged items. An existing row (matched by URL) has
// its mutable fields overwritten in place; a new row is inserted. Rows are
// linked to an already-cached favicon for their domain when one exists.
// Returns the distinct domains that still lack a favicon, for the caller
// to enrich.
func (r *SQLite) UpsertItems(ctx context.Context, items []*history.Item) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var missing []string

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, it := range items {
			if it.URL == "" {
				return ErrURLEmpty
			}

			var faviconID sql.NullInt64
			if err := tx.Get(&faviconID.Int64, "SELECT id FROM favicons WHERE url = ?", it.Domain); err == nil {
				faviconID.Valid = true
			} else if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("favicon lookup: %w", err)
			}

			res, err := tx.Exec(`
    UPDATE history
    SET browser = ?, profile = ?, title = ?, last_visit = ?,
        visit_count = ?, domain = ?,
        favicon_id = COALESCE(favicon_id, ?)
    WHERE url = ?`,
				it.Browser, it.Profile, it.Title, it.LastVisit,
				it.VisitCount, it.Domain, faviconID, it.URL,
			)
			if err != nil {
				return fmt.Errorf("update history: %w", err)
			}

			if n, _ := res.RowsAffected(); n == 0 {
				if _, err := tx.Exec(`
    INSERT INTO history (browser, profile, url, title, last_visit, visit_count, domain, favicon_id)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					it.Browser, it.Profile, it.URL, it.Title,
					it.LastVisit, it.VisitCount, it.Domain, faviconID,
				); err != nil {
					return fmt.Errorf("insert history: %w", err)
				}
			}

			if !faviconID.Valid && it.Domain != "" && !seen[it.Domain] {
				seen[it.Domain] = true
				missing = append(missing, it.Domain)
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("upserted history items", "count", len(items), "domains_missing_favicon", len(missing))

	return missing, nil
}

// Page returns one page of items sorted by last visit descending.
func (r *SQLite) Page(ctx context.Context, limit, offset int) ([]*history.Item, error) {
	var rows []historyRow
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.Select(&rows, selectItems+`
    ORDER BY h.last_visit DESC, h.id ASC
    LIMIT ? OFFSET ?`, limit, offset)
	})
	if err != nil {
		return nil, fmt.Errorf("paging history: %w", err)
	}

	return rowsToModel(rows), nil
}

// AllItems returns every item sorted by last visit descending.
func (r *SQLite) AllItems(ctx context.Context) ([]*history.Item, error) {
	var rows []historyRow
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.Select(&rows, selectItems+`
    ORDER BY h.last_visit DESC, h.id ASC`)
	})
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	return rowsToModel(rows), nil
}

// ByURL returns the item with the given URL.
func (r *SQLite) ByURL(ctx context.Context, bURL string) (*history.Item, error) {
	var row historyRow
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.Get(&row, selectItems+" WHERE h.url = ?", bURL)
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %q", ErrRecordNotFound, bURL)
		}

		return nil, fmt.Errorf("by url: %w", err)
	}

	return row.toModel(), nil
}

// DeleteVisitsSince removes history rows with a last visit at or after the
// given epoch-millis cutoff.
func (r *SQLite) DeleteVisitsSince(ctx context.Context, cutoff int64) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.Exec("DELETE FROM history WHERE last_visit >= ?", cutoff)
		if err != nil {
			return fmt.Errorf("deleting recent history: %w", err)
		}

		n, _ := res.RowsAffected()
		slog.Debug("deleted recent history rows", "count", n, "cutoff", cutoff)

		return nil
	})
}

// CountHistory returns the number of history rows.
func (r *SQLite) CountHistory(ctx context.Context) int {
	var n int
	if err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.Get(&n, "SELECT COUNT(*) FROM history")
	}); err != nil {
		slog.Warn("count history", "error", err)
		return 0
	}

	return n
}

func rowsToModel(rows []historyRow) []*history.Item {
	items := make([]*history.Item, len(rows))
	for i := range rows {
		items[i] = rows[i].toModel()
	}

	return items
}
