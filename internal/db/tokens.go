package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
)

// minTokenLen is the shortest query word worth remembering.
const minTokenLen = 3

// RecordQuery persists the search terms of a committed query. Words are
// lowercased, deduplicated and dropped when shorter than three characters;
// each surviving token has its frequency incremented and last-used stamp
// refreshed.
func (r *SQLite) RecordQuery(ctx context.Context, query string, now int64) error {
	words := tokenize(query)
	if len(words) == 0 {
		return nil
	}

	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, w := range words {
			_, err := tx.Exec(`
    INSERT INTO tokens (text, frequency, last_used) VALUES (?, 1, ?)
    ON CONFLICT (text) DO UPDATE SET frequency = frequency + 1, last_used = ?`,
				w, now, now,
			)
			if err != nil {
				return fmt.Errorf("recording token %q: %w", w, err)
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	slog.Debug("recorded query tokens", "count", len(words))

	return nil
}

// Suggestions returns stored tokens starting with prefix, ordered by
// frequency then recency, both descending.
func (r *SQLite) Suggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	p := strings.ToLower(strings.TrimSpace(prefix))
	if p == "" {
		return nil, nil
	}

	var out []string
	err := r.withTx(ctx, func(tx *sqlx.Tx) error {
		return tx.Select(&out, `
    SELECT text FROM tokens
    WHERE text LIKE ? ESCAPE '\'
    ORDER BY frequency DESC, last_used DESC
    LIMIT ?`, escapeLike(p)+"%", limit)
	})
	if err != nil {
		return nil, fmt.Errorf("suggestions: %w", err)
	}

	return out, nil
}

func tokenize(query string) []string {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(query)))
	seen := make(map[string]bool, len(fields))
	words := make([]string, 0, len(fields))
	for _, w := range fields {
		if len(w) < minTokenLen || seen[w] {
			continue
		}
		seen[w] = true
		words = append(words, w)
	}

	return words
}

// escapeLike escapes LIKE wildcards in user input.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)

	return s
}
