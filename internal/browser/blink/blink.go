// Package blink extracts recent history from Chromium-family browsers.
package blink

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/mateconpizza/hsearch/internal/browser"
	browserpath "github.com/mateconpizza/hsearch/internal/browser/paths"
	"github.com/mateconpizza/hsearch/internal/history"
	"github.com/mateconpizza/hsearch/internal/sys/files"
)

var blinkBrowserRoots = map[history.Browser][]string{
	history.Chrome:  browserpath.BlinkRoots(filepath.Join("Google", "Chrome"), "google-chrome"),
	history.Thorium: browserpath.BlinkRoots("Thorium", "thorium"),
}

// BlinkBrowser reads the `urls` table of a Chromium-family History
// database. Timestamps are microseconds since 1601-01-01.
type BlinkBrowser struct {
	name  history.Browser
	roots []string
}

// New returns the adapter for a supported Chromium-family browser.
func New(name history.Browser) (*BlinkBrowser, error) {
	roots, ok := blinkBrowserRoots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", browser.ErrBrowserUnsupported, name)
	}

	return &BlinkBrowser{name: name, roots: roots}, nil
}

func (b *BlinkBrowser) Browser() history.Browser {
	return b.name
}

// IsAvailable reports whether the browser's data directory exists.
func (b *BlinkBrowser) IsAvailable() bool {
	_, ok := browserpath.FirstExisting(b.roots)
	return ok
}

// Extract reads visits from the last 24 hours across all profiles, newest
// profile first. Per-profile failures are logged and skipped.
func (b *BlinkBrowser) Extract(ctx context.Context, limit int) ([]*history.Item, error) {
	root, ok := browserpath.FirstExisting(b.roots)
	if !ok {
		return nil, fmt.Errorf("%w: %q", browser.ErrBrowserUnavailable, b.name)
	}

	profiles := profileDirs(root)
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: %q in %q", browser.ErrNoProfiles, b.name, root)
	}

	cutoff := history.EpochMillisToChrome(time.Now().Add(-24 * time.Hour).UnixMilli())

	var out []*history.Item
	for _, p := range profiles {
		dbFile := filepath.Join(p, "History")
		if !files.Exists(dbFile) {
			continue
		}

		items, err := extractProfile(ctx, b.name, filepath.Base(p), dbFile, cutoff, limit)
		if err != nil {
			slog.Warn("blink profile extraction failed",
				"browser", b.name, "profile", filepath.Base(p), "error", err)
			continue
		}
		out = append(out, items...)
	}

	return out, nil
}

// profileDirs returns profile directories under root, newest-modified
// first. Chromium names them "Default" and "Profile N".
func profileDirs(root string) []string {
	entries, err := os.ReadDir(root)
	if err != nil {
		slog.Warn("reading browser root", "root", root, "error", err)
		return nil
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if e.Name() == "Default" || strings.HasPrefix(e.Name(), "Profile ") {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}

	sort.Slice(dirs, func(i, j int) bool {
		return files.ModTime(dirs[i]).After(files.ModTime(dirs[j]))
	})

	return dirs
}

type urlRow struct {
	URL           string `db:"url"`
	Title         string `db:"title"`
	LastVisitTime int64  `db:"last_visit_time"`
	VisitCount    int    `db:"visit_count"`
}

// extractProfile copies the profile's History database to a private temp
// file before reading; the original may be open and actively written by
// the browser. The copy is removed unconditionally.
func extractProfile(
	ctx context.Context,
	name history.Browser,
	profile, dbFile string,
	cutoff int64,
	limit int,
) ([]*history.Item, error) {
	tmp, err := files.CopyToTemp("blink-hist", dbFile)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.Remove(tmp); err != nil {
			slog.Warn("removing temp copy", "path", tmp, "error", err)
		}
	}()

	db, err := sqlx.Open("sqlite3", "file:"+tmp+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("opening history copy: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Warn("closing history copy", "error", err)
		}
	}()

	var rows []urlRow
	err = db.SelectContext(ctx, &rows, `
    SELECT url, title, last_visit_time, visit_count
    FROM urls
    WHERE last_visit_time >= ?
    ORDER BY last_visit_time DESC
    LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("querying urls: %w", err)
	}

	items := make([]*history.Item, 0, len(rows))
	for _, row := range rows {
		if history.IsInternalURL(row.URL) {
			continue
		}

		items = append(items, &history.Item{
			Browser:    name,
			Profile:    profile,
			URL:        row.URL,
			Title:      row.Title,
			LastVisit:  history.ChromeToEpochMillis(row.LastVisitTime),
			VisitCount: row.VisitCount,
			Domain:     history.Domain(row.URL),
		})
	}

	slog.Debug("extracted blink profile", "browser", name, "profile", profile, "items", len(items))

	return items, nil
}
