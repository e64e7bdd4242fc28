// Package gecko extracts recent history from Gecko-family browsers.
package gecko

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	ini "gopkg.in/ini.v1"

	"github.com/mateconpizza/hsearch/internal/browser"
	browserpath "github.com/mateconpizza/hsearch/internal/browser/paths"
	"github.com/mateconpizza/hsearch/internal/history"
	"github.com/mateconpizza/hsearch/internal/sys/files"
)

var geckoBrowserRoots = map[history.Browser][]string{
	history.Zen: browserpath.GeckoRoots([]string{"Zen", "zen", "Zen Browser"}, ".zen"),
}

// GeckoBrowser reads the `moz_places` table of a places.sqlite database.
// Timestamps are microseconds since the Unix epoch.
type GeckoBrowser struct {
	name  history.Browser
	roots []string
}

// New returns the adapter for a supported Gecko-family browser.
func New(name history.Browser) (*GeckoBrowser, error) {
	roots, ok := geckoBrowserRoots[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", browser.ErrBrowserUnsupported, name)
	}

	return &GeckoBrowser{name: name, roots: roots}, nil
}

func (b *GeckoBrowser) Browser() history.Browser {
	return b.name
}

// IsAvailable reports whether the browser's data directory exists.
func (b *GeckoBrowser) IsAvailable() bool {
	_, ok := browserpath.FirstExisting(b.roots)
	return ok
}

// Extract reads visits from the last 24 hours across all profiles.
// Per-profile failures are logged and skipped.
func (b *GeckoBrowser) Extract(ctx context.Context, limit int) ([]*history.Item, error) {
	root, ok := browserpath.FirstExisting(b.roots)
	if !ok {
		return nil, fmt.Errorf("%w: %q", browser.ErrBrowserUnavailable, b.name)
	}

	profiles := profileDirs(root)
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: %q in %q", browser.ErrNoProfiles, b.name, root)
	}

	cutoff := history.EpochMillisToGecko(time.Now().Add(-24 * time.Hour).UnixMilli())

	var out []*history.Item
	for _, p := range profiles {
		dbFile := filepath.Join(p, "places.sqlite")
		if !files.Exists(dbFile) {
			continue
		}

		items, err := extractProfile(ctx, b.name, filepath.Base(p), dbFile, cutoff, limit)
		if err != nil {
			slog.Warn("gecko profile extraction failed",
				"browser", b.name, "profile", filepath.Base(p), "error", err)
			continue
		}
		out = append(out, items...)
	}

	return out, nil
}

// profileDirs resolves profile directories for root, preferring
// profiles.ini, falling back to scanning for conventional profile
// directory names. Newest-modified first.
func profileDirs(root string) []string {
	dirs := profilesFromINI(root)
	if len(dirs) == 0 {
		dirs = scanProfileDirs(root)
	}

	sort.Slice(dirs, func(i, j int) bool {
		return files.ModTime(dirs[i]).After(files.ModTime(dirs[j]))
	})

	return dirs
}

// profilesFromINI reads profile paths from the browser's profiles.ini.
func profilesFromINI(root string) []string {
	p := filepath.Join(root, "profiles.ini")
	if !files.Exists(p) {
		return nil
	}

	inidata, err := ini.Load(p)
	if err != nil {
		slog.Warn("loading profiles.ini", "path", p, "error", err)
		return nil
	}

	var dirs []string
	for _, sec := range inidata.Sections() {
		if !strings.HasPrefix(sec.Name(), "Profile") {
			continue
		}

		path := sec.Key("Path").String()
		if path == "" {
			continue
		}
		if sec.Key("IsRelative").MustInt(1) == 1 {
			path = filepath.Join(root, path)
		}
		if files.Exists(path) {
			dirs = append(dirs, path)
		}
	}

	return dirs
}

// scanProfileDirs looks for profile-shaped directory names under root and
// root/Profiles.
func scanProfileDirs(root string) []string {
	base := root
	if files.Exists(filepath.Join(root, "Profiles")) {
		base = filepath.Join(root, "Profiles")
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		slog.Warn("reading browser root", "root", base, "error", err)
		return nil
	}

	var dirs []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.Contains(name, "default") || strings.Contains(name, "release") {
			dirs = append(dirs, filepath.Join(base, e.Name()))
		}
	}

	return dirs
}

type placeRow struct {
	URL           string         `db:"url"`
	Title         sql.NullString `db:"title"`
	LastVisitDate sql.NullInt64  `db:"last_visit_date"`
	VisitCount    int            `db:"visit_count"`
}

// extractProfile copies places.sqlite to a private temp file before
// reading; the original may be locked by a running browser. The copy is
// removed unconditionally.
func extractProfile(
	ctx context.Context,
	name history.Browser,
	profile, dbFile string,
	cutoff int64,
	limit int,
) ([]*history.Item, error) {
	tmp, err := files.CopyToTemp("gecko-places", dbFile)
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
		return nil, fmt.Errorf("opening places copy: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Warn("closing places copy", "error", err)
		}
	}()

	var rows []placeRow
	err = db.SelectContext(ctx, &rows, `
    SELECT url, title, last_visit_date, visit_count
    FROM moz_places
    WHERE last_visit_date >= ?
    ORDER BY last_visit_date DESC
    LIMIT ?`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("querying moz_places: %w", err)
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
			Title:      row.Title.String,
			LastVisit:  history.GeckoToEpochMillis(row.LastVisitDate.Int64),
			VisitCount: row.VisitCount,
			Domain:     history.Domain(row.URL),
		})
	}

	slog.Debug("extracted gecko profile", "browser", name, "profile", profile, "items", len(items))

	return items, nil
}
