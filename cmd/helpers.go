package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mateconpizza/hsearch/internal/browser"
	"github.com/mateconpizza/hsearch/internal/browser/blink"
	"github.com/mateconpizza/hsearch/internal/browser/gecko"
	"github.com/mateconpizza/hsearch/internal/config"
	"github.com/mateconpizza/hsearch/internal/db"
	"github.com/mateconpizza/hsearch/internal/favicon"
	"github.com/mateconpizza/hsearch/internal/history"
	"github.com/mateconpizza/hsearch/internal/repo"
)

// openRepo opens the cache store and assembles the repository with every
// supported browser adapter. The teardown closes the store after waiting
// for background work.
func openRepo(_ context.Context) (*repo.Repo, func(), error) {
	store, err := db.Open(config.App.DBPath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening cache: %w", err)
	}

	fetcher := favicon.New(favicon.WithIconSize(config.App.Fetch.IconSize))

	opts := []repo.OptFn{repo.WithExtractors(extractors()...)}
	if config.App.Flags.NoNetwork {
		opts = append(opts, repo.WithoutNetwork())
	}

	r := repo.New(store, fetcher, opts...)

	return r, func() {
		r.Wait()
		store.Close()
	}, nil
}

// extractors builds the adapter list. Unsupported names are a programmer
// error and skipped with a log entry.
func extractors() []browser.Extractor {
	var out []browser.Extractor

	for _, name := range []history.Browser{history.Chrome, history.Thorium} {
		ex, err := blink.New(name)
		if err != nil {
			slog.Error("building blink adapter", "browser", name, "error", err)
			continue
		}
		out = append(out, ex)
	}

	gk, err := gecko.New(history.Zen)
	if err != nil {
		slog.Error("building gecko adapter", "browser", history.Zen, "error", err)
		return out
	}

	return append(out, gk)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// printItems writes results either as pretty lines or as a JSON array.
func printItems(w io.Writer, items []*history.Item) error {
	if config.App.Flags.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(items)
	}

	for _, it := range items {
		visited := time.UnixMilli(it.LastVisit).Format("2006-01-02 15:04")
		title := it.Title
		if title == "" {
			title = it.Domain
		}

		fmt.Fprintf(w, "%s  [%s] %s\n    %s\n", visited, it.Browser, title, it.URL)
	}

	return nil
}
