// Package repo composes the source adapters, the cache store and the
// favicon pipeline behind a single facade consumed by observers.
//
// The facade owns the in-memory snapshot and the pagination cursor. The
// snapshot is immutable: every merge, page load or enrichment update
// replaces it wholesale and publishes the replacement to subscribers.
package repo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mateconpizza/hsearch/internal/browser"
	"github.com/mateconpizza/hsearch/internal/db"
	"github.com/mateconpizza/hsearch/internal/favicon"
	"github.com/mateconpizza/hsearch/internal/history"
)

// PageSize is the number of items loaded per page.
const PageSize = 1000

type OptFn func(*Repo)

// Repo is the repository facade.
type Repo struct {
	store      *db.SQLite
	fetcher    *favicon.Fetcher
	extractors []browser.Extractor
	pageSize   int
	noNetwork  bool

	// loading serializes refresh and loadMore; a second invocation while
	// one is in flight is a no-op.
	loading atomic.Bool

	mu          sync.Mutex
	snapshot    []*history.Item
	subscribers map[int]chan []*history.Item
	nextSubID   int
	offset      int
	hasMore     bool
	sel         history.Selection

	// inflight guards against duplicate concurrent fetches per domain.
	// The favicon-exists check and the in-flight mark happen under the
	// same lock, as one atomic step.
	inflightMu sync.Mutex
	inflight   map[string]bool

	// enrichment pacing and batching
	wg sync.WaitGroup
}

// WithPageSize overrides the page size, used by tests.
func WithPageSize(n int) OptFn {
	return func(r *Repo) {
		r.pageSize = n
	}
}

// WithExtractors sets the source adapters.
func WithExtractors(ex ...browser.Extractor) OptFn {
	return func(r *Repo) {
		r.extractors = ex
	}
}

// WithoutNetwork disables favicon enrichment.
func WithoutNetwork() OptFn {
	return func(r *Repo) {
		r.noNetwork = true
	}
}

// New creates the facade around an open store.
func New(store *db.SQLite, fetcher *favicon.Fetcher, opts ...OptFn) *Repo {
	r := &Repo{
		store:       store,
		fetcher:     fetcher,
		pageSize:    PageSize,
		hasMore:     true,
		subscribers: make(map[int]chan []*history.Item),
		inflight:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Bootstrap prepares the initial snapshot. An empty store triggers a full
// extraction from every available adapter; otherwise the first page is
// served straight from the store.
func (r *Repo) Bootstrap(ctx context.Context) error {
	if !r.store.IsEmpty(ctx) {
		slog.Debug("store already populated, skipping bootstrap extraction")
		return r.loadInitialPage(ctx)
	}

	items := r.extractAll(ctx, history.All)
	merged := history.Merge(items)

	missing, err := r.store.UpsertItems(ctx, merged)
	if err != nil {
		return fmt.Errorf("bootstrap persist: %w", err)
	}

	if err := r.loadInitialPage(ctx); err != nil {
		return err
	}

	r.enrichAsync(ctx, missing)

	return nil
}

// Refresh re-extracts today's visits from the adapters matching sel,
// replaces today's rows and re-pages from the start. With deleteFavicons
// all cached icons are purged first. Serialized through the same guard as
// LoadMore: a concurrent invocation is a no-op returning the current
// snapshot.
func (r *Repo) Refresh(ctx context.Context, sel history.Selection, deleteFavicons bool) ([]*history.Item, error) {
	if !r.loading.CompareAndSwap(false, true) {
		slog.Debug("refresh skipped, load in progress")
		return r.Snapshot(), nil
	}
	defer r.loading.Store(false)

	startOfToday := startOfTodayMillis()

	if err := r.store.DeleteVisitsSince(ctx, startOfToday); err != nil {
		return nil, fmt.Errorf("refresh: %w", err)
	}
	if deleteFavicons {
		slog.Info("deleting all cached favicons")
		if err := r.store.DeleteAllFavicons(ctx); err != nil {
			return nil, fmt.Errorf("refresh: %w", err)
		}
	}

	extracted := r.extractAll(ctx, sel)

	// only today's visits survive a refresh
	today := extracted[:0]
	for _, it := range extracted {
		if it.LastVisit >= startOfToday {
			today = append(today, it)
		}
	}
	merged := history.Merge(today)

	missing, err := r.store.UpsertItems(ctx, merged)
	if err != nil {
		return nil, fmt.Errorf("refresh persist: %w", err)
	}

	page, err := r.store.Page(ctx, r.pageSize, 0)
	if err != nil {
		return nil, fmt.Errorf("refresh page: %w", err)
	}

	r.mu.Lock()
	r.sel = sel
	r.offset = r.pageSize
	r.hasMore = true
	r.snapshot = page
	r.mu.Unlock()
	r.publish(page)

	r.enrichAsync(ctx, missing)

	return page, nil
}

// LoadMore advances the pagination cursor by one page, appending to the
// snapshot. A no-op if a load is already in flight or no more rows exist.
func (r *Repo) LoadMore(ctx context.Context) error {
	r.mu.Lock()
	hasMore := r.hasMore
	offset := r.offset
	r.mu.Unlock()

	if !hasMore {
		return nil
	}
	if !r.loading.CompareAndSwap(false, true) {
		return nil
	}
	defer r.loading.Store(false)

	page, err := r.store.Page(ctx, r.pageSize, offset)
	if err != nil {
		return fmt.Errorf("load more: %w", err)
	}

	if len(page) == 0 {
		r.mu.Lock()
		r.hasMore = false
		r.mu.Unlock()

		return nil
	}

	r.mu.Lock()
	r.offset += r.pageSize
	next := make([]*history.Item, 0, len(r.snapshot)+len(page))
	next = append(next, r.snapshot...)
	next = append(next, page...)
	r.snapshot = next
	r.mu.Unlock()
	r.publish(next)

	r.enrichAsync(ctx, domainsMissingFavicon(page))

	return nil
}

// IsLoadingMore reports whether a background load is in progress.
func (r *Repo) IsLoadingMore() bool {
	return r.loading.Load()
}

// Search ranks the current snapshot against a free-text query,
// restricted to the currently selected browser. Pure and synchronous.
func (r *Repo) Search(query string) []*history.Item {
	r.mu.Lock()
	sel := r.sel
	items := r.snapshot
	r.mu.Unlock()

	if sel != history.All {
		filtered := make([]*history.Item, 0, len(items))
		for _, it := range items {
			if sel.Matches(it.Browser) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}

	return history.Rank(items, query)
}

// SetSelection sets the browser filter applied by Search.
func (r *Repo) SetSelection(sel history.Selection) {
	r.mu.Lock()
	r.sel = sel
	r.mu.Unlock()
}

// RecordQuery persists the tokens of a committed query.
func (r *Repo) RecordQuery(ctx context.Context, query string) error {
	return r.store.RecordQuery(ctx, query, time.Now().UnixMilli())
}

// Suggestions returns autocomplete suggestions for a prefix, most
// frequent and most recent first.
func (r *Repo) Suggestions(ctx context.Context, prefix string, limit int) ([]string, error) {
	return r.store.Suggestions(ctx, prefix, limit)
}

// Validate returns diagnostic row counts: history and favicons.
func (r *Repo) Validate(ctx context.Context) (historyRows, faviconRows int) {
	h := r.store.CountHistory(ctx)
	f := r.store.CountFavicons(ctx)
	slog.Info("store contents", "history_rows", h, "favicon_rows", f, "path", r.store.Path())

	return h, f
}

// Snapshot returns the current snapshot.
func (r *Repo) Snapshot() []*history.Item {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshot
}

// Subscribe registers an observer of snapshot replacements. The returned
// cancel func must be called to release the channel. A slow subscriber
// only ever observes the latest snapshot; intermediate ones are dropped.
func (r *Repo) Subscribe() (<-chan []*history.Item, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSubID
	r.nextSubID++
	ch := make(chan []*history.Item, 1)
	r.subscribers[id] = ch

	return ch, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subscribers[id]; ok {
			delete(r.subscribers, id)
			close(ch)
		}
	}
}

// Wait blocks until background enrichment finishes. Used by the CLI and
// tests to avoid exiting mid-fetch.
func (r *Repo) Wait() {
	r.wg.Wait()
}

// publish replaces any undelivered snapshot with the newest one.
func (r *Repo) publish(snapshot []*history.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.subscribers {
		select {
		case <-ch: // drop the stale snapshot
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
}

// loadInitialPage loads page zero and publishes it.
func (r *Repo) loadInitialPage(ctx context.Context) error {
	page, err := r.store.Page(ctx, r.pageSize, 0)
	if err != nil {
		return fmt.Errorf("initial page: %w", err)
	}

	r.mu.Lock()
	r.snapshot = page
	r.offset = r.pageSize
	r.hasMore = true
	r.mu.Unlock()
	r.publish(page)

	return nil
}

// extractAll runs every available adapter matching sel. Adapter failures
// are logged and contribute nothing; a missing browser is simply absent
// from the result.
func (r *Repo) extractAll(ctx context.Context, sel history.Selection) []*history.Item {
	var out []*history.Item
	for _, ex := range r.extractors {
		if !sel.Matches(ex.Browser()) || !ex.IsAvailable() {
			continue
		}

		items, err := ex.Extract(ctx, browser.DefaultLimit)
		if err != nil {
			slog.Warn("adapter extraction failed", "browser", ex.Browser(), "error", err)
			continue
		}

		slog.Debug("extracted", "browser", ex.Browser(), "items", len(items))
		out = append(out, items...)
	}

	return out
}

func domainsMissingFavicon(items []*history.Item) []string {
	seen := make(map[string]bool)
	var domains []string
	for _, it := range items {
		if it.Favicon != nil || it.Domain == "" || seen[it.Domain] {
			continue
		}
		seen[it.Domain] = true
		domains = append(domains, it.Domain)
	}

	return domains
}

func startOfTodayMillis() int64 {
	now := time.Now()
	y, m, d := now.Date()

	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).UnixMilli()
}
