package repo

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/mateconpizza/hsearch/internal/db"
	"github.com/mateconpizza/hsearch/internal/history"
)

const (
	// faviconBatchSize bounds concurrent fetches per batch.
	faviconBatchSize = 5
	// faviconFetchInterval paces individual fetch attempts so no favicon
	// service gets hammered.
	faviconFetchInterval = 100 * time.Millisecond
)

// enrichAsync starts background favicon enrichment for the given domains.
// Fire-and-forget: the write path never waits on it.
func (r *Repo) enrichAsync(ctx context.Context, domains []string) {
	if r.noNetwork || len(domains) == 0 {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.enrichDomains(ctx, domains)
	}()
}

// enrichDomains fetches favicons for domains in fixed-size batches. After
// each batch the full data set is reloaded from the store and the snapshot
// republished, so observers see newly arrived icons without a page reload.
func (r *Repo) enrichDomains(ctx context.Context, domains []string) {
	slog.Info("starting favicon enrichment", "domains", len(domains))
	start := time.Now()

	var fetched, failed atomic.Int32

	limiter := rate.NewLimiter(rate.Every(faviconFetchInterval), 1)

	for batch := range slices.Chunk(domains, faviconBatchSize) {
		g, gctx := errgroup.WithContext(ctx)
		for _, domain := range batch {
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					return err
				}

				f, err := r.EnrichDomain(gctx, domain)
				switch {
				case err != nil:
					failed.Add(1)
					slog.Debug("favicon fetch failed", "domain", domain, "error", err)
				case f != nil:
					fetched.Add(1)
				}

				// fetch failures never abort the batch
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			slog.Warn("enrichment aborted", "error", err)
			return
		}

		r.republishFromStore(ctx)
	}

	slog.Info("favicon enrichment done",
		"fetched", fetched.Load(), "failed", failed.Load(), "took", time.Since(start))
}

// EnrichDomain obtains a favicon for a domain and persists it. A cached
// icon is returned without a network call. At most one fetch is in flight
// per domain: concurrent callers for the same domain get (nil, nil). The
// exists-check and the in-flight mark are a single atomic step.
func (r *Repo) EnrichDomain(ctx context.Context, domain string) (*history.Favicon, error) {
	r.inflightMu.Lock()
	if r.inflight[domain] {
		r.inflightMu.Unlock()
		return nil, nil
	}

	cached, err := r.store.FaviconByDomain(ctx, domain)
	if err == nil {
		r.inflightMu.Unlock()
		return cached, nil
	}
	if !errors.Is(err, db.ErrRecordNotFound) {
		r.inflightMu.Unlock()
		return nil, err
	}

	r.inflight[domain] = true
	r.inflightMu.Unlock()

	defer func() {
		r.inflightMu.Lock()
		delete(r.inflight, domain)
		r.inflightMu.Unlock()
	}()

	data, err := r.fetcher.Fetch(ctx, domain)
	if err != nil {
		return nil, err
	}

	return r.store.SaveFavicon(ctx, domain, data)
}

// republishFromStore replaces the snapshot with the full data set.
func (r *Repo) republishFromStore(ctx context.Context) {
	items, err := r.store.AllItems(ctx)
	if err != nil {
		slog.Warn("reloading after enrichment", "error", err)
		return
	}

	r.mu.Lock()
	r.snapshot = items
	r.mu.Unlock()
	r.publish(items)
}
