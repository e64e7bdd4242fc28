package repo

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mateconpizza/hsearch/internal/browser"
	"github.com/mateconpizza/hsearch/internal/db"
	"github.com/mateconpizza/hsearch/internal/favicon"
	"github.com/mateconpizza/hsearch/internal/history"
)

var _ browser.Extractor = (*fakeExtractor)(nil)

type fakeExtractor struct {
	browser   history.Browser
	available bool
	items     []*history.Item
	calls     atomic.Int32
}

func (f *fakeExtractor) Browser() history.Browser { return f.browser }
func (f *fakeExtractor) IsAvailable() bool        { return f.available }

func (f *fakeExtractor) Extract(_ context.Context, _ int) ([]*history.Item, error) {
	f.calls.Add(1)
	return f.items, nil
}

// roundTripFn serves canned HTTP responses without touching the network.
type roundTripFn func(*http.Request) (*http.Response, error)

func (fn roundTripFn) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

func iconClient(requests *atomic.Int32) *http.Client {
	return &http.Client{
		Transport: roundTripFn(func(req *http.Request) (*http.Response, error) {
			if requests != nil {
				requests.Add(1)
			}
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"image/png"}},
				Body:       io.NopCloser(bytes.NewReader([]byte{0x89, 'P', 'N', 'G'})),
				Request:    req,
			}, nil
		}),
	}
}

func testItem(b history.Browser, url string, lastVisit int64) *history.Item {
	return &history.Item{
		Browser:    b,
		Profile:    "Default",
		URL:        url,
		Title:      url,
		LastVisit:  lastVisit,
		VisitCount: 1,
		Domain:     history.Domain(url),
	}
}

func setupRepo(t *testing.T, opts ...OptFn) *Repo {
	t.Helper()

	store, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	opts = append([]OptFn{WithoutNetwork()}, opts...)

	return New(store, favicon.New(), opts...)
}

func TestBootstrapExtractsOnlyWhenEmpty(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	ex := &fakeExtractor{
		browser:   history.Chrome,
		available: true,
		items: []*history.Item{
			testItem(history.Chrome, "https://go.dev/doc", now),
			testItem(history.Chrome, "https://pkg.go.dev/", now-1000),
		},
	}
	r := setupRepo(t, WithExtractors(ex))

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))
	assert.Len(t, r.Snapshot(), 2)
	assert.Equal(t, int32(1), ex.calls.Load())

	// populated store: second bootstrap serves from cache
	require.NoError(t, r.Bootstrap(ctx))
	assert.Len(t, r.Snapshot(), 2)
	assert.Equal(t, int32(1), ex.calls.Load())
}

func TestBootstrapMergesAcrossBrowsers(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	chrome := &fakeExtractor{
		browser:   history.Chrome,
		available: true,
		items:     []*history.Item{testItem(history.Chrome, "https://go.dev/doc", now - 5000)},
	}
	zen := &fakeExtractor{
		browser:   history.Zen,
		available: true,
		items:     []*history.Item{testItem(history.Zen, "https://go.dev/doc", now)},
	}
	r := setupRepo(t, WithExtractors(chrome, zen))

	require.NoError(t, r.Bootstrap(context.Background()))

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, now, snap[0].LastVisit)
	assert.Equal(t, history.Zen, snap[0].Browser)
}

func TestBootstrapSkipsUnavailableExtractors(t *testing.T) {
	t.Parallel()

	missing := &fakeExtractor{browser: history.Thorium, available: false}
	r := setupRepo(t, WithExtractors(missing))

	require.NoError(t, r.Bootstrap(context.Background()))
	assert.Empty(t, r.Snapshot())
	assert.Equal(t, int32(0), missing.calls.Load())
}

func TestLoadMorePaginates(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	items := make([]*history.Item, 5)
	for i := range items {
		items[i] = testItem(history.Chrome, "https://example.com/p"+string(rune('a'+i)), now-int64(i)*1000)
	}
	ex := &fakeExtractor{browser: history.Chrome, available: true, items: items}
	r := setupRepo(t, WithExtractors(ex), WithPageSize(2))

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))
	assert.Len(t, r.Snapshot(), 2)

	require.NoError(t, r.LoadMore(ctx))
	assert.Len(t, r.Snapshot(), 4)

	require.NoError(t, r.LoadMore(ctx))
	assert.Len(t, r.Snapshot(), 5)

	// exhausted: further calls are no-ops
	require.NoError(t, r.LoadMore(ctx))
	require.NoError(t, r.LoadMore(ctx))
	assert.Len(t, r.Snapshot(), 5)
	assert.False(t, r.IsLoadingMore())
}

func TestLoadMoreKeepsNewestFirst(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	items := []*history.Item{
		testItem(history.Chrome, "https://example.com/old", now-2000),
		testItem(history.Chrome, "https://example.com/new", now),
		testItem(history.Chrome, "https://example.com/mid", now-1000),
	}
	ex := &fakeExtractor{browser: history.Chrome, available: true, items: items}
	r := setupRepo(t, WithExtractors(ex), WithPageSize(2))

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))
	require.NoError(t, r.LoadMore(ctx))

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "https://example.com/new", snap[0].URL)
	assert.Equal(t, "https://example.com/mid", snap[1].URL)
	assert.Equal(t, "https://example.com/old", snap[2].URL)
}

func TestRefreshKeepsOnlyTodaysExtraction(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	yesterday := now - 36*time.Hour.Milliseconds()
	ex := &fakeExtractor{
		browser:   history.Chrome,
		available: true,
		items: []*history.Item{
			testItem(history.Chrome, "https://example.com/stale", yesterday),
			testItem(history.Chrome, "https://example.com/fresh", now),
		},
	}
	r := setupRepo(t, WithExtractors(ex))

	page, err := r.Refresh(context.Background(), history.All, false)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "https://example.com/fresh", page[0].URL)
}

func TestRefreshReplacesTodaysRows(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	ex := &fakeExtractor{
		browser:   history.Chrome,
		available: true,
		items:     []*history.Item{testItem(history.Chrome, "https://example.com/a", now - 1000)},
	}
	r := setupRepo(t, WithExtractors(ex))

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))
	require.Len(t, r.Snapshot(), 1)

	// the browser recorded a newer visit since bootstrap
	ex.items = []*history.Item{
		testItem(history.Chrome, "https://example.com/a", now-1000),
		testItem(history.Chrome, "https://example.com/b", now),
	}

	page, err := r.Refresh(ctx, history.All, false)
	require.NoError(t, err)
	assert.Len(t, page, 2)
}

func TestRefreshSkippedWhileLoading(t *testing.T) {
	t.Parallel()

	ex := &fakeExtractor{browser: history.Chrome, available: true}
	r := setupRepo(t, WithExtractors(ex))
	require.NoError(t, r.Bootstrap(context.Background()))

	r.loading.Store(true)
	defer r.loading.Store(false)
	assert.True(t, r.IsLoadingMore())

	_, err := r.Refresh(context.Background(), history.All, false)
	require.NoError(t, err)
	assert.Equal(t, int32(1), ex.calls.Load(), "refresh must not extract while a load is in flight")
}

func TestRefreshWithSelectionExtractsOneBrowser(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	chrome := &fakeExtractor{
		browser:   history.Chrome,
		available: true,
		items:     []*history.Item{testItem(history.Chrome, "https://example.com/c", now)},
	}
	zen := &fakeExtractor{
		browser:   history.Zen,
		available: true,
		items:     []*history.Item{testItem(history.Zen, "https://example.com/z", now)},
	}
	r := setupRepo(t, WithExtractors(chrome, zen))

	page, err := r.Refresh(context.Background(), history.Selection{Browser: history.Zen}, false)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, history.Zen, page[0].Browser)
	assert.Equal(t, int32(0), chrome.calls.Load())
}

func TestSearchHonorsSelection(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	ex := &fakeExtractor{
		browser:   history.Chrome,
		available: true,
		items: []*history.Item{
			testItem(history.Chrome, "https://golang.org/ref/spec", now),
		},
	}
	zen := &fakeExtractor{
		browser:   history.Zen,
		available: true,
		items: []*history.Item{
			testItem(history.Zen, "https://golang.org/doc/faq", now - 1000),
		},
	}
	r := setupRepo(t, WithExtractors(ex, zen))
	require.NoError(t, r.Bootstrap(context.Background()))

	all := r.Search("golang")
	assert.Len(t, all, 2)

	r.SetSelection(history.Selection{Browser: history.Zen})
	got := r.Search("golang")
	require.Len(t, got, 1)
	assert.Equal(t, history.Zen, got[0].Browser)

	r.SetSelection(history.All)
	assert.Len(t, r.Search("golang"), 2)
}

func TestSubscribeDeliversLatestSnapshot(t *testing.T) {
	t.Parallel()

	r := setupRepo(t)
	ch, cancel := r.Subscribe()
	defer cancel()

	a := []*history.Item{testItem(history.Chrome, "https://example.com/a", 1)}
	b := []*history.Item{
		testItem(history.Chrome, "https://example.com/a", 1),
		testItem(history.Chrome, "https://example.com/b", 2),
	}

	// two publishes before the subscriber reads: only the latest survives
	r.publish(a)
	r.publish(b)

	select {
	case got := <-ch:
		assert.Len(t, got, 2)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	t.Parallel()

	r := setupRepo(t)
	ch, cancel := r.Subscribe()
	cancel()
	cancel() // safe to call twice

	_, open := <-ch
	assert.False(t, open)

	// publishing after cancel must not panic
	r.publish(nil)
}

func TestEnrichDomainFetchesOncePerDomain(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	store, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	fetcher := favicon.New(favicon.WithClient(iconClient(&requests)))
	r := New(store, fetcher)

	ctx := context.Background()

	f, err := r.EnrichDomain(ctx, "go.dev")
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.NotEmpty(t, f.ImageData)
	first := requests.Load()
	assert.Positive(t, first)

	// cached now: no further requests
	f2, err := r.EnrichDomain(ctx, "go.dev")
	require.NoError(t, err)
	require.NotNil(t, f2)
	assert.Equal(t, first, requests.Load())
}

func TestEnrichDomainConcurrentCallersDeduplicated(t *testing.T) {
	t.Parallel()

	store, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	release := make(chan struct{})
	client := &http.Client{
		Transport: roundTripFn(func(req *http.Request) (*http.Response, error) {
			<-release
			return &http.Response{
				StatusCode: http.StatusOK,
				Header:     http.Header{"Content-Type": []string{"image/png"}},
				Body:       io.NopCloser(bytes.NewReader([]byte{0x89, 'P', 'N', 'G'})),
				Request:    req,
			}, nil
		}),
	}
	r := New(store, favicon.New(favicon.WithClient(client)))

	ctx := context.Background()
	var wg sync.WaitGroup
	var fetchedCount, skippedCount atomic.Int32

	wg.Add(1)
	go func() {
		defer wg.Done()
		f, err := r.EnrichDomain(ctx, "example.com")
		assert.NoError(t, err)
		if f != nil {
			fetchedCount.Add(1)
		}
	}()

	// wait until the first caller holds the in-flight mark
	require.Eventually(t, func() bool {
		r.inflightMu.Lock()
		defer r.inflightMu.Unlock()
		return r.inflight["example.com"]
	}, time.Second, time.Millisecond)

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f, err := r.EnrichDomain(ctx, "example.com")
			assert.NoError(t, err)
			if f == nil {
				skippedCount.Add(1)
			}
		}()
	}

	// the concurrent callers must bail out without fetching
	require.Eventually(t, func() bool {
		return skippedCount.Load() == 4
	}, time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), fetchedCount.Load())
	assert.Equal(t, 1, store.CountFavicons(ctx))
}

func TestEnrichAsyncLinksFaviconsToHistory(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	ex := &fakeExtractor{
		browser:   history.Chrome,
		available: true,
		items:     []*history.Item{testItem(history.Chrome, "https://go.dev/doc", now)},
	}

	store, err := db.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)

	fetcher := favicon.New(favicon.WithClient(iconClient(nil)))
	r := New(store, fetcher, WithExtractors(ex))

	ctx := context.Background()
	require.NoError(t, r.Bootstrap(ctx))
	r.Wait()

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	require.NotNil(t, snap[0].Favicon)
	assert.NotEmpty(t, snap[0].Favicon.ImageData)
}

func TestRecordQueryAndSuggestions(t *testing.T) {
	t.Parallel()

	r := setupRepo(t)
	ctx := context.Background()

	require.NoError(t, r.RecordQuery(ctx, "golang concurrency"))
	require.NoError(t, r.RecordQuery(ctx, "golang generics"))

	got, err := r.Suggestions(ctx, "gol", 10)
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, "golang", got[0])
}

func TestValidateCounts(t *testing.T) {
	t.Parallel()

	now := time.Now().UnixMilli()
	ex := &fakeExtractor{
		browser:   history.Chrome,
		available: true,
		items: []*history.Item{
			testItem(history.Chrome, "https://example.com/a", now),
			testItem(history.Chrome, "https://example.com/b", now-1000),
		},
	}
	r := setupRepo(t, WithExtractors(ex))
	require.NoError(t, r.Bootstrap(context.Background()))

	h, f := r.Validate(context.Background())
	assert.Equal(t, 2, h)
	assert.Equal(t, 0, f)
}
