// Package favicon fetches icon images for domains over the network.
package favicon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	ErrNoFavicon   = errors.New("no favicon found")
	ErrNotAnImage  = errors.New("response is not an image")
	ErrEmptyBody   = errors.New("empty response body")
	ErrBadStatus   = errors.New("unexpected response status")
	ErrDomainEmpty = errors.New("domain cannot be empty")
)

const (
	requestTimeout = 5 * time.Second
	maxRetries     = 2
	retryBaseDelay = 500 * time.Millisecond

	// maxIconBytes bounds a single icon download.
	maxIconBytes = 2 * 1024 * 1024
)

type OptFn func(*Fetcher)

// Fetcher downloads favicons, racing several candidate URLs per domain and
// keeping the first non-empty image.
type Fetcher struct {
	client *http.Client
	size   int
}

// WithIconSize sets the icon size requested from the favicon service.
func WithIconSize(px int) OptFn {
	return func(f *Fetcher) {
		f.size = px
	}
}

// WithClient replaces the HTTP client, used by tests.
func WithClient(c *http.Client) OptFn {
	return func(f *Fetcher) {
		f.client = c
	}
}

// New creates a Fetcher.
func New(opts ...OptFn) *Fetcher {
	f := &Fetcher{
		size: 64,
		client: &http.Client{
			Timeout: requestTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: requestTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Fetch races all candidate URLs for the domain concurrently and returns
// the first non-empty image, cancelling the losing requests. Returns
// ErrNoFavicon when every candidate fails.
func (f *Fetcher) Fetch(ctx context.Context, domain string) ([]byte, error) {
	if domain == "" {
		return nil, ErrDomainEmpty
	}

	if data, err := f.race(ctx, Candidates(domain, f.size)); err == nil {
		return data, nil
	}

	// conventional candidates exhausted, ask the page itself
	if links := f.DiscoverIconLinks(ctx, domain); len(links) > 0 {
		if data, err := f.race(ctx, links); err == nil {
			return data, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrNoFavicon, domain)
}

// race issues all candidate requests concurrently and returns the first
// non-empty image, cancelling the rest.
func (f *Fetcher) race(ctx context.Context, candidates []string) ([]byte, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan []byte, len(candidates))

	var wg sync.WaitGroup
	for _, u := range candidates {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			data, err := f.download(ctx, u)
			if err != nil {
				slog.Debug("favicon candidate failed", "url", u, "error", err)
				return
			}
			results <- data
		}(u)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	for data := range results {
		if len(data) > 0 {
			cancel() // the winner is decided, stop the rest
			return data, nil
		}
	}

	return nil, ErrNoFavicon
}

// download gets one candidate URL, retrying transient failures with linear
// backoff. The response must be 2xx with an image content type and a
// non-empty body.
func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying favicon download", "url", rawURL, "attempt", attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBaseDelay * time.Duration(attempt)):
			}
		}

		data, err := f.downloadOnce(ctx, rawURL)
		if err == nil {
			return data, nil
		}
		lastErr = err

		// status and content-type failures are permanent for this URL
		if errors.Is(err, ErrBadStatus) || errors.Is(err, ErrNotAnImage) ||
			errors.Is(err, ErrEmptyBody) || errors.Is(err, context.Canceled) {
			return nil, err
		}
	}

	return nil, lastErr
}

func (f *Fetcher) downloadOnce(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "image/*")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("favicon request: %w", err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("closing response body", "url", rawURL, "error", err)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: %d from %q", ErrBadStatus, res.StatusCode, rawURL)
	}

	contentType := res.Header.Get("Content-Type")
	if !isImageContentType(contentType) {
		return nil, fmt.Errorf("%w: %q from %q", ErrNotAnImage, contentType, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(res.Body, maxIconBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrEmptyBody, rawURL)
	}

	return data, nil
}

func isImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(contentType), "image/")
}
