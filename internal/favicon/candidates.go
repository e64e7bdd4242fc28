package favicon

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mateconpizza/hsearch/internal/history"
)

// maxHTMLBytes limits the page read when discovering icon links.
const maxHTMLBytes = 512 * 1024

// serviceURL returns the favicon-by-domain service URL, the dependable
// fallback.
func serviceURL(domain string, size int) string {
	return fmt.Sprintf("https://www.google.com/s2/favicons?domain=%s&sz=%d", url.QueryEscape(domain), size)
}

// Candidates builds the ordered list of icon URLs to try for a domain:
// known per-site special case first, then the favicon service, then the
// domain's own conventional paths.
func Candidates(domain string, size int) []string {
	proto := history.Protocol(domain)

	out := make([]string, 0, 6)
	// myworkday.com serves its icon only from the www host
	if domain == "myworkday.com" {
		out = append(out, "https://www.myworkday.com/favicon.ico")
	}

	out = append(out,
		serviceURL(domain, size),
		proto+"://"+domain+"/favicon.ico",
		proto+"://"+domain+"/img/icons/favicon.ico",
		proto+"://"+domain+"/swagger/favicon.ico",
	)

	return out
}

// DiscoverIconLinks fetches the domain's landing page and extracts icon
// URLs declared in <link rel="icon"> tags. Best effort: any failure
// returns nil.
func (f *Fetcher) DiscoverIconLinks(ctx context.Context, domain string) []string {
	base := history.Protocol(domain) + "://" + domain + "/"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base, http.NoBody)
	if err != nil {
		return nil
	}
	req.Header.Set("Accept", "text/html")

	res, err := f.client.Do(req)
	if err != nil {
		slog.Debug("icon link discovery failed", "domain", domain, "error", err)
		return nil
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("closing response body", "domain", domain, "error", err)
		}
	}()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil
	}
	if !strings.Contains(strings.ToLower(res.Header.Get("Content-Type")), "html") {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(res.Body, maxHTMLBytes))
	if err != nil {
		slog.Debug("parsing landing page", "domain", domain, "error", err)
		return nil
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	var links []string
	doc.Find(`link[rel~="icon"], link[rel="shortcut icon"], link[rel="apple-touch-icon"]`).
		Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok || href == "" {
				return
			}
			ref, err := url.Parse(href)
			if err != nil {
				return
			}
			links = append(links, baseURL.ResolveReference(ref).String())
		})

	return links
}
