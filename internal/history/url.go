package history

import (
	"net/url"
	"regexp"
	"strings"
)

// internalPrefixes are schemes for browser-internal pages that never belong
// in the merged history.
var internalPrefixes = []string{
	"about:",
	"chrome://",
	"chrome-extension://",
	"edge://",
	"moz-extension://",
	"place:",
	"thorium://",
	"vivaldi://",
}

var ipv4Re = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+(:\d+)?$`)

// IsInternalURL reports whether the URL points at a browser-internal page.
func IsInternalURL(s string) bool {
	for _, prefix := range internalPrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}

// Domain returns the canonical domain for a URL: the host with a leading
// "www." stripped. Local addresses keep their port. Returns an empty string
// for unparseable URLs.
func Domain(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return ""
	}

	domain := strings.TrimPrefix(u.Hostname(), "www.")
	if port := u.Port(); port != "" && IsLocal(u.Hostname()) {
		return domain + ":" + port
	}

	return domain
}

// IsLocal reports whether the domain refers to a local address.
func IsLocal(domain string) bool {
	return domain == "localhost" ||
		strings.HasPrefix(domain, "localhost:") ||
		strings.HasSuffix(domain, ".local") ||
		ipv4Re.MatchString(domain)
}

// Protocol returns the scheme to use when building URLs for a domain.
func Protocol(domain string) string {
	if IsLocal(domain) {
		return "http"
	}

	return "https"
}
