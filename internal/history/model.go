// Package history defines the browsing-history domain model and the pure
// merge/rank operations over it.
package history

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownBrowser marks a browser name outside the supported set.
var ErrUnknownBrowser = errors.New("unknown browser")

// Browser identifies a supported browser.
type Browser string

const (
	Chrome  Browser = "Chrome"
	Thorium Browser = "Thorium"
	Zen     Browser = "Zen"
)

// Item represents one browsing record in the merged cache.
type Item struct {
	Browser    Browser  `db:"browser"     json:"browser"`
	Profile    string   `db:"profile"     json:"profile"`
	URL        string   `db:"url"         json:"url"`
	Title      string   `db:"title"       json:"title"`
	LastVisit  int64    `db:"last_visit"  json:"last_visit"` // epoch millis, UTC
	VisitCount int      `db:"visit_count" json:"visit_count"`
	Domain     string   `db:"domain"      json:"domain"`
	Favicon    *Favicon `db:"-"           json:"favicon,omitempty"`
	ID         int64    `db:"id"          json:"id"`
}

// Favicon holds the icon image for a domain. URL is the owning domain
// string and is unique.
type Favicon struct {
	URL       string `db:"url"        json:"url"`
	ImageData []byte `db:"image_data" json:"image_data,omitempty"`
	ID        int64  `db:"id"         json:"id"`
}

// Selection restricts an operation to a single browser, or to all of them
// when empty.
type Selection struct {
	Browser Browser
}

// All matches every browser.
var All = Selection{}

// Matches reports whether the selection includes b.
func (s Selection) Matches(b Browser) bool {
	return s.Browser == "" || s.Browser == b
}

// ParseSelection maps a browser name to a Selection, case-insensitive.
// The empty string selects all browsers.
func ParseSelection(name string) (Selection, error) {
	if name == "" {
		return All, nil
	}

	for _, b := range []Browser{Chrome, Thorium, Zen} {
		if strings.EqualFold(name, string(b)) {
			return Selection{Browser: b}, nil
		}
	}

	return All, fmt.Errorf("%w: %q", ErrUnknownBrowser, name)
}
