// Package browser defines the source-adapter contract for extracting
// recent history from locally installed browsers.
package browser

import (
	"context"
	"errors"

	"github.com/mateconpizza/hsearch/internal/history"
)

var (
	ErrBrowserUnavailable = errors.New("browser is not installed")
	ErrBrowserUnsupported = errors.New("browser is unsupported")
	ErrNoProfiles         = errors.New("no profiles found")
)

// DefaultLimit caps the rows extracted per profile.
const DefaultLimit = 1000

// Extractor reads recent visit records from one browser family. Extraction
// fails soft: profile-level read errors are skipped, so a non-nil error
// means the whole adapter produced nothing.
type Extractor interface {
	Browser() history.Browser
	// IsAvailable reports whether the browser's data directory exists.
	IsAvailable() bool
	// Extract returns visits from the last 24 hours, newest first, capped
	// at limit rows per profile.
	Extract(ctx context.Context, limit int) ([]*history.Item, error)
}
