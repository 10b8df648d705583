package fetcher

import (
	"context"

	"github.com/IshaanNene/storyscout/internal/types"
)

// Fetcher retrieves listing pages.
type Fetcher interface {
	// Fetch returns the page at rawURL. Every failure, including non-2xx
	// statuses and timeouts, is reported as a *types.FetchError.
	Fetch(ctx context.Context, rawURL string) (*types.Page, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
