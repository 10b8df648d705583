package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/IshaanNene/storyscout/internal/types"
)

// ResolveURLMiddleware canonicalizes story links and rejects entries whose
// link is not an absolute http(s) URL.
type ResolveURLMiddleware struct{}

func (m *ResolveURLMiddleware) Name() string { return "resolve_url" }

func (m *ResolveURLMiddleware) Process(entry *types.Entry) (*types.Entry, error) {
	canonical, err := CanonicalizeURL(entry.URL)
	if err != nil {
		return nil, err
	}
	entry.URL = canonical
	return entry, nil
}

// CanonicalizeURL normalizes a story link:
// - lowercases scheme and host
// - removes fragment
// - removes default ports (80 for http, 443 for https)
//
// Query order is kept; listing links such as item?id=N depend on it.
func CanonicalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", types.ErrInvalidURL, rawURL)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", types.ErrInvalidURL, u.Scheme)
	}
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	host := u.Hostname()
	port := u.Port()
	if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = host
	}

	return u.String(), nil
}
