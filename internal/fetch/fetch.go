// Package fetch retrieves shared-chat pages so the extractor can read them.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var ErrInvalidShareURL = errors.New("invalid share url")

// ShareHosts are the hosts that serve shared conversations.
var ShareHosts = []string{"chatgpt.com", "chat.openai.com"}

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// ValidateShareURL checks that raw points at a shared conversation and
// returns it in canonical form.
func ValidateShareURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidShareURL, err)
	}
	if u.Scheme != "https" {
		return "", fmt.Errorf("%w: scheme must be https", ErrInvalidShareURL)
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	known := false
	for _, h := range ShareHosts {
		if host == h {
			known = true
			break
		}
	}
	if !known {
		return "", fmt.Errorf("%w: unsupported host %q", ErrInvalidShareURL, u.Hostname())
	}
	id, ok := strings.CutPrefix(u.Path, "/share/")
	if !ok || strings.Trim(id, "/") == "" {
		return "", fmt.Errorf("%w: path must be /share/<id>", ErrInvalidShareURL)
	}
	u.Host = host
	u.Fragment = ""
	return u.String(), nil
}

// Options selects and configures a Fetcher.
type Options struct {
	Mode       string // "http" or "browser"
	Timeout    time.Duration
	BrowserURL string
}

// New builds the Fetcher named by opts.Mode.
func New(opts Options) (Fetcher, error) {
	switch opts.Mode {
	case "", "http":
		return NewHTTPFetcher(opts.Timeout), nil
	case "browser":
		return NewBrowserFetcher(opts.BrowserURL, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", opts.Mode)
	}
}
