package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Scrolling parameters for lazily loaded transcripts.
const (
	messageSelector = "[data-message-author-role]"
	maxScrolls      = 50
	scrollPause     = time.Second
)

// BrowserFetcher renders pages in headless Chrome and returns the DOM after
// the transcript has finished loading. It connects to controlURL when set and
// launches a local browser otherwise.
type BrowserFetcher struct {
	controlURL string
	timeout    time.Duration
}

func NewBrowserFetcher(controlURL string, timeout time.Duration) *BrowserFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserFetcher{controlURL: controlURL, timeout: timeout}
}

// Fetch opens pageURL, waits for the first message, scrolls until the page
// stops growing and returns the resulting HTML.
func (f *BrowserFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	controlURL := f.controlURL
	if controlURL == "" {
		u, err := launcher.New().Headless(true).Context(ctx).Launch()
		if err != nil {
			return "", fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect to chrome: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: pageURL})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}
	if _, err := page.Element(messageSelector); err != nil {
		return "", fmt.Errorf("wait for messages: %w", err)
	}
	if err := scrollToEnd(ctx, page); err != nil {
		return "", err
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read dom: %w", err)
	}
	return html, nil
}

// scrollToEnd scrolls to the bottom until the document height is stable or
// maxScrolls is reached, then returns to the top.
func scrollToEnd(ctx context.Context, page *rod.Page) error {
	height, err := scrollHeight(page)
	if err != nil {
		return err
	}
	for range maxScrolls {
		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(scrollPause):
		}
		next, err := scrollHeight(page)
		if err != nil {
			return err
		}
		if next == height {
			break
		}
		height = next
	}
	_, err = page.Eval(`() => window.scrollTo(0, 0)`)
	return err
}

func scrollHeight(page *rod.Page) (int, error) {
	res, err := page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("read scroll height: %w", err)
	}
	return res.Value.Int(), nil
}
