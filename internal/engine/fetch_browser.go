package engine

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
)

// Renderer returns the rendered HTML of a page.
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// BrowserRenderer renders pages in headless Chrome. Each call gets its own
// browser process.
type BrowserRenderer struct {
	Timeout   time.Duration
	UserAgent string
}

// NewBrowserRenderer returns a renderer bounded by timeout.
func NewBrowserRenderer(timeout time.Duration) *BrowserRenderer {
	return &BrowserRenderer{Timeout: timeout, UserAgent: UserAgentChrome}
}

// Render navigates to url and returns the document's outer HTML.
func (b *BrowserRenderer) Render(ctx context.Context, url string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(b.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	if b.Timeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(bctx, b.Timeout)
		defer cancel()
	}

	var page string
	err := chromedp.Run(bctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &page, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	return page, nil
}
