package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Unavailable renders the text substituted for content that could not be
// fetched. The code is the HTTP status when known.
func Unavailable(err error) string {
	code := "UNKNOWN"
	var se *StatusError
	if errors.As(err, &se) {
		code = strconv.Itoa(se.Code)
	}
	return fmt.Sprintf("this datasource is not available (error code: %s)", code)
}

// Fetcher implements research.ContentFetcher. It tries, in order: the page
// cache, raw GitHub files, the Jina reader, a direct fetch with local
// extraction, and a headless render. It never returns an error.
type Fetcher struct {
	client   *http.Client
	jinaURL  string
	jinaKey  string
	timeout  time.Duration
	maxChars int
	cache    *PageCache
	renderer Renderer
}

// NewFetcher builds a Fetcher. cache and renderer may be nil.
func NewFetcher(cfg Config, cache *PageCache, renderer Renderer) *Fetcher {
	cfg = cfg.Defaults()
	return &Fetcher{
		client:   newFetchClient(cfg.FetchTimeout),
		jinaURL:  cfg.JinaReaderURL,
		jinaKey:  cfg.JinaAPIKey,
		timeout:  cfg.FetchTimeout,
		maxChars: cfg.MaxContentChars,
		cache:    cache,
		renderer: renderer,
	}
}

// Fetch returns readable text for pageURL, or the unavailability text.
func (f *Fetcher) Fetch(ctx context.Context, pageURL string) string {
	metrics.FetchRequests.Add(1)

	key := CacheKey("page", pageURL)
	if text, ok := f.cache.Get(ctx, key); ok {
		return text
	}

	var text string
	err := TrackOperation(ctx, "fetch", 2*f.timeout, func(ctx context.Context) error {
		var ferr error
		text, ferr = f.fetch(ctx, pageURL)
		return ferr
	})
	if err != nil {
		metrics.FetchUnavailable.Add(1)
		slog.Debug("fetch: unavailable", slog.String("url", pageURL), slog.Any("error", err))
		return Unavailable(err)
	}

	text = TruncateRunes(text, f.maxChars, "...")
	f.cache.Set(ctx, key, text)
	return text
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if raw := GithubRawURL(pageURL); raw != pageURL || IsRawGitHubURL(pageURL) {
		text, err := f.fetchRawWithFallback(ctx, raw)
		if err == nil {
			return text, nil
		}
		slog.Debug("fetch: raw github failed", slog.String("url", raw), slog.Any("error", err))
	}

	if f.jinaURL != "" {
		text, err := f.fetchJina(ctx, pageURL)
		if err == nil {
			return text, nil
		}
		metrics.FetchJinaFailures.Add(1)
		slog.Debug("fetch: jina failed", slog.String("url", pageURL), slog.Any("error", err))
	}

	metrics.FetchFallbacks.Add(1)
	text, err := f.fetchDirect(ctx, pageURL)
	if err == nil {
		return text, nil
	}

	if f.renderer != nil && ctx.Err() == nil {
		metrics.FetchBrowser.Add(1)
		rendered, rerr := f.fetchRendered(ctx, pageURL)
		if rerr == nil {
			return rendered, nil
		}
		slog.Debug("fetch: render failed", slog.String("url", pageURL), slog.Any("error", rerr))
	}
	return "", err
}

// fetchJina asks the Jina reader for a markdown rendition of pageURL.
func (f *Fetcher) fetchJina(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	readerURL := f.jinaURL + jinaEscape(pageURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, readerURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("User-Agent", UserAgentBot)
	if f.jinaKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.jinaKey)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{URL: readerURL, Code: resp.StatusCode}
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "", errNoContent
	}
	return text, nil
}

// jinaEscape percent-encodes every reserved byte of pageURL so its query
// and fragment reach the reader intact.
func jinaEscape(pageURL string) string {
	return strings.ReplaceAll(url.QueryEscape(pageURL), "+", "%20")
}

// fetchDirect downloads the page and extracts text locally.
func (f *Fetcher) fetchDirect(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := fetchWithRetry(ctx, f.client, pageURL, true)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := readResponseBody(resp)
	if err != nil {
		return "", err
	}

	if isPlainText(resp.Header.Get("Content-Type")) {
		text := strings.TrimSpace(string(body))
		if text == "" {
			return "", errNoContent
		}
		return text, nil
	}
	return extractContent(string(body), pageURL)
}

func (f *Fetcher) fetchRendered(ctx context.Context, pageURL string) (string, error) {
	page, err := f.renderer.Render(ctx, pageURL)
	if err != nil {
		return "", err
	}
	return extractContent(page, pageURL)
}

func isPlainText(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	switch mt {
	case "text/plain", "text/markdown", "text/x-markdown", "application/json":
		return true
	}
	return false
}
