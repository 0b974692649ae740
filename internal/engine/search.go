package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go_research/internal/research"
)

// Searcher implements research.SearchProvider over SearXNG and the
// DuckDuckGo and Startpage scrapers. It never returns an error: backend failures are
// logged and produce fewer (or zero) hits.
type Searcher struct {
	searxngURL string
	client     *http.Client
	ddg        *ddgScraper
	startpage  *startpageScraper
	fetcher    research.ContentFetcher
}

// NewSearcher builds a Searcher from cfg. fetcher fills RawContent when a
// caller asks for full pages; it may be nil.
func NewSearcher(cfg Config, fetcher research.ContentFetcher) *Searcher {
	cfg = cfg.Defaults()
	s := &Searcher{
		searxngURL: strings.TrimRight(cfg.SearxngURL, "/"),
		client:     cfg.HTTPClient,
		fetcher:    fetcher,
	}
	do := httpDoer(cfg.HTTPClient)
	if cfg.BrowserClient != nil {
		do = browserDoer(cfg.BrowserClient)
	}
	if cfg.DirectDDG {
		s.ddg = &ddgScraper{do: do, ep: defaultDDGEndpoints, region: cfg.DDGRegion}
	}
	if cfg.DirectStartpage {
		s.startpage = &startpageScraper{do: do, endpoint: startpageEndpoint, language: cfg.StartpageLanguage}
	}
	return s
}

// Search queries every enabled backend in parallel and returns at most
// maxResults complete hits, deduplicated by URL, in SearXNG, DuckDuckGo,
// Startpage order.
func (s *Searcher) Search(ctx context.Context, query string, maxResults int, fetchFullPage bool) []research.Hit {
	metrics.SearchRequests.Add(1)
	query = strings.TrimSpace(query)
	if query == "" {
		metrics.SearchEmpty.Add(1)
		return nil
	}

	var searx, ddg, sp []SearxngResult
	g, gctx := errgroup.WithContext(ctx)
	if s.searxngURL != "" {
		g.Go(func() error {
			res, err := s.searchSearXNG(gctx, query)
			if err != nil {
				metrics.SearxngErrors.Add(1)
				slog.Debug("searxng failed", slog.String("query", query), slog.Any("error", err))
				return nil
			}
			searx = res
			return nil
		})
	}
	if s.ddg != nil {
		g.Go(func() error {
			res, err := RetryDo(gctx, DefaultRetryConfig, func() ([]SearxngResult, error) {
				return s.ddg.search(gctx, query)
			})
			if err != nil {
				metrics.DirectDDGErrors.Add(1)
				slog.Debug("ddg direct failed", slog.String("query", query), slog.Any("error", err))
				return nil
			}
			ddg = res
			return nil
		})
	}
	if s.startpage != nil {
		g.Go(func() error {
			res, err := RetryDo(gctx, DefaultRetryConfig, func() ([]SearxngResult, error) {
				return s.startpage.search(gctx, query)
			})
			if err != nil {
				metrics.DirectStartpageErrors.Add(1)
				slog.Debug("startpage direct failed", slog.String("query", query), slog.Any("error", err))
				return nil
			}
			sp = res
			return nil
		})
	}
	_ = g.Wait()

	hits := mergeHits(maxResults, searx, ddg, sp)
	if len(hits) == 0 {
		metrics.SearchEmpty.Add(1)
		slog.Info("search returned no results", slog.String("query", query))
		return nil
	}

	if fetchFullPage && s.fetcher != nil {
		s.fillRawContent(ctx, hits)
	}
	return hits
}

// searchSearXNG queries the SearXNG JSON API.
func (s *Searcher) searchSearXNG(ctx context.Context, query string) ([]SearxngResult, error) {
	u, err := url.Parse(s.searxngURL + "/search")
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("format", "json")
	u.RawQuery = q.Encode()

	metrics.SearxngRequests.Add(1)

	resp, err := RetryHTTP(ctx, DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", UserAgentBot)
		return s.client.Do(req)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("searxng status %d", resp.StatusCode)
	}

	var data searxngResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("searxng decode: %w", err)
	}
	return data.Results, nil
}

// mergeHits concatenates backend results in order, skipping incomplete and
// duplicate entries, and stops at limit (limit <= 0 means no cap).
func mergeHits(limit int, batches ...[]SearxngResult) []research.Hit {
	seen := make(map[string]struct{})
	var out []research.Hit
	for _, batch := range batches {
		for _, r := range batch {
			if !r.complete() {
				continue
			}
			h := r.hit()
			if _, dup := seen[h.URL]; dup {
				continue
			}
			seen[h.URL] = struct{}{}
			out = append(out, h)
			if limit > 0 && len(out) == limit {
				return out
			}
		}
	}
	return out
}

func (s *Searcher) fillRawContent(ctx context.Context, hits []research.Hit) {
	g := new(errgroup.Group)
	g.SetLimit(4)
	for i := range hits {
		g.Go(func() error {
			hits[i].RawContent = s.fetcher.Fetch(ctx, hits[i].URL)
			return nil
		})
	}
	_ = g.Wait()
}
