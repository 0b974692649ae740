package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const startpageEndpoint = "https://www.startpage.com/sp/search"

// startpageScraper queries Startpage's HTML search form.
type startpageScraper struct {
	do       doer
	endpoint string
	language string
}

func (s *startpageScraper) search(ctx context.Context, query string) ([]SearxngResult, error) {
	metrics.DirectStartpageRequests.Add(1)

	form := url.Values{
		"query":    {query},
		"cat":      {"web"},
		"language": {s.language},
	}
	headers := ChromeHeaders()
	headers["referer"] = "https://www.startpage.com/"
	headers["content-type"] = "application/x-www-form-urlencoded"
	headers["accept"] = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	data, status, err := s.do(ctx, "POST", s.endpoint, headers, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("startpage request: %w", err)
	}
	if status != 200 {
		return nil, fmt.Errorf("startpage status %d", status)
	}

	results, err := parseStartpageHTML(data)
	if err != nil {
		return nil, fmt.Errorf("startpage parse: %w", err)
	}
	slog.Debug("startpage direct results", slog.Int("count", len(results)))
	return results, nil
}

// parseStartpageHTML reads result blocks from a Startpage results page.
// Sponsored redirects are skipped.
func parseStartpageHTML(data []byte) ([]SearxngResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("goquery parse: %w", err)
	}

	var results []SearxngResult
	doc.Find(".w-gl__result, .result").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a.w-gl__result-title, h3 a, a.result-link").First()
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || !strings.HasPrefix(href, "http") || strings.Contains(href, "startpage.com/do/") {
			return
		}
		results = append(results, SearxngResult{
			Title:   title,
			Content: strings.TrimSpace(sel.Find("p.w-gl__description, .w-gl__description, p.result-description").First().Text()),
			URL:     href,
			Score:   1.0,
		})
	})
	return results, nil
}
