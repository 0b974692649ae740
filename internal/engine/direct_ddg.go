package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var vqdPatterns = []*regexp.Regexp{
	regexp.MustCompile(`vqd='([^']+)'`),
	regexp.MustCompile(`vqd="([^"]+)"`),
	regexp.MustCompile(`vqd=([a-zA-Z0-9_-]+)`),
}

// ddgResult represents a single DuckDuckGo search result from d.js.
type ddgResult struct {
	T string `json:"t"` // title
	A string `json:"a"` // abstract/content (HTML)
	U string `json:"u"` // URL
	C string `json:"c"` // content URL (alternative)
}

// ddgEndpoints are the DuckDuckGo URLs the scraper talks to.
type ddgEndpoints struct {
	HTML string // lite HTML form endpoint
	Home string // homepage, source of the vqd token
	DJS  string // d.js JSON API
}

var defaultDDGEndpoints = ddgEndpoints{
	HTML: "https://html.duckduckgo.com/html/",
	Home: "https://duckduckgo.com/",
	DJS:  "https://links.duckduckgo.com/d.js",
}

// ddgScraper queries DuckDuckGo without an API key.
type ddgScraper struct {
	do     doer
	ep     ddgEndpoints
	region string
}

// search uses the HTML lite endpoint as primary and falls back to the d.js
// JSON API when HTML parsing yields nothing.
func (d *ddgScraper) search(ctx context.Context, query string) ([]SearxngResult, error) {
	metrics.DirectDDGRequests.Add(1)

	results, err := d.searchHTML(ctx, query)
	if err == nil && len(results) > 0 {
		slog.Debug("ddg direct results (html)", slog.Int("count", len(results)))
		return results, nil
	}
	if err != nil {
		slog.Debug("ddg html failed, trying d.js", slog.Any("error", err))
	}

	vqd, err := d.getVQD(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ddg vqd: %w", err)
	}
	results, err = d.searchDJS(ctx, query, vqd)
	if err != nil {
		return nil, fmt.Errorf("ddg d.js: %w", err)
	}

	slog.Debug("ddg direct results (d.js)", slog.Int("count", len(results)))
	return results, nil
}

func (d *ddgScraper) searchHTML(ctx context.Context, query string) ([]SearxngResult, error) {
	formBody := fmt.Sprintf("q=%s&kl=%s&df=", url.QueryEscape(query), url.QueryEscape(d.region))

	headers := ChromeHeaders()
	headers["referer"] = d.ep.HTML
	headers["content-type"] = "application/x-www-form-urlencoded"

	data, status, err := d.do(ctx, "POST", d.ep.HTML, headers, strings.NewReader(formBody))
	if err != nil {
		return nil, err
	}
	if status != 200 {
		return nil, fmt.Errorf("ddg html status %d", status)
	}
	return parseDDGHTML(data)
}

// parseDDGHTML extracts search results from DDG HTML lite response.
func parseDDGHTML(data []byte) ([]SearxngResult, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(data)))
	if err != nil {
		return nil, fmt.Errorf("goquery parse: %w", err)
	}

	var results []SearxngResult
	doc.Find(".result, .web-result").Each(func(i int, s *goquery.Selection) {
		link := s.Find("a.result__a, .result__title a, a.result-link").First()
		title := strings.TrimSpace(link.Text())
		href, exists := link.Attr("href")
		if !exists || title == "" {
			return
		}

		href = ddgUnwrapURL(href)
		if href == "" {
			return
		}

		snippet := s.Find(".result__snippet, .result__body").First()
		results = append(results, SearxngResult{
			Title:   title,
			Content: strings.TrimSpace(snippet.Text()),
			URL:     href,
			Score:   1.0,
		})
	})
	return results, nil
}

// ddgUnwrapURL extracts the actual URL from DDG redirect wrappers.
// DDG HTML wraps links as: //duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com&rut=...
func ddgUnwrapURL(href string) string {
	if strings.Contains(href, "duckduckgo.com/l/") || strings.Contains(href, "uddg=") {
		if u, err := url.Parse(href); err == nil {
			if uddg := u.Query().Get("uddg"); uddg != "" {
				return uddg
			}
		}
	}
	if strings.HasPrefix(href, "http") {
		return href
	}
	return ""
}

func (d *ddgScraper) getVQD(ctx context.Context, query string) (string, error) {
	u := d.ep.Home + "?q=" + url.QueryEscape(query)

	headers := ChromeHeaders()
	headers["referer"] = d.ep.Home

	data, status, err := d.do(ctx, "GET", u, headers, nil)
	if err != nil {
		return "", err
	}
	if status != 200 {
		return "", fmt.Errorf("ddg homepage status %d", status)
	}
	if vqd := extractVQD(string(data)); vqd != "" {
		return vqd, nil
	}
	return "", fmt.Errorf("vqd token not found in response (%d bytes)", len(data))
}

func (d *ddgScraper) searchDJS(ctx context.Context, query, vqd string) ([]SearxngResult, error) {
	params := url.Values{
		"q":   {query},
		"vqd": {vqd},
		"kl":  {d.region},
		"df":  {""},
		"l":   {"us-en"},
		"o":   {"json"},
	}
	u := d.ep.DJS + "?" + params.Encode()

	headers := ChromeHeaders()
	headers["referer"] = d.ep.Home
	headers["accept"] = "application/json, text/javascript, */*; q=0.01"

	data, status, err := d.do(ctx, "GET", u, headers, nil)
	if err != nil {
		return nil, err
	}
	if status != 200 && status != 202 {
		return nil, fmt.Errorf("ddg d.js status %d", status)
	}
	return parseDDGResponse(data)
}

// parseDDGResponse extracts search results from DDG d.js response.
// The response may be JSONP or raw JSON array.
func parseDDGResponse(data []byte) ([]SearxngResult, error) {
	body := strings.TrimSpace(string(data))

	// Strip JSONP wrapper if present: DDGjsonp_xxx({results:[...]})
	if idx := strings.Index(body, "["); idx >= 0 {
		end := strings.LastIndex(body, "]")
		if end > idx {
			body = body[idx : end+1]
		}
	}

	var raw []ddgResult
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, fmt.Errorf("ddg json parse: %w (first 200 bytes: %s)", err, Truncate(body, 200))
	}

	var results []SearxngResult
	for _, r := range raw {
		resultURL := r.U
		if resultURL == "" {
			resultURL = r.C
		}
		if resultURL == "" || r.T == "" {
			continue
		}
		if strings.HasPrefix(resultURL, "https://duckduckgo.com/") {
			continue
		}
		results = append(results, SearxngResult{
			Title:   CleanHTML(r.T),
			Content: CleanHTML(r.A),
			URL:     resultURL,
			Score:   1.0,
		})
	}
	return results, nil
}

// extractVQD extracts the VQD token from DDG response HTML.
func extractVQD(body string) string {
	for _, pat := range vqdPatterns {
		if m := pat.FindStringSubmatch(body); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}
