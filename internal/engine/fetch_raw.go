package engine

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// fetchRaw fetches a URL as plain text (no readability extraction).
// Used for raw.githubusercontent.com and similar plain-text endpoints.
func (f *Fetcher) fetchRaw(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	resp, err := fetchWithRetry(ctx, f.client, rawURL, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

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

// fetchRawWithFallback retries a 404 on the other default branch
// (main and master).
func (f *Fetcher) fetchRawWithFallback(ctx context.Context, rawURL string) (string, error) {
	text, err := f.fetchRaw(ctx, rawURL)
	if err == nil {
		return text, nil
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		return "", err
	}
	alt := altBranchURL(rawURL)
	if alt == "" {
		return "", err
	}
	if text, altErr := f.fetchRaw(ctx, alt); altErr == nil {
		return text, nil
	}
	return "", err
}
