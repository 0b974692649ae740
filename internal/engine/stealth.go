package engine

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/proxypool"
)

// Re-export stealth types and functions for engine consumers.
type BrowserClient = stealth.BrowserClient

var DefaultRetryConfig = stealth.DefaultRetryConfig

func ChromeHeaders() map[string]string { return stealth.ChromeHeaders() }
func RandomUserAgent() string          { return stealth.RandomUserAgent() }
func IsRetryableStatus(code int) bool  { return stealth.IsRetryableStatus(code) }

func RetryDo[T any](ctx context.Context, rc stealth.RetryConfig, fn func() (T, error)) (T, error) {
	return stealth.RetryDo(ctx, rc, fn)
}

func RetryHTTP(ctx context.Context, rc stealth.RetryConfig, fn func() (*http.Response, error)) (*http.Response, error) {
	return stealth.RetryHTTP(ctx, rc, fn)
}

// NewBrowserClient builds a TLS-fingerprinting client, routed through a
// Webshare proxy pool when webshareKey is set.
func NewBrowserClient(webshareKey string) (*BrowserClient, error) {
	opts := []stealth.ClientOption{stealth.WithTimeout(15)}
	if webshareKey != "" {
		pool, err := proxypool.NewWebshare(webshareKey)
		if err != nil {
			slog.Warn("proxy pool init failed, running without proxy", slog.Any("error", err))
		} else {
			opts = append(opts, stealth.WithProxyPool(pool))
			slog.Info("proxy pool initialized", slog.Int("proxies", pool.Len()))
		}
	}
	return stealth.NewClient(opts...)
}

// doer performs one HTTP exchange and returns body and status.
type doer func(ctx context.Context, method, url string, headers map[string]string, body io.Reader) ([]byte, int, error)

// browserDoer routes requests through the stealth client.
func browserDoer(bc *BrowserClient) doer {
	return func(_ context.Context, method, url string, headers map[string]string, body io.Reader) ([]byte, int, error) {
		data, _, status, err := bc.Do(method, url, headers, body)
		return data, status, err
	}
}

// httpDoer routes requests through a plain http.Client.
func httpDoer(client *http.Client) doer {
	return func(ctx context.Context, method, url string, headers map[string]string, body io.Reader) ([]byte, int, error) {
		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return nil, 0, err
		}
		for k, v := range headers {
			// net/http only decompresses transparently when it sets this itself.
			if strings.EqualFold(k, "accept-encoding") {
				continue
			}
			req.Header.Set(k, v)
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, 0, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		return data, resp.StatusCode, err
	}
}
