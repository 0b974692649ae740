package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"
)

// Metrics tracks operational counters across the engine.
var metrics struct {
	SearchRequests          atomic.Int64
	SearchEmpty             atomic.Int64
	SearxngRequests         atomic.Int64
	SearxngErrors           atomic.Int64
	DirectDDGRequests       atomic.Int64
	DirectDDGErrors         atomic.Int64
	DirectStartpageRequests atomic.Int64
	DirectStartpageErrors   atomic.Int64
	FetchRequests           atomic.Int64
	FetchJinaFailures       atomic.Int64
	FetchFallbacks          atomic.Int64
	FetchBrowser            atomic.Int64
	FetchUnavailable        atomic.Int64
	LLMCalls                atomic.Int64
	LLMErrors               atomic.Int64
	CacheHits               atomic.Int64
	CacheMisses             atomic.Int64
}

var metricKeys = []string{
	"search_requests", "search_empty",
	"searxng_requests", "searxng_errors",
	"direct_ddg_requests", "direct_ddg_errors",
	"direct_startpage_requests", "direct_startpage_errors",
	"fetch_requests", "fetch_jina_failures", "fetch_fallbacks", "fetch_browser", "fetch_unavailable",
	"llm_calls", "llm_errors",
	"cache_hits", "cache_misses",
}

// GetMetrics returns a snapshot of all counters.
func GetMetrics() map[string]int64 {
	return map[string]int64{
		"search_requests":           metrics.SearchRequests.Load(),
		"search_empty":              metrics.SearchEmpty.Load(),
		"searxng_requests":          metrics.SearxngRequests.Load(),
		"searxng_errors":            metrics.SearxngErrors.Load(),
		"direct_ddg_requests":       metrics.DirectDDGRequests.Load(),
		"direct_ddg_errors":         metrics.DirectDDGErrors.Load(),
		"direct_startpage_requests": metrics.DirectStartpageRequests.Load(),
		"direct_startpage_errors":   metrics.DirectStartpageErrors.Load(),
		"fetch_requests":            metrics.FetchRequests.Load(),
		"fetch_jina_failures":       metrics.FetchJinaFailures.Load(),
		"fetch_fallbacks":           metrics.FetchFallbacks.Load(),
		"fetch_browser":             metrics.FetchBrowser.Load(),
		"fetch_unavailable":         metrics.FetchUnavailable.Load(),
		"llm_calls":                 metrics.LLMCalls.Load(),
		"llm_errors":                metrics.LLMErrors.Load(),
		"cache_hits":                metrics.CacheHits.Load(),
		"cache_misses":              metrics.CacheMisses.Load(),
	}
}

// FormatMetrics returns metrics as a simple text format for HTTP endpoint.
func FormatMetrics() string {
	m := GetMetrics()
	var sb strings.Builder
	for _, k := range metricKeys {
		fmt.Fprintf(&sb, "%s %d\n", k, m[k])
	}
	return sb.String()
}

// TrackOperation logs a warning if an operation takes longer than threshold.
func TrackOperation(ctx context.Context, name string, threshold time.Duration, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	if elapsed := time.Since(start); elapsed > threshold {
		slog.Warn("slow operation", slog.String("op", name), slog.Duration("elapsed", elapsed))
	}
	return err
}
