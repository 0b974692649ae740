package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anatolykoptev/go-kit/strutil"
	"golang.org/x/sync/errgroup"
)

const (
	// CharsPerToken approximates the token budget in characters.
	CharsPerToken = 4

	truncationMarker = "... [truncated]"

	// UnavailableEmpty is substituted when a fetcher returns blank text.
	UnavailableEmpty = "this datasource is not available (error code: EMPTY)"
)

// SourceRecord is a retained hit plus its rendered block.
type SourceRecord struct {
	Hit
	Text string
}

// Aggregation is the deduplicated, ordered set of sources for one batch of
// hits, plus the rendered text handed to the model.
type Aggregation struct {
	records []SourceRecord
	index   map[string]int
	Text    string
}

// Len returns the number of retained sources.
func (a *Aggregation) Len() int {
	if a == nil {
		return 0
	}
	return len(a.records)
}

// Records returns the retained sources in first-seen order.
func (a *Aggregation) Records() []SourceRecord {
	if a == nil {
		return nil
	}
	out := make([]SourceRecord, len(a.records))
	copy(out, a.records)
	return out
}

// URLs returns the retained URLs in first-seen order.
func (a *Aggregation) URLs() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.records))
	for i, r := range a.records {
		out[i] = r.URL
	}
	return out
}

// Get returns the record for url.
func (a *Aggregation) Get(url string) (SourceRecord, bool) {
	if a == nil {
		return SourceRecord{}, false
	}
	i, ok := a.index[url]
	if !ok {
		return SourceRecord{}, false
	}
	return a.records[i], true
}

func (a *Aggregation) text() string {
	if a == nil {
		return ""
	}
	return a.Text
}

// Dedup keeps the first hit for every URL, preserving order. Hits without a
// URL are dropped.
func Dedup(hits []Hit) []Hit {
	seen := make(map[string]struct{}, len(hits))
	out := make([]Hit, 0, len(hits))
	for _, h := range hits {
		if strings.TrimSpace(h.URL) == "" {
			continue
		}
		if _, dup := seen[h.URL]; dup {
			continue
		}
		seen[h.URL] = struct{}{}
		out = append(out, h)
	}
	return out
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithBudget sets the per-source budget in tokens.
func WithBudget(tokens int) AggregatorOption {
	return func(a *Aggregator) { a.tokensPerSource = tokens }
}

// WithFetchFull toggles full-content enrichment.
func WithFetchFull(on bool) AggregatorOption {
	return func(a *Aggregator) { a.fullFetch = on }
}

// WithParallelism bounds concurrent fetches within one batch.
func WithParallelism(n int) AggregatorOption {
	return func(a *Aggregator) { a.concurrency = n }
}

// WithAggregatorLogger sets the logger.
func WithAggregatorLogger(l *slog.Logger) AggregatorOption {
	return func(a *Aggregator) { a.log = l }
}

// Aggregator deduplicates a batch of hits and renders it into one text block.
type Aggregator struct {
	fetcher         ContentFetcher
	tokensPerSource int
	fullFetch       bool
	concurrency     int
	log             *slog.Logger
}

// NewAggregator returns an Aggregator. fetcher may be nil when full fetch is
// off.
func NewAggregator(fetcher ContentFetcher, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		fetcher:         fetcher,
		tokensPerSource: 1000,
		fullFetch:       true,
		concurrency:     4,
		log:             slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.concurrency < 1 {
		a.concurrency = 1
	}
	if a.fetcher == nil {
		a.fullFetch = false
	}
	return a
}

// Aggregate builds the Aggregation for one batch. The output depends only on
// the input order and the fetched text, never on fetch completion order.
func (a *Aggregator) Aggregate(ctx context.Context, hits []Hit) *Aggregation {
	kept := Dedup(hits)
	if dropped := len(hits) - len(kept); dropped > 0 {
		a.log.Debug("aggregate: dropped duplicate sources", slog.Int("dropped", dropped))
	}

	var raw []string
	if a.fullFetch {
		raw = a.fetchAll(ctx, kept)
	}

	agg := &Aggregation{
		records: make([]SourceRecord, len(kept)),
		index:   make(map[string]int, len(kept)),
	}
	var sb strings.Builder
	sb.WriteString("Sources:\n\n")
	for i, h := range kept {
		if raw != nil {
			h.RawContent = raw[i]
		}
		block := a.render(h)
		agg.records[i] = SourceRecord{Hit: h, Text: block}
		agg.index[h.URL] = i
		sb.WriteString(block)
	}
	agg.Text = strings.TrimSpace(sb.String())
	return agg
}

func (a *Aggregator) render(h Hit) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Source: %s\n===\n", h.Title)
	fmt.Fprintf(&sb, "URL: %s\n===\n", h.URL)
	fmt.Fprintf(&sb, "Most relevant content from source: %s\n===\n", h.Content)
	if a.fullFetch {
		fmt.Fprintf(&sb, "Full source content limited to %d tokens: %s\n\n", a.tokensPerSource, h.RawContent)
	}
	return sb.String()
}

// fetchAll resolves full content for every hit. Slot i of the result always
// belongs to hits[i].
func (a *Aggregator) fetchAll(ctx context.Context, hits []Hit) []string {
	out := make([]string, len(hits))
	limit := a.tokensPerSource * CharsPerToken

	g := new(errgroup.Group)
	g.SetLimit(a.concurrency)
	for i, h := range hits {
		g.Go(func() error {
			text := h.RawContent
			if text == "" {
				text = a.fetcher.Fetch(ctx, h.URL)
			}
			if strings.TrimSpace(text) == "" {
				text = UnavailableEmpty
			}
			if limit > 0 {
				text = strutil.TruncateWith(text, limit, truncationMarker)
			}
			out[i] = text
			return nil
		})
	}
	_ = g.Wait()
	return out
}
