package research

import "context"

// SearchProvider runs one web query. Failures are reported as an empty
// slice, never as an error.
type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int, fetchFullPage bool) []Hit
}

// ContentFetcher resolves a URL to readable text. On failure it returns a
// description of why the content is unavailable.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) string
}

// LanguageModel offers free-text and schema-constrained completions.
// CompleteStructured returns the raw JSON text of the reply; decoding is
// done by the caller.
type LanguageModel interface {
	CompletePlain(ctx context.Context, p Prompt) (string, error)
	CompleteStructured(ctx context.Context, p Prompt, s Schema) (string, error)
}

// SearchProviderFunc adapts a function to SearchProvider.
type SearchProviderFunc func(ctx context.Context, query string, maxResults int, fetchFullPage bool) []Hit

func (f SearchProviderFunc) Search(ctx context.Context, query string, maxResults int, fetchFullPage bool) []Hit {
	return f(ctx, query, maxResults, fetchFullPage)
}

// ContentFetcherFunc adapts a function to ContentFetcher.
type ContentFetcherFunc func(ctx context.Context, url string) string

func (f ContentFetcherFunc) Fetch(ctx context.Context, url string) string { return f(ctx, url) }
