package main

import (
	"context"
	"log/slog"

	"github.com/anatolykoptev/go_research/internal/engine"
	"github.com/anatolykoptev/go_research/internal/research"
)

// app holds the wired capabilities for one process.
type app struct {
	loop  *research.Loop
	cache *engine.PageCache
}

func (a *app) Close() error { return a.cache.Close() }

// newApp builds the engine adapters and the research loop from cfg.
func newApp(ctx context.Context, cfg appConfig, opts ...research.Option) (*app, error) {
	ec := cfg.Engine

	bc, err := engine.NewBrowserClient(cfg.WebshareKey)
	if err != nil {
		slog.Warn("stealth client init failed, using plain http", slog.Any("error", err))
	} else {
		ec.BrowserClient = bc
		slog.Info("stealth browser client initialized")
	}

	cache := engine.NewPageCache(ctx, ec)

	var renderer engine.Renderer
	if ec.BrowserFetch {
		renderer = engine.NewBrowserRenderer(2 * ec.Defaults().FetchTimeout)
	}
	fetcher := engine.NewFetcher(ec, cache, renderer)
	searcher := engine.NewSearcher(ec, fetcher)

	completer, err := engine.NewCompleter(ctx, ec)
	if err != nil {
		_ = cache.Close()
		return nil, err
	}
	model := engine.NewModel(completer,
		engine.WithLimiter(engine.NewLimiter(ec)),
		engine.WithNoThink(ec.LLMNoThink),
	)
	slog.Info("llm ready",
		slog.String("provider", ec.LLMProvider),
		slog.String("model", ec.LLMModel),
		slog.Bool("no_think", ec.LLMNoThink),
	)

	rc := cfg.Research
	base := []research.Option{
		research.WithMaxResults(cfg.MaxResults),
		research.WithTokensPerSource(rc.TokensPerSource),
		research.WithFetchConcurrency(rc.FetchConcurrency),
		research.WithRetryBackoff(rc.RetryBackoff),
	}
	loop := research.NewLoop(searcher, fetcher, model, append(base, opts...)...)
	return &app{loop: loop, cache: cache}, nil
}
