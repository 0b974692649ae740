package engine

import (
	"net/http"
	"time"
)

// Config holds all engine configuration, injected from main.
type Config struct {
	SearxngURL string
	DirectDDG  bool   // enable DuckDuckGo direct scraper
	DDGRegion  string // kl parameter, e.g. wt-wt

	DirectStartpage   bool   // enable Startpage direct scraper
	StartpageLanguage string // language form value, e.g. english

	JinaReaderURL   string // reader prefix; empty disables the Jina tier
	JinaAPIKey      string
	FetchTimeout    time.Duration
	MaxContentChars int
	BrowserFetch    bool // headless render when direct fetch yields nothing

	LLMProvider          string // kit, openai, anthropic, gemini
	LLMAPIKey            string
	LLMAPIKeyFallbacks   []string
	LLMAPIBase           string
	LLMModel             string
	LLMTemperature       float64
	LLMMaxTokens         int
	LLMNoThink           bool
	LLMStrictSchema      bool // openai: send json_schema instead of json_object
	LLMRequestsPerSecond float64
	LLMBurst             int

	RedisURL             string
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheCleanupInterval time.Duration

	HTTPClient    *http.Client
	BrowserClient *BrowserClient // nil = plain HTTP for direct scrapers
}

// Defaults fills zero fields with working values.
func (c Config) Defaults() Config {
	if c.DDGRegion == "" {
		c.DDGRegion = "wt-wt"
	}
	if c.StartpageLanguage == "" {
		c.StartpageLanguage = "english"
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = 20000
	}
	if c.LLMProvider == "" {
		c.LLMProvider = ProviderKit
	}
	if c.LLMMaxTokens <= 0 {
		c.LLMMaxTokens = 4096
	}
	if c.LLMRequestsPerSecond <= 0 {
		c.LLMRequestsPerSecond = 1
	}
	if c.LLMBurst <= 0 {
		c.LLMBurst = 10
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 15 * time.Minute
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     60 * time.Second,
			},
		}
	}
	return c
}
