package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"gopkg.in/yaml.v3"

	"github.com/anatolykoptev/go_research/internal/engine"
	"github.com/anatolykoptev/go_research/internal/researchserver"
)

// fileConfig is the optional YAML config file. Every value can be
// overridden by its environment variable.
type fileConfig struct {
	Server struct {
		MCPPort     string   `yaml:"mcp_port"`
		HTTPAddr    string   `yaml:"http_addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Search struct {
		SearxngURL        string `yaml:"searxng_url"`
		DirectDDG         bool   `yaml:"direct_ddg"`
		DirectStartpage   bool   `yaml:"direct_startpage"`
		StartpageLanguage string `yaml:"startpage_language"`
		MaxResults        int    `yaml:"max_results"`
		WebshareKey       string `yaml:"webshare_api_key"`
	} `yaml:"search"`
	Fetch struct {
		JinaReaderURL   string        `yaml:"jina_reader_url"`
		JinaAPIKey      string        `yaml:"jina_api_key"`
		Timeout         time.Duration `yaml:"timeout"`
		MaxContentChars int           `yaml:"max_content_chars"`
		Browser         bool          `yaml:"browser"`
	} `yaml:"fetch"`
	LLM struct {
		Provider     string   `yaml:"provider"`
		APIKey       string   `yaml:"api_key"`
		APIKeys      []string `yaml:"api_key_fallbacks"`
		APIBase      string   `yaml:"api_base"`
		Model        string   `yaml:"model"`
		Temperature  float64  `yaml:"temperature"`
		MaxTokens    int      `yaml:"max_tokens"`
		NoThink      bool     `yaml:"no_think"`
		StrictSchema bool     `yaml:"strict_schema"`
		RPS          float64  `yaml:"requests_per_second"`
		Burst        int      `yaml:"burst"`
	} `yaml:"llm"`
	Cache struct {
		RedisURL        string        `yaml:"redis_url"`
		TTL             time.Duration `yaml:"ttl"`
		MaxEntries      int           `yaml:"max_entries"`
		CleanupInterval time.Duration `yaml:"cleanup_interval"`
	} `yaml:"cache"`
	Research struct {
		MaxIterations    int           `yaml:"max_iterations"`
		MaxRetry         int           `yaml:"max_retry"`
		TokensPerSource  int           `yaml:"tokens_per_source"`
		FetchConcurrency int           `yaml:"fetch_concurrency"`
		RetryBackoff     time.Duration `yaml:"retry_backoff"`
	} `yaml:"research"`
}

// defaultFileConfig holds the built-in values a config file starts from.
func defaultFileConfig() fileConfig {
	var fc fileConfig
	fc.Server.MCPPort = "8893"
	fc.Server.HTTPAddr = ":8000"
	fc.Server.CORSOrigins = []string{researchserver.DefaultOrigin}
	fc.Search.SearxngURL = "http://127.0.0.1:8888"
	fc.Search.DirectDDG = true
	fc.Search.MaxResults = 3
	fc.Fetch.JinaReaderURL = "https://r.jina.ai/"
	fc.Fetch.Timeout = 10 * time.Second
	fc.Fetch.MaxContentChars = 20000
	fc.LLM.Provider = engine.ProviderOpenAI
	fc.LLM.APIBase = "https://api.groq.com/openai/v1"
	fc.LLM.Model = "qwen/qwen3-32b"
	fc.LLM.MaxTokens = 4096
	fc.LLM.RPS = 1
	fc.LLM.Burst = 10
	fc.Cache.TTL = 15 * time.Minute
	fc.Cache.MaxEntries = 1000
	fc.Cache.CleanupInterval = 5 * time.Minute
	fc.Research.MaxIterations = 1
	fc.Research.MaxRetry = 3
	fc.Research.TokensPerSource = 1000
	fc.Research.FetchConcurrency = 4
	fc.Research.RetryBackoff = time.Second
	return fc
}

// appConfig is the resolved runtime configuration.
type appConfig struct {
	MCPPort     string
	HTTPAddr    string
	CORSOrigins []string
	WebshareKey string
	MaxResults  int
	Engine      engine.Config
	Research    researchDefaults
}

type researchDefaults struct {
	MaxIterations    int
	MaxRetry         int
	TokensPerSource  int
	FetchConcurrency int
	RetryBackoff     time.Duration
}

// loadConfig reads path (if any), then applies environment overrides.
func loadConfig(path string) (appConfig, error) {
	fc := defaultFileConfig()
	if path == "" {
		path = env.Str("RESEARCH_CONFIG", "")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return appConfig{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return appConfig{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg := appConfig{
		MCPPort:     env.Str("MCP_PORT", fc.Server.MCPPort),
		HTTPAddr:    env.Str("HTTP_ADDR", fc.Server.HTTPAddr),
		CORSOrigins: env.List("CORS_ORIGINS", strings.Join(fc.Server.CORSOrigins, ",")),
		WebshareKey: env.Str("WEBSHARE_API_KEY", fc.Search.WebshareKey),
		MaxResults:  env.Int("SEARCH_MAX_RESULTS", fc.Search.MaxResults),
		Engine: engine.Config{
			SearxngURL:           env.Str("SEARXNG_URL", fc.Search.SearxngURL),
			DirectDDG:            envBool("DIRECT_DDG", fc.Search.DirectDDG),
			DirectStartpage:      envBool("DIRECT_STARTPAGE", fc.Search.DirectStartpage),
			StartpageLanguage:    env.Str("STARTPAGE_LANGUAGE", fc.Search.StartpageLanguage),
			JinaReaderURL:        env.Str("JINA_READER_URL", fc.Fetch.JinaReaderURL),
			JinaAPIKey:           env.Str("JINA_API_KEY", fc.Fetch.JinaAPIKey),
			FetchTimeout:         env.Duration("FETCH_TIMEOUT", fc.Fetch.Timeout),
			MaxContentChars:      env.Int("MAX_CONTENT_CHARS", fc.Fetch.MaxContentChars),
			BrowserFetch:         envBool("BROWSER_FETCH", fc.Fetch.Browser),
			LLMProvider:          env.Str("LLM_PROVIDER", fc.LLM.Provider),
			LLMAPIKey:            env.Str("LLM_API_KEY", fc.LLM.APIKey),
			LLMAPIKeyFallbacks:   env.List("LLM_API_KEY_FALLBACKS", strings.Join(fc.LLM.APIKeys, ",")),
			LLMAPIBase:           env.Str("LLM_API_BASE", fc.LLM.APIBase),
			LLMModel:             env.Str("LLM_MODEL", fc.LLM.Model),
			LLMTemperature:       env.Float("LLM_TEMPERATURE", fc.LLM.Temperature),
			LLMMaxTokens:         env.Int("LLM_MAX_TOKENS", fc.LLM.MaxTokens),
			LLMNoThink:           envBool("LLM_NO_THINK", fc.LLM.NoThink),
			LLMStrictSchema:      envBool("LLM_STRICT_SCHEMA", fc.LLM.StrictSchema),
			LLMRequestsPerSecond: env.Float("LLM_RPS", fc.LLM.RPS),
			LLMBurst:             env.Int("LLM_BURST", fc.LLM.Burst),
			RedisURL:             env.Str("REDIS_URL", fc.Cache.RedisURL),
			CacheTTL:             env.Duration("CACHE_TTL", fc.Cache.TTL),
			CacheMaxEntries:      env.Int("CACHE_MAX_ENTRIES", fc.Cache.MaxEntries),
			CacheCleanupInterval: env.Duration("CACHE_CLEANUP_INTERVAL", fc.Cache.CleanupInterval),
		},
		Research: researchDefaults{
			MaxIterations:    env.Int("RESEARCH_MAX_ITERATIONS", fc.Research.MaxIterations),
			MaxRetry:         env.Int("RESEARCH_MAX_RETRY", fc.Research.MaxRetry),
			TokensPerSource:  env.Int("RESEARCH_TOKENS_PER_SOURCE", fc.Research.TokensPerSource),
			FetchConcurrency: env.Int("RESEARCH_FETCH_CONCURRENCY", fc.Research.FetchConcurrency),
			RetryBackoff:     env.Duration("RESEARCH_RETRY_BACKOFF", fc.Research.RetryBackoff),
		},
	}
	return cfg, nil
}

// envBool reads a boolean variable. Unparsable values keep def.
func envBool(key string, def bool) bool {
	v := strings.TrimSpace(env.Str(key, ""))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
