package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/llm"
	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"google.golang.org/genai"

	"github.com/anatolykoptev/go_research/internal/research"
)

// Supported LLM providers.
const (
	ProviderKit       = "kit"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
)

// NewCompleter picks the backend named by cfg.LLMProvider.
func NewCompleter(ctx context.Context, cfg Config) (Completer, error) {
	cfg = cfg.Defaults()
	switch strings.ToLower(cfg.LLMProvider) {
	case ProviderKit:
		return NewKitCompleter(cfg), nil
	case ProviderOpenAI:
		return NewOpenAICompleter(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicCompleter(cfg), nil
	case ProviderGemini:
		return NewGeminiCompleter(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
}

// jsonReplyHint is appended to the system prompt for backends without a
// native schema mode.
func jsonReplyHint(s *research.Schema) string {
	if s == nil {
		return "\n\nReply with a single JSON object and nothing else."
	}
	keys := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		keys[i] = fmt.Sprintf("%q", f.Name)
	}
	return fmt.Sprintf("\n\nReply with a single JSON object with exactly these string keys: %s. No other text.",
		strings.Join(keys, ", "))
}

// KitCompleter uses the go-kit OpenAI-compatible client with key rotation.
type KitCompleter struct {
	client      *llm.Client
	temperature float64
	maxTokens   int
}

// NewKitCompleter builds a KitCompleter from cfg.
func NewKitCompleter(cfg Config) *KitCompleter {
	cfg = cfg.Defaults()
	client := llm.NewClient(cfg.LLMAPIBase, cfg.LLMAPIKey, cfg.LLMModel,
		llm.WithFallbackKeys(cfg.LLMAPIKeyFallbacks),
		llm.WithMaxTokens(cfg.LLMMaxTokens),
		llm.WithTemperature(cfg.LLMTemperature),
		llm.WithHTTPClient(&http.Client{Timeout: 90 * time.Second}),
	)
	return &KitCompleter{client: client, temperature: cfg.LLMTemperature, maxTokens: cfg.LLMMaxTokens}
}

func (k *KitCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	system := req.System
	if req.JSON {
		system += jsonReplyHint(req.Schema)
	}
	return k.client.Complete(ctx, system, req.User,
		llm.WithChatTemperature(k.temperature),
		llm.WithChatMaxTokens(k.maxTokens),
	)
}

// OpenAICompleter talks to any OpenAI-compatible chat endpoint (OpenAI,
// Groq, local servers) through openai-go.
type OpenAICompleter struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
	strict      bool
}

// NewOpenAICompleter builds an OpenAICompleter. An empty LLMAPIBase uses
// the SDK default endpoint.
func NewOpenAICompleter(cfg Config) *OpenAICompleter {
	cfg = cfg.Defaults()
	opts := []openaiopt.RequestOption{
		openaiopt.WithAPIKey(cfg.LLMAPIKey),
		openaiopt.WithMaxRetries(2),
	}
	if cfg.LLMAPIBase != "" {
		opts = append(opts, openaiopt.WithBaseURL(strings.TrimRight(cfg.LLMAPIBase, "/")+"/"))
	}
	return &OpenAICompleter{
		client:      openai.NewClient(opts...),
		model:       cfg.LLMModel,
		temperature: cfg.LLMTemperature,
		maxTokens:   cfg.LLMMaxTokens,
		strict:      cfg.LLMStrictSchema,
	}
}

func (o *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	system := req.System
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Temperature: openai.Float(o.temperature),
		MaxTokens:   openai.Int(int64(o.maxTokens)),
	}
	switch {
	case req.JSON && o.strict && req.Schema != nil:
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   req.Schema.Name,
					Schema: req.Schema.JSONSchema(),
					Strict: openai.Bool(true),
				},
			},
		}
	case req.JSON:
		system += jsonReplyHint(req.Schema)
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	params.Messages = []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(system),
		openai.UserMessage(req.User),
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// AnthropicCompleter uses the Anthropic messages API.
type AnthropicCompleter struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewAnthropicCompleter builds an AnthropicCompleter.
func NewAnthropicCompleter(cfg Config) *AnthropicCompleter {
	cfg = cfg.Defaults()
	opts := []anthropicopt.RequestOption{anthropicopt.WithAPIKey(cfg.LLMAPIKey)}
	if cfg.LLMAPIBase != "" {
		opts = append(opts, anthropicopt.WithBaseURL(strings.TrimRight(cfg.LLMAPIBase, "/")+"/"))
	}
	return &AnthropicCompleter{
		client:      anthropic.NewClient(opts...),
		model:       cfg.LLMModel,
		temperature: cfg.LLMTemperature,
		maxTokens:   cfg.LLMMaxTokens,
	}
}

func (a *AnthropicCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	system := req.System
	if req.JSON {
		system += jsonReplyHint(req.Schema)
	}
	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(a.maxTokens),
		Temperature: anthropic.Float(a.temperature),
		System:      []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// GeminiCompleter uses the Gemini API through genai.
type GeminiCompleter struct {
	client      *genai.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewGeminiCompleter builds a GeminiCompleter.
func NewGeminiCompleter(ctx context.Context, cfg Config) (*GeminiCompleter, error) {
	cfg = cfg.Defaults()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.LLMAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return &GeminiCompleter{
		client:      client,
		model:       cfg.LLMModel,
		temperature: float32(cfg.LLMTemperature),
		maxTokens:   int32(cfg.LLMMaxTokens),
	}, nil
}

func (g *GeminiCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	system := req.System
	conf := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	}
	if req.JSON {
		system += jsonReplyHint(req.Schema)
		conf.ResponseMIMEType = "application/json"
	}
	conf.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.User), conf)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}
