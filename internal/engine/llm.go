package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_research/internal/research"
)

// CompletionRequest is one serialized chat call.
type CompletionRequest struct {
	System string
	User   string
	JSON   bool             // ask for a JSON object reply
	Schema *research.Schema // set for structured calls
}

// Completer is a chat-completion backend.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// ModelOption configures a Model.
type ModelOption func(*Model)

// WithLimiter shares a rate limiter between models.
func WithLimiter(l *rate.Limiter) ModelOption { return func(m *Model) { m.limiter = l } }

// WithNoThink appends the qwen3 /no_think switch to every user turn.
func WithNoThink(on bool) ModelOption { return func(m *Model) { m.noThink = on } }

// Model implements research.LanguageModel on top of a Completer. It owns
// prompt serialization, rate limiting and output cleanup.
type Model struct {
	backend Completer
	limiter *rate.Limiter
	noThink bool
}

// NewModel wraps c. Without WithLimiter, calls are limited to 1 per second
// with a burst of 10.
func NewModel(c Completer, opts ...ModelOption) *Model {
	m := &Model{backend: c}
	for _, o := range opts {
		o(m)
	}
	if m.limiter == nil {
		m.limiter = rate.NewLimiter(rate.Limit(1), 10)
	}
	return m
}

// NewLimiter returns the process-wide model rate ceiling for cfg.
func NewLimiter(cfg Config) *rate.Limiter {
	cfg = cfg.Defaults()
	return rate.NewLimiter(rate.Limit(cfg.LLMRequestsPerSecond), cfg.LLMBurst)
}

// CompletePlain returns free text with reasoning blocks removed.
func (m *Model) CompletePlain(ctx context.Context, p research.Prompt) (string, error) {
	out, err := m.call(ctx, m.request(p, nil))
	if err != nil {
		return "", err
	}
	return StripThink(out), nil
}

// CompleteStructured returns the JSON text of a reply constrained to s.
func (m *Model) CompleteStructured(ctx context.Context, p research.Prompt, s research.Schema) (string, error) {
	out, err := m.call(ctx, m.request(p, &s))
	if err != nil {
		return "", err
	}
	return stripFences(StripThink(out)), nil
}

func (m *Model) call(ctx context.Context, req CompletionRequest) (string, error) {
	if err := m.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("llm rate limit: %w", err)
	}
	metrics.LLMCalls.Add(1)
	out, err := m.backend.Complete(ctx, req)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		metrics.LLMErrors.Add(1)
		return "", errEmptyCompletion
	}
	return out, nil
}

var errEmptyCompletion = errors.New("llm returned an empty completion")

func (m *Model) request(p research.Prompt, s *research.Schema) CompletionRequest {
	user := p.Task
	if m.noThink {
		user += " /no_think"
	}
	return CompletionRequest{
		System: RenderSystemPrompt(p),
		User:   user,
		JSON:   s != nil,
		Schema: s,
	}
}

// RenderSystemPrompt serializes the instruction followed by one tagged block
// per context field.
func RenderSystemPrompt(p research.Prompt) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Instruction))
	for _, f := range p.Context {
		tag := f.Name
		fmt.Fprintf(&sb, "\n\n<%s>\n%s\n</%s>", tag, strings.TrimSpace(f.Value), tag)
	}
	return sb.String()
}
