// Package research implements the iterative web-research loop: query
// generation, search, source aggregation, reflection and answer synthesis.
//
// The package owns control flow only. Search, content fetch and language
// model access are injected through the capability interfaces in
// capabilities.go.
package research

import (
	"fmt"
	"strings"
)

// Question is one research request. It is not mutated by the loop.
type Question struct {
	Text          string `json:"question"`
	MaxIterations int    `json:"max_iterations"`
	MaxRetry      int    `json:"max_retry"`
}

// Validate checks the question text and loop bounds.
func (q Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidQuestion)
	}
	if q.MaxIterations < 1 {
		return fmt.Errorf("%w: max_iterations must be >= 1, got %d", ErrInvalidQuestion, q.MaxIterations)
	}
	if q.MaxRetry < 0 {
		return fmt.Errorf("%w: max_retry must be >= 0, got %d", ErrInvalidQuestion, q.MaxRetry)
	}
	return nil
}

// Hit is one raw search result.
type Hit struct {
	Title      string `json:"title"`
	URL        string `json:"url"`
	Content    string `json:"content"`
	RawContent string `json:"raw_content,omitempty"`
}

// Reflection names a knowledge gap and the query that should close it.
type Reflection struct {
	KnowledgeGap  string `json:"knowledge_gap"`
	FollowUpQuery string `json:"follow_up_query"`
}

// IterationState is the per-iteration scratch state of a single run.
type IterationState struct {
	Index       int
	Query       string
	Reflection  *Reflection
	Aggregation *Aggregation
}

// Result is the terminal value of a run: either Answer or Message is set.
type Result struct {
	RunID          string   `json:"run_id"`
	Question       string   `json:"question"`
	Answer         string   `json:"answer,omitempty"`
	Message        string   `json:"message,omitempty"`
	Iterations     int      `json:"iterations"`
	SearchAttempts int      `json:"search_attempts"`
	Sources        []string `json:"sources,omitempty"`
}

// Failed reports whether the run ended without an answer.
func (r Result) Failed() bool { return r.Answer == "" && r.Message != "" }

// Field is one named piece of context inside a Prompt.
type Field struct {
	Name  string
	Value string
}

// Prompt is a typed request for the language model. Serialization is the
// model's job.
type Prompt struct {
	Instruction string
	Context     []Field
	Task        string
}

// Value returns the context field with the given name.
func (p Prompt) Value(name string) (string, bool) {
	for _, f := range p.Context {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// SchemaField describes one required string property of a structured reply.
type SchemaField struct {
	Name        string
	Description string
}

// Schema describes the object a structured completion must return.
// All fields are required strings.
type Schema struct {
	Name   string
	Fields []SchemaField
}

// JSONSchema renders s as a JSON Schema object for backends that accept one.
func (s Schema) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		props[f.Name] = map[string]any{
			"type":        "string",
			"description": f.Description,
		}
		required = append(required, f.Name)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
