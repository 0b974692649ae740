// Package researchserver exposes a research Runner over MCP and REST.
package researchserver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/anatolykoptev/go_research/internal/research"
)

// Tool defaults. The MCP tool runs a second iteration by default since
// agents rarely tune the bounds.
const (
	DefaultToolIterations = 2
	DefaultMaxRetry       = 3
)

// ResearchInput is the MCP tool input.
type ResearchInput struct {
	Question      string `json:"question" jsonschema:"The question to research on the web"`
	MaxIterations *int   `json:"max_iterations,omitempty" jsonschema:"Search-reflect rounds before answering (default 2)"`
	MaxRetry      *int   `json:"max_retry,omitempty" jsonschema:"Extra searches allowed when a query returns nothing (default 3)"`
}

func (in ResearchInput) question() research.Question {
	q := research.Question{
		Text:          strings.TrimSpace(in.Question),
		MaxIterations: DefaultToolIterations,
		MaxRetry:      DefaultMaxRetry,
	}
	if in.MaxIterations != nil {
		q.MaxIterations = *in.MaxIterations
	}
	if in.MaxRetry != nil {
		q.MaxRetry = *in.MaxRetry
	}
	return q
}

// RegisterTools registers the research tool on server.
func RegisterTools(server *mcp.Server, runner Runner) {
	runner = Instrument(runner)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "research",
		Description: "Research a question on the web. Generates a search query, reads the top results, reflects on what is missing, searches again, and returns a markdown answer with a numbered list of source URLs. If nothing can be found, returns a message instead of an answer.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, _ *mcp.CallToolRequest, input ResearchInput) (*mcp.CallToolResult, research.Result, error) {
		if strings.TrimSpace(input.Question) == "" {
			return nil, research.Result{}, fmt.Errorf("question is required")
		}
		res, err := runner.Run(ctx, input.question())
		if err != nil {
			slog.Warn("research tool failed", slog.Any("error", err))
			return nil, research.Result{}, err
		}
		return nil, res, nil
	})
}
