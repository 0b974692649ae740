package research

import (
	"context"
	"errors"
	"strings"
	"time"
)

var errBlankQuery = errors.New("model returned an empty query")

// QueryGenerator produces the next search query.
type QueryGenerator struct {
	model LanguageModel
	now   func() time.Time
}

// NewQueryGenerator returns a generator. now may be nil.
func NewQueryGenerator(model LanguageModel, now func() time.Time) *QueryGenerator {
	if now == nil {
		now = time.Now
	}
	return &QueryGenerator{model: model, now: now}
}

// Next returns prior.FollowUpQuery verbatim when prior is set, without
// calling the model. Otherwise it asks the model for a query.
func (g *QueryGenerator) Next(ctx context.Context, question string, prior *Reflection) (string, error) {
	if prior != nil {
		return prior.FollowUpQuery, nil
	}

	p := Prompt{
		Instruction: queryInstruction,
		Context: []Field{
			{Name: FieldDate, Value: g.now().Format(DateLayout)},
			{Name: FieldQuestion, Value: question},
		},
		Task: queryTask,
	}
	out, err := g.model.CompletePlain(ctx, p)
	if err != nil {
		return "", &CapabilityError{Capability: CapQueryGeneration, Err: err}
	}
	q := strings.TrimSpace(out)
	if q == "" {
		return "", &CapabilityError{Capability: CapQueryGeneration, Err: errBlankQuery}
	}
	return q, nil
}
