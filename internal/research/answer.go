package research

import (
	"context"
	"strings"
)

// AnswerSynthesizer writes the final cited answer.
type AnswerSynthesizer struct {
	model LanguageModel
}

// NewAnswerSynthesizer returns an AnswerSynthesizer.
func NewAnswerSynthesizer(model LanguageModel) *AnswerSynthesizer {
	return &AnswerSynthesizer{model: model}
}

// Synthesize answers question from agg. Citations in the answer are not
// checked.
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question string, agg *Aggregation) (string, error) {
	p := Prompt{
		Instruction: answerInstruction,
		Context: []Field{
			{Name: FieldQuestion, Value: question},
			{Name: FieldSources, Value: agg.text()},
		},
		Task: answerTask,
	}
	out, err := s.model.CompletePlain(ctx, p)
	if err != nil {
		return "", &CapabilityError{Capability: CapAnswerSynthesis, Err: err}
	}
	return strings.TrimSpace(out), nil
}

// WithCitations appends the citation trailer to answer.
func WithCitations(answer string, c *CitationSet) string {
	trailer := c.Trailer()
	if trailer == "" {
		return answer
	}
	return answer + "\n\n" + trailer
}
