package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Reflector asks the model what the current sources are missing.
type Reflector struct {
	model LanguageModel
}

// NewReflector returns a Reflector.
func NewReflector(model LanguageModel) *Reflector {
	return &Reflector{model: model}
}

// Reflect returns the knowledge gap and follow-up query for agg. A reply that
// does not match ReflectionSchema is a *StructuredDecodeError.
func (r *Reflector) Reflect(ctx context.Context, question string, agg *Aggregation) (Reflection, error) {
	p := Prompt{
		Instruction: reflectInstruction,
		Context: []Field{
			{Name: FieldQuestion, Value: question},
			{Name: FieldSources, Value: agg.text()},
		},
		Task: reflectTask,
	}
	raw, err := r.model.CompleteStructured(ctx, p, ReflectionSchema)
	if err != nil {
		return Reflection{}, &CapabilityError{Capability: CapReflection, Err: err}
	}
	return DecodeReflection(raw)
}

// DecodeReflection strictly decodes raw into a Reflection: one JSON object,
// exactly the two keys (case-sensitive, no repeats), both strings, non-blank
// follow-up query.
func DecodeReflection(raw string) (Reflection, error) {
	fail := func(err error) (Reflection, error) {
		return Reflection{}, &StructuredDecodeError{Raw: raw, Err: err}
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return fail(err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fail(errors.New("reflection is not a JSON object"))
	}

	values := make(map[string]string, 2)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fail(err)
		}
		key, _ := tok.(string)
		if key != keyKnowledgeGap && key != keyFollowUpQuery {
			return fail(fmt.Errorf("unexpected key %q", key))
		}
		if _, dup := values[key]; dup {
			return fail(fmt.Errorf("duplicate key %q", key))
		}
		var v *string
		if err := dec.Decode(&v); err != nil {
			return fail(fmt.Errorf("key %q: %w", key, err))
		}
		if v == nil {
			return fail(fmt.Errorf("key %q is null", key))
		}
		values[key] = *v
	}
	if _, err := dec.Token(); err != nil {
		return fail(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fail(errors.New("unexpected data after reflection object"))
	}

	gap, ok := values[keyKnowledgeGap]
	if !ok {
		return fail(fmt.Errorf("missing key %q", keyKnowledgeGap))
	}
	query, ok := values[keyFollowUpQuery]
	if !ok {
		return fail(fmt.Errorf("missing key %q", keyFollowUpQuery))
	}
	if strings.TrimSpace(query) == "" {
		return fail(fmt.Errorf("key %q is blank", keyFollowUpQuery))
	}
	return Reflection{
		KnowledgeGap:  strings.TrimSpace(gap),
		FollowUpQuery: strings.TrimSpace(query),
	}, nil
}

const (
	keyKnowledgeGap  = "knowledge_gap"
	keyFollowUpQuery = "follow_up_query"
)
