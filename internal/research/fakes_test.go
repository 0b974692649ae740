package research

import (
	"context"
	"errors"
	"sync"
	"time"
)

// scriptedSearch returns batches in order; once exhausted it repeats the last.
type scriptedSearch struct {
	batches [][]Hit
	queries []string
}

func (s *scriptedSearch) Search(_ context.Context, query string, _ int, _ bool) []Hit {
	s.queries = append(s.queries, query)
	if len(s.batches) == 0 {
		return nil
	}
	i := len(s.queries) - 1
	if i >= len(s.batches) {
		i = len(s.batches) - 1
	}
	return s.batches[i]
}

// mapFetcher serves page text by URL with optional per-URL delay.
type mapFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	delays map[string]time.Duration
	calls  []string
}

func (f *mapFetcher) Fetch(_ context.Context, url string) string {
	if d := f.delays[url]; d > 0 {
		time.Sleep(d)
	}
	f.mu.Lock()
	f.calls = append(f.calls, url)
	f.mu.Unlock()
	return f.pages[url]
}

func (f *mapFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// scriptedModel replays canned completions and records prompts.
type scriptedModel struct {
	plain      []string
	structured []string
	plainErr   error
	structErr  error

	plainPrompts  []Prompt
	structPrompts []Prompt
}

func (m *scriptedModel) CompletePlain(_ context.Context, p Prompt) (string, error) {
	m.plainPrompts = append(m.plainPrompts, p)
	if m.plainErr != nil {
		return "", m.plainErr
	}
	if len(m.plain) == 0 {
		return "", errors.New("scriptedModel: no plain completion left")
	}
	out := m.plain[0]
	m.plain = m.plain[1:]
	return out, nil
}

func (m *scriptedModel) CompleteStructured(_ context.Context, p Prompt, _ Schema) (string, error) {
	m.structPrompts = append(m.structPrompts, p)
	if m.structErr != nil {
		return "", m.structErr
	}
	if len(m.structured) == 0 {
		return "", errors.New("scriptedModel: no structured completion left")
	}
	out := m.structured[0]
	m.structured = m.structured[1:]
	return out, nil
}

// queryPrompts counts plain prompts that asked for a search query.
func (m *scriptedModel) queryPrompts() int {
	n := 0
	for _, p := range m.plainPrompts {
		if p.Task == queryTask {
			n++
		}
	}
	return n
}
