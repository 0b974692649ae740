package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/time/rate"

	"github.com/anatolykoptev/go_research/internal/research"
)

type fakeCompleter struct {
	out  string
	err  error
	reqs []CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req CompletionRequest) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.out, f.err
}

func testPrompt() research.Prompt {
	return research.Prompt{
		Instruction: "  Answer carefully.  ",
		Context: []research.Field{
			{Name: research.FieldDate, Value: "March 3, 2025"},
			{Name: research.FieldQuestion, Value: " why? "},
		},
		Task: "Write the answer.",
	}
}

func TestRenderSystemPrompt(t *testing.T) {
	want := "Answer carefully.\n\n<current_date>\nMarch 3, 2025\n</current_date>\n\n<question>\nwhy?\n</question>"
	if got := RenderSystemPrompt(testPrompt()); got != want {
		t.Errorf("RenderSystemPrompt() =\n%q\nwant\n%q", got, want)
	}
}

func TestModel_CompletePlain(t *testing.T) {
	fc := &fakeCompleter{out: "<think>hmm</think>\n  golang generics tutorial "}
	m := NewModel(fc)

	got, err := m.CompletePlain(context.Background(), testPrompt())
	if err != nil {
		t.Fatal(err)
	}
	if got != "golang generics tutorial" {
		t.Errorf("CompletePlain() = %q", got)
	}
	req := fc.reqs[0]
	if req.JSON || req.Schema != nil {
		t.Error("plain call requested JSON")
	}
	if req.User != "Write the answer." {
		t.Errorf("user turn = %q", req.User)
	}
}

func TestModel_CompleteStructured(t *testing.T) {
	fc := &fakeCompleter{out: "```json\n{\"knowledge_gap\":\"g\",\"follow_up_query\":\"q\"}\n```"}
	m := NewModel(fc, WithNoThink(true))

	got, err := m.CompleteStructured(context.Background(), testPrompt(), research.ReflectionSchema)
	if err != nil {
		t.Fatal(err)
	}
	if got != `{"knowledge_gap":"g","follow_up_query":"q"}` {
		t.Errorf("CompleteStructured() = %q", got)
	}
	req := fc.reqs[0]
	if !req.JSON || req.Schema == nil || req.Schema.Name != research.ReflectionSchema.Name {
		t.Errorf("structured request = %+v", req)
	}
	if !strings.HasSuffix(req.User, " /no_think") {
		t.Errorf("no_think not appended: %q", req.User)
	}
}

func TestModel_Errors(t *testing.T) {
	boom := errors.New("upstream 503")
	if _, err := NewModel(&fakeCompleter{err: boom}).CompletePlain(context.Background(), testPrompt()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if _, err := NewModel(&fakeCompleter{out: "<think>only</think>  "}).CompletePlain(context.Background(), testPrompt()); !errors.Is(err, errEmptyCompletion) {
		t.Errorf("err = %v, want errEmptyCompletion", err)
	}
}

func TestModel_LimiterHonorsContext(t *testing.T) {
	lim := rate.NewLimiter(rate.Limit(0.001), 1)
	lim.Allow()
	m := NewModel(&fakeCompleter{out: "x"}, WithLimiter(lim))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.CompletePlain(ctx, testPrompt()); err == nil {
		t.Error("expected limiter error on canceled context")
	}
}

func TestModel_CountsCalls(t *testing.T) {
	before := metrics.LLMCalls.Load()
	beforeErr := metrics.LLMErrors.Load()
	m := NewModel(&fakeCompleter{err: errors.New("x")})
	_, _ = m.CompletePlain(context.Background(), testPrompt())
	if metrics.LLMCalls.Load() != before+1 || metrics.LLMErrors.Load() != beforeErr+1 {
		t.Error("llm counters not updated")
	}
}

func TestJSONReplyHint(t *testing.T) {
	got := jsonReplyHint(&research.ReflectionSchema)
	if !strings.Contains(got, `"knowledge_gap"`) || !strings.Contains(got, `"follow_up_query"`) {
		t.Errorf("hint missing keys: %q", got)
	}
	if !strings.Contains(jsonReplyHint(nil), "JSON object") {
		t.Error("nil schema hint")
	}
}

func TestNewCompleter(t *testing.T) {
	ctx := context.Background()
	c, err := NewCompleter(ctx, Config{LLMAPIBase: "http://127.0.0.1:1/v1", LLMModel: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*KitCompleter); !ok {
		t.Errorf("default provider = %T, want *KitCompleter", c)
	}
	c, err = NewCompleter(ctx, Config{LLMProvider: "OpenAI", LLMModel: "m"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := c.(*OpenAICompleter); !ok {
		t.Errorf("openai provider = %T", c)
	}
	if _, err := NewCompleter(ctx, Config{LLMProvider: "bogus"}); err == nil {
		t.Error("unknown provider accepted")
	}
}

func TestOpenAICompleter(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("authorization = %q", r.Header.Get("Authorization"))
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"qwen",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{\"knowledge_gap\":\"\",\"follow_up_query\":\"x\"}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(Config{LLMAPIBase: srv.URL + "/v1", LLMAPIKey: "sk-test", LLMModel: "qwen"})
	out, err := c.Complete(context.Background(), CompletionRequest{
		System: "sys",
		User:   "usr",
		JSON:   true,
		Schema: &research.ReflectionSchema,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "follow_up_query") {
		t.Errorf("Complete() = %q", out)
	}
	if body["model"] != "qwen" {
		t.Errorf("model = %v", body["model"])
	}
	if body["temperature"] != float64(0) {
		t.Errorf("temperature = %v", body["temperature"])
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_object" {
		t.Errorf("response_format = %v", body["response_format"])
	}
	msgs, _ := body["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("messages = %v", body["messages"])
	}
	sys, _ := msgs[0].(map[string]any)
	if sys["role"] != "system" || !strings.Contains(sys["content"].(string), "knowledge_gap") {
		t.Errorf("system message = %v", sys)
	}
}

func TestAnthropicCompleter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"m1","type":"message","role":"assistant","model":"claude",
			"content":[{"type":"text","text":"part one, "},{"type":"text","text":"part two"}],
			"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`))
	}))
	defer srv.Close()

	c := NewAnthropicCompleter(Config{LLMAPIBase: srv.URL, LLMAPIKey: "k", LLMModel: "claude"})
	out, err := c.Complete(context.Background(), CompletionRequest{System: "s", User: "u"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "part one, part two" {
		t.Errorf("Complete() = %q", out)
	}
}

func TestOpenAICompleter_StrictSchema(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c2","object":"chat.completion","created":1,"model":"gpt",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"{}"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAICompleter(Config{LLMAPIBase: srv.URL, LLMModel: "gpt", LLMStrictSchema: true})
	if _, err := c.Complete(context.Background(), CompletionRequest{User: "u", JSON: true, Schema: &research.ReflectionSchema}); err != nil {
		t.Fatal(err)
	}
	rf, _ := body["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Fatalf("response_format = %v", body["response_format"])
	}
	js, _ := rf["json_schema"].(map[string]any)
	if js["name"] != "reflection" || js["strict"] != true {
		t.Errorf("json_schema = %v", js)
	}
}
