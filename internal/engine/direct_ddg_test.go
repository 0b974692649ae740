package engine

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractVQD(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"single quotes", `<script>vqd='4-1111_aa';</script>`, "4-1111_aa"},
		{"double quotes", `data vqd="4-2222_bb" more`, "4-2222_bb"},
		{"bare param", `nrj('/d.js?q=go&vqd=4-3333cc&kl=wt-wt')`, "4-3333cc"},
		{"missing", `<html><body>nothing</body></html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractVQD(tt.body); got != tt.want {
				t.Errorf("extractVQD() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseDDGResponse(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantCount int
		wantErr   bool
	}{
		{
			name:      "json array",
			data:      `[{"t":"Go memory model","a":"Happens-before","u":"https://go.dev/ref/mem"},{"t":"Alt","a":"x","u":"","c":"https://example.org/alt"}]`,
			wantCount: 2,
		},
		{
			name:      "jsonp wrapper",
			data:      `DDG.pageLayout.load('d',[{"t":"Wrapped","a":"body","u":"https://example.com/w"}]);`,
			wantCount: 1,
		},
		{
			name:      "ddg internal links skipped",
			data:      `[{"t":"Ad","a":"ad","u":"https://duckduckgo.com/y.js?ad"},{"t":"Real","a":"r","u":"https://example.com/r"}]`,
			wantCount: 1,
		},
		{
			name:      "missing title or url skipped",
			data:      `[{"t":"","a":"x","u":"https://example.com"},{"t":"No URL","a":"x","u":""}]`,
			wantCount: 0,
		},
		{
			name:    "not json",
			data:    `<html>blocked</html>`,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := parseDDGResponse([]byte(tt.data))
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDDGResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(results) != tt.wantCount {
				t.Errorf("parseDDGResponse() returned %d results, want %d", len(results), tt.wantCount)
			}
		})
	}
}

func TestParseDDGResponse_StripsHTML(t *testing.T) {
	results, err := parseDDGResponse([]byte(`[{"t":"<b>Go</b> generics","a":"Type <b>parameters</b>","u":"https://go.dev/doc/tutorial/generics"}]`))
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Title != "Go generics" || results[0].Content != "Type parameters" {
		t.Errorf("html not stripped: %+v", results[0])
	}
}

const ddgResultsPage = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fblog%2Fpgo&rut=x">Profile-guided optimization</a>
  <a class="result__snippet">PGO in Go 1.21.</a>
</div>
<div class="result">
  <a class="result__a" href="https://example.com/direct">Direct link</a>
  <a class="result__snippet">Plain href.</a>
</div>
<div class="result">
  <a class="result__a" href="/relative">Dropped</a>
</div>
</body></html>`

func TestParseDDGHTML(t *testing.T) {
	results, err := parseDDGHTML([]byte(ddgResultsPage))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].URL != "https://go.dev/blog/pgo" {
		t.Errorf("redirect not unwrapped: %q", results[0].URL)
	}
	if results[0].Content != "PGO in Go 1.21." {
		t.Errorf("snippet = %q", results[0].Content)
	}
}

func TestDDGUnwrapURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fa&rut=abc", "https://example.com/a"},
		{"https://example.com/direct", "https://example.com/direct"},
		{"/relative/path", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := ddgUnwrapURL(tt.input); got != tt.want {
			t.Errorf("ddgUnwrapURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func newTestDDG(srv *httptest.Server) *ddgScraper {
	return &ddgScraper{
		do: httpDoer(srv.Client()),
		ep: ddgEndpoints{
			HTML: srv.URL + "/html/",
			Home: srv.URL + "/",
			DJS:  srv.URL + "/d.js",
		},
		region: "us-en",
	}
}

func TestDDGScraper_HTML(t *testing.T) {
	var gotForm string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/html/" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		_ = r.ParseForm()
		gotForm = r.PostForm.Get("q") + "|" + r.PostForm.Get("kl")
		_, _ = w.Write([]byte(ddgResultsPage))
	}))
	defer srv.Close()

	results, err := newTestDDG(srv).search(context.Background(), "go pgo")
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if gotForm != "go pgo|us-en" {
		t.Errorf("form = %q", gotForm)
	}
}

func TestDDGScraper_FallsBackToDJS(t *testing.T) {
	var gotVQD string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/html/":
			w.WriteHeader(http.StatusForbidden)
		case "/":
			_, _ = w.Write([]byte(`<script>vqd="4-token_1"</script>`))
		case "/d.js":
			gotVQD = r.URL.Query().Get("vqd")
			_, _ = w.Write([]byte(`[{"t":"From d.js","a":"json","u":"https://example.com/djs"}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	results, err := newTestDDG(srv).search(context.Background(), "fallback")
	if err != nil {
		t.Fatal(err)
	}
	if gotVQD != "4-token_1" {
		t.Errorf("vqd = %q", gotVQD)
	}
	if len(results) != 1 || results[0].URL != "https://example.com/djs" {
		t.Errorf("results = %+v", results)
	}
}

func TestDDGScraper_NoToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/html/" {
			_, _ = w.Write([]byte(`<html><body>no results</body></html>`))
			return
		}
		_, _ = w.Write([]byte(`<html></html>`))
	}))
	defer srv.Close()

	_, err := newTestDDG(srv).search(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "vqd") {
		t.Errorf("err = %v, want vqd error", err)
	}
}
