package research

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDedup(t *testing.T) {
	tests := []struct {
		name string
		in   []Hit
		want []string
	}{
		{
			name: "first occurrence wins",
			in: []Hit{
				{URL: "a.com", Title: "A", Content: "c1"},
				{URL: "a.com", Title: "A2", Content: "c2"},
				{URL: "b.com", Title: "B", Content: "c3"},
			},
			want: []string{"a.com", "b.com"},
		},
		{
			name: "blank url dropped",
			in:   []Hit{{URL: " ", Title: "x"}, {URL: "c.com"}},
			want: []string{"c.com"},
		},
		{
			name: "order kept",
			in:   []Hit{{URL: "z"}, {URL: "y"}, {URL: "z"}, {URL: "x"}},
			want: []string{"z", "y", "x"},
		},
		{
			name: "empty",
			in:   nil,
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dedup(tt.in)
			urls := make([]string, 0, len(got))
			for _, h := range got {
				urls = append(urls, h.URL)
			}
			assert.Equal(t, tt.want, urls)
		})
	}
}

func TestAggregate_KeepsFirstRecord(t *testing.T) {
	a := NewAggregator(nil, WithFetchFull(false))
	agg := a.Aggregate(context.Background(), []Hit{
		{URL: "a.com", Title: "A", Content: "c1"},
		{URL: "a.com", Title: "A2", Content: "c2"},
		{URL: "b.com", Title: "B", Content: "c3"},
	})

	require.Equal(t, 2, agg.Len())
	assert.Equal(t, []string{"a.com", "b.com"}, agg.URLs())

	rec, ok := agg.Get("a.com")
	require.True(t, ok)
	assert.Equal(t, "A", rec.Title)
	assert.Equal(t, "c1", rec.Content)

	rec, ok = agg.Get("b.com")
	require.True(t, ok)
	assert.Equal(t, "B", rec.Title)

	assert.NotContains(t, agg.Text, "A2")
	assert.NotContains(t, agg.Text, "c2")
}

func TestAggregate_Format(t *testing.T) {
	a := NewAggregator(nil, WithFetchFull(false))
	agg := a.Aggregate(context.Background(), []Hit{{URL: "a.com", Title: "A", Content: "c1"}})

	want := "Sources:\n\nSource: A\n===\nURL: a.com\n===\nMost relevant content from source: c1\n==="
	assert.Equal(t, want, agg.Text)
}

func TestAggregate_FullContent(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{"a.com": "page body"}}
	a := NewAggregator(f, WithBudget(10))
	agg := a.Aggregate(context.Background(), []Hit{{URL: "a.com", Title: "A", Content: "c1"}})

	assert.Contains(t, agg.Text, "Full source content limited to 10 tokens: page body")
	rec, _ := agg.Get("a.com")
	assert.Equal(t, "page body", rec.RawContent)
}

func TestAggregate_Idempotent(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{"a.com": "alpha", "b.com": "beta"}}
	a := NewAggregator(f)
	hits := []Hit{
		{URL: "a.com", Title: "A", Content: "c1"},
		{URL: "b.com", Title: "B", Content: "c2"},
		{URL: "a.com", Title: "A again", Content: "c3"},
	}

	first := a.Aggregate(context.Background(), hits)
	second := a.Aggregate(context.Background(), hits)
	assert.Equal(t, first.Text, second.Text)
	assert.Equal(t, first.URLs(), second.URLs())
}

func TestAggregate_Truncates(t *testing.T) {
	long := strings.Repeat("a", 5000)
	f := &mapFetcher{pages: map[string]string{"a.com": long, "b.com": "short"}}
	a := NewAggregator(f, WithBudget(1000))
	agg := a.Aggregate(context.Background(), []Hit{
		{URL: "a.com", Title: "A"},
		{URL: "b.com", Title: "B"},
	})

	rec, _ := agg.Get("a.com")
	assert.True(t, strings.HasSuffix(rec.RawContent, truncationMarker))
	assert.NotContains(t, rec.RawContent, strings.Repeat("a", 4001))

	rec, _ = agg.Get("b.com")
	assert.Equal(t, "short", rec.RawContent)
}

func TestAggregate_UnavailableContent(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{
		"down.com": "this datasource is not available (error code: 503)",
	}}
	a := NewAggregator(f)
	agg := a.Aggregate(context.Background(), []Hit{
		{URL: "down.com", Title: "Down"},
		{URL: "blank.com", Title: "Blank"},
	})

	require.Equal(t, 2, agg.Len())
	rec, _ := agg.Get("down.com")
	assert.Equal(t, "this datasource is not available (error code: 503)", rec.RawContent)
	rec, _ = agg.Get("blank.com")
	assert.Equal(t, UnavailableEmpty, rec.RawContent)
}

func TestAggregate_UsesProvidedRawContent(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{"a.com": "fetched"}}
	a := NewAggregator(f)
	agg := a.Aggregate(context.Background(), []Hit{{URL: "a.com", Title: "A", RawContent: "inline"}})

	rec, _ := agg.Get("a.com")
	assert.Equal(t, "inline", rec.RawContent)
	assert.Zero(t, f.callCount())
}

func TestAggregate_FetchOnceForDuplicates(t *testing.T) {
	f := &mapFetcher{pages: map[string]string{"a.com": "x"}}
	a := NewAggregator(f)
	a.Aggregate(context.Background(), []Hit{{URL: "a.com"}, {URL: "a.com"}, {URL: "a.com"}})
	assert.Equal(t, 1, f.callCount())
}

func TestAggregate_OrderIndependentOfCompletion(t *testing.T) {
	// Earlier hits finish last.
	f := &mapFetcher{
		pages: map[string]string{"1.com": "one", "2.com": "two", "3.com": "three", "4.com": "four"},
		delays: map[string]time.Duration{
			"1.com": 40 * time.Millisecond,
			"2.com": 30 * time.Millisecond,
			"3.com": 20 * time.Millisecond,
			"4.com": 10 * time.Millisecond,
		},
	}
	hits := []Hit{{URL: "1.com"}, {URL: "2.com"}, {URL: "3.com"}, {URL: "4.com"}}

	parallel := NewAggregator(f, WithParallelism(4)).Aggregate(context.Background(), hits)
	serial := NewAggregator(f, WithParallelism(1)).Aggregate(context.Background(), hits)
	assert.Equal(t, serial.Text, parallel.Text)

	re := regexp.MustCompile(`URL: (\S+)`)
	var order []string
	for _, m := range re.FindAllStringSubmatch(parallel.Text, -1) {
		order = append(order, m[1])
	}
	assert.Equal(t, []string{"1.com", "2.com", "3.com", "4.com"}, order)
	assert.Less(t, strings.Index(parallel.Text, "one"), strings.Index(parallel.Text, "four"))
}

func TestAggregation_NilSafe(t *testing.T) {
	var agg *Aggregation
	assert.Zero(t, agg.Len())
	assert.Nil(t, agg.URLs())
	_, ok := agg.Get("x")
	assert.False(t, ok)
}
