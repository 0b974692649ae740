package engine

import (
	"strings"

	"github.com/anatolykoptev/go_research/internal/research"
)

// SearxngResult is one result as returned by SearXNG and the direct scrapers.
type SearxngResult struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

type searxngResponse struct {
	Results []SearxngResult `json:"results"`
}

// complete reports whether r has everything a research hit needs.
func (r SearxngResult) complete() bool {
	return strings.TrimSpace(r.URL) != "" &&
		strings.TrimSpace(r.Title) != "" &&
		strings.TrimSpace(r.Content) != ""
}

func (r SearxngResult) hit() research.Hit {
	return research.Hit{
		Title:   strings.TrimSpace(r.Title),
		URL:     strings.TrimSpace(r.URL),
		Content: strings.TrimSpace(r.Content),
	}
}
