package research

import (
	"fmt"
	"strings"
)

// CitationSet collects URLs across iterations in first-seen order.
type CitationSet struct {
	urls []string
	seen map[string]struct{}
}

// NewCitationSet returns an empty set.
func NewCitationSet() *CitationSet {
	return &CitationSet{seen: make(map[string]struct{})}
}

// Add appends urls not already present. Blank URLs are ignored.
func (c *CitationSet) Add(urls ...string) {
	for _, u := range urls {
		if strings.TrimSpace(u) == "" {
			continue
		}
		if _, ok := c.seen[u]; ok {
			continue
		}
		c.seen[u] = struct{}{}
		c.urls = append(c.urls, u)
	}
}

// AddHits adds the URLs of hits.
func (c *CitationSet) AddHits(hits []Hit) {
	for _, h := range hits {
		c.Add(h.URL)
	}
}

// Len returns the number of URLs.
func (c *CitationSet) Len() int { return len(c.urls) }

// URLs returns a copy of the URLs in first-seen order.
func (c *CitationSet) URLs() []string {
	out := make([]string, len(c.urls))
	copy(out, c.urls)
	return out
}

// Trailer renders the numbered source list appended to an answer.
func (c *CitationSet) Trailer() string {
	if len(c.urls) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Sources:\n")
	for i, u := range c.urls {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, u)
	}
	return strings.TrimRight(sb.String(), "\n")
}
