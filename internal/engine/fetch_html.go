package engine

import (
	"errors"
	"net/url"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var errNoContent = errors.New("no readable content")

// minReadableChars is the shortest extraction accepted from a tier before
// trying the next one.
const minReadableChars = 80

// extractContent turns an HTML page into readable text. It tries
// readability + markdown, then goquery main-content selection, then a plain
// text walk of the parse tree.
func extractContent(page, pageURL string) (string, error) {
	if text := extractReadable(page, pageURL); len(text) >= minReadableChars {
		return text, nil
	}
	if text := extractWithGoquery(page); len(text) >= minReadableChars {
		return text, nil
	}
	if text := extractText(page); text != "" {
		return text, nil
	}
	return "", errNoContent
}

// extractReadable uses go-readability and renders the article as markdown.
func extractReadable(page, pageURL string) string {
	parsed, _ := url.Parse(pageURL)
	article, err := readability.FromReader(strings.NewReader(page), parsed)
	if err != nil {
		return ""
	}

	md, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil || strings.TrimSpace(md) == "" {
		md = article.TextContent
	}
	text := CollapseWhitespace(md)
	if text == "" {
		return ""
	}
	if title := strings.TrimSpace(article.Title); title != "" && !strings.HasPrefix(text, "# ") {
		text = "# " + title + "\n\n" + text
	}
	return text
}

var removeSelectors = []string{
	"script", "style", "noscript", "iframe", "svg",
	"header", "footer", "nav", "aside",
	".advertisement", ".ad", ".sidebar", ".comments",
	"[role=navigation]", "[role=banner]", "[role=contentinfo]",
}

// extractWithGoquery picks the main content container after dropping page
// chrome.
func extractWithGoquery(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	doc.Find(strings.Join(removeSelectors, ", ")).Remove()

	sel := doc.Find("article, main, .content, .post-content, .article-content, #content").First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	return CollapseWhitespace(sel.Text())
}

// extractText collects every text node outside script-like elements.
func extractText(page string) string {
	root, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "svg", "head":
				return
			}
		}
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				sb.WriteString(t)
				sb.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return CollapseWhitespace(sb.String())
}
