package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// skipTags hold boilerplate (nav, scripts, styles, ads) that §4.A's url
// source type says to discard.
var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"header": true, "aside": true, "noscript": true, "form": true,
}

// HTTPURLFetcher implements URLFetcher over net/http, extracting a page's
// main textual content and heading hierarchy with golang.org/x/net/html.
type HTTPURLFetcher struct {
	client *http.Client
}

func NewHTTPURLFetcher() *HTTPURLFetcher {
	return &HTTPURLFetcher{client: &http.Client{Timeout: 20 * time.Second}}
}

var _ URLFetcher = (*HTTPURLFetcher)(nil)

func (f *HTTPURLFetcher) Fetch(ctx context.Context, rawURL string) (*NormalizedText, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("extract.HTTPURLFetcher: build request: %w", err)
	}
	req.Header.Set("User-Agent", "ragbox-backend/1.0 (+document ingestion)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extract.HTTPURLFetcher: fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extract.HTTPURLFetcher: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("extract.HTTPURLFetcher: read body: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("extract.HTTPURLFetcher: parse html: %w", err)
	}

	var headings []string
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}
		if n.Type == html.ElementNode && isHeadingTag(n.Data) {
			if text := strings.TrimSpace(nodeText(n)); text != "" {
				headings = append(headings, text)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return &NormalizedText{
		Text:     strings.TrimSpace(b.String()),
		Headings: headings,
		Hints:    map[string]string{"source_url": rawURL},
	}, nil
}

func isHeadingTag(tag string) bool {
	switch tag {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}
