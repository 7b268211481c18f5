package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlainText decodes UTF-8; on decode failure it falls back to
// Latin-1 rather than raising (§4.A: "on decode failure, fall back to
// Latin-1; do not raise").
func extractPlainText(data []byte, filename string) (*NormalizedText, error) {
	var text string
	if utf8.Valid(data) {
		text = string(data)
	} else {
		text = latin1ToUTF8(data)
	}

	return &NormalizedText{
		Text:     text,
		Headings: markdownHeadings(text),
	}, nil
}

// latin1ToUTF8 reinterprets each byte as a Latin-1 (ISO-8859-1) code point,
// which maps 1:1 onto the first 256 Unicode code points.
func latin1ToUTF8(data []byte) string {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes)
}

// markdownHeadings collects "# Title"-style headers in document order, used
// as structural hints by the chunker (§4.D "split on section boundaries
// where hints permit").
func markdownHeadings(text string) []string {
	var headings []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			title := strings.TrimLeft(trimmed, "# ")
			if title != "" {
				headings = append(headings, title)
			}
		}
	}
	return headings
}
