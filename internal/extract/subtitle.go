package extract

import (
	"regexp"
	"strings"
)

var (
	srtCueNumberRe = regexp.MustCompile(`^\d+$`)
	timestampRe    = regexp.MustCompile(`\d{2}:\d{2}:\d{2}[,.]\d{3}\s*-->\s*\d{2}:\d{2}:\d{2}[,.]\d{3}`)
	vttTagRe       = regexp.MustCompile(`</?[a-zA-Z][^>]*>`)
)

// extractSubtitle strips cue numbers, timestamp lines, WEBVTT/NOTE headers,
// and inline cue tags from srt/vtt, emitting concatenated spoken text only
// with consecutive duplicate lines collapsed (§4.A).
func extractSubtitle(data []byte, filename, ext string) (*NormalizedText, error) {
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")

	var out []string
	var last string
	inNote := false
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			inNote = false
			continue
		}
		if line == "WEBVTT" || strings.HasPrefix(line, "WEBVTT ") {
			continue
		}
		if strings.HasPrefix(line, "NOTE") {
			inNote = true
			continue
		}
		if inNote {
			continue
		}
		if srtCueNumberRe.MatchString(line) {
			continue
		}
		if timestampRe.MatchString(line) {
			continue
		}
		line = vttTagRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(line)
		if line == "" || line == last {
			continue
		}
		out = append(out, line)
		last = line
	}

	return &NormalizedText{Text: strings.Join(out, "\n")}, nil
}
