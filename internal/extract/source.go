package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// sourceLanguage maps a recognized source-code extension to a display
// language name (§4.A).
func sourceLanguage(ext string) (string, bool) {
	langs := map[string]string{
		".py":    "Python",
		".js":    "JavaScript",
		".jsx":   "JavaScript",
		".ts":    "TypeScript",
		".tsx":   "TypeScript",
		".go":    "Go",
		".rs":    "Rust",
		".java":  "Java",
		".c":     "C",
		".h":     "C",
		".cpp":   "C++",
		".cc":    "C++",
		".hpp":   "C++",
		".sql":   "SQL",
		".yaml":  "YAML",
		".yml":   "YAML",
		".html":  "HTML",
		".htm":   "HTML",
		".rb":    "Ruby",
		".php":   "PHP",
		".sh":    "Shell",
		".css":   "CSS",
		".kt":    "Kotlin",
		".swift": "Swift",
	}
	lang, ok := langs[ext]
	return lang, ok
}

var (
	pyFuncRe   = regexp.MustCompile(`^\s*def\s+\w+\s*\(`)
	braceFuncRe = regexp.MustCompile(`\bfunction\s+\w+\s*\(|^\s*func\s+\w|^\s*(public|private|protected|static)?\s*[\w<>\[\]]+\s+\w+\s*\([^;]*\)\s*\{`)
	classRe    = regexp.MustCompile(`^\s*(class|struct|interface|type)\s+\w`)
)

// extractSourceCode emits a preface ("SOURCE CODE FILE: <name>",
// "Language: <detected>", total lines, code lines, function count, class
// count) followed by the raw source (§4.A).
func extractSourceCode(data []byte, filename, lang string) (*NormalizedText, error) {
	text, err := extractPlainText(data, filename)
	if err != nil {
		return nil, err
	}
	src := text.Text

	lines := strings.Split(src, "\n")
	totalLines := len(lines)
	codeLines, funcs, classes := 0, 0, 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || isCommentLine(trimmed, lang) {
			continue
		}
		codeLines++
		if pyFuncRe.MatchString(line) || braceFuncRe.MatchString(line) {
			funcs++
		}
		if classRe.MatchString(line) {
			classes++
		}
	}

	preface := fmt.Sprintf(
		"SOURCE CODE FILE: %s\nLanguage: %s\nTotal lines: %d\nCode lines: %d\nFunctions: %d\nClasses: %d\n\n",
		filename, lang, totalLines, codeLines, funcs, classes,
	)

	return &NormalizedText{Text: preface + src}, nil
}

func isCommentLine(trimmed, lang string) bool {
	switch lang {
	case "Python", "Shell", "YAML":
		return strings.HasPrefix(trimmed, "#")
	case "SQL":
		return strings.HasPrefix(trimmed, "--")
	case "HTML":
		return strings.HasPrefix(trimmed, "<!--")
	default:
		return strings.HasPrefix(trimmed, "//") || strings.HasPrefix(trimmed, "/*") || strings.HasPrefix(trimmed, "*")
	}
}
