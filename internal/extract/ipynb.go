package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
)

type ipynbDoc struct {
	Metadata struct {
		KernelSpec struct {
			Name        string `json:"name"`
			DisplayName string `json:"display_name"`
		} `json:"kernelspec"`
	} `json:"metadata"`
	Cells []ipynbCell `json:"cells"`
}

type ipynbCell struct {
	CellType string          `json:"cell_type"`
	Source   json.RawMessage `json:"source"`
	Outputs  []ipynbOutput   `json:"outputs"`
}

type ipynbOutput struct {
	OutputType string                     `json:"output_type"`
	Data       map[string]json.RawMessage `json:"data"`
	Text       json.RawMessage            `json:"text"`
}

// extractIpynb parses the notebook JSON, emits a kernel name header, then
// for each cell "[Code Cell k]"/"[Markdown k]" followed by its source, and
// for code cells, "[Output]" followed by any text/plain outputs (§4.A).
func extractIpynb(data []byte, filename string) (*NormalizedText, error) {
	var nb ipynbDoc
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, errs.Extraction(".ipynb", "malformed notebook JSON", err)
	}

	var buf strings.Builder
	kernel := nb.Metadata.KernelSpec.DisplayName
	if kernel == "" {
		kernel = nb.Metadata.KernelSpec.Name
	}
	if kernel == "" {
		kernel = "unknown"
	}
	buf.WriteString(fmt.Sprintf("Kernel: %s\n\n", kernel))

	codeN, mdN := 0, 0
	for _, cell := range nb.Cells {
		source := joinSource(cell.Source)
		switch cell.CellType {
		case "code":
			codeN++
			buf.WriteString(fmt.Sprintf("[Code Cell %d]\n%s\n", codeN, source))
			for _, out := range cell.Outputs {
				text := textPlainOutput(out)
				if text != "" {
					buf.WriteString("[Output]\n")
					buf.WriteString(text)
					buf.WriteByte('\n')
				}
			}
		case "markdown":
			mdN++
			buf.WriteString(fmt.Sprintf("[Markdown %d]\n%s\n", mdN, source))
		default:
			// raw cells and anything else: emit source verbatim with no label
			buf.WriteString(source)
			buf.WriteByte('\n')
		}
		buf.WriteByte('\n')
	}

	return &NormalizedText{Text: buf.String()}, nil
}

// joinSource handles both the "list of lines" and "single string" shapes
// Jupyter allows for a cell's source field.
func joinSource(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func textPlainOutput(out ipynbOutput) string {
	if raw, ok := out.Data["text/plain"]; ok {
		return joinSource(raw)
	}
	if len(out.Text) > 0 {
		return joinSource(out.Text)
	}
	return ""
}
