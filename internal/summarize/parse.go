package summarize

import (
	"encoding/json"
	"strings"
)

// parseLevelResponse strips an optional markdown code fence and decodes the
// oracle's strict-JSON summary response (same idiom as
// internal/concept.parseSchema, grounded on teacher's generator.go
// parseGenerationResponse).
func parseLevelResponse(raw string) (levelResponse, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) >= 3 {
			cleaned = strings.Join(lines[1:len(lines)-1], "\n")
		}
		cleaned = strings.TrimSpace(cleaned)
	}

	var parsed levelResponse
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return levelResponse{}, err
	}
	return parsed, nil
}
