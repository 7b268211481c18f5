package model

// ConceptCategory enumerates the oracle's concept taxonomy (§4.F).
type ConceptCategory string

const (
	CategoryLanguage  ConceptCategory = "language"
	CategoryFramework ConceptCategory = "framework"
	CategoryConcept   ConceptCategory = "concept"
	CategoryTool      ConceptCategory = "tool"
)

// Concept is a typed, confidence-scored label attached to a document. The
// set of (document_id, name) is unique; confidence is clamped to [0,1] and
// duplicate names within a document are coalesced to max confidence (§3, §4.F).
type Concept struct {
	ID         string          `json:"id"`
	DocumentID int64           `json:"documentId"`
	Name       string          `json:"name"`
	Category   ConceptCategory `json:"category"`
	Confidence float64         `json:"confidence"`
}
