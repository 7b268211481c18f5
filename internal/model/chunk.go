package model

import (
	"encoding/json"
	"time"
)

// ChunkType distinguishes the parent/child chunking granularity of §4.D.
type ChunkType string

const (
	ChunkTypeParent ChunkType = "parent"
	ChunkTypeChild  ChunkType = "child"
)

// Chunk is a unit of retrievable (child) or generation (parent) context.
// (document_id, chunk_index) is unique; child chunks always carry a
// non-nil ParentChunkID, parents carry none (§3).
type Chunk struct {
	ID            string          `json:"id"`
	DocumentID    int64           `json:"documentId"`
	KBID          string          `json:"kbId"`
	ChunkIndex    int             `json:"chunkIndex"`
	StartToken    int             `json:"startToken"`
	EndToken      int             `json:"endToken"`
	Content       string          `json:"content"`
	ContentHash   string          `json:"contentHash"`
	Embedding     []float32       `json:"-"`
	ParentChunkID *string         `json:"parentChunkId,omitempty"`
	ChunkType     ChunkType       `json:"chunkType"`
	SectionIndex  int             `json:"sectionIndex"` // groups parent chunks by section boundary for §4.H level-2 summaries
	Concepts      json.RawMessage `json:"concepts,omitempty"`
	Summary       *string         `json:"summary,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}
