package model

import (
	"encoding/json"
	"time"
)

// SourceType enumerates the raw input kind a Document was ingested from (§3).
type SourceType string

const (
	SourceText  SourceType = "text"
	SourceURL   SourceType = "url"
	SourceFile  SourceType = "file"
	SourceImage SourceType = "image"
)

// SkillLevel is the per-document skill level assigned by the concept
// extractor (§4.F).
type SkillLevel string

const (
	SkillBeginner     SkillLevel = "beginner"
	SkillIntermediate SkillLevel = "intermediate"
	SkillAdvanced     SkillLevel = "advanced"
	SkillUnknown      SkillLevel = "unknown"
)

// ChunkingStatus tracks the chunking stage of the ingestion pipeline.
type ChunkingStatus string

const (
	ChunkingPending    ChunkingStatus = "pending"
	ChunkingInProgress ChunkingStatus = "in_progress"
	ChunkingDone       ChunkingStatus = "done"
	ChunkingFailed     ChunkingStatus = "failed"
)

// SummaryStatus tracks the summarization stage of the ingestion pipeline.
type SummaryStatus string

const (
	SummaryPending    SummaryStatus = "pending"
	SummaryInProgress SummaryStatus = "in_progress"
	SummaryDone       SummaryStatus = "done"
	SummaryFailed     SummaryStatus = "failed"
)

// Document is a single ingested artifact. DocID is a globally unique
// monotonic identifier allocated by a database sequence (§4.M) — never by
// application-level max()+1.
type Document struct {
	DocID          int64           `json:"docId"`
	KBID           string          `json:"kbId"`
	Owner          string          `json:"owner"`
	SourceType     SourceType      `json:"sourceType"`
	Filename       *string         `json:"filename,omitempty"`
	SourceURL      *string         `json:"sourceUrl,omitempty"`
	SizeBytes      int64           `json:"sizeBytes"`
	SkillLevel     SkillLevel      `json:"skillLevel"`
	ChunkingStatus ChunkingStatus  `json:"chunkingStatus"`
	SummaryStatus  SummaryStatus   `json:"summaryStatus"`
	ChunkCount     int             `json:"chunkCount"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	ImagePath      *string         `json:"imagePath,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// VectorDocument is 1:1 with Document, separated for large-blob I/O
// performance (§3): the raw extracted text and the cached TF-IDF vector
// for the KB's sparse retrieval model live here, not on Document.
type VectorDocument struct {
	DocID        int64     `json:"docId"`
	RawText      string    `json:"-"`
	TFIDFVector  []float64 `json:"-"`
}
