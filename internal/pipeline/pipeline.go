// Package pipeline wires extraction, chunking, embedding, concept
// extraction, clustering, and summarization into the single asynchronous
// document-processing run of §4.C: extract -> chunk -> embed -> concept ->
// cluster -> summarize -> commit. It generalizes the teacher's
// PipelineService (internal/service/pipeline.go), which wired the same
// shape of stages (parse -> scan -> chunk -> embed) behind narrow
// interfaces, to the knowledge-bank domain's full stage list.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/connexus-ai/ragbox-backend/internal/chunk"
	"github.com/connexus-ai/ragbox-backend/internal/cluster"
	"github.com/connexus-ai/ragbox-backend/internal/concept"
	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/repository"
	"github.com/connexus-ai/ragbox-backend/internal/summarize"
)

// Extractor decodes raw bytes (or a fetched URL) into normalized text plus
// heading hints, covering both internal/extract's format registry and
// internal/archive's recursive unpack (the caller picks which to use based
// on the source).
type Extractor interface {
	Extract(ctx context.Context, filename string, data []byte, docID string) (text string, headings []string, err error)
}

// Chunker splits normalized text into the parent/child chunk pair of §4.D.
type Chunker interface {
	Split(text string, headings []string) (parents, children []chunk.Unsaved)
}

// Embedder produces dense vectors for a batch of child chunk contents.
type Embedder interface {
	Embed(ctx context.Context, texts []string) (vectors [][]float32, degraded bool, err error)
}

// ConceptExtractor asks the oracle for the document's concept set (§4.F).
type ConceptExtractor interface {
	Extract(ctx context.Context, documentID int64, text string) (*concept.Result, error)
}

// Clusterer assigns the document to a cluster by concept overlap (§4.G).
type Clusterer interface {
	Assign(ctx context.Context, kbID string, a cluster.Assignment) (cluster.Cluster, error)
}

// Summarizer builds the three-level summary forest (§4.H).
type Summarizer interface {
	Summarize(ctx context.Context, documentID int64, parents []summarize.ParentChunk, conceptNames []string) ([]model.Summary, error)
}

// Committer persists the finished ingestion result atomically (§4.M).
type Committer interface {
	Commit(ctx context.Context, res repository.Result) error
}

// StatusUpdater reports chunking/summary status back onto the document row
// so polling clients (§6 job status protocol) see progress.
type StatusUpdater interface {
	UpdateChunkingStatus(ctx context.Context, docID int64, status model.ChunkingStatus) error
	UpdateSummaryStatus(ctx context.Context, docID int64, status model.SummaryStatus) error
}

// Input is everything the pipeline needs for one document run.
type Input struct {
	Document model.Document
	Filename string
	RawBytes []byte
}

// Pipeline runs the full ingestion stage sequence for one document at a
// time per document ID; a concurrency guard mirrors the teacher's
// processingMu/processing map to reject duplicate concurrent runs for the
// same document rather than corrupt a half-written row.
type Pipeline struct {
	extractor  Extractor
	chunker    Chunker
	embedder   Embedder
	concepts   ConceptExtractor
	clusterer  Clusterer
	summarizer Summarizer
	committer  Committer
	docs       StatusUpdater

	mu         sync.Mutex
	processing map[int64]bool
}

func New(extractor Extractor, chunker Chunker, embedder Embedder, concepts ConceptExtractor,
	clusterer Clusterer, summarizer Summarizer, committer Committer, docs StatusUpdater) *Pipeline {
	return &Pipeline{
		extractor: extractor, chunker: chunker, embedder: embedder, concepts: concepts,
		clusterer: clusterer, summarizer: summarizer, committer: committer, docs: docs,
		processing: make(map[int64]bool),
	}
}

// Progress reports a 0-100 percent and human message, matching the
// queue.ProgressFunc shape so Run can be used directly as a queue.Handler
// body.
type Progress func(percent int, message string)

// Run executes extract -> chunk -> embed -> concept -> cluster ->
// summarize -> commit for one document, reporting progress at each stage
// boundary.
func (p *Pipeline) Run(ctx context.Context, in Input, report Progress) error {
	docID := in.Document.DocID

	p.mu.Lock()
	if p.processing[docID] {
		p.mu.Unlock()
		return fmt.Errorf("pipeline.Run: document %d is already being processed", docID)
	}
	p.processing[docID] = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		delete(p.processing, docID)
		p.mu.Unlock()
	}()

	if report == nil {
		report = func(int, string) {}
	}

	report(5, "extracting text")
	text, headings, err := p.extractor.Extract(ctx, in.Filename, in.RawBytes, fmt.Sprintf("%d", docID))
	if err != nil {
		return fmt.Errorf("pipeline.Run: extract: %w", err)
	}

	report(20, "chunking")
	parentUnsaved, childUnsaved := p.chunker.Split(text, headings)
	if err := p.docs.UpdateChunkingStatus(ctx, docID, model.ChunkingInProgress); err != nil {
		return fmt.Errorf("pipeline.Run: mark chunking in-progress: %w", err)
	}

	parentIDs := make([]string, len(parentUnsaved))
	for i := range parentUnsaved {
		parentIDs[i] = uuid.New().String()
	}

	childContents := make([]string, len(childUnsaved))
	for i, c := range childUnsaved {
		childContents[i] = c.Content
	}

	report(35, "embedding")
	var vectors [][]float32
	if len(childContents) > 0 {
		vectors, _, err = p.embedder.Embed(ctx, childContents)
		if err != nil {
			return fmt.Errorf("pipeline.Run: embed: %w", err)
		}
	}

	chunks := make([]model.Chunk, 0, len(parentUnsaved)+len(childUnsaved))
	now := time.Now().UTC()
	for i, u := range parentUnsaved {
		chunks = append(chunks, model.Chunk{
			ID: parentIDs[i], DocumentID: docID, KBID: in.Document.KBID, ChunkIndex: u.ChunkIndex,
			StartToken: u.StartToken, EndToken: u.EndToken, Content: u.Content, ContentHash: u.ContentHash,
			ChunkType: model.ChunkTypeParent, SectionIndex: u.SectionIndex, CreatedAt: now,
		})
	}
	for i, u := range childUnsaved {
		var parentID *string
		if u.ParentIndex != nil && *u.ParentIndex < len(parentIDs) {
			pid := parentIDs[*u.ParentIndex]
			parentID = &pid
		}
		var vec []float32
		if i < len(vectors) {
			vec = vectors[i]
		}
		chunks = append(chunks, model.Chunk{
			ID: uuid.New().String(), DocumentID: docID, KBID: in.Document.KBID, ChunkIndex: u.ChunkIndex,
			StartToken: u.StartToken, EndToken: u.EndToken, Content: u.Content, ContentHash: u.ContentHash,
			Embedding: vec, ParentChunkID: parentID, ChunkType: model.ChunkTypeChild, SectionIndex: u.SectionIndex,
			CreatedAt: now,
		})
	}

	report(55, "extracting concepts")
	conceptResult, err := p.concepts.Extract(ctx, docID, text)
	if err != nil {
		return fmt.Errorf("pipeline.Run: concepts: %w", err)
	}
	for i := range conceptResult.Concepts {
		conceptResult.Concepts[i].DocumentID = docID
	}

	conceptNames := make([]string, len(conceptResult.Concepts))
	for i, c := range conceptResult.Concepts {
		conceptNames[i] = c.Name
	}

	report(70, "clustering")
	if _, err := p.clusterer.Assign(ctx, in.Document.KBID, cluster.Assignment{
		DocumentID: docID, ConceptNames: conceptNames,
		SuggestedCluster: conceptResult.SuggestedCluster, SkillLevel: conceptResult.SkillLevel,
	}); err != nil {
		return fmt.Errorf("pipeline.Run: cluster: %w", err)
	}

	report(85, "summarizing")
	parentChunks := make([]summarize.ParentChunk, len(parentUnsaved))
	for i, u := range parentUnsaved {
		parentChunks[i] = summarize.ParentChunk{ID: parentIDs[i], SectionIndex: u.SectionIndex, Content: u.Content}
	}
	summaries, err := p.summarizer.Summarize(ctx, docID, parentChunks, conceptNames)
	if err != nil {
		return fmt.Errorf("pipeline.Run: summarize: %w", err)
	}

	report(95, "committing")
	in.Document.ChunkCount = len(chunks)
	in.Document.ChunkingStatus = model.ChunkingDone
	in.Document.SummaryStatus = model.SummaryDone
	if err := p.committer.Commit(ctx, repository.Result{
		Document:  in.Document,
		Vector:    model.VectorDocument{DocID: docID, RawText: text},
		Chunks:    chunks,
		Concepts:  conceptResult.Concepts,
		Summaries: summaries,
	}); err != nil {
		return fmt.Errorf("pipeline.Run: commit: %w", err)
	}

	report(100, "done")
	return nil
}
