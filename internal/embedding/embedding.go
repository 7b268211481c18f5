// Package embedding implements the embedding service of spec §4.E: batched
// oracle embedding calls with an in-process LRU keyed by hash(text)||model,
// L2-normalized vectors, and a degraded TF-IDF-only fallback when the oracle
// is unreachable.
package embedding

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/errs"
)

const (
	// maxBatchSize mirrors the teacher's Vertex AI embedding batch cap.
	maxBatchSize = 250
	// DefaultDimensions is the fixed vector dimensionality (§4.E default 1536).
	DefaultDimensions = 1536
)

// Oracle abstracts the embedding backend (internal/oracle, Vertex AI by
// default).
type Oracle interface {
	EmbedTexts(ctx context.Context, texts []string, model string) ([][]float32, error)
}

// Result carries a batch of embeddings plus a degraded flag (§4.E: "the
// service falls back to a TF-IDF-only retrieval path and annotates the
// response degraded=true").
type Result struct {
	Vectors  [][]float32
	Degraded bool
}

// Service is the embedding pipeline stage.
type Service struct {
	oracle     Oracle
	cache      *LRU
	model      string
	dimensions int
}

func NewService(oracle Oracle, cache *LRU, model string) *Service {
	return &Service{oracle: oracle, cache: cache, model: model, dimensions: DefaultDimensions}
}

// Embed normalizes, checks the LRU, and calls the oracle for any cache
// misses, preserving input order. If the oracle is unreachable, Result is
// returned with Degraded=true and nil vectors for the texts that missed the
// cache — callers fall back to sparse-only retrieval for those.
func (s *Service) Embed(ctx context.Context, texts []string) (Result, error) {
	if len(texts) == 0 {
		return Result{}, fmt.Errorf("embedding.Embed: no texts provided")
	}

	normalized := make([]string, len(texts))
	keys := make([]string, len(texts))
	for i, t := range texts {
		normalized[i] = normalize(t)
		keys[i] = cacheKey(normalized[i], s.model)
	}

	vectors := make([][]float32, len(texts))
	var missIdx []int
	for i, k := range keys {
		if v, ok := s.cache.Get(k); ok {
			vectors[i] = v
			continue
		}
		missIdx = append(missIdx, i)
	}

	if len(missIdx) == 0 {
		return Result{Vectors: vectors}, nil
	}

	missTexts := make([]string, len(missIdx))
	for i, idx := range missIdx {
		missTexts[i] = normalized[idx]
	}

	fetched, err := s.embedBatched(ctx, missTexts)
	if err != nil {
		if e, ok := errs.As(err); ok && e.Kind == errs.KindOracleUnavailable {
			return Result{Vectors: vectors, Degraded: true}, nil
		}
		return Result{}, err
	}

	for i, idx := range missIdx {
		vectors[idx] = fetched[i]
		s.cache.Set(keys[idx], fetched[i])
	}

	return Result{Vectors: vectors}, nil
}

func (s *Service) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	all := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += maxBatchSize {
		end := min(i+maxBatchSize, len(texts))
		batch := texts[i:end]

		vecs, err := s.oracle.EmbedTexts(ctx, batch, s.model)
		if err != nil {
			return nil, errs.OracleUnavailable(err)
		}
		for j, v := range vecs {
			if len(v) != s.dimensions {
				return nil, errs.Wrap(errs.KindInternal, fmt.Sprintf("embedding vector %d has %d dims, want %d", i+j, len(v), s.dimensions), nil)
			}
			vecs[j] = l2Normalize(v)
		}
		all = append(all, vecs...)
	}
	if len(all) != len(texts) {
		return nil, errs.Wrap(errs.KindInternal, fmt.Sprintf("got %d vectors for %d texts", len(all), len(texts)), nil)
	}
	return all, nil
}

// normalize strips and collapses whitespace (§4.E step 1).
func normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func cacheKey(text, model string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x|%s", h, model)
}

func l2Normalize(vec []float32) []float32 {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return vec
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
