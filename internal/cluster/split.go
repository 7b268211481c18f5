package cluster

import (
	"context"
	"math"
)

const (
	splitCandidateSize = 25
	splitMinImprovement = 0.1
	kMeansIterations     = 25
)

// EmbeddingSource fetches a representative embedding per member document
// (e.g. the mean of its child-chunk embeddings), used only by the
// background split job — never on the ingest hot path (§4.G, §3).
type EmbeddingSource interface {
	DocumentEmbedding(ctx context.Context, docID int64) ([]float32, error)
}

// Splitter runs k=2 k-means splits for oversized clusters as a background
// batch job (§4.G: "clusters that cross membership threshold (e.g., >25)
// are candidates for split ... split is background/batch, not on the
// ingest hot path").
type Splitter struct {
	store      Store
	embeddings EmbeddingSource
}

func NewSplitter(store Store, embeddings EmbeddingSource) *Splitter {
	return &Splitter{store: store, embeddings: embeddings}
}

// Candidates returns clusters in kbID with more than splitCandidateSize
// members.
func (s *Splitter) Candidates(ctx context.Context, kbID string) ([]Cluster, error) {
	all, err := s.store.ListByKB(ctx, kbID)
	if err != nil {
		return nil, err
	}
	var out []Cluster
	for _, c := range all {
		if c.DocCount > splitCandidateSize {
			out = append(out, c)
		}
	}
	return out, nil
}

// Split attempts a k=2 split of c. It only commits the split (creating a
// second cluster and reassigning members) if within-cluster similarity
// improves by at least splitMinImprovement; otherwise it leaves c
// untouched and returns ok=false.
func (s *Splitter) Split(ctx context.Context, c Cluster) (ok bool, err error) {
	vectors := make(map[int64][]float32, len(c.DocIDs))
	for _, id := range c.DocIDs {
		vec, err := s.embeddings.DocumentEmbedding(ctx, id)
		if err != nil {
			return false, err
		}
		vectors[id] = vec
	}

	before := withinClusterSimilarity(c.DocIDs, vectors)

	groupA, groupB := kMeansSplit(c.DocIDs, vectors)
	if len(groupA) == 0 || len(groupB) == 0 {
		return false, nil
	}

	after := (withinClusterSimilarity(groupA, vectors)*float64(len(groupA)) +
		withinClusterSimilarity(groupB, vectors)*float64(len(groupB))) / float64(len(c.DocIDs))

	if after-before < splitMinImprovement {
		return false, nil
	}

	byDoc, err := s.store.ConceptNamesForDocs(ctx, groupA)
	if err != nil {
		return false, err
	}
	original := c
	original.DocIDs = groupA
	original.DocCount = len(groupA)
	original.PrimaryConcepts = topNConceptNames(byDoc, maxPrimary)
	if err := s.store.Update(ctx, original); err != nil {
		return false, err
	}

	byDocB, err := s.store.ConceptNamesForDocs(ctx, groupB)
	if err != nil {
		return false, err
	}
	split := Cluster{
		Name:            c.Name + " (split)",
		KBID:            c.KBID,
		PrimaryConcepts: topNConceptNames(byDocB, maxPrimary),
		SkillLevel:      c.SkillLevel,
		DocIDs:          groupB,
		DocCount:        len(groupB),
	}
	if _, err := s.store.Create(ctx, split); err != nil {
		return false, err
	}
	return true, nil
}

// kMeansSplit runs a small, fixed-iteration k=2 k-means over cosine
// distance, seeded with the two most distant members.
func kMeansSplit(docIDs []int64, vectors map[int64][]float32) (groupA, groupB []int64) {
	if len(docIDs) < 2 {
		return docIDs, nil
	}

	seedA, seedB := farthestPair(docIDs, vectors)
	centroidA := vectors[seedA]
	centroidB := vectors[seedB]

	for iter := 0; iter < kMeansIterations; iter++ {
		groupA, groupB = nil, nil
		for _, id := range docIDs {
			if cosineSim(vectors[id], centroidA) >= cosineSim(vectors[id], centroidB) {
				groupA = append(groupA, id)
			} else {
				groupB = append(groupB, id)
			}
		}
		if len(groupA) == 0 || len(groupB) == 0 {
			break
		}
		centroidA = centroid(groupA, vectors)
		centroidB = centroid(groupB, vectors)
	}
	return groupA, groupB
}

func farthestPair(docIDs []int64, vectors map[int64][]float32) (int64, int64) {
	var bestA, bestB int64
	bestDist := -1.0
	for i := 0; i < len(docIDs); i++ {
		for j := i + 1; j < len(docIDs); j++ {
			d := 1 - cosineSim(vectors[docIDs[i]], vectors[docIDs[j]])
			if d > bestDist {
				bestDist = d
				bestA, bestB = docIDs[i], docIDs[j]
			}
		}
	}
	return bestA, bestB
}

func centroid(docIDs []int64, vectors map[int64][]float32) []float32 {
	if len(docIDs) == 0 {
		return nil
	}
	dim := len(vectors[docIDs[0]])
	sum := make([]float64, dim)
	for _, id := range docIDs {
		v := vectors[id]
		for i := 0; i < dim && i < len(v); i++ {
			sum[i] += float64(v[i])
		}
	}
	out := make([]float32, dim)
	for i, s := range sum {
		out[i] = float32(s / float64(len(docIDs)))
	}
	return out
}

func withinClusterSimilarity(docIDs []int64, vectors map[int64][]float32) float64 {
	if len(docIDs) < 2 {
		return 1.0
	}
	var total float64
	var pairs int
	for i := 0; i < len(docIDs); i++ {
		for j := i + 1; j < len(docIDs); j++ {
			total += cosineSim(vectors[docIDs[i]], vectors[docIDs[j]])
			pairs++
		}
	}
	if pairs == 0 {
		return 1.0
	}
	return total / float64(pairs)
}

func cosineSim(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
