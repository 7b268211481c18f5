package retrieval

import (
	"math"
	"regexp"
	"strings"
	"sync"
)

var tokenRe = regexp.MustCompile(`[a-zA-Z0-9_]+`)

func tokenize(text string) []string {
	return tokenRe.FindAllString(strings.ToLower(text), -1)
}

// docVector is a sparse term-frequency vector for one chunk.
type docVector map[string]float64

// TFIDFModel is a single-writer, multi-reader TF-IDF index over one KB's
// child-chunk corpus (§5: "single-writer, multi-reader; writers take an
// exclusive lock during rebuild; readers use a previous snapshot
// (copy-on-write)"). Rebuild replaces the snapshot atomically; in-flight
// readers keep using the old snapshot until they finish.
type TFIDFModel struct {
	mu       sync.RWMutex
	snapshot *tfidfSnapshot
}

type tfidfSnapshot struct {
	idf     map[string]float64
	vectors map[string]docVector // chunk ID -> vector
	chunkKB map[string]string    // chunk ID -> kb_id, for scoping
}

func NewTFIDFModel() *TFIDFModel {
	return &TFIDFModel{snapshot: &tfidfSnapshot{idf: map[string]float64{}, vectors: map[string]docVector{}, chunkKB: map[string]string{}}}
}

// ChunkText is the minimal input to (re)build a TF-IDF corpus.
type ChunkText struct {
	ChunkID string
	KBID    string
	Content string
}

// Rebuild recomputes the TF-IDF index from scratch over the given corpus
// and atomically swaps in the new snapshot (§4.I: "rebuilt from scratch on
// each document add or remove for that KB's corpus").
func (m *TFIDFModel) Rebuild(chunks []ChunkText) {
	df := map[string]int{}
	tfs := make(map[string]map[string]int, len(chunks))
	chunkKB := make(map[string]string, len(chunks))

	for _, c := range chunks {
		terms := tokenize(c.Content)
		tf := map[string]int{}
		seen := map[string]bool{}
		for _, t := range terms {
			tf[t]++
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
		tfs[c.ChunkID] = tf
		chunkKB[c.ChunkID] = c.KBID
	}

	n := float64(len(chunks))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log((n+1)/(float64(count)+1)) + 1
	}

	vectors := make(map[string]docVector, len(chunks))
	for id, tf := range tfs {
		v := make(docVector, len(tf))
		var normSq float64
		for term, count := range tf {
			w := float64(count) * idf[term]
			v[term] = w
			normSq += w * w
		}
		norm := math.Sqrt(normSq)
		if norm > 0 {
			for term := range v {
				v[term] /= norm
			}
		}
		vectors[id] = v
	}

	m.mu.Lock()
	m.snapshot = &tfidfSnapshot{idf: idf, vectors: vectors, chunkKB: chunkKB}
	m.mu.Unlock()
}

// Score returns chunkID -> cosine similarity against the query, scoped to
// kbID, for chunks scoring at least minScore (§4.I step 1: "retain
// candidates with score ≥ 0.01").
func (m *TFIDFModel) Score(query, kbID string, minScore float64) map[string]float64 {
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	qtf := map[string]int{}
	for _, t := range terms {
		qtf[t]++
	}
	qvec := make(docVector, len(qtf))
	var qNormSq float64
	for term, count := range qtf {
		w := float64(count) * snap.idf[term]
		qvec[term] = w
		qNormSq += w * w
	}
	qNorm := math.Sqrt(qNormSq)
	if qNorm == 0 {
		return nil
	}
	for term := range qvec {
		qvec[term] /= qNorm
	}

	out := map[string]float64{}
	for id, v := range snap.vectors {
		if snap.chunkKB[id] != kbID {
			continue
		}
		var dot float64
		for term, qw := range qvec {
			if dw, ok := v[term]; ok {
				dot += qw * dw
			}
		}
		if dot >= minScore {
			out[id] = dot
		}
	}
	return out
}
