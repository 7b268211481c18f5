// Package dedupe groups a knowledge base's near-duplicate documents by
// cosine similarity over a per-document TF-IDF vector, independent of the
// chunk-level retrieval corpus internal/retrieval builds for search.
package dedupe

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// DefaultSimilarityThreshold mirrors the grouping threshold a duplicate
// scan defaults to when the caller doesn't override it.
const DefaultSimilarityThreshold = 0.85

var tokenRe = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// DocumentText is one document's raw extracted text, the minimal input to
// a duplicate scan.
type DocumentText struct {
	DocID int64
	Text  string
}

// Match is one document found to duplicate a group's primary document.
type Match struct {
	DocID      int64
	Similarity float64
}

// Group is a set of documents judged near-duplicates of one another,
// anchored on PrimaryDocID (the lowest-index member encountered first).
type Group struct {
	PrimaryDocID int64
	Duplicates   []Match
}

// FindDuplicates groups docs into near-duplicate clusters using greedy
// nearest-neighbor grouping: walk docs in order, and for each
// not-yet-grouped document collect every other not-yet-grouped document
// scoring at least threshold as its duplicate. Groups are returned largest
// first. limit caps the number of groups returned; 0 means unlimited.
// Callers are responsible for scoping docs to one owner and one KB before
// calling FindDuplicates.
func FindDuplicates(docs []DocumentText, threshold float64, limit int) []Group {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	vectors := buildVectors(docs)

	grouped := make(map[int64]bool, len(docs))
	var groups []Group
	for _, d := range docs {
		if grouped[d.DocID] {
			continue
		}
		var dups []Match
		for _, other := range docs {
			if other.DocID == d.DocID || grouped[other.DocID] {
				continue
			}
			if sim := cosine(vectors[d.DocID], vectors[other.DocID]); sim >= threshold {
				dups = append(dups, Match{DocID: other.DocID, Similarity: sim})
			}
		}
		if len(dups) == 0 {
			continue
		}
		sort.SliceStable(dups, func(i, j int) bool { return dups[i].Similarity > dups[j].Similarity })

		grouped[d.DocID] = true
		for _, m := range dups {
			grouped[m.DocID] = true
		}
		groups = append(groups, Group{PrimaryDocID: d.DocID, Duplicates: dups})
		if limit > 0 && len(groups) >= limit {
			break
		}
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return len(groups[i].Duplicates) > len(groups[j].Duplicates)
	})
	return groups
}

type vector map[string]float64

func buildVectors(docs []DocumentText) map[int64]vector {
	df := map[string]int{}
	tfs := make(map[int64]map[string]int, len(docs))
	for _, d := range docs {
		terms := tokenRe.FindAllString(strings.ToLower(d.Text), -1)
		tf := map[string]int{}
		seen := map[string]bool{}
		for _, t := range terms {
			tf[t]++
			if !seen[t] {
				df[t]++
				seen[t] = true
			}
		}
		tfs[d.DocID] = tf
	}

	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log((n+1)/(float64(count)+1)) + 1
	}

	vectors := make(map[int64]vector, len(docs))
	for docID, tf := range tfs {
		v := make(vector, len(tf))
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
		vectors[docID] = v
	}
	return vectors
}

func cosine(a, b vector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(a) > len(b) {
		small, large = b, a
	}
	var dot float64
	for term, w := range small {
		if ow, ok := large[term]; ok {
			dot += w * ow
		}
	}
	return dot
}
