// Package cluster implements the incremental Jaccard clustering engine of
// spec §4.G: assign a new document to an existing cluster or create one,
// based on concept-name-set overlap with each cluster's primary concepts.
package cluster

import (
	"context"
	"sort"
	"strings"
)

const (
	joinThreshold  = 0.30
	substringBonus = 0.2
	maxPrimary     = 5
)

// Store persists clusters for one KB (backed by internal/repository).
type Store interface {
	ListByKB(ctx context.Context, kbID string) ([]Cluster, error)
	Create(ctx context.Context, c Cluster) (Cluster, error)
	Update(ctx context.Context, c Cluster) error
	Delete(ctx context.Context, id int64) error
	// ConceptNamesForDocs returns the lowercased concept-name set for each
	// document ID, used to recompute primary_concepts after a join.
	ConceptNamesForDocs(ctx context.Context, docIDs []int64) (map[int64][]string, error)
}

// Cluster mirrors model.Cluster with a lowercased concept-name working set
// for similarity computation; kept distinct from model.Cluster so this
// package has no persistence-layer dependency.
type Cluster struct {
	ID              int64
	Name            string
	KBID            string
	PrimaryConcepts []string
	SkillLevel      string
	DocIDs          []int64
	DocCount        int
}

// Assignment is the input to one incremental assignment call.
type Assignment struct {
	DocumentID       int64
	ConceptNames     []string // document's extracted concept names, any case
	SuggestedCluster string   // oracle's suggested_cluster from §4.F
	SkillLevel       string
}

// Engine assigns documents to clusters per §4.G.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// Assign adds a.DocumentID to the best-matching existing cluster in the
// KB, or creates a new one, and persists the result.
func (e *Engine) Assign(ctx context.Context, kbID string, a Assignment) (Cluster, error) {
	clusters, err := e.store.ListByKB(ctx, kbID)
	if err != nil {
		return Cluster{}, err
	}

	docSet := normalizeSet(a.ConceptNames)

	bestIdx := -1
	bestSim := -1.0
	for i, c := range clusters {
		sim := jaccard(docSet, normalizeSet(c.PrimaryConcepts))
		if a.SuggestedCluster != "" && strings.Contains(strings.ToLower(c.Name), strings.ToLower(a.SuggestedCluster)) {
			sim += substringBonus
			if sim > 1.0 {
				sim = 1.0
			}
		}
		if sim > bestSim || (sim == bestSim && bestIdx >= 0 && c.ID < clusters[bestIdx].ID) {
			bestSim = sim
			bestIdx = i
		}
	}

	if bestIdx >= 0 && bestSim >= joinThreshold {
		return e.join(ctx, clusters[bestIdx], a)
	}
	return e.create(ctx, kbID, a)
}

func (e *Engine) join(ctx context.Context, c Cluster, a Assignment) (Cluster, error) {
	c.DocIDs = append(c.DocIDs, a.DocumentID)
	c.DocCount = len(c.DocIDs)

	byDoc, err := e.store.ConceptNamesForDocs(ctx, c.DocIDs)
	if err != nil {
		return Cluster{}, err
	}
	c.PrimaryConcepts = topNConceptNames(byDoc, maxPrimary)

	if err := e.store.Update(ctx, c); err != nil {
		return Cluster{}, err
	}
	return c, nil
}

func (e *Engine) create(ctx context.Context, kbID string, a Assignment) (Cluster, error) {
	primary := a.ConceptNames
	if len(primary) > maxPrimary {
		primary = primary[:maxPrimary]
	}
	name := a.SuggestedCluster
	if name == "" {
		name = "Uncategorized"
	}
	c := Cluster{
		Name:            name,
		KBID:            kbID,
		PrimaryConcepts: primary,
		SkillLevel:      a.SkillLevel,
		DocIDs:          []int64{a.DocumentID},
		DocCount:        1,
	}
	return e.store.Create(ctx, c)
}

// Remove takes a document out of its cluster (document deletion, §3
// "removes it from Cluster.doc_ids; if the cluster becomes empty it is
// deleted"). recompute is run against the cluster's remaining members.
func (e *Engine) Remove(ctx context.Context, c Cluster, documentID int64) error {
	remaining := c.DocIDs[:0:0]
	for _, id := range c.DocIDs {
		if id != documentID {
			remaining = append(remaining, id)
		}
	}
	if len(remaining) == 0 {
		return e.store.Delete(ctx, c.ID)
	}
	c.DocIDs = remaining
	c.DocCount = len(remaining)

	byDoc, err := e.store.ConceptNamesForDocs(ctx, c.DocIDs)
	if err != nil {
		return err
	}
	c.PrimaryConcepts = topNConceptNames(byDoc, maxPrimary)
	return e.store.Update(ctx, c)
}

func normalizeSet(names []string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(strings.TrimSpace(n))] = true
	}
	return set
}

// jaccard computes |A ∩ B| / |A ∪ B| over lowercased name sets.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	union := make(map[string]bool, len(a)+len(b))
	for n := range a {
		union[n] = true
		if b[n] {
			intersection++
		}
	}
	for n := range b {
		union[n] = true
	}
	if len(union) == 0 {
		return 0
	}
	return float64(intersection) / float64(len(union))
}

// topNConceptNames ranks concept names by frequency across member
// documents and returns the top n, ties broken alphabetically.
func topNConceptNames(byDoc map[int64][]string, n int) []string {
	freq := map[string]int{}
	for _, names := range byDoc {
		for _, name := range names {
			freq[strings.ToLower(strings.TrimSpace(name))]++
		}
	}
	type kv struct {
		name  string
		count int
	}
	all := make([]kv, 0, len(freq))
	for name, count := range freq {
		all = append(all, kv{name, count})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].name < all[j].name
	})
	if n > len(all) {
		n = len(all)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = all[i].name
	}
	return out
}
