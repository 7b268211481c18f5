package suggest

import (
	"context"
	"fmt"

	"github.com/connexus-ai/ragbox-backend/internal/cluster"
)

// ClusterLister lists a KB's clusters (satisfied by internal/cluster.Store
// and, narrower, internal/repository.ClusterRepo).
type ClusterLister interface {
	ListByKB(ctx context.Context, kbID string) ([]cluster.Cluster, error)
}

// ConceptCounter reports the number of distinct concept names in a KB
// (satisfied by internal/repository.ConceptRepo).
type ConceptCounter interface {
	DistinctCount(ctx context.Context, kbID string) (int, error)
}

// RawTextSource returns every document's raw text in a KB, keyed by doc ID
// (satisfied by internal/repository.DocumentRepo).
type RawTextSource interface {
	AllRawText(ctx context.Context, kbID string) (map[int64]string, error)
}

// BankBuilder assembles a KnowledgeBank from a KB's clusters, concepts, and
// documents — the composition internal/handler.KnowledgeBankBuilder needs
// but no single repository method provides on its own.
type BankBuilder struct {
	clusters ClusterLister
	concepts ConceptCounter
	docs     RawTextSource
}

func NewBankBuilder(clusters ClusterLister, concepts ConceptCounter, docs RawTextSource) *BankBuilder {
	return &BankBuilder{clusters: clusters, concepts: concepts, docs: docs}
}

// BuildSummary implements internal/handler.KnowledgeBankBuilder.
func (b *BankBuilder) BuildSummary(ctx context.Context, kbID string) (KnowledgeBank, error) {
	clusters, err := b.clusters.ListByKB(ctx, kbID)
	if err != nil {
		return KnowledgeBank{}, fmt.Errorf("suggest.BankBuilder: list clusters: %w", err)
	}

	distinctConcepts, err := b.concepts.DistinctCount(ctx, kbID)
	if err != nil {
		return KnowledgeBank{}, fmt.Errorf("suggest.BankBuilder: distinct concepts: %w", err)
	}

	rawText, err := b.docs.AllRawText(ctx, kbID)
	if err != nil {
		return KnowledgeBank{}, fmt.Errorf("suggest.BankBuilder: raw text: %w", err)
	}

	totalLen := 0
	for _, text := range rawText {
		totalLen += len(text)
	}

	summaries := make([]ClusterSummary, 0, len(clusters))
	for _, c := range clusters {
		summaries = append(summaries, ClusterSummary{
			ID:              c.ID,
			Name:            c.Name,
			DocCount:        c.DocCount,
			SkillLevel:      c.SkillLevel,
			PrimaryConcepts: c.PrimaryConcepts,
		})
	}

	return KnowledgeBank{
		KBID:             kbID,
		Clusters:         summaries,
		DistinctConcepts: distinctConcepts,
		DocumentCount:    len(rawText),
		TotalContentLen:  totalLen,
	}, nil
}
