// Package rag implements the RAG orchestrator of spec §4.J: query
// expansion, hybrid retrieval, context assembly with provenance markers,
// and a citation-constrained oracle chat completion.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/connexus-ai/ragbox-backend/internal/retrieval"
)

const noContextAnswer = "I don't have enough information in your knowledge base to answer that."

const defaultContextTokenBudget = 6000
const maxExpansions = 3

const ragSystemPrompt = `You are a knowledge-base assistant. Answer ONLY using the numbered context sections below; never use outside knowledge. Every claim in your answer MUST be followed by a citation of the form [doc:<document_id>] referencing the section(s) it came from. If the context does not contain enough information to answer, say so plainly instead of guessing.`

// Chatter abstracts the oracle's text-generation call (shared with
// internal/concept, internal/summarize).
type Chatter interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Retriever is the narrow seam onto internal/retrieval.Retriever.
type Retriever interface {
	Retrieve(ctx context.Context, kbID, query string, opts retrieval.Options, chunkSource retrieval.ChunkSource) (*retrieval.Result, error)
}

// Response is the orchestrator's output (§4.J: "RAGResponse{answer,
// citations, degraded, chunks_used}").
type Response struct {
	Answer     string
	Citations  []int64 // document IDs cited, deduplicated, in first-appearance order
	Degraded   bool
	ChunksUsed int
}

// Orchestrator ties query expansion, retrieval, and generation together.
type Orchestrator struct {
	chatter     Chatter
	retriever   Retriever
	chunkSource retrieval.ChunkSource
	log         *slog.Logger
}

func NewOrchestrator(chatter Chatter, retriever Retriever, chunkSource retrieval.ChunkSource, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{chatter: chatter, retriever: retriever, chunkSource: chunkSource, log: log}
}

// Answer runs the full §4.J pipeline for one query against one KB.
func (o *Orchestrator) Answer(ctx context.Context, kbID, query string, topK int) (*Response, error) {
	queries := o.expand(ctx, query)

	merged, degraded, err := o.retrieveAndFuse(ctx, kbID, queries, topK)
	if err != nil {
		return nil, fmt.Errorf("rag.Answer: %w", err)
	}

	if len(merged) == 0 {
		return &Response{Answer: noContextAnswer, Degraded: degraded}, nil
	}

	contextText, citations := assembleContext(merged, defaultContextTokenBudget)

	answer, err := o.chatter.Chat(ctx, ragSystemPrompt, buildUserPrompt(query, contextText))
	if err != nil {
		return nil, fmt.Errorf("rag.Answer: generation: %w", err)
	}

	return &Response{
		Answer:     answer,
		Citations:  citations,
		Degraded:   degraded,
		ChunksUsed: len(merged),
	}, nil
}

// expand asks the oracle for up to maxExpansions paraphrases of query.
// Failure here is non-fatal (§4.J: "Query-expansion failure is non-fatal
// (use the original query only)") — the original query is always included.
func (o *Orchestrator) expand(ctx context.Context, query string) []string {
	queries := []string{query}

	raw, err := o.chatter.Chat(ctx, expansionSystemPrompt, query)
	if err != nil {
		o.log.Warn("query expansion failed, continuing with original query only", "error", err)
		return queries
	}

	paraphrases := parseExpansions(raw)
	for i, p := range paraphrases {
		if i >= maxExpansions {
			break
		}
		p = strings.TrimSpace(p)
		if p != "" && !strings.EqualFold(p, query) {
			queries = append(queries, p)
		}
	}
	return queries
}

const expansionSystemPrompt = `Generate up to 3 alternative phrasings of the user's question that preserve its meaning but vary vocabulary and structure, to widen a search. Respond with one phrasing per line, no numbering, no commentary.`

func parseExpansions(raw string) []string {
	lines := strings.Split(strings.TrimSpace(raw), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

// retrieveAndFuse runs the hybrid retriever for every expanded query and
// fuses results by document ID (§4.J: "all retrieved, results fused by
// doc_id"), keeping the highest-scoring parent chunk per document.
func (o *Orchestrator) retrieveAndFuse(ctx context.Context, kbID string, queries []string, topK int) ([]retrieval.RankedParent, bool, error) {
	degraded := false
	best := map[int64]retrieval.RankedParent{}
	var order []int64

	for _, q := range queries {
		result, err := o.retriever.Retrieve(ctx, kbID, q, retrieval.Options{TopK: topK}, o.chunkSource)
		if err != nil {
			return nil, false, err
		}
		if result.Degraded {
			degraded = true
		}
		for _, p := range result.Chunks {
			if existing, ok := best[p.DocumentID]; !ok || p.Score > existing.Score {
				if !ok {
					order = append(order, p.DocumentID)
				}
				best[p.DocumentID] = p
			}
		}
	}

	out := make([]retrieval.RankedParent, 0, len(order))
	for _, docID := range order {
		out = append(out, best[docID])
	}
	return out, degraded, nil
}

// assembleContext concatenates ranked parent chunks with provenance markers
// up to a token budget, returning the prompt-ready text and the ordered,
// deduplicated list of cited document IDs.
func assembleContext(parents []retrieval.RankedParent, tokenBudget int) (string, []int64) {
	var sb strings.Builder
	var citations []int64
	seen := map[int64]bool{}
	tokens := 0

	for _, p := range parents {
		chunkTokens := estimateTokens(p.Parent.Content)
		if tokens > 0 && tokens+chunkTokens > tokenBudget {
			break
		}
		fmt.Fprintf(&sb, "[doc:%d]\n%s\n\n", p.DocumentID, p.Parent.Content)
		tokens += chunkTokens
		if !seen[p.DocumentID] {
			seen[p.DocumentID] = true
			citations = append(citations, p.DocumentID)
		}
	}
	return sb.String(), citations
}

func buildUserPrompt(query, context string) string {
	return fmt.Sprintf("Context:\n\n%s\nQuestion: %s\n\nAnswer using only the context above, citing [doc:<document_id>] for every claim.", context, query)
}

func estimateTokens(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return (words*13 + 9) / 10 // words * 1.3, integer ceiling, matching internal/chunk.EstimateTokens
}
