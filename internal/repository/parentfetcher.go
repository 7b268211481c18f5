package repository

import (
	"context"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// ParentResolver implements retrieval.ParentFetcher by composing ChunkRepo
// (parent resolution) and DocumentRepo (document lookup) — no single
// repository owns both halves of the interface.
type ParentResolver struct {
	chunks *ChunkRepo
	docs   *DocumentRepo
}

func NewParentResolver(chunks *ChunkRepo, docs *DocumentRepo) *ParentResolver {
	return &ParentResolver{chunks: chunks, docs: docs}
}

func (p *ParentResolver) ResolveParent(ctx context.Context, chunk model.Chunk) (model.Chunk, error) {
	return p.chunks.ResolveParent(ctx, chunk)
}

func (p *ParentResolver) DocumentByID(ctx context.Context, docID int64) (model.Document, error) {
	return p.docs.DocumentByID(ctx, docID)
}
