package pipeline

import (
	"context"

	"github.com/connexus-ai/ragbox-backend/internal/embedding"
)

// ServiceEmbedder adapts *embedding.Service's Result-returning Embed to the
// (vectors, degraded, err) shape Pipeline's Embedder expects.
type ServiceEmbedder struct {
	svc *embedding.Service
}

func NewServiceEmbedder(svc *embedding.Service) *ServiceEmbedder {
	return &ServiceEmbedder{svc: svc}
}

var _ Embedder = (*ServiceEmbedder)(nil)

func (e *ServiceEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, bool, error) {
	res, err := e.svc.Embed(ctx, texts)
	if err != nil {
		return nil, false, err
	}
	return res.Vectors, res.Degraded, nil
}
