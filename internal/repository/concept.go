package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// ConceptRepo persists model.Concept rows, coalescing duplicate
// (document_id, name) pairs to the higher confidence on conflict (§3, §4.F).
type ConceptRepo struct {
	pool *pgxpool.Pool
}

func NewConceptRepo(pool *pgxpool.Pool) *ConceptRepo {
	return &ConceptRepo{pool: pool}
}

// BulkUpsert stores concepts, keeping the higher confidence value when a
// (document_id, name) pair already exists. IngestRepo runs the same
// bulkUpsertConcepts inside the shared ingest transaction.
func (r *ConceptRepo) BulkUpsert(ctx context.Context, concepts []model.Concept) error {
	return bulkUpsertConcepts(ctx, r.pool, concepts)
}

func bulkUpsertConcepts(ctx context.Context, q batchSender, concepts []model.Concept) error {
	if len(concepts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range concepts {
		id := c.ID
		if id == "" {
			id = uuid.New().String()
		}
		batch.Queue(`
			INSERT INTO concepts (id, document_id, name, category, confidence)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (document_id, name) DO UPDATE
				SET confidence = GREATEST(concepts.confidence, EXCLUDED.confidence),
					category = EXCLUDED.category
			`,
			id, c.DocumentID, c.Name, string(c.Category), c.Confidence,
		)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()
	for i := range concepts {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("repository.bulkUpsertConcepts: concept %d: %w", i, err)
		}
	}
	return nil
}

func (r *ConceptRepo) ListByDocument(ctx context.Context, documentID int64) ([]model.Concept, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, name, category, confidence
		FROM concepts WHERE document_id = $1 ORDER BY confidence DESC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByDocument: %w", err)
	}
	defer rows.Close()

	var out []model.Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListByDocument: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ConceptNamesForDocs implements internal/cluster.Store's concept-name
// lookup, returning each document's concept names as stored; the cluster
// engine lowercases them for Jaccard similarity.
func (r *ConceptRepo) ConceptNamesForDocs(ctx context.Context, docIDs []int64) (map[int64][]string, error) {
	if len(docIDs) == 0 {
		return map[int64][]string{}, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT document_id, name FROM concepts WHERE document_id = ANY($1)`, docIDs)
	if err != nil {
		return nil, fmt.Errorf("repository.ConceptNamesForDocs: %w", err)
	}
	defer rows.Close()

	out := map[int64][]string{}
	for rows.Next() {
		var docID int64
		var name string
		if err := rows.Scan(&docID, &name); err != nil {
			return nil, fmt.Errorf("repository.ConceptNamesForDocs: scan: %w", err)
		}
		out[docID] = append(out[docID], name)
	}
	return out, rows.Err()
}

// DistinctCount returns the number of distinct concept names across a KB,
// used by internal/suggest's gating thresholds (§4.K).
func (r *ConceptRepo) DistinctCount(ctx context.Context, kbID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT count(DISTINCT lower(c.name))
		FROM concepts c JOIN documents d ON d.doc_id = c.document_id
		WHERE d.kb_id = $1`, kbID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository.DistinctCount: %w", err)
	}
	return count, nil
}

func scanConcept(rows pgx.Rows) (model.Concept, error) {
	var c model.Concept
	var category string
	if err := rows.Scan(&c.ID, &c.DocumentID, &c.Name, &category, &c.Confidence); err != nil {
		return model.Concept{}, err
	}
	c.Category = model.ConceptCategory(category)
	return c, nil
}
