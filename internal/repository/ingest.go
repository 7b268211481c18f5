package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// IngestRepo commits a full ingestion result atomically: the document row,
// its raw text/TF-IDF sidecar, chunks, concepts, and summary forest all
// land or none do, under serializable isolation so a concurrent TF-IDF
// corpus rebuild (internal/retrieval) never observes a half-written
// document (§4.M).
type IngestRepo struct {
	pool *pgxpool.Pool
}

func NewIngestRepo(pool *pgxpool.Pool) *IngestRepo {
	return &IngestRepo{pool: pool}
}

// Result bundles everything produced by one run of the ingestion pipeline
// (extract -> chunk -> embed -> concept-extract -> summarize).
type Result struct {
	Document  model.Document
	Vector    model.VectorDocument
	Chunks    []model.Chunk
	Concepts  []model.Concept
	Summaries []model.Summary
}

func (r *IngestRepo) Commit(ctx context.Context, res Result) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("repository.Commit: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := createDocument(ctx, tx, res.Document, res.Vector); err != nil {
		return fmt.Errorf("repository.Commit: document: %w", err)
	}
	if err := bulkInsertChunks(ctx, tx, res.Chunks); err != nil {
		return fmt.Errorf("repository.Commit: chunks: %w", err)
	}
	if err := bulkUpsertConcepts(ctx, tx, res.Concepts); err != nil {
		return fmt.Errorf("repository.Commit: concepts: %w", err)
	}
	if err := bulkInsertSummaries(ctx, tx, res.Summaries); err != nil {
		return fmt.Errorf("repository.Commit: summaries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository.Commit: commit: %w", err)
	}
	return nil
}

// Reingest replaces a document's derived data (chunks, concepts, summaries)
// in place, used when a source is re-uploaded or re-processed. The document
// row itself is updated, not recreated, so its doc_id is preserved.
func (r *IngestRepo) Reingest(ctx context.Context, docID int64, res Result) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("repository.Reingest: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("repository.Reingest: delete chunks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM concepts WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("repository.Reingest: delete concepts: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM summaries WHERE document_id = $1`, docID); err != nil {
		return fmt.Errorf("repository.Reingest: delete summaries: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE vector_documents SET raw_text = $1, tfidf_vector = $2 WHERE doc_id = $3`,
		res.Vector.RawText, float64SliceToJSON(res.Vector.TFIDFVector), docID,
	)
	if err != nil {
		return fmt.Errorf("repository.Reingest: update vector document: %w", err)
	}

	if err := bulkInsertChunks(ctx, tx, res.Chunks); err != nil {
		return fmt.Errorf("repository.Reingest: chunks: %w", err)
	}
	if err := bulkUpsertConcepts(ctx, tx, res.Concepts); err != nil {
		return fmt.Errorf("repository.Reingest: concepts: %w", err)
	}
	if err := bulkInsertSummaries(ctx, tx, res.Summaries); err != nil {
		return fmt.Errorf("repository.Reingest: summaries: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE documents SET chunk_count = $1, chunking_status = 'done', summary_status = 'done',
			updated_at = now() WHERE doc_id = $2`,
		len(res.Chunks), docID,
	); err != nil {
		return fmt.Errorf("repository.Reingest: update document: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("repository.Reingest: commit: %w", err)
	}
	return nil
}
