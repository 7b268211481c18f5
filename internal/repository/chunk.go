package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/connexus-ai/ragbox-backend/internal/model"
	"github.com/connexus-ai/ragbox-backend/internal/retrieval"
)

// ChunkRepo persists parent/child chunks and their pgvector embeddings.
type ChunkRepo struct {
	pool *pgxpool.Pool
}

func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool}
}

var (
	_ retrieval.DenseSearcher = (*ChunkRepo)(nil)
	_ retrieval.ChunkSource   = (*ChunkRepo)(nil)
)

// batchSender is satisfied by both *pgxpool.Pool and pgx.Tx.
type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// BulkInsert stores chunks with their (possibly absent, for parent chunks)
// embedding vectors using pgx batching, outside any transaction. IngestRepo
// runs the same bulkInsertChunks inside the shared ingest commit (§4.M).
func (r *ChunkRepo) BulkInsert(ctx context.Context, chunks []model.Chunk) error {
	return bulkInsertChunks(ctx, r.pool, chunks)
}

func bulkInsertChunks(ctx context.Context, q batchSender, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		var embedding interface{}
		if len(c.Embedding) > 0 {
			embedding = pgvector.NewVector(c.Embedding)
		}
		batch.Queue(`
			INSERT INTO chunks (
				id, document_id, kb_id, chunk_index, start_token, end_token, content,
				content_hash, embedding, parent_chunk_id, chunk_type, section_index,
				concepts, summary, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
			c.ID, c.DocumentID, c.KBID, c.ChunkIndex, c.StartToken, c.EndToken, c.Content,
			c.ContentHash, embedding, c.ParentChunkID, string(c.ChunkType), c.SectionIndex,
			[]byte(c.Concepts), c.Summary, c.CreatedAt,
		)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()

	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("repository.bulkInsertChunks: chunk %d: %w", i, err)
		}
	}
	return nil
}

// ResolveParent implements retrieval.ParentFetcher: if chunk is already a
// parent, it's returned unchanged; otherwise its parent_chunk_id is
// followed.
func (r *ChunkRepo) ResolveParent(ctx context.Context, chunk model.Chunk) (model.Chunk, error) {
	if chunk.ChunkType == model.ChunkTypeParent || chunk.ParentChunkID == nil {
		return chunk, nil
	}
	return r.GetByID(ctx, *chunk.ParentChunkID)
}

func (r *ChunkRepo) GetByID(ctx context.Context, id string) (model.Chunk, error) {
	return scanChunkRow(r.pool.QueryRow(ctx, chunkSelectQuery+` WHERE id = $1`, id))
}

// ChunksByID implements retrieval.ChunkSource.
func (r *ChunkRepo) ChunksByID(ctx context.Context, ids []string) (map[string]model.Chunk, error) {
	if len(ids) == 0 {
		return map[string]model.Chunk{}, nil
	}
	rows, err := r.pool.Query(ctx, chunkSelectQuery+` WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("repository.ChunksByID: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunkRows(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ChunksByID: scan: %w", err)
		}
		out[c.ID] = c
	}
	return out, rows.Err()
}

// SimilaritySearch implements retrieval.DenseSearcher using pgvector cosine
// distance over child chunk embeddings, scoped to one KB.
func (r *ChunkRepo) SimilaritySearch(ctx context.Context, kbID string, queryVec []float32, topK int) ([]retrieval.ScoredChunk, error) {
	embedding := pgvector.NewVector(queryVec)

	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, kb_id, chunk_index, start_token, end_token, content,
			content_hash, parent_chunk_id, chunk_type, section_index, concepts, summary, created_at,
			1 - (embedding <=> $1::vector) AS similarity
		FROM chunks
		WHERE kb_id = $2 AND chunk_type = 'child' AND embedding IS NOT NULL
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, embedding, kbID, topK)
	if err != nil {
		return nil, fmt.Errorf("repository.SimilaritySearch: %w", err)
	}
	defer rows.Close()

	var out []retrieval.ScoredChunk
	for rows.Next() {
		var c model.Chunk
		var chunkType string
		var similarity float64
		err := rows.Scan(
			&c.ID, &c.DocumentID, &c.KBID, &c.ChunkIndex, &c.StartToken, &c.EndToken, &c.Content,
			&c.ContentHash, &c.ParentChunkID, &chunkType, &c.SectionIndex, &c.Concepts, &c.Summary, &c.CreatedAt,
			&similarity,
		)
		if err != nil {
			return nil, fmt.Errorf("repository.SimilaritySearch: scan: %w", err)
		}
		c.ChunkType = model.ChunkType(chunkType)
		out = append(out, retrieval.ScoredChunk{Chunk: c, Score: similarity})
	}
	return out, rows.Err()
}

func (r *ChunkRepo) DeleteByDocumentID(ctx context.Context, documentID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("repository.DeleteByDocumentID: %w", err)
	}
	return nil
}

func (r *ChunkRepo) ParentsByDocumentID(ctx context.Context, documentID int64) ([]model.Chunk, error) {
	rows, err := r.pool.Query(ctx, chunkSelectQuery+` WHERE document_id = $1 AND chunk_type = 'parent' ORDER BY chunk_index ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("repository.ParentsByDocumentID: %w", err)
	}
	defer rows.Close()

	var out []model.Chunk
	for rows.Next() {
		c, err := scanChunkRows(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ParentsByDocumentID: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

const chunkSelectQuery = `
	SELECT id, document_id, kb_id, chunk_index, start_token, end_token, content,
		content_hash, parent_chunk_id, chunk_type, section_index, concepts, summary, created_at
	FROM chunks`

func scanChunkRow(row pgx.Row) (model.Chunk, error) {
	var c model.Chunk
	var chunkType string
	err := row.Scan(
		&c.ID, &c.DocumentID, &c.KBID, &c.ChunkIndex, &c.StartToken, &c.EndToken, &c.Content,
		&c.ContentHash, &c.ParentChunkID, &chunkType, &c.SectionIndex, &c.Concepts, &c.Summary, &c.CreatedAt,
	)
	if err != nil {
		return model.Chunk{}, err
	}
	c.ChunkType = model.ChunkType(chunkType)
	return c, nil
}

func scanChunkRows(rows pgx.Rows) (model.Chunk, error) {
	var c model.Chunk
	var chunkType string
	err := rows.Scan(
		&c.ID, &c.DocumentID, &c.KBID, &c.ChunkIndex, &c.StartToken, &c.EndToken, &c.Content,
		&c.ContentHash, &c.ParentChunkID, &chunkType, &c.SectionIndex, &c.Concepts, &c.Summary, &c.CreatedAt,
	)
	if err != nil {
		return model.Chunk{}, err
	}
	c.ChunkType = model.ChunkType(chunkType)
	return c, nil
}
