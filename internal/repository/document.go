package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// DocumentRepo persists model.Document and its 1:1 model.VectorDocument.
type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

// NextDocID allocates the next monotonic document ID from the
// documents_doc_id_seq database sequence — never from an application-level
// max()+1 (§4.M).
func (r *DocumentRepo) NextDocID(ctx context.Context) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('documents_doc_id_seq')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("repository.NextDocID: %w", err)
	}
	return id, nil
}

// Create inserts a Document and its paired VectorDocument row outside of an
// ingest transaction. IngestRepo inserts documents through the unexported
// createDocument inside its shared serializable commit (§4.M).
func (r *DocumentRepo) Create(ctx context.Context, doc model.Document, vec model.VectorDocument) error {
	return createDocument(ctx, r.pool, doc, vec)
}

func createDocument(ctx context.Context, q queryer, doc model.Document, vec model.VectorDocument) error {
	metaJSON, err := marshalMeta(doc.Metadata)
	if err != nil {
		return fmt.Errorf("repository.createDocument: marshal metadata: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO documents (
			doc_id, kb_id, owner, source_type, filename, source_url, size_bytes,
			skill_level, chunking_status, summary_status, chunk_count, metadata,
			image_path, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		doc.DocID, doc.KBID, doc.Owner, string(doc.SourceType), doc.Filename, doc.SourceURL, doc.SizeBytes,
		string(doc.SkillLevel), string(doc.ChunkingStatus), string(doc.SummaryStatus), doc.ChunkCount, metaJSON,
		doc.ImagePath, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("repository.createDocument: insert document: %w", err)
	}

	_, err = q.Exec(ctx, `
		INSERT INTO vector_documents (doc_id, raw_text, tfidf_vector) VALUES ($1, $2, $3)`,
		vec.DocID, vec.RawText, float64SliceToJSON(vec.TFIDFVector),
	)
	if err != nil {
		return fmt.Errorf("repository.createDocument: insert vector document: %w", err)
	}
	return nil
}

func (r *DocumentRepo) GetByID(ctx context.Context, docID int64) (model.Document, error) {
	return scanDocumentRow(r.pool.QueryRow(ctx, documentSelectQuery+` WHERE doc_id = $1`, docID))
}

// DocumentByID implements retrieval.ParentFetcher.
func (r *DocumentRepo) DocumentByID(ctx context.Context, docID int64) (model.Document, error) {
	return r.GetByID(ctx, docID)
}

func (r *DocumentRepo) ListByKB(ctx context.Context, kbID string, limit, offset int) ([]model.Document, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM documents WHERE kb_id = $1`, kbID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository.ListByKB: count: %w", err)
	}

	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, documentSelectQuery+` WHERE kb_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, kbID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.ListByKB: query: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("repository.ListByKB: scan: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, total, rows.Err()
}

func (r *DocumentRepo) UpdateChunkingStatus(ctx context.Context, docID int64, status model.ChunkingStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET chunking_status = $1, updated_at = $2 WHERE doc_id = $3`,
		string(status), time.Now().UTC(), docID,
	)
	if err != nil {
		return fmt.Errorf("repository.UpdateChunkingStatus: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateSummaryStatus(ctx context.Context, docID int64, status model.SummaryStatus) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET summary_status = $1, updated_at = $2 WHERE doc_id = $3`,
		string(status), time.Now().UTC(), docID,
	)
	if err != nil {
		return fmt.Errorf("repository.UpdateSummaryStatus: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateSkillLevel(ctx context.Context, docID int64, level model.SkillLevel) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET skill_level = $1, updated_at = $2 WHERE doc_id = $3`,
		string(level), time.Now().UTC(), docID,
	)
	if err != nil {
		return fmt.Errorf("repository.UpdateSkillLevel: %w", err)
	}
	return nil
}

func (r *DocumentRepo) UpdateChunkCount(ctx context.Context, docID int64, count int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE documents SET chunk_count = $1, updated_at = $2 WHERE doc_id = $3`,
		count, time.Now().UTC(), docID,
	)
	if err != nil {
		return fmt.Errorf("repository.UpdateChunkCount: %w", err)
	}
	return nil
}

func (r *DocumentRepo) Delete(ctx context.Context, docID int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM documents WHERE doc_id = $1`, docID)
	if err != nil {
		return fmt.Errorf("repository.Delete: %w", err)
	}
	return nil
}

// AllRawText returns every document's raw text for the KB, used to rebuild
// the in-memory TF-IDF corpus snapshot on startup (§4.I).
func (r *DocumentRepo) AllRawText(ctx context.Context, kbID string) (map[int64]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT d.doc_id, v.raw_text
		FROM documents d JOIN vector_documents v ON v.doc_id = d.doc_id
		WHERE d.kb_id = $1`, kbID)
	if err != nil {
		return nil, fmt.Errorf("repository.AllRawText: %w", err)
	}
	defer rows.Close()

	out := map[int64]string{}
	for rows.Next() {
		var docID int64
		var text string
		if err := rows.Scan(&docID, &text); err != nil {
			return nil, fmt.Errorf("repository.AllRawText: scan: %w", err)
		}
		out[docID] = text
	}
	return out, rows.Err()
}

const documentSelectQuery = `
	SELECT doc_id, kb_id, owner, source_type, filename, source_url, size_bytes,
		skill_level, chunking_status, summary_status, chunk_count, metadata,
		image_path, created_at, updated_at
	FROM documents`

// queryer is satisfied by both *pgxpool.Pool and pgx.Tx, letting the same
// scan/insert helpers run standalone or inside Tx's shared transaction.
type queryer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgx.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func scanDocumentRow(row pgx.Row) (model.Document, error) {
	var doc model.Document
	var sourceType, skillLevel, chunkingStatus, summaryStatus string
	var metaJSON []byte

	err := row.Scan(
		&doc.DocID, &doc.KBID, &doc.Owner, &sourceType, &doc.Filename, &doc.SourceURL, &doc.SizeBytes,
		&skillLevel, &chunkingStatus, &summaryStatus, &doc.ChunkCount, &metaJSON,
		&doc.ImagePath, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return model.Document{}, fmt.Errorf("scan document: %w", err)
	}
	doc.SourceType = model.SourceType(sourceType)
	doc.SkillLevel = model.SkillLevel(skillLevel)
	doc.ChunkingStatus = model.ChunkingStatus(chunkingStatus)
	doc.SummaryStatus = model.SummaryStatus(summaryStatus)
	doc.Metadata = json.RawMessage(metaJSON)
	return doc, nil
}

func scanDocumentRows(rows pgx.Rows) (model.Document, error) {
	var doc model.Document
	var sourceType, skillLevel, chunkingStatus, summaryStatus string
	var metaJSON []byte

	err := rows.Scan(
		&doc.DocID, &doc.KBID, &doc.Owner, &sourceType, &doc.Filename, &doc.SourceURL, &doc.SizeBytes,
		&skillLevel, &chunkingStatus, &summaryStatus, &doc.ChunkCount, &metaJSON,
		&doc.ImagePath, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return model.Document{}, err
	}
	doc.SourceType = model.SourceType(sourceType)
	doc.SkillLevel = model.SkillLevel(skillLevel)
	doc.ChunkingStatus = model.ChunkingStatus(chunkingStatus)
	doc.SummaryStatus = model.SummaryStatus(summaryStatus)
	doc.Metadata = json.RawMessage(metaJSON)
	return doc, nil
}

func marshalMeta(meta json.RawMessage) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return []byte(meta), nil
}

func float64SliceToJSON(v []float64) []byte {
	b, _ := json.Marshal(v)
	return b
}
