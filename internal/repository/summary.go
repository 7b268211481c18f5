package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/model"
)

// SummaryRepo persists the hierarchical summary forest of §4.H.
type SummaryRepo struct {
	pool *pgxpool.Pool
}

func NewSummaryRepo(pool *pgxpool.Pool) *SummaryRepo {
	return &SummaryRepo{pool: pool}
}

// BulkInsert stores a summary forest. IngestRepo runs the same
// bulkInsertSummaries inside the shared ingest transaction.
func (r *SummaryRepo) BulkInsert(ctx context.Context, summaries []model.Summary) error {
	return bulkInsertSummaries(ctx, r.pool, summaries)
}

func bulkInsertSummaries(ctx context.Context, q batchSender, summaries []model.Summary) error {
	if len(summaries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, s := range summaries {
		keyConcepts, _ := json.Marshal(s.KeyConcepts)
		techStack, _ := json.Marshal(s.TechStack)
		batch.Queue(`
			INSERT INTO summaries (id, document_id, chunk_id, parent_id, level, short_summary,
				long_summary, key_concepts, tech_stack, skill_profile)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			s.ID, s.DocumentID, s.ChunkID, s.ParentID, int(s.Level), s.ShortSummary,
			s.LongSummary, keyConcepts, techStack, string(s.SkillProfile),
		)
	}

	results := q.SendBatch(ctx, batch)
	defer results.Close()
	for i := range summaries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("repository.bulkInsertSummaries: summary %d: %w", i, err)
		}
	}
	return nil
}

func (r *SummaryRepo) ListByDocument(ctx context.Context, documentID int64) ([]model.Summary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, document_id, chunk_id, parent_id, level, short_summary, long_summary,
			key_concepts, tech_stack, skill_profile
		FROM summaries WHERE document_id = $1 ORDER BY level ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByDocument: %w", err)
	}
	defer rows.Close()

	var out []model.Summary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListByDocument: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DocumentSummary returns the single level-3 document summary, if present.
func (r *SummaryRepo) DocumentSummary(ctx context.Context, documentID int64) (model.Summary, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, document_id, chunk_id, parent_id, level, short_summary, long_summary,
			key_concepts, tech_stack, skill_profile
		FROM summaries WHERE document_id = $1 AND level = $2`, documentID, int(model.LevelDocument))
	return scanSummaryRow(row)
}

func scanSummary(rows pgx.Rows) (model.Summary, error) {
	var s model.Summary
	var level int
	var skillProfile string
	var keyConcepts, techStack []byte
	err := rows.Scan(&s.ID, &s.DocumentID, &s.ChunkID, &s.ParentID, &level, &s.ShortSummary,
		&s.LongSummary, &keyConcepts, &techStack, &skillProfile)
	if err != nil {
		return model.Summary{}, err
	}
	s.Level = model.SummaryLevel(level)
	s.SkillProfile = model.SkillLevel(skillProfile)
	_ = json.Unmarshal(keyConcepts, &s.KeyConcepts)
	_ = json.Unmarshal(techStack, &s.TechStack)
	return s, nil
}

func scanSummaryRow(row pgx.Row) (model.Summary, error) {
	var s model.Summary
	var level int
	var skillProfile string
	var keyConcepts, techStack []byte
	err := row.Scan(&s.ID, &s.DocumentID, &s.ChunkID, &s.ParentID, &level, &s.ShortSummary,
		&s.LongSummary, &keyConcepts, &techStack, &skillProfile)
	if err != nil {
		return model.Summary{}, err
	}
	s.Level = model.SummaryLevel(level)
	s.SkillProfile = model.SkillLevel(skillProfile)
	_ = json.Unmarshal(keyConcepts, &s.KeyConcepts)
	_ = json.Unmarshal(techStack, &s.TechStack)
	return s, nil
}
