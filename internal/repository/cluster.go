package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/connexus-ai/ragbox-backend/internal/cluster"
)

// ClusterRepo implements cluster.Store with pgx.
type ClusterRepo struct {
	pool *pgxpool.Pool
}

func NewClusterRepo(pool *pgxpool.Pool) *ClusterRepo {
	return &ClusterRepo{pool: pool}
}

var _ cluster.Store = (*ClusterRepo)(nil)

func (r *ClusterRepo) ListByKB(ctx context.Context, kbID string) ([]cluster.Cluster, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, kb_id, name, primary_concepts, skill_level, doc_ids, doc_count
		FROM clusters WHERE kb_id = $1`, kbID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListByKB: %w", err)
	}
	defer rows.Close()

	var out []cluster.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListByKB: scan: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *ClusterRepo) Create(ctx context.Context, c cluster.Cluster) (cluster.Cluster, error) {
	primary, _ := json.Marshal(c.PrimaryConcepts)
	docIDs, _ := json.Marshal(c.DocIDs)

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO clusters (kb_id, name, primary_concepts, skill_level, doc_ids, doc_count)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		c.KBID, c.Name, primary, c.SkillLevel, docIDs, c.DocCount,
	).Scan(&id)
	if err != nil {
		return cluster.Cluster{}, fmt.Errorf("repository.Create: %w", err)
	}
	c.ID = id
	return c, nil
}

func (r *ClusterRepo) Update(ctx context.Context, c cluster.Cluster) error {
	primary, _ := json.Marshal(c.PrimaryConcepts)
	docIDs, _ := json.Marshal(c.DocIDs)

	_, err := r.pool.Exec(ctx, `
		UPDATE clusters SET name = $1, primary_concepts = $2, skill_level = $3, doc_ids = $4, doc_count = $5
		WHERE id = $6`,
		c.Name, primary, c.SkillLevel, docIDs, c.DocCount, c.ID,
	)
	if err != nil {
		return fmt.Errorf("repository.Update: %w", err)
	}
	return nil
}

func (r *ClusterRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM clusters WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("repository.Delete: %w", err)
	}
	return nil
}

// ConceptNamesForDocs implements cluster.Store.
func (r *ClusterRepo) ConceptNamesForDocs(ctx context.Context, docIDs []int64) (map[int64][]string, error) {
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

type clusterRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCluster(row clusterRowScanner) (cluster.Cluster, error) {
	var c cluster.Cluster
	var primary, docIDs []byte
	if err := row.Scan(&c.ID, &c.KBID, &c.Name, &primary, &c.SkillLevel, &docIDs, &c.DocCount); err != nil {
		return cluster.Cluster{}, err
	}
	_ = json.Unmarshal(primary, &c.PrimaryConcepts)
	_ = json.Unmarshal(docIDs, &c.DocIDs)
	return c, nil
}
