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

// IdeaRepo persists ephemeral build-idea seeds and the subset a user saves.
type IdeaRepo struct {
	pool *pgxpool.Pool
}

func NewIdeaRepo(pool *pgxpool.Pool) *IdeaRepo {
	return &IdeaRepo{pool: pool}
}

func (r *IdeaRepo) SaveSeed(ctx context.Context, seed model.BuildIdeaSeed) error {
	requiredSkills, _ := json.Marshal(seed.RequiredSkills)
	missingKnowledge, _ := json.Marshal(seed.MissingKnowledge)
	relevantClusters, _ := json.Marshal(seed.RelevantClusters)
	starterSteps, _ := json.Marshal(seed.StarterSteps)
	referencedSections, _ := json.Marshal(seed.ReferencedSections)

	_, err := r.pool.Exec(ctx, `
		INSERT INTO build_idea_seeds (id, kb_id, title, description, difficulty, feasibility,
			effort_estimate, required_skills, missing_knowledge, relevant_clusters, starter_steps,
			knowledge_coverage, referenced_sections, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		seed.ID, seed.KBID, seed.Title, seed.Description, seed.Difficulty, string(seed.Feasibility),
		seed.EffortEstimate, requiredSkills, missingKnowledge, relevantClusters, starterSteps,
		seed.KnowledgeCoverage, referencedSections, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository.SaveSeed: %w", err)
	}
	return nil
}

// PromoteToSaved copies a previously-generated seed into saved_ideas under a
// user, setting its status (§3: "a user chooses to save" an ephemeral seed).
func (r *IdeaRepo) PromoteToSaved(ctx context.Context, userID string, idea model.SavedIdea) error {
	referencedSections, _ := json.Marshal(idea.ReferencedSections)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO saved_ideas (id, user_id, title, description, difficulty, feasibility,
			effort_estimate, referenced_sections, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		idea.ID, userID, idea.Title, idea.Description, idea.Difficulty, string(idea.Feasibility),
		idea.EffortEstimate, referencedSections, string(idea.Status), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("repository.PromoteToSaved: %w", err)
	}
	return nil
}

func (r *IdeaRepo) ListSavedByUser(ctx context.Context, userID string) ([]model.SavedIdea, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, title, description, difficulty, feasibility, effort_estimate,
			referenced_sections, status
		FROM saved_ideas WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("repository.ListSavedByUser: %w", err)
	}
	defer rows.Close()

	var out []model.SavedIdea
	for rows.Next() {
		idea, err := scanSavedIdea(rows)
		if err != nil {
			return nil, fmt.Errorf("repository.ListSavedByUser: scan: %w", err)
		}
		out = append(out, idea)
	}
	return out, rows.Err()
}

func (r *IdeaRepo) UpdateStatus(ctx context.Context, ideaID string, status model.IdeaStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE saved_ideas SET status = $1 WHERE id = $2`, string(status), ideaID)
	if err != nil {
		return fmt.Errorf("repository.UpdateStatus: %w", err)
	}
	return nil
}

func scanSavedIdea(rows pgx.Rows) (model.SavedIdea, error) {
	var idea model.SavedIdea
	var feasibility, status string
	var referencedSections []byte
	err := rows.Scan(&idea.ID, &idea.UserID, &idea.Title, &idea.Description, &idea.Difficulty,
		&feasibility, &idea.EffortEstimate, &referencedSections, &status)
	if err != nil {
		return model.SavedIdea{}, err
	}
	idea.Feasibility = model.Feasibility(feasibility)
	idea.Status = model.IdeaStatus(status)
	_ = json.Unmarshal(referencedSections, &idea.ReferencedSections)
	return idea, nil
}
