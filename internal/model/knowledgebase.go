package model

import "time"

// KnowledgeBase is a per-user collection of documents, clusters, and
// summaries; ownership and quota scope for retrieval (§3). Each user has
// exactly one KB flagged IsDefault, and DocumentCount is maintained
// transactionally to equal the count of live documents referring to it.
type KnowledgeBase struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Owner          string    `json:"owner"`
	IsDefault      bool      `json:"isDefault"`
	DocumentCount  int       `json:"documentCount"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
