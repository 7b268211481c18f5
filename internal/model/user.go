package model

import "time"

// User is the root of ownership: deletion cascades to all owned knowledge
// bases (§3).
type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"`
	CreatedAt      time.Time `json:"createdAt"`
}
