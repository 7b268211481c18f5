package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepo provisions the subscription row backing usage accounting.
// Authentication and identity are out of scope; this only guarantees a
// subscriptions row exists so usage.Accountant has a plan to check on a
// user's first request.
type UserRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo creates a UserRepo.
func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

// EnsureUser provisions a free-plan subscription for userID if none exists.
func (r *UserRepo) EnsureUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions (user_id, plan, status)
		VALUES ($1, 'free', 'active')
		ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}
