package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ChallengeRepository persists per-day guardian challenge attempt counters.
// The day key is a date string computed by the caller (the game day rolls
// over on a fixed offset, not server-local midnight).
type ChallengeRepository struct {
	pool *pgxpool.Pool
}

// NewChallengeRepository creates a new ChallengeRepository instance.
func NewChallengeRepository(pool *pgxpool.Pool) *ChallengeRepository {
	return &ChallengeRepository{pool: pool}
}

// AttemptsToday returns how many challenges the user has run for the day.
func (r *ChallengeRepository) AttemptsToday(ctx context.Context, userID, dayKey string) (int, error) {
	const query = `
		SELECT COALESCE(
			(SELECT count FROM bicanh_challenges WHERE user_id = $1 AND day_key = $2), 0)`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID, dayKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get challenge attempts: %w", err)
	}
	return count, nil
}

// RecordAttempt bumps the attempt counter and returns the new count.
func (r *ChallengeRepository) RecordAttempt(ctx context.Context, userID, dayKey string) (int, error) {
	const query = `
		INSERT INTO bicanh_challenges (user_id, day_key, count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, day_key)
		DO UPDATE SET count = bicanh_challenges.count + 1
		RETURNING count`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID, dayKey).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to record challenge attempt: %w", err)
	}
	return count, nil
}
