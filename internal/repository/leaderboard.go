package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LeaderboardRepository stores the external message handles of the pinned
// leaderboard boards so refreshes edit in place instead of reposting.
type LeaderboardRepository struct {
	pool *pgxpool.Pool
}

// NewLeaderboardRepository creates a new LeaderboardRepository instance.
func NewLeaderboardRepository(pool *pgxpool.Pool) *LeaderboardRepository {
	return &LeaderboardRepository{pool: pool}
}

// GetMessage returns the stored (channel, message) handle for a board name,
// or empty strings if no board has been posted yet.
func (r *LeaderboardRepository) GetMessage(ctx context.Context, name string) (channelID, messageID string, err error) {
	const query = `SELECT channel_id, message_id FROM leaderboard_messages WHERE name = $1`

	err = r.pool.QueryRow(ctx, query, name).Scan(&channelID, &messageID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("failed to get leaderboard message: %w", err)
	}
	return channelID, messageID, nil
}

// UpsertMessage stores or replaces the handle for a board name.
func (r *LeaderboardRepository) UpsertMessage(ctx context.Context, name, channelID, messageID string) error {
	const query = `
		INSERT INTO leaderboard_messages (name, channel_id, message_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (name)
		DO UPDATE SET channel_id = EXCLUDED.channel_id, message_id = EXCLUDED.message_id`

	if _, err := r.pool.Exec(ctx, query, name, channelID, messageID); err != nil {
		return fmt.Errorf("failed to upsert leaderboard message: %w", err)
	}
	return nil
}
