package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChanLeRepository persists the rolling odd/even outcome history that feeds
// the history chart.
type ChanLeRepository struct {
	pool *pgxpool.Pool
}

// NewChanLeRepository creates a new ChanLeRepository instance.
func NewChanLeRepository(pool *pgxpool.Pool) *ChanLeRepository {
	return &ChanLeRepository{pool: pool}
}

// RecordOutcome appends one outcome ("chan" or "le") to the history.
func (r *ChanLeRepository) RecordOutcome(ctx context.Context, tx pgx.Tx, outcome string) error {
	const query = `INSERT INTO chanle_history (outcome, created_at) VALUES ($1, NOW())`

	var q Querier = r.pool
	if tx != nil {
		q = tx
	}
	if _, err := q.Exec(ctx, query, outcome); err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// Recent returns the last n outcomes, oldest first.
func (r *ChanLeRepository) Recent(ctx context.Context, n int) ([]string, error) {
	const query = `
		SELECT outcome FROM (
			SELECT id, outcome FROM chanle_history ORDER BY id DESC LIMIT $1
		) latest
		ORDER BY id ASC`

	rows, err := r.pool.Query(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	var outcomes []string
	for rows.Next() {
		var outcome string
		if err := rows.Scan(&outcome); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		outcomes = append(outcomes, outcome)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return outcomes, nil
}
