package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
)

// FarmRepository persists idle farm sessions. A user has at most one
// session; claiming zeroes the accrued total without deleting the row.
type FarmRepository struct {
	pool *pgxpool.Pool
}

// NewFarmRepository creates a new FarmRepository instance.
func NewFarmRepository(pool *pgxpool.Pool) *FarmRepository {
	return &FarmRepository{pool: pool}
}

const farmColumns = `user_id, thread_id, message_id, last_tick, total_earned`

func scanFarm(row rowScanner) (*model.FarmSession, error) {
	var s model.FarmSession
	err := row.Scan(&s.UserID, &s.ThreadID, &s.MessageID, &s.LastTick, &s.TotalEarned)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Create starts a session for a user; fails with ErrSessionExists if one
// is already active.
func (r *FarmRepository) Create(ctx context.Context, userID, threadID, messageID string, nowMs int64) (*model.FarmSession, error) {
	const query = `
		INSERT INTO farm_sessions (user_id, thread_id, message_id, last_tick, total_earned)
		VALUES ($1, $2, $3, $4, 0)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + farmColumns

	session, err := scanFarm(r.pool.QueryRow(ctx, query, userID, threadID, messageID, nowMs))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionExists
		}
		return nil, fmt.Errorf("failed to create farm session: %w", err)
	}
	return session, nil
}

// Get retrieves a user's session.
func (r *FarmRepository) Get(ctx context.Context, userID string) (*model.FarmSession, error) {
	const query = `SELECT ` + farmColumns + ` FROM farm_sessions WHERE user_id = $1`

	session, err := scanFarm(r.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get farm session: %w", err)
	}
	return session, nil
}

// GetForUpdate row-locks a session inside a transaction; used by the claim
// path so a concurrent tick sweep cannot interleave between read and reset.
func (r *FarmRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, userID string) (*model.FarmSession, error) {
	const query = `SELECT ` + farmColumns + ` FROM farm_sessions WHERE user_id = $1 FOR UPDATE`

	session, err := scanFarm(tx.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to lock farm session: %w", err)
	}
	return session, nil
}

// ApplyTicks advances the checkpoint and accumulates earnings for one
// sweep pass.
func (r *FarmRepository) ApplyTicks(ctx context.Context, userID string, lastTick, earnedDelta int64) error {
	const query = `
		UPDATE farm_sessions
		SET last_tick = $2, total_earned = total_earned + $3
		WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, query, userID, lastTick, earnedDelta)
	if err != nil {
		return fmt.Errorf("failed to apply farm ticks: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// ResetEarned zeroes the accrued total and moves the checkpoint, as part
// of the atomic claim transaction.
func (r *FarmRepository) ResetEarned(ctx context.Context, tx pgx.Tx, userID string, nowMs int64) error {
	const query = `
		UPDATE farm_sessions
		SET total_earned = 0, last_tick = $2
		WHERE user_id = $1`

	tag, err := tx.Exec(ctx, query, userID, nowMs)
	if err != nil {
		return fmt.Errorf("failed to reset farm earnings: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// SetMessageID updates the external display handle for the session board.
func (r *FarmRepository) SetMessageID(ctx context.Context, userID, messageID string) error {
	const query = `UPDATE farm_sessions SET message_id = $2 WHERE user_id = $1`

	if _, err := r.pool.Exec(ctx, query, userID, messageID); err != nil {
		return fmt.Errorf("failed to set farm message id: %w", err)
	}
	return nil
}

// ListAll returns every session, for the periodic tick sweep.
func (r *FarmRepository) ListAll(ctx context.Context) ([]*model.FarmSession, error) {
	const query = `SELECT ` + farmColumns + ` FROM farm_sessions ORDER BY user_id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list farm sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.FarmSession
	for rows.Next() {
		session, err := scanFarm(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan farm session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating farm sessions: %w", err)
	}
	return sessions, nil
}
