package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
)

// BauCuaRepository persists betting rounds and their escrowed bets.
// Exactly one non-finished round exists at a time.
type BauCuaRepository struct {
	pool *pgxpool.Pool
}

// NewBauCuaRepository creates a new BauCuaRepository instance.
func NewBauCuaRepository(pool *pgxpool.Pool) *BauCuaRepository {
	return &BauCuaRepository{pool: pool}
}

const roundColumns = `id, status, started_at, lock_at, close_at, result_1, result_2, result_3, message_id`

func scanRound(row rowScanner) (*model.BauCuaRound, error) {
	var round model.BauCuaRound
	err := row.Scan(
		&round.ID,
		&round.Status,
		&round.StartedAt,
		&round.LockAt,
		&round.CloseAt,
		&round.Result[0],
		&round.Result[1],
		&round.Result[2],
		&round.MessageID,
	)
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// Current returns the single non-finished round.
func (r *BauCuaRepository) Current(ctx context.Context) (*model.BauCuaRound, error) {
	const query = `
		SELECT ` + roundColumns + `
		FROM baucua_rounds
		WHERE status <> 'finished'
		ORDER BY id DESC
		LIMIT 1`

	round, err := scanRound(r.pool.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveRound
		}
		return nil, fmt.Errorf("failed to get current round: %w", err)
	}
	return round, nil
}

// CreateWaiting inserts a fresh waiting round and returns it.
func (r *BauCuaRepository) CreateWaiting(ctx context.Context) (*model.BauCuaRound, error) {
	return r.createWaiting(ctx, r.pool)
}

// CreateWaitingTx inserts a fresh waiting round within a transaction, used
// right after settlement so the new round appears atomically with payouts.
func (r *BauCuaRepository) CreateWaitingTx(ctx context.Context, tx pgx.Tx) (*model.BauCuaRound, error) {
	return r.createWaiting(ctx, tx)
}

func (r *BauCuaRepository) createWaiting(ctx context.Context, q Querier) (*model.BauCuaRound, error) {
	const query = `
		INSERT INTO baucua_rounds (status, started_at, lock_at, close_at, result_1, result_2, result_3, message_id)
		VALUES ('waiting', 0, 0, 0, '', '', '', '')
		RETURNING ` + roundColumns

	round, err := scanRound(q.QueryRow(ctx, query))
	if err != nil {
		return nil, fmt.Errorf("failed to create waiting round: %w", err)
	}
	return round, nil
}

// EnsureWaiting guarantees a non-finished round exists, creating a waiting
// one if the table is empty (first boot) or everything is finished.
func (r *BauCuaRepository) EnsureWaiting(ctx context.Context) (*model.BauCuaRound, error) {
	round, err := r.Current(ctx)
	if err == nil {
		return round, nil
	}
	if !errors.Is(err, ErrNoActiveRound) {
		return nil, err
	}
	return r.CreateWaiting(ctx)
}

// Start transitions a waiting round to running with its timing window.
// Returns ErrRoundNotWaiting if the round already started or finished.
func (r *BauCuaRepository) Start(ctx context.Context, tx pgx.Tx, roundID, startedAt, lockAt, closeAt int64) error {
	const query = `
		UPDATE baucua_rounds
		SET status = 'running', started_at = $2, lock_at = $3, close_at = $4
		WHERE id = $1 AND status = 'waiting'`

	tag, err := tx.Exec(ctx, query, roundID, startedAt, lockAt, closeAt)
	if err != nil {
		return fmt.Errorf("failed to start round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoundNotWaiting
	}
	return nil
}

// Finish transitions a running round to finished, recording the three
// rolled faces. Returns ErrRoundNotRunning if it was already finished,
// which lets a late timer detect it lost the race.
func (r *BauCuaRepository) Finish(ctx context.Context, tx pgx.Tx, roundID int64, result [3]string) error {
	const query = `
		UPDATE baucua_rounds
		SET status = 'finished', result_1 = $2, result_2 = $3, result_3 = $4
		WHERE id = $1 AND status = 'running'`

	tag, err := tx.Exec(ctx, query, roundID, result[0], result[1], result[2])
	if err != nil {
		return fmt.Errorf("failed to finish round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRoundNotRunning
	}
	return nil
}

// SetMessageID stores the external display handle for the round board.
func (r *BauCuaRepository) SetMessageID(ctx context.Context, roundID int64, messageID string) error {
	const query = `UPDATE baucua_rounds SET message_id = $2 WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, roundID, messageID); err != nil {
		return fmt.Errorf("failed to set round message id: %w", err)
	}
	return nil
}

// UpsertBet records an escrowed bet; amounts accumulate when the same user
// bets the same face again within the round.
func (r *BauCuaRepository) UpsertBet(ctx context.Context, tx pgx.Tx, roundID int64, userID, face string, amount int64) error {
	const query = `
		INSERT INTO baucua_bets (round_id, user_id, face, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (round_id, user_id, face)
		DO UPDATE SET amount = baucua_bets.amount + EXCLUDED.amount`

	if _, err := tx.Exec(ctx, query, roundID, userID, face, amount); err != nil {
		return fmt.Errorf("failed to upsert bet: %w", err)
	}
	return nil
}

// BetsForRound returns all bets of a round in placement order.
func (r *BauCuaRepository) BetsForRound(ctx context.Context, roundID int64) ([]*model.BauCuaBet, error) {
	return r.betsForRound(ctx, r.pool, roundID)
}

// BetsForRoundTx reads the round's bets inside the settlement transaction
// so the payout fan-out sees the final pot state.
func (r *BauCuaRepository) BetsForRoundTx(ctx context.Context, tx pgx.Tx, roundID int64) ([]*model.BauCuaBet, error) {
	return r.betsForRound(ctx, tx, roundID)
}

func (r *BauCuaRepository) betsForRound(ctx context.Context, q Querier, roundID int64) ([]*model.BauCuaBet, error) {
	const query = `
		SELECT round_id, user_id, face, amount
		FROM baucua_bets
		WHERE round_id = $1
		ORDER BY face, user_id`

	rows, err := q.Query(ctx, query, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bets: %w", err)
	}
	defer rows.Close()

	var bets []*model.BauCuaBet
	for rows.Next() {
		var bet model.BauCuaBet
		if err := rows.Scan(&bet.RoundID, &bet.UserID, &bet.Face, &bet.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan bet: %w", err)
		}
		bets = append(bets, &bet)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bets: %w", err)
	}
	return bets, nil
}
