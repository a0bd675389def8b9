package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
)

// CasinoRepository persists the singleton house/owner record. The row
// always exists (seeded by migration); an empty owner_id means the seat
// is free.
type CasinoRepository struct {
	pool *pgxpool.Pool
}

// NewCasinoRepository creates a new CasinoRepository instance.
func NewCasinoRepository(pool *pgxpool.Pool) *CasinoRepository {
	return &CasinoRepository{pool: pool}
}

const casinoColumns = `owner_id, min_balance, max_chanle, started_at`

// Get returns the current house state.
func (r *CasinoRepository) Get(ctx context.Context) (*model.CasinoState, error) {
	return r.get(ctx, r.pool)
}

// GetTx returns the house state inside a settlement transaction so the
// counterparty decision and the payout use one consistent snapshot.
func (r *CasinoRepository) GetTx(ctx context.Context, tx pgx.Tx) (*model.CasinoState, error) {
	return r.get(ctx, tx)
}

func (r *CasinoRepository) get(ctx context.Context, q Querier) (*model.CasinoState, error) {
	const query = `SELECT ` + casinoColumns + ` FROM casino_state WHERE id = 1`

	var state model.CasinoState
	err := q.QueryRow(ctx, query).Scan(&state.OwnerID, &state.MinBalance, &state.MaxChanLe, &state.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("casino state row missing, migrations not applied")
		}
		return nil, fmt.Errorf("failed to get casino state: %w", err)
	}
	return &state, nil
}

// Claim seats ownerID as the house if the seat is free. Returns
// ErrOwnerSeatTaken when another owner already holds it.
func (r *CasinoRepository) Claim(ctx context.Context, ownerID string, maxChanLe, startedAt int64) error {
	const query = `
		UPDATE casino_state
		SET owner_id = $1, max_chanle = $2, started_at = $3
		WHERE id = 1 AND owner_id = ''`

	tag, err := r.pool.Exec(ctx, query, ownerID, maxChanLe, startedAt)
	if err != nil {
		return fmt.Errorf("failed to claim casino: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOwnerSeatTaken
	}
	return nil
}

// Release frees the seat if ownerID still holds it. Returns ErrNotOwner
// otherwise, so a stale expiry sweep cannot evict a newer owner.
func (r *CasinoRepository) Release(ctx context.Context, ownerID string) error {
	const query = `
		UPDATE casino_state
		SET owner_id = '', max_chanle = 0, started_at = 0
		WHERE id = 1 AND owner_id = $1`

	tag, err := r.pool.Exec(ctx, query, ownerID)
	if err != nil {
		return fmt.Errorf("failed to release casino: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotOwner
	}
	return nil
}

// SetMaxChanLe updates the per-bet cap the sitting owner allows.
func (r *CasinoRepository) SetMaxChanLe(ctx context.Context, ownerID string, maxChanLe int64) error {
	const query = `
		UPDATE casino_state
		SET max_chanle = $2
		WHERE id = 1 AND owner_id = $1`

	tag, err := r.pool.Exec(ctx, query, ownerID, maxChanLe)
	if err != nil {
		return fmt.Errorf("failed to set max bet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotOwner
	}
	return nil
}

// SetMinBalance updates the qualification threshold (admin operation).
func (r *CasinoRepository) SetMinBalance(ctx context.Context, minBalance int64) error {
	const query = `UPDATE casino_state SET min_balance = $1 WHERE id = 1`

	if _, err := r.pool.Exec(ctx, query, minBalance); err != nil {
		return fmt.Errorf("failed to set min balance: %w", err)
	}
	return nil
}
