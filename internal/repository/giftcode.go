package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
)

// GiftCodeRepository persists redeemable codes and per-user claims.
type GiftCodeRepository struct {
	pool *pgxpool.Pool
}

// NewGiftCodeRepository creates a new GiftCodeRepository instance.
func NewGiftCodeRepository(pool *pgxpool.Pool) *GiftCodeRepository {
	return &GiftCodeRepository{pool: pool}
}

// Create inserts a new active gift code. maxUses = 0 means unlimited.
func (r *GiftCodeRepository) Create(ctx context.Context, code string, currency, maxUses int64) (*model.GiftCode, error) {
	const query = `
		INSERT INTO giftcodes (code, currency, max_uses, uses, active, created_at)
		VALUES ($1, $2, $3, 0, TRUE, NOW())
		RETURNING code, currency, max_uses, uses, active, created_at`

	var gc model.GiftCode
	err := r.pool.QueryRow(ctx, query, code, currency, maxUses).Scan(
		&gc.Code, &gc.Currency, &gc.MaxUses, &gc.Uses, &gc.Active, &gc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gift code: %w", err)
	}
	return &gc, nil
}

// Get retrieves an active gift code.
func (r *GiftCodeRepository) Get(ctx context.Context, tx pgx.Tx, code string) (*model.GiftCode, error) {
	const query = `
		SELECT code, currency, max_uses, uses, active, created_at
		FROM giftcodes
		WHERE code = $1 AND active = TRUE`

	var q Querier = r.pool
	if tx != nil {
		q = tx
	}

	var gc model.GiftCode
	err := q.QueryRow(ctx, query, code).Scan(
		&gc.Code, &gc.Currency, &gc.MaxUses, &gc.Uses, &gc.Active, &gc.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get gift code: %w", err)
	}
	return &gc, nil
}

// InsertClaim records that a user redeemed a code. The (code, user_id)
// primary key makes a second redemption a no-op reported as
// ErrAlreadyClaimed.
func (r *GiftCodeRepository) InsertClaim(ctx context.Context, tx pgx.Tx, code, userID string) error {
	const query = `
		INSERT INTO giftcode_claims (code, user_id, claimed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (code, user_id) DO NOTHING`

	tag, err := tx.Exec(ctx, query, code, userID)
	if err != nil {
		return fmt.Errorf("failed to insert claim: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyClaimed
	}
	return nil
}

// IncrementUses consumes one use, failing with ErrCodeExhausted when a
// bounded code is spent. Also deactivates the code on its final use.
func (r *GiftCodeRepository) IncrementUses(ctx context.Context, tx pgx.Tx, code string) error {
	const query = `
		UPDATE giftcodes
		SET uses = uses + 1,
		    active = (max_uses = 0 OR uses + 1 < max_uses)
		WHERE code = $1 AND active = TRUE AND (max_uses = 0 OR uses < max_uses)`

	tag, err := tx.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to increment uses: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeExhausted
	}
	return nil
}

// Deactivate retires a code (admin operation).
func (r *GiftCodeRepository) Deactivate(ctx context.Context, code string) error {
	const query = `UPDATE giftcodes SET active = FALSE WHERE code = $1`

	tag, err := r.pool.Exec(ctx, query, code)
	if err != nil {
		return fmt.Errorf("failed to deactivate gift code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeNotFound
	}
	return nil
}
