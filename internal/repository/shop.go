package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ShopRepository persists per-user per-stat purchase counters that drive
// the escalating price curve.
type ShopRepository struct {
	pool *pgxpool.Pool
}

// NewShopRepository creates a new ShopRepository instance.
func NewShopRepository(pool *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{pool: pool}
}

// PurchaseCount returns how many times the user already bought this stat.
func (r *ShopRepository) PurchaseCount(ctx context.Context, userID, stat string) (int, error) {
	const query = `
		SELECT COALESCE(
			(SELECT count FROM shop_purchases WHERE user_id = $1 AND stat = $2), 0)`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID, stat).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get purchase count: %w", err)
	}
	return count, nil
}

// IncrementPurchase bumps the counter and returns the new count.
func (r *ShopRepository) IncrementPurchase(ctx context.Context, userID, stat string) (int, error) {
	return r.AddPurchases(ctx, userID, stat, 1)
}

// AddPurchases bumps the counter by qty and returns the new count.
func (r *ShopRepository) AddPurchases(ctx context.Context, userID, stat string, qty int) (int, error) {
	const query = `
		INSERT INTO shop_purchases (user_id, stat, count)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, stat)
		DO UPDATE SET count = shop_purchases.count + $3
		RETURNING count`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID, stat, qty).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to increment purchase count: %w", err)
	}
	return count, nil
}
