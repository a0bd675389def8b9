package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations are applied in order at startup. Statements are idempotent so
// re-running on boot is safe.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		base_name VARCHAR(64) NOT NULL,
		level INT NOT NULL DEFAULT 1,
		exp BIGINT NOT NULL DEFAULT 0,
		currency BIGINT NOT NULL DEFAULT 0 CHECK (currency >= 0),
		bicanh_level INT NOT NULL DEFAULT 1,
		last_exp_timestamp BIGINT NOT NULL DEFAULT 0,
		attack BIGINT NOT NULL DEFAULT 10,
		defense BIGINT NOT NULL DEFAULT 10,
		health BIGINT NOT NULL DEFAULT 100,
		dodge DOUBLE PRECISION NOT NULL DEFAULT 0,
		accuracy DOUBLE PRECISION NOT NULL DEFAULT 0,
		crit_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
		crit_resistance DOUBLE PRECISION NOT NULL DEFAULT 0,
		armor_penetration DOUBLE PRECISION NOT NULL DEFAULT 0,
		armor_resistance DOUBLE PRECISION NOT NULL DEFAULT 0,
		stamina INT NOT NULL DEFAULT 10,
		last_stamina_timestamp BIGINT NOT NULL DEFAULT 0,
		chanle_played BIGINT NOT NULL DEFAULT 0,
		chanle_won BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS chanle_history (
		id BIGSERIAL PRIMARY KEY,
		outcome VARCHAR(8) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS baucua_rounds (
		id BIGSERIAL PRIMARY KEY,
		status VARCHAR(16) NOT NULL,
		started_at BIGINT NOT NULL DEFAULT 0,
		lock_at BIGINT NOT NULL DEFAULT 0,
		close_at BIGINT NOT NULL DEFAULT 0,
		result_1 VARCHAR(16) NOT NULL DEFAULT '',
		result_2 VARCHAR(16) NOT NULL DEFAULT '',
		result_3 VARCHAR(16) NOT NULL DEFAULT '',
		message_id TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS baucua_bets (
		round_id BIGINT NOT NULL REFERENCES baucua_rounds(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		face VARCHAR(16) NOT NULL,
		amount BIGINT NOT NULL,
		PRIMARY KEY (round_id, user_id, face)
	)`,

	`CREATE TABLE IF NOT EXISTS farm_sessions (
		user_id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL DEFAULT '',
		message_id TEXT NOT NULL DEFAULT '',
		last_tick BIGINT NOT NULL DEFAULT 0,
		total_earned BIGINT NOT NULL DEFAULT 0
	)`,

	`CREATE TABLE IF NOT EXISTS bicanh_challenges (
		user_id TEXT NOT NULL,
		day_key VARCHAR(16) NOT NULL,
		count INT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, day_key)
	)`,

	`CREATE TABLE IF NOT EXISTS shop_purchases (
		user_id TEXT NOT NULL,
		stat VARCHAR(32) NOT NULL,
		count INT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, stat)
	)`,

	`CREATE TABLE IF NOT EXISTS casino_state (
		id INT PRIMARY KEY,
		owner_id TEXT NOT NULL DEFAULT '',
		min_balance BIGINT NOT NULL DEFAULT 10000000,
		max_chanle BIGINT NOT NULL DEFAULT 0,
		started_at BIGINT NOT NULL DEFAULT 0
	)`,

	`INSERT INTO casino_state (id) VALUES (1) ON CONFLICT (id) DO NOTHING`,

	`CREATE TABLE IF NOT EXISTS giftcodes (
		code VARCHAR(64) PRIMARY KEY,
		currency BIGINT NOT NULL,
		max_uses BIGINT NOT NULL DEFAULT 0,
		uses BIGINT NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS giftcode_claims (
		code VARCHAR(64) NOT NULL REFERENCES giftcodes(code) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		claimed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (code, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS leaderboard_messages (
		name VARCHAR(32) PRIMARY KEY,
		channel_id TEXT NOT NULL,
		message_id TEXT NOT NULL
	)`,
}

// Migrate applies the schema. Called from cmd/bot on startup and from the
// integration test harness.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
