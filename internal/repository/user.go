package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
)

// userColumns is the canonical column list for scanning a ledger row.
const userColumns = `
	user_id, base_name, level, exp, currency, bicanh_level,
	last_exp_timestamp, attack, defense, health,
	dodge, accuracy, crit_rate, crit_resistance,
	armor_penetration, armor_resistance,
	stamina, last_stamina_timestamp, chanle_played, chanle_won`

// flatStatColumns whitelists the flat combat stat columns writable by the
// shop. Stat names arrive from user input; never interpolate them raw.
var flatStatColumns = map[string]string{
	"attack":  "attack",
	"defense": "defense",
	"health":  "health",
}

// percentStatColumns whitelists the percentage combat stat columns.
var percentStatColumns = map[string]string{
	"dodge":             "dodge",
	"accuracy":          "accuracy",
	"crit_rate":         "crit_rate",
	"crit_resistance":   "crit_resistance",
	"armor_penetration": "armor_penetration",
	"armor_resistance":  "armor_resistance",
}

// UserRepository handles player ledger persistence.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.UserID,
		&u.BaseName,
		&u.Level,
		&u.Exp,
		&u.Currency,
		&u.DungeonLevel,
		&u.LastExpTimestamp,
		&u.Attack,
		&u.Defense,
		&u.Health,
		&u.Dodge,
		&u.Accuracy,
		&u.CritRate,
		&u.CritResistance,
		&u.ArmorPenetration,
		&u.ArmorResistance,
		&u.Stamina,
		&u.LastStaminaTS,
		&u.ChanLePlayed,
		&u.ChanLeWon,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create creates a new ledger row seeded with the starting stat block.
// Both accrual timestamps start at nowMs so no retroactive gains apply.
func (r *UserRepository) Create(ctx context.Context, userID, baseName string, stamina int, nowMs int64) (*model.User, error) {
	const query = `
		INSERT INTO users (
			user_id, base_name, level, exp, currency, bicanh_level,
			last_exp_timestamp, attack, defense, health,
			dodge, accuracy, crit_rate, crit_resistance,
			armor_penetration, armor_resistance,
			stamina, last_stamina_timestamp, chanle_played, chanle_won,
			created_at, updated_at
		)
		VALUES ($1, $2, 1, 0, 0, 1, $3, 10, 10, 100, 0, 0, 0, 0, 0, 0, $4, $3, 0, 0, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.pool.QueryRow(ctx, query, userID, baseName, nowMs, stamina))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by their platform user ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*model.User, error) {
	return r.get(ctx, r.pool, userID)
}

// GetByIDTx retrieves a user within an existing transaction.
func (r *UserRepository) GetByIDTx(ctx context.Context, tx pgx.Tx, userID string) (*model.User, error) {
	return r.get(ctx, tx, userID)
}

func (r *UserRepository) get(ctx context.Context, q Querier, userID string) (*model.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE user_id = $1`

	user, err := scanUser(q.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user, creating the ledger row on first contact.
func (r *UserRepository) GetOrCreate(ctx context.Context, userID, baseName string, stamina int, nowMs int64) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, userID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, userID, baseName, stamina, nowMs)
	if err != nil {
		// Handle race condition: another request might have created the user.
		user, err = r.GetByID(ctx, userID)
		if err != nil {
			return nil, false, err
		}
		return user, false, nil
	}

	return user, true, nil
}

// AddCurrency credits (or, for negative amounts already validated by the
// caller, adjusts) a user's currency and returns the updated row.
func (r *UserRepository) AddCurrency(ctx context.Context, userID string, amount int64) (*model.User, error) {
	return r.addCurrency(ctx, r.pool, userID, amount)
}

// AddCurrencyTx credits a user's currency within an existing transaction.
func (r *UserRepository) AddCurrencyTx(ctx context.Context, tx pgx.Tx, userID string, amount int64) (*model.User, error) {
	return r.addCurrency(ctx, tx, userID, amount)
}

func (r *UserRepository) addCurrency(ctx context.Context, q Querier, userID string, amount int64) (*model.User, error) {
	const query = `
		UPDATE users
		SET currency = currency + $2, updated_at = NOW()
		WHERE user_id = $1
		RETURNING ` + userColumns

	user, err := scanUser(q.QueryRow(ctx, query, userID, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to add currency: %w", err)
	}
	return user, nil
}

// DebitCurrency removes amount from a user's balance, rejecting the whole
// operation if it would drive the balance negative. This is the single
// debit primitive every betting and shop path must use.
func (r *UserRepository) DebitCurrency(ctx context.Context, userID string, amount int64) error {
	return r.debit(ctx, r.pool, userID, amount)
}

// DebitCurrencyTx is DebitCurrency within an existing transaction.
func (r *UserRepository) DebitCurrencyTx(ctx context.Context, tx pgx.Tx, userID string, amount int64) error {
	return r.debit(ctx, tx, userID, amount)
}

func (r *UserRepository) debit(ctx context.Context, q Querier, userID string, amount int64) error {
	const query = `
		UPDATE users
		SET currency = currency - $2, updated_at = NOW()
		WHERE user_id = $1 AND currency >= $2`

	tag, err := q.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit currency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.exists(ctx, q, userID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUserNotFound
		}
		return ErrInsufficientFunds
	}
	return nil
}

// UpdateProgress writes back level, exp and the passive-exp checkpoint
// after accrual and level-up normalization.
func (r *UserRepository) UpdateProgress(ctx context.Context, userID string, level int, exp, lastExpTS int64) error {
	return r.updateProgress(ctx, r.pool, userID, level, exp, lastExpTS)
}

// UpdateProgressTx is UpdateProgress within an existing transaction.
func (r *UserRepository) UpdateProgressTx(ctx context.Context, tx pgx.Tx, userID string, level int, exp, lastExpTS int64) error {
	return r.updateProgress(ctx, tx, userID, level, exp, lastExpTS)
}

func (r *UserRepository) updateProgress(ctx context.Context, q Querier, userID string, level int, exp, lastExpTS int64) error {
	const query = `
		UPDATE users
		SET level = $2, exp = $3, last_exp_timestamp = $4, updated_at = NOW()
		WHERE user_id = $1`

	tag, err := q.Exec(ctx, query, userID, level, exp, lastExpTS)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// UpdateStamina writes back stamina and its regen checkpoint.
func (r *UserRepository) UpdateStamina(ctx context.Context, userID string, stamina int, lastStaminaTS int64) error {
	const query = `
		UPDATE users
		SET stamina = $2, last_stamina_timestamp = $3, updated_at = NOW()
		WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, query, userID, stamina, lastStaminaTS)
	if err != nil {
		return fmt.Errorf("failed to update stamina: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// MineSettle credits a mining haul, zeroes stamina and resets the regen
// checkpoint in one statement. Returns the new balance.
func (r *UserRepository) MineSettle(ctx context.Context, userID string, amount, nowMs int64) (int64, error) {
	const query = `
		UPDATE users
		SET currency = currency + $2, stamina = 0,
		    last_stamina_timestamp = $3, updated_at = NOW()
		WHERE user_id = $1
		RETURNING currency`

	var balance int64
	err := r.pool.QueryRow(ctx, query, userID, amount, nowMs).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to settle mining run: %w", err)
	}
	return balance, nil
}

// UpdateBaseName updates a user's stored base display name.
func (r *UserRepository) UpdateBaseName(ctx context.Context, userID, baseName string) error {
	const query = `
		UPDATE users
		SET base_name = $2, updated_at = NOW()
		WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, query, userID, baseName)
	if err != nil {
		return fmt.Errorf("failed to update base name: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// SetDungeonLevel advances (or resets) the guardian tier a player has
// personally cleared.
func (r *UserRepository) SetDungeonLevel(ctx context.Context, userID string, tier int) error {
	const query = `
		UPDATE users
		SET bicanh_level = $2, updated_at = NOW()
		WHERE user_id = $1`

	tag, err := r.pool.Exec(ctx, query, userID, tier)
	if err != nil {
		return fmt.Errorf("failed to set dungeon level: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddFlatStat adds amount to one of the flat combat stats.
func (r *UserRepository) AddFlatStat(ctx context.Context, userID, stat string, amount int64) error {
	column, ok := flatStatColumns[stat]
	if !ok {
		return fmt.Errorf("unknown flat stat %q", stat)
	}

	query := fmt.Sprintf(`UPDATE users SET %s = %s + $2, updated_at = NOW() WHERE user_id = $1`, column, column)
	tag, err := r.pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to add flat stat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// AddPercentStat adds amount to one of the percentage combat stats.
func (r *UserRepository) AddPercentStat(ctx context.Context, userID, stat string, amount float64) error {
	column, ok := percentStatColumns[stat]
	if !ok {
		return fmt.Errorf("unknown percent stat %q", stat)
	}

	query := fmt.Sprintf(`UPDATE users SET %s = %s + $2, updated_at = NOW() WHERE user_id = $1`, column, column)
	tag, err := r.pool.Exec(ctx, query, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to add percent stat: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// IncrementChanLe bumps the monotonic odd/even counters for a user.
func (r *UserRepository) IncrementChanLe(ctx context.Context, tx pgx.Tx, userID string, won bool) error {
	const query = `
		UPDATE users
		SET chanle_played = chanle_played + 1,
		    chanle_won = chanle_won + $2,
		    updated_at = NOW()
		WHERE user_id = $1`

	wonDelta := 0
	if won {
		wonDelta = 1
	}

	var q Querier = r.pool
	if tx != nil {
		q = tx
	}
	tag, err := q.Exec(ctx, query, userID, wonDelta)
	if err != nil {
		return fmt.Errorf("failed to increment chanle counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// TopByCurrency retrieves the richest players.
func (r *UserRepository) TopByCurrency(ctx context.Context, limit int) ([]*model.RichRank, error) {
	const query = `
		SELECT user_id, base_name, currency
		FROM users
		ORDER BY currency DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get currency ranking: %w", err)
	}
	defer rows.Close()

	var ranks []*model.RichRank
	for rows.Next() {
		var rank model.RichRank
		if err := rows.Scan(&rank.UserID, &rank.BaseName, &rank.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking: %w", err)
	}
	return ranks, nil
}

// TopByLevel retrieves the highest-progressed players, exp breaking level
// ties.
func (r *UserRepository) TopByLevel(ctx context.Context, limit int) ([]*model.LevelRank, error) {
	const query = `
		SELECT user_id, base_name, level, exp
		FROM users
		ORDER BY level DESC, exp DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get level ranking: %w", err)
	}
	defer rows.Close()

	var ranks []*model.LevelRank
	for rows.Next() {
		var rank model.LevelRank
		if err := rows.Scan(&rank.UserID, &rank.BaseName, &rank.Level, &rank.Exp); err != nil {
			return nil, fmt.Errorf("failed to scan rank: %w", err)
		}
		ranks = append(ranks, &rank)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ranking: %w", err)
	}
	return ranks, nil
}

// ListNeedingSync returns users with pending passive accrual: at least one
// whole exp minute elapsed, or stamina below cap with at least one regen
// interval elapsed. Used by the global sweep so inactive players never
// build an unbounded backlog.
func (r *UserRepository) ListNeedingSync(ctx context.Context, nowMs, expIntervalMs int64, maxStamina int, staminaIntervalMs int64) ([]*model.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE ($1 - last_exp_timestamp) >= $2
		   OR (stamina < $3 AND ($1 - last_stamina_timestamp) >= $4)`

	rows, err := r.pool.Query(ctx, query, nowMs, expIntervalMs, maxStamina, staminaIntervalMs)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// Exists checks if a ledger row exists for the given user.
func (r *UserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	return r.exists(ctx, r.pool, userID)
}

func (r *UserRepository) exists(ctx context.Context, q Querier, userID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`

	var exists bool
	if err := q.QueryRow(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}
