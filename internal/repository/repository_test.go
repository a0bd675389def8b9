// Integration tests backed by a throwaway PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
)

// checkDockerAvailable checks if Docker is available and running.
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB creates a PostgreSQL container, applies the schema and
// returns a connection pool. Skips the test if Docker is not available.
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return pool, cleanup
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	now := nowMs()
	user, err := repo.Create(ctx, "100", "Alice", 10, now)
	require.NoError(t, err)
	assert.Equal(t, "100", user.UserID)
	assert.Equal(t, "Alice", user.BaseName)
	assert.Equal(t, 1, user.Level)
	assert.Equal(t, int64(0), user.Exp)
	assert.Equal(t, int64(0), user.Currency)
	assert.Equal(t, 10, user.Stamina)
	assert.Equal(t, now, user.LastExpTimestamp)
	assert.Equal(t, now, user.LastStaminaTS)
	assert.Equal(t, 1, user.DungeonLevel)

	got, err := repo.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, user.UserID, got.UserID)

	_, err = repo.GetByID(ctx, "999")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_GetOrCreate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	user, created, err := repo.GetOrCreate(ctx, "100", "Alice", 10, nowMs())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "100", user.UserID)

	user, created, err = repo.GetOrCreate(ctx, "100", "Renamed", 10, nowMs())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "Alice", user.BaseName)
}

func TestUserRepository_DebitCurrency(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "100", "Alice", 10, nowMs())
	require.NoError(t, err)
	_, err = repo.AddCurrency(ctx, "100", 1000)
	require.NoError(t, err)

	// Exact balance is spendable.
	require.NoError(t, repo.DebitCurrency(ctx, "100", 1000))

	user, err := repo.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Currency)

	// Overdraft is rejected with zero side effects.
	err = repo.DebitCurrency(ctx, "100", 1)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	user, err = repo.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Currency)

	err = repo.DebitCurrency(ctx, "999", 1)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepository_ConcurrentDebits(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "100", "Alice", 10, nowMs())
	require.NoError(t, err)
	_, err = repo.AddCurrency(ctx, "100", 500)
	require.NoError(t, err)

	// 20 concurrent debits of 100 against a balance of 500: exactly 5 may
	// succeed and the balance must end at zero, never negative.
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.DebitCurrency(ctx, "100", 100); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)

	user, err := repo.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Currency)
}

func TestUserRepository_ProgressAndStamina(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	now := nowMs()
	_, err := repo.Create(ctx, "100", "Alice", 10, now)
	require.NoError(t, err)

	require.NoError(t, repo.UpdateProgress(ctx, "100", 5, 42, now+60000))
	require.NoError(t, repo.UpdateStamina(ctx, "100", 3, now+3600000))

	user, err := repo.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 5, user.Level)
	assert.Equal(t, int64(42), user.Exp)
	assert.Equal(t, now+60000, user.LastExpTimestamp)
	assert.Equal(t, 3, user.Stamina)
	assert.Equal(t, now+3600000, user.LastStaminaTS)
}

func TestUserRepository_Stats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "100", "Alice", 10, nowMs())
	require.NoError(t, err)

	require.NoError(t, repo.AddFlatStat(ctx, "100", "attack", 900))
	require.NoError(t, repo.AddPercentStat(ctx, "100", "crit_rate", 1))

	user, err := repo.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(910), user.Attack)
	assert.Equal(t, float64(1), user.CritRate)

	assert.Error(t, repo.AddFlatStat(ctx, "100", "currency", 1))
	assert.Error(t, repo.AddPercentStat(ctx, "100", "exp", 1))
}

func TestUserRepository_TopByCurrency(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewUserRepository(pool)
	ctx := context.Background()

	for _, u := range []struct {
		id       string
		currency int64
	}{{"1", 3000}, {"2", 1000}, {"3", 5000}} {
		_, err := repo.Create(ctx, u.id, "u"+u.id, 10, nowMs())
		require.NoError(t, err)
		_, err = repo.AddCurrency(ctx, u.id, u.currency)
		require.NoError(t, err)
	}

	ranks, err := repo.TopByCurrency(ctx, 10)
	require.NoError(t, err)
	require.Len(t, ranks, 3)
	assert.Equal(t, "3", ranks[0].UserID)
	assert.Equal(t, "1", ranks[1].UserID)
	assert.Equal(t, "2", ranks[2].UserID)
}

func TestBauCuaRepository_RoundLifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBauCuaRepository(pool)
	ctx := context.Background()

	round, err := repo.EnsureWaiting(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.RoundWaiting, round.Status)

	// EnsureWaiting is idempotent while a round is open.
	again, err := repo.EnsureWaiting(ctx)
	require.NoError(t, err)
	assert.Equal(t, round.ID, again.ID)

	now := nowMs()
	err = InTx(ctx, pool, func(tx pgx.Tx) error {
		return repo.Start(ctx, tx, round.ID, now, now+105000, now+120000)
	})
	require.NoError(t, err)

	// Starting twice loses the conditional update.
	err = InTx(ctx, pool, func(tx pgx.Tx) error {
		return repo.Start(ctx, tx, round.ID, now, now+105000, now+120000)
	})
	assert.ErrorIs(t, err, ErrRoundNotWaiting)

	err = InTx(ctx, pool, func(tx pgx.Tx) error {
		return repo.Finish(ctx, tx, round.ID, [3]string{"cua", "ca", "cua"})
	})
	require.NoError(t, err)

	err = InTx(ctx, pool, func(tx pgx.Tx) error {
		return repo.Finish(ctx, tx, round.ID, [3]string{"ga", "ga", "ga"})
	})
	assert.ErrorIs(t, err, ErrRoundNotRunning)

	// After finishing, EnsureWaiting opens a fresh round.
	fresh, err := repo.EnsureWaiting(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, round.ID, fresh.ID)
	assert.Equal(t, model.RoundWaiting, fresh.Status)
}

func TestBauCuaRepository_UpsertBetAccumulates(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewBauCuaRepository(pool)
	ctx := context.Background()

	round, err := repo.EnsureWaiting(ctx)
	require.NoError(t, err)

	err = InTx(ctx, pool, func(tx pgx.Tx) error {
		if err := repo.UpsertBet(ctx, tx, round.ID, "100", "cua", 50); err != nil {
			return err
		}
		if err := repo.UpsertBet(ctx, tx, round.ID, "100", "cua", 70); err != nil {
			return err
		}
		return repo.UpsertBet(ctx, tx, round.ID, "100", "ca", 30)
	})
	require.NoError(t, err)

	bets, err := repo.BetsForRound(ctx, round.ID)
	require.NoError(t, err)
	require.Len(t, bets, 2)

	byFace := map[string]int64{}
	for _, b := range bets {
		byFace[b.Face] = b.Amount
	}
	assert.Equal(t, int64(120), byFace["cua"])
	assert.Equal(t, int64(30), byFace["ca"])
}

func TestFarmRepository_Lifecycle(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	userRepo := NewUserRepository(pool)
	repo := NewFarmRepository(pool)
	ctx := context.Background()

	_, err := userRepo.Create(ctx, "100", "Alice", 10, nowMs())
	require.NoError(t, err)

	now := nowMs()
	session, err := repo.Create(ctx, "100", "thread1", "msg1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), session.TotalEarned)

	_, err = repo.Create(ctx, "100", "thread2", "msg2", now)
	assert.ErrorIs(t, err, ErrSessionExists)

	require.NoError(t, repo.ApplyTicks(ctx, "100", now+60000, 12345))

	// Claim: read-lock, credit the user, zero the session, all in one tx.
	err = InTx(ctx, pool, func(tx pgx.Tx) error {
		locked, err := repo.GetForUpdate(ctx, tx, "100")
		if err != nil {
			return err
		}
		if _, err := userRepo.AddCurrencyTx(ctx, tx, "100", locked.TotalEarned); err != nil {
			return err
		}
		return repo.ResetEarned(ctx, tx, "100", now+120000)
	})
	require.NoError(t, err)

	user, err := userRepo.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(12345), user.Currency)

	session, err = repo.Get(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(0), session.TotalEarned)
	assert.Equal(t, now+120000, session.LastTick)
}

func TestCasinoRepository_ClaimRelease(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewCasinoRepository(pool)
	ctx := context.Background()

	state, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.OwnerID)
	assert.Equal(t, int64(10000000), state.MinBalance)

	now := nowMs()
	require.NoError(t, repo.Claim(ctx, "100", 2000000, now))

	err = repo.Claim(ctx, "200", 3000000, now)
	assert.ErrorIs(t, err, ErrOwnerSeatTaken)

	err = repo.Release(ctx, "200")
	assert.ErrorIs(t, err, ErrNotOwner)

	require.NoError(t, repo.SetMaxChanLe(ctx, "100", 2500000))
	require.NoError(t, repo.Release(ctx, "100"))

	state, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.OwnerID)
	assert.Equal(t, int64(0), state.MaxChanLe)
}

func TestGiftCodeRepository_Redeem(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewGiftCodeRepository(pool)
	ctx := context.Background()

	_, err := repo.Create(ctx, "WELCOME", 5000, 2)
	require.NoError(t, err)

	redeem := func(userID string) error {
		return InTx(ctx, pool, func(tx pgx.Tx) error {
			if _, err := repo.Get(ctx, tx, "WELCOME"); err != nil {
				return err
			}
			if err := repo.InsertClaim(ctx, tx, "WELCOME", userID); err != nil {
				return err
			}
			return repo.IncrementUses(ctx, tx, "WELCOME")
		})
	}

	require.NoError(t, redeem("100"))

	// Same user cannot redeem twice.
	assert.ErrorIs(t, redeem("100"), ErrAlreadyClaimed)

	require.NoError(t, redeem("200"))

	// Code is spent after max_uses redemptions.
	assert.ErrorIs(t, redeem("300"), ErrCodeNotFound)
}

func TestChallengeRepository_DailyCounter(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewChallengeRepository(pool)
	ctx := context.Background()

	count, err := repo.AttemptsToday(ctx, "100", "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	for want := 1; want <= 3; want++ {
		count, err = repo.RecordAttempt(ctx, "100", "2026-08-28")
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	// A new day key starts from zero.
	count, err = repo.AttemptsToday(ctx, "100", "2026-08-29")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestShopRepository_PurchaseCounter(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewShopRepository(pool)
	ctx := context.Background()

	count, err := repo.PurchaseCount(ctx, "100", "attack")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	count, err = repo.IncrementPurchase(ctx, "100", "attack")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = repo.IncrementPurchase(ctx, "100", "attack")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// Counters are per stat.
	count, err = repo.PurchaseCount(ctx, "100", "defense")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestLeaderboardRepository_Messages(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewLeaderboardRepository(pool)
	ctx := context.Background()

	channelID, messageID, err := repo.GetMessage(ctx, "rich")
	require.NoError(t, err)
	assert.Empty(t, channelID)
	assert.Empty(t, messageID)

	require.NoError(t, repo.UpsertMessage(ctx, "rich", "chan1", "msg1"))
	require.NoError(t, repo.UpsertMessage(ctx, "rich", "chan1", "msg2"))

	channelID, messageID, err = repo.GetMessage(ctx, "rich")
	require.NoError(t, err)
	assert.Equal(t, "chan1", channelID)
	assert.Equal(t, "msg2", messageID)
}
