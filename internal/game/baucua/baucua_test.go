// Integration tests backed by a throwaway PostgreSQL container. Timers
// are not exercised directly; the close path is driven by hand and the
// betting window by a fake clock.
package baucua

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/notify"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/clock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/lock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/progression"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/service"
)

func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if exec.Command("docker", "info").Run() != nil {
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
	require.NoError(t, repository.Migrate(ctx, pool))

	return pool, func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
}

type fixture struct {
	users  *repository.UserRepository
	rounds *repository.BauCuaRepository
	clk    *clock.FakeClock
	engine *Engine
}

func newFixture(t *testing.T, pool *pgxpool.Pool) *fixture {
	users := repository.NewUserRepository(pool)
	rounds := repository.NewBauCuaRepository(pool)
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))

	accruer := progression.NewAccruer(1, 10, time.Hour, progression.DefaultExpCurve)
	accounts := service.NewAccountService(users, accruer, notify.Nop{}, clk)

	engine := New(
		Config{Countdown: 2 * time.Minute, LockWindow: 15 * time.Second},
		pool, users, rounds, accounts, lock.NewUserLock(), notify.Nop{}, clk,
	)
	t.Cleanup(engine.Stop)
	return &fixture{users: users, rounds: rounds, clk: clk, engine: engine}
}

func (f *fixture) fund(t *testing.T, userID string, amount int64) {
	ctx := context.Background()
	_, _, err := f.users.GetOrCreate(ctx, userID, "u"+userID, 10, f.clk.Now().UnixMilli())
	require.NoError(t, err)
	_, err = f.users.AddCurrency(ctx, userID, amount)
	require.NoError(t, err)
}

func (f *fixture) balance(t *testing.T, userID string) int64 {
	user, err := f.users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return user.Currency
}

// fixedRolls returns the given faces in order.
func fixedRolls(faces ...string) func() string {
	i := 0
	return func() string {
		face := faces[i%len(faces)]
		i++
		return face
	}
}

func TestPlaceBet_FirstBetStartsRound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "100", 1000)

	round, err := f.engine.PlaceBet(ctx, "100", "cua", 300)
	require.NoError(t, err)
	assert.Equal(t, model.RoundRunning, round.Status)

	now := f.clk.Now().UnixMilli()
	assert.Equal(t, now, round.StartedAt)
	assert.Equal(t, now+120_000, round.CloseAt)
	assert.Equal(t, now+105_000, round.LockAt)

	// Escrow: the stake left the balance at bet time.
	assert.Equal(t, int64(700), f.balance(t, "100"))
}

func TestPlaceBet_Validation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "100", 100)

	_, err := f.engine.PlaceBet(ctx, "100", "dragon", 50)
	assert.ErrorIs(t, err, ErrInvalidFace)

	_, err = f.engine.PlaceBet(ctx, "100", "cua", 0)
	assert.ErrorIs(t, err, ErrInvalidBet)

	_, err = f.engine.PlaceBet(ctx, "100", "cua", 500)
	assert.ErrorIs(t, err, repository.ErrInsufficientFunds)

	assert.Equal(t, int64(100), f.balance(t, "100"))
}

func TestPlaceBet_LockWindow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "100", 1000)

	_, err := f.engine.PlaceBet(ctx, "100", "cua", 100)
	require.NoError(t, err)

	// One second before the lock instant: accepted.
	f.clk.Advance(104 * time.Second)
	_, err = f.engine.PlaceBet(ctx, "100", "ca", 100)
	require.NoError(t, err)

	// One second after: rejected with no balance change.
	f.clk.Advance(2 * time.Second)
	before := f.balance(t, "100")
	_, err = f.engine.PlaceBet(ctx, "100", "ga", 100)
	assert.ErrorIs(t, err, ErrRoundLocked)
	assert.Equal(t, before, f.balance(t, "100"))
}

func TestCloseRound_SettlementFanOut(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "a", 1000)
	f.fund(t, "b", 1000)

	round, err := f.engine.PlaceBet(ctx, "a", "cua", 100)
	require.NoError(t, err)
	_, err = f.engine.PlaceBet(ctx, "a", "cua", 50) // accumulates to 150
	require.NoError(t, err)
	_, err = f.engine.PlaceBet(ctx, "b", "ca", 200)
	require.NoError(t, err)
	_, err = f.engine.PlaceBet(ctx, "b", "ga", 100)
	require.NoError(t, err)

	// cua appears twice, ca once, ga never.
	f.engine.SetRoll(fixedRolls("cua", "ca", "cua"))
	require.NoError(t, f.engine.CloseRound(ctx, round.ID))

	// a: 1000 - 150 + 150*2 = 1150.
	assert.Equal(t, int64(1150), f.balance(t, "a"))
	// b: 1000 - 300 + 200*1 + 0 = 900.
	assert.Equal(t, int64(900), f.balance(t, "b"))

	// A fresh waiting round replaces the settled one.
	next, err := f.rounds.Current(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, round.ID, next.ID)
	assert.Equal(t, model.RoundWaiting, next.Status)
}

func TestCloseRound_SecondCloseIsNoOp(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "a", 1000)

	round, err := f.engine.PlaceBet(ctx, "a", "nai", 100)
	require.NoError(t, err)

	f.engine.SetRoll(fixedRolls("nai", "bau", "tom"))
	require.NoError(t, f.engine.CloseRound(ctx, round.ID))
	after := f.balance(t, "a")

	// A late duplicate timer must not pay out twice.
	require.NoError(t, f.engine.CloseRound(ctx, round.ID))
	assert.Equal(t, after, f.balance(t, "a"))
}

func TestCloseRound_ZeroHitsForfeitsEscrow(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "a", 500)

	round, err := f.engine.PlaceBet(ctx, "a", "bau", 500)
	require.NoError(t, err)

	f.engine.SetRoll(fixedRolls("cua", "ca", "ga"))
	require.NoError(t, f.engine.CloseRound(ctx, round.ID))

	assert.Equal(t, int64(0), f.balance(t, "a"))
}

func TestStart_RecoversOverdueRound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "a", 1000)

	round, err := f.engine.PlaceBet(ctx, "a", "tom", 100)
	require.NoError(t, err)
	f.engine.Stop()

	// Simulate a restart well past close: Start settles immediately via
	// the re-armed timer.
	f.clk.Advance(10 * time.Minute)
	f.engine.SetRoll(fixedRolls("tom", "tom", "tom"))
	require.NoError(t, f.engine.Start(ctx))

	require.Eventually(t, func() bool {
		fresh, err := f.rounds.Current(ctx)
		return err == nil && fresh.ID != round.ID
	}, 5*time.Second, 50*time.Millisecond)

	// 1000 - 100 + 100*3 = 1200.
	assert.Equal(t, int64(1200), f.balance(t, "a"))
}
