// Integration tests backed by a throwaway PostgreSQL container.
package chanle

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

	"github.com/ducyb294/TieuNgaoGiangHo/internal/casino"
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
	pool  *pgxpool.Pool
	users *repository.UserRepository
	house *casino.Service
	game  *Game
}

func newFixture(t *testing.T, pool *pgxpool.Pool) *fixture {
	users := repository.NewUserRepository(pool)
	history := repository.NewChanLeRepository(pool)
	casinoRepo := repository.NewCasinoRepository(pool)

	accruer := progression.NewAccruer(1, 10, time.Hour, progression.DefaultExpCurve)
	clk := clock.RealClock{}
	accounts := service.NewAccountService(users, accruer, notify.Nop{}, clk)

	house := casino.New(
		casino.Config{CommissionRate: 0.05, OwnerDuration: 24 * time.Hour},
		users, casinoRepo, accounts, notify.Nop{}, notify.Nop{}, clk,
	)

	game := New(
		Config{PayoutRate: 1.95, HistorySize: 20},
		pool, users, history, accounts, house, lock.NewUserLock(),
	)
	return &fixture{pool: pool, users: users, house: house, game: game}
}

func (f *fixture) fund(t *testing.T, userID string, amount int64) {
	ctx := context.Background()
	_, _, err := f.users.GetOrCreate(ctx, userID, "u"+userID, 10, time.Now().UnixMilli())
	require.NoError(t, err)
	if amount > 0 {
		_, err = f.users.AddCurrency(ctx, userID, amount)
		require.NoError(t, err)
	}
}

func forceRoll(result string) func() string {
	return func() string { return result }
}

func TestPlay_WinScenario(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "100", 1000)
	f.game.SetRoll(forceRoll(model.ChanLeEven))

	out, err := f.game.Play(ctx, "100", model.ChanLeEven, 100, false)
	require.NoError(t, err)
	assert.True(t, out.Win)
	assert.Equal(t, int64(195), out.Payout)
	// 1000 - 100 + 195 = 1095.
	assert.Equal(t, int64(1095), out.BalanceAfter)
	assert.Equal(t, int64(1), out.Played)
	assert.Equal(t, int64(1), out.Won)

	user, err := f.users.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(1095), user.Currency)
	assert.Equal(t, []string{model.ChanLeEven}, out.History)
}

func TestPlay_LossForfeitsStake(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "100", 1000)
	f.game.SetRoll(forceRoll(model.ChanLeOdd))

	out, err := f.game.Play(ctx, "100", model.ChanLeEven, 100, false)
	require.NoError(t, err)
	assert.False(t, out.Win)
	assert.Equal(t, int64(0), out.Payout)
	assert.Equal(t, int64(900), out.BalanceAfter)

	user, err := f.users.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(900), user.Currency)
	assert.Equal(t, int64(1), user.ChanLePlayed)
	assert.Equal(t, int64(0), user.ChanLeWon)
}

func TestPlay_Validation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "100", 50)

	_, err := f.game.Play(ctx, "100", "heads", 10, false)
	assert.ErrorIs(t, err, ErrInvalidChoice)

	_, err = f.game.Play(ctx, "100", model.ChanLeEven, 0, false)
	assert.ErrorIs(t, err, ErrInvalidBet)

	_, err = f.game.Play(ctx, "100", model.ChanLeEven, 100, false)
	assert.ErrorIs(t, err, ErrNotEnough)

	// Rejections leave the balance untouched.
	user, err := f.users.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, int64(50), user.Currency)
	assert.Equal(t, int64(0), user.ChanLePlayed)
}

func TestPlay_AllInStakesFullBalance(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "100", 400)
	f.game.SetRoll(forceRoll(model.ChanLeOdd))

	out, err := f.game.Play(ctx, "100", model.ChanLeEven, 0, true)
	require.NoError(t, err)
	assert.Equal(t, int64(400), out.Bet)
	assert.Equal(t, int64(0), out.BalanceAfter)
}

func TestPlay_HouseConservation(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "owner", 20_000_000)
	f.fund(t, "player", 100_000)

	_, err := f.house.Claim(ctx, "owner")
	require.NoError(t, err)

	f.game.SetRoll(forceRoll(model.ChanLeEven))
	out, err := f.game.Play(ctx, "player", model.ChanLeEven, 10_000, false)
	require.NoError(t, err)
	require.Equal(t, "owner", out.OwnerID)

	player, err := f.users.GetByID(ctx, "player")
	require.NoError(t, err)
	owner, err := f.users.GetByID(ctx, "owner")
	require.NoError(t, err)

	// payout = floor(10000*1.95) = 19500, commission = 500.
	playerNet := player.Currency - 100_000
	ownerNet := owner.Currency - 20_000_000
	assert.Equal(t, int64(9_500), playerNet)
	assert.Equal(t, int64(-9_500), ownerNet-500)
	// Player net + owner net equals exactly the commission extracted.
	assert.Equal(t, int64(500), playerNet+ownerNet)
}

func TestPlay_HouseCapRejectsOversizedBet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	f.fund(t, "owner", 20_000_000)
	f.fund(t, "player", 10_000_000)

	state, err := f.house.Claim(ctx, "owner")
	require.NoError(t, err)
	// Auto cap is 20% of the owner's balance.
	require.Equal(t, int64(4_000_000), state.MaxChanLe)

	_, err = f.game.Play(ctx, "player", model.ChanLeEven, 5_000_000, false)
	assert.ErrorIs(t, err, ErrBetOverCap)
}

func TestHouse_BankruptcyEvictionAfterSettlement(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	// Owner sits just above the default minimum; one covered payout drops
	// them below it and evicts post-transaction.
	f.fund(t, "owner", 10_500_000)
	f.fund(t, "player", 2_000_000)

	_, err := f.house.Claim(ctx, "owner")
	require.NoError(t, err)

	f.game.SetRoll(forceRoll(model.ChanLeEven))
	out, err := f.game.Play(ctx, "player", model.ChanLeEven, 1_000_000, false)
	require.NoError(t, err)
	require.Equal(t, "owner", out.OwnerID)
	// houseGain = 1_000_000 + 50_000 - 1_950_000 = -900_000.
	assert.Equal(t, int64(9_600_000), out.OwnerBalance)

	state, err := f.house.State(ctx)
	require.NoError(t, err)
	assert.Empty(t, state.OwnerID)
}
