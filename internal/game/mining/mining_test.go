// Integration tests backed by a throwaway PostgreSQL container, plus
// pure checks on the tier roll.
package mining

import (
	"context"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

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
	users *repository.UserRepository
	clk   *clock.FakeClock
	miner *Miner
}

func newFixture(t *testing.T, pool *pgxpool.Pool) *fixture {
	users := repository.NewUserRepository(pool)
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	accruer := progression.NewAccruer(1, 10, time.Hour, progression.DefaultExpCurve)
	accounts := service.NewAccountService(users, accruer, notify.Nop{}, clk)

	miner := New(users, accounts, lock.NewUserLock(), clk, time.Hour)
	return &fixture{users: users, clk: clk, miner: miner}
}

func TestDig_SpendsAllStamina(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	_, _, err := f.users.GetOrCreate(ctx, "100", "u100", 10, f.clk.Now().UnixMilli())
	require.NoError(t, err)

	f.miner.SetRoll(func() (string, int64) { return TierLow, 50_000 })

	out, err := f.miner.Dig(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 10, out.Swings)
	assert.Equal(t, int64(500_000), out.Total)
	assert.Equal(t, int64(500_000), out.Balance)
	require.Len(t, out.Tiers, 1)
	assert.Equal(t, TierLow, out.Tiers[0].Tier)
	assert.Equal(t, 10, out.Tiers[0].Count)

	user, err := f.users.GetByID(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 0, user.Stamina)
	assert.Equal(t, f.clk.Now().UnixMilli(), user.LastStaminaTS)
}

func TestDig_EmptyStaminaReportsWait(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()
	f := newFixture(t, pool)
	ctx := context.Background()

	_, _, err := f.users.GetOrCreate(ctx, "100", "u100", 10, f.clk.Now().UnixMilli())
	require.NoError(t, err)

	f.miner.SetRoll(func() (string, int64) { return TierLow, 1_000 })
	_, err = f.miner.Dig(ctx, "100")
	require.NoError(t, err)

	// Half the regen interval later there is still nothing to spend.
	f.clk.Advance(30 * time.Minute)
	out, err := f.miner.Dig(ctx, "100")
	assert.ErrorIs(t, err, ErrNoStamina)
	assert.Equal(t, 30*time.Minute, out.WaitFor)

	// A full interval restores one point.
	f.clk.Advance(30 * time.Minute)
	out, err = f.miner.Dig(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Swings)
}

func TestDefaultRoll_StaysInBands(t *testing.T) {
	m := New(nil, nil, lock.NewUserLock(), clock.RealClock{}, time.Hour)

	limits := map[string][2]int64{
		TierJackpot: {9_000_000, 10_000_000},
		TierHigh:    {5_000_000, 8_000_000},
		TierMid:     {1_000_000, 4_000_000},
		TierLow:     {50_000, 500_000},
	}

	seen := make(map[string]bool)
	for i := 0; i < 5_000; i++ {
		tier, amount := m.defaultRoll()
		bounds, ok := limits[tier]
		require.True(t, ok, "unknown tier %s", tier)
		assert.GreaterOrEqual(t, amount, bounds[0])
		assert.LessOrEqual(t, amount, bounds[1])
		assert.Zero(t, amount%100)
		seen[tier] = true
	}

	// 5000 rolls hit the common tiers with near certainty.
	assert.True(t, seen[TierLow])
	assert.True(t, seen[TierMid])
}

// Digs by different users only hold their own user lock, so the roll
// runs concurrently. Run under -race.
func TestDefaultRoll_ConcurrentCallers(t *testing.T) {
	m := New(nil, nil, lock.NewUserLock(), clock.RealClock{}, time.Hour)

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 2_000; i++ {
				tier, amount := m.defaultRoll()
				if tier == "" || amount <= 0 {
					t.Error("bad roll")
					return
				}
			}
		}()
	}
	wg.Wait()
}
