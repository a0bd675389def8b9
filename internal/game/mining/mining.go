// Package mining implements the stamina-spend dig: every accrued stamina
// point is consumed in one swing, each rolling an independent reward tier.
package mining

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/clock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/lock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
)

// ErrNoStamina is returned when the player has nothing left to spend.
var ErrNoStamina = errors.New("no stamina left")

// Reward tiers, rarest first. Rolls are uniform in [min, max] then scaled
// by 100.
const (
	TierJackpot = "jackpot"
	TierHigh    = "high"
	TierMid     = "mid"
	TierLow     = "low"
)

type tierBand struct {
	name     string
	cutoff   float64
	min, max int64
}

// Cutoffs are cumulative percentages: 5% jackpot, 10% high, 25% mid, the
// remaining 60% low.
var bands = []tierBand{
	{TierJackpot, 5, 90_000, 100_000},
	{TierHigh, 15, 50_000, 80_000},
	{TierMid, 40, 10_000, 40_000},
	{TierLow, 100, 500, 5_000},
}

// TierReward aggregates the swings that landed in one tier.
type TierReward struct {
	Tier   string
	Count  int
	Amount int64
}

// Result is one mining run.
type Result struct {
	Swings  int
	Total   int64
	Tiers   []TierReward
	Balance int64
	WaitFor time.Duration
}

// Resolver loads a caught-up ledger row.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*model.User, error)
}

// Miner runs the dig command.
type Miner struct {
	users     *repository.UserRepository
	accounts  Resolver
	locks     *lock.UserLock
	clk       clock.Clock
	staminaMs int64
	roll      func() (string, int64)
}

// New creates the miner. staminaInterval is the regen period, used only
// to estimate the wait when the player is empty.
func New(
	users *repository.UserRepository,
	accounts Resolver,
	locks *lock.UserLock,
	clk clock.Clock,
	staminaInterval time.Duration,
) *Miner {
	m := &Miner{
		users:     users,
		accounts:  accounts,
		locks:     locks,
		clk:       clk,
		staminaMs: staminaInterval.Milliseconds(),
	}
	m.roll = m.defaultRoll
	return m
}

// defaultRoll uses the top-level rand functions: the per-user lock does
// not serialize different users, so the source must be goroutine safe.
func (m *Miner) defaultRoll() (string, int64) {
	r := rand.Float64() * 100
	for _, b := range bands {
		if r < b.cutoff {
			return b.name, (rand.Int63n(b.max-b.min+1) + b.min) * 100
		}
	}
	b := bands[len(bands)-1]
	return b.name, (rand.Int63n(b.max-b.min+1) + b.min) * 100
}

// SetRoll overrides the tier source (tests).
func (m *Miner) SetRoll(roll func() (string, int64)) {
	m.roll = roll
}

// Dig spends the player's full stamina, one tier roll per point, credits
// the sum and resets the regen checkpoint to now.
func (m *Miner) Dig(ctx context.Context, userID string) (*Result, error) {
	var result *Result
	err := m.locks.WithLock(userID, func() error {
		user, err := m.accounts.Resolve(ctx, userID)
		if err != nil {
			return err
		}

		if user.Stamina <= 0 {
			elapsed := m.clk.Now().UnixMilli() - user.LastStaminaTS
			wait := m.staminaMs - elapsed
			if wait < 0 {
				wait = 0
			}
			result = &Result{WaitFor: time.Duration(wait) * time.Millisecond}
			return ErrNoStamina
		}

		swings := user.Stamina
		total := int64(0)
		byTier := make(map[string]*TierReward)
		for i := 0; i < swings; i++ {
			tier, amount := m.roll()
			total += amount
			agg, ok := byTier[tier]
			if !ok {
				agg = &TierReward{Tier: tier}
				byTier[tier] = agg
			}
			agg.Count++
			agg.Amount += amount
		}

		now := m.clk.Now().UnixMilli()
		balance, err := m.users.MineSettle(ctx, userID, total, now)
		if err != nil {
			return err
		}

		tiers := make([]TierReward, 0, len(byTier))
		for _, agg := range byTier {
			tiers = append(tiers, *agg)
		}
		sort.Slice(tiers, func(i, j int) bool { return tiers[i].Amount > tiers[j].Amount })

		log.Info().Str("user", userID).Int("swings", swings).
			Int64("total", total).Msg("mining run settled")

		result = &Result{Swings: swings, Total: total, Tiers: tiers, Balance: balance}
		return nil
	})
	return result, err
}
