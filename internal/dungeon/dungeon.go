// Package dungeon implements the guardian ladder: per-player tier with a
// daily combat challenge, and the idle farm that pays out at a tier-scaled
// rate with timestamp catch-up.
package dungeon

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/combat"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/notify"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/clock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/lock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
)

// Guardian scaling per tier above the first.
const (
	flatPerTier    = 25_000
	percentPerTier = 1
)

// Day keys use the original deployment's timezone.
var dayKeyZone = time.FixedZone("GMT+7", 7*60*60)

// Errors for dungeon commands.
var (
	ErrNoAttemptsLeft = errors.New("no challenge attempts left today")
	ErrTierTooLow     = errors.New("beat the guardian at least once before farming")
	ErrNothingToClaim = errors.New("nothing accrued to claim")
)

// Config holds challenge limits and farm pacing.
type Config struct {
	DailyChallenges int
	FarmInterval    time.Duration
	MaxCatchupTicks int
	CurrencyRate    int64
	ExpRate         int64
	Channel         string
}

// Accounts is the slice of the account service the dungeon needs.
type Accounts interface {
	Resolve(ctx context.Context, userID string) (*model.User, error)
	GrantExp(ctx context.Context, userID string, amount int64) (int, error)
}

// ChallengeResult is one guardian fight.
type ChallengeResult struct {
	Tier      int
	NewTier   int
	Win       bool
	Rounds    int
	Log       []string
	Remaining int
}

// ClaimResult is a settled farm claim.
type ClaimResult struct {
	Amount    int64
	Tier      int
	FarmedFor time.Duration
}

// Service drives guardian challenges and the idle farm.
type Service struct {
	cfg        Config
	pool       *pgxpool.Pool
	users      *repository.UserRepository
	farms      *repository.FarmRepository
	challenges *repository.ChallengeRepository
	accounts   Accounts
	locks      *lock.UserLock
	notifier   notify.Notifier
	clk        clock.Clock
	rng        *rand.Rand
	roll       func() float64
}

// New creates the dungeon service.
func New(
	cfg Config,
	pool *pgxpool.Pool,
	users *repository.UserRepository,
	farms *repository.FarmRepository,
	challenges *repository.ChallengeRepository,
	accounts Accounts,
	locks *lock.UserLock,
	notifier notify.Notifier,
	clk clock.Clock,
) *Service {
	s := &Service{
		cfg:        cfg,
		pool:       pool,
		users:      users,
		farms:      farms,
		challenges: challenges,
		accounts:   accounts,
		locks:      locks,
		notifier:   notifier,
		clk:        clk,
	}
	// Farm yield rolls uniform in [0.8, 1.2). Top-level rand: the roll
	// runs from both the tick sweep goroutine and command paths.
	s.roll = func() float64 { return 0.8 + rand.Float64()*0.4 }
	return s
}

// SetRoll overrides the farm yield roll (tests).
func (s *Service) SetRoll(roll func() float64) {
	s.roll = roll
}

// SetCombatRand overrides the combat randomness source (tests).
func (s *Service) SetCombatRand(rng *rand.Rand) {
	s.rng = rng
}

// GuardianStats builds the stat block for the guardian of a tier: each
// tier above the first adds 25000 to every flat stat and one percentage
// point to every percent stat. The guardian always strikes first.
func GuardianStats(tier int) combat.Stats {
	if tier < 1 {
		tier = 1
	}
	increments := float64(tier - 1)
	flat := increments * flatPerTier
	percent := increments * percentPerTier
	return combat.Stats{
		Name:             fmt.Sprintf("Guardian Lv %d", tier),
		Attack:           flat,
		Defense:          flat,
		Health:           flat,
		Dodge:            percent,
		Accuracy:         percent,
		CritRate:         percent,
		CritResistance:   percent,
		ArmorPenetration: percent,
		ArmorResistance:  percent,
		Priority:         1,
		Level:            tier,
	}
}

// dayKey formats the GMT+7 calendar date used to bucket daily attempts.
func (s *Service) dayKey() string {
	return s.clk.Now().In(dayKeyZone).Format("2006-01-02")
}

// Inspect returns the player's current tier and the guardian they face.
func (s *Service) Inspect(ctx context.Context, userID string) (int, combat.Stats, error) {
	user, err := s.accounts.Resolve(ctx, userID)
	if err != nil {
		return 0, combat.Stats{}, err
	}
	tier := user.DungeonLevel
	if tier < 1 {
		tier = 1
	}
	return tier, GuardianStats(tier), nil
}

// Challenge fights the player's current guardian. Win or lose, the
// attempt is spent; a win advances the player's tier by one.
func (s *Service) Challenge(ctx context.Context, userID string) (*ChallengeResult, error) {
	var result *ChallengeResult
	err := s.locks.WithLock(userID, func() error {
		user, err := s.accounts.Resolve(ctx, userID)
		if err != nil {
			return err
		}

		dayKey := s.dayKey()
		used, err := s.challenges.AttemptsToday(ctx, userID, dayKey)
		if err != nil {
			return err
		}
		if used >= s.cfg.DailyChallenges {
			return ErrNoAttemptsLeft
		}

		tier := user.DungeonLevel
		if tier < 1 {
			tier = 1
		}
		guardian := GuardianStats(tier)
		player := combat.FromUser(user)
		player.Priority = 0

		// Each fight gets its own source: challenges for different users
		// run concurrently and a *rand.Rand is not goroutine safe.
		rng := s.rng
		if rng == nil {
			rng = rand.New(rand.NewSource(rand.Int63()))
		}
		fight := combat.Simulate(guardian, player, rng)
		win := fight.Winner == 1

		newTier := tier
		if win {
			newTier = tier + 1
			if err := s.users.SetDungeonLevel(ctx, userID, newTier); err != nil {
				return err
			}
		}

		count, err := s.challenges.RecordAttempt(ctx, userID, dayKey)
		if err != nil {
			return err
		}

		log.Info().Str("user", userID).Int("tier", tier).Bool("win", win).
			Int("rounds", fight.Rounds).Msg("guardian challenge settled")

		result = &ChallengeResult{
			Tier:      tier,
			NewTier:   newTier,
			Win:       win,
			Rounds:    fight.Rounds,
			Log:       fight.Log,
			Remaining: s.cfg.DailyChallenges - count,
		}
		return nil
	})
	return result, err
}

// StartFarm opens the player's idle farm session in its own thread. One
// session per player; farming requires a tier above the first.
func (s *Service) StartFarm(ctx context.Context, userID string) (*model.FarmSession, error) {
	user, err := s.accounts.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.DungeonLevel <= 1 {
		return nil, ErrTierTooLow
	}

	threadID, err := s.notifier.CreateThread(s.cfg.Channel, fmt.Sprintf("Dungeon farm: %s", user.BaseName))
	if err != nil {
		return nil, fmt.Errorf("failed to create farm thread: %w", err)
	}

	messageID, err := s.notifier.Send(threadID, fmt.Sprintf(
		"Dungeon farm started at tier %d, waiting for the first tick", user.DungeonLevel))
	if err != nil {
		messageID = ""
	}

	session, err := s.farms.Create(ctx, userID, threadID, messageID, s.clk.Now().UnixMilli())
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Farm returns the player's session, or ErrSessionNotFound.
func (s *Service) Farm(ctx context.Context, userID string) (*model.FarmSession, error) {
	return s.farms.Get(ctx, userID)
}

// ClaimFarm atomically credits the accrued total and zeroes the session.
// The claim also resets the tick checkpoint, so unticked backlog time is
// forfeited.
func (s *Service) ClaimFarm(ctx context.Context, userID string) (*ClaimResult, error) {
	var result *ClaimResult
	err := s.locks.WithLock(userID, func() error {
		user, err := s.accounts.Resolve(ctx, userID)
		if err != nil {
			return err
		}
		if user.DungeonLevel <= 1 {
			return ErrTierTooLow
		}

		nowMs := s.clk.Now().UnixMilli()
		var pending int64
		err = repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
			session, err := s.farms.GetForUpdate(ctx, tx, userID)
			if err != nil {
				return err
			}
			pending = session.TotalEarned
			if pending <= 0 {
				return ErrNothingToClaim
			}
			if _, err := s.users.AddCurrencyTx(ctx, tx, userID, pending); err != nil {
				return err
			}
			return s.farms.ResetEarned(ctx, tx, userID, nowMs)
		})
		if err != nil {
			return err
		}

		// Estimate how long the haul took from the average per-minute rate.
		minutes := int64(math.Round(float64(pending) / float64(int64(user.DungeonLevel)*s.cfg.CurrencyRate)))
		result = &ClaimResult{
			Amount:    pending,
			Tier:      user.DungeonLevel,
			FarmedFor: time.Duration(minutes) * time.Minute,
		}
		return nil
	})
	return result, err
}

// TickAll advances every farm session: whole elapsed intervals become
// yield rolls, capped at the catch-up maximum. Sessions whose owner fell
// back to the first tier freeze with their checkpoint moved to now.
func (s *Service) TickAll(ctx context.Context) error {
	sessions, err := s.farms.ListAll(ctx)
	if err != nil {
		return fmt.Errorf("failed to list farm sessions: %w", err)
	}

	nowMs := s.clk.Now().UnixMilli()
	intervalMs := s.cfg.FarmInterval.Milliseconds()

	for _, session := range sessions {
		ticks := (nowMs - session.LastTick) / intervalMs
		if ticks <= 0 {
			continue
		}

		user, err := s.users.GetByID(ctx, session.UserID)
		if err != nil {
			log.Error().Err(err).Str("user", session.UserID).Msg("farm tick: failed to load user")
			continue
		}

		if user.DungeonLevel <= 1 {
			if err := s.farms.ApplyTicks(ctx, session.UserID, nowMs, 0); err != nil {
				log.Error().Err(err).Str("user", session.UserID).Msg("farm tick: failed to freeze session")
			}
			continue
		}

		if ticks > int64(s.cfg.MaxCatchupTicks) {
			ticks = int64(s.cfg.MaxCatchupTicks)
		}

		tier := int64(user.DungeonLevel)
		var earned, exp int64
		for i := int64(0); i < ticks; i++ {
			roll := s.roll()
			earned += int64(math.Round(float64(tier*s.cfg.CurrencyRate) * roll))
			exp += int64(math.Round(float64(tier*s.cfg.ExpRate) * roll))
		}

		newLast := session.LastTick + ticks*intervalMs
		if err := s.farms.ApplyTicks(ctx, session.UserID, newLast, earned); err != nil {
			log.Error().Err(err).Str("user", session.UserID).Msg("farm tick: failed to apply")
			continue
		}
		if _, err := s.accounts.GrantExp(ctx, session.UserID, exp); err != nil {
			log.Error().Err(err).Str("user", session.UserID).Msg("farm tick: failed to grant exp")
		}

		s.refreshBoard(session, user.DungeonLevel, earned, exp, ticks)
	}
	return nil
}

// Run drives the periodic farm sweep until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.FarmInterval)
	defer ticker.Stop()

	if err := s.TickAll(ctx); err != nil {
		log.Error().Err(err).Msg("initial farm sweep failed")
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.TickAll(ctx); err != nil {
				log.Error().Err(err).Msg("farm sweep failed")
			}
		}
	}
}

// refreshBoard edits the session's pinned message; best effort.
func (s *Service) refreshBoard(session *model.FarmSession, tier int, earned, exp, ticks int64) {
	if session.MessageID == "" {
		return
	}
	text := fmt.Sprintf(
		"Dungeon farm, tier %d\nNew: +%d currency, +%d exp (%d min)\nAccrued total: %d",
		tier, earned, exp, ticks, session.TotalEarned+earned,
	)
	if err := s.notifier.Edit(session.ThreadID, session.MessageID, text); err != nil {
		log.Warn().Err(err).Str("user", session.UserID).Msg("failed to refresh farm board")
	}
}
