// Package casino implements the house/owner overlay for the odd/even game:
// a player claims the house seat, becomes the counterparty for every bet,
// collects commission, and is evicted on expiry or bankruptcy.
package casino

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/notify"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/clock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
)

// Errors for casino operations.
var (
	ErrAlreadyOwned    = errors.New("the house seat is already taken")
	ErrBelowMinBalance = errors.New("balance below the required minimum")
	ErrNotOwner        = errors.New("caller does not hold the house seat")
	ErrCapOutOfRange   = errors.New("max bet outside the allowed range")
)

// Auto and manual max-bet policy, as fractions of the owner's balance.
const (
	autoCapFraction = 0.2
	minCapFraction  = 0.2
	maxCapFraction  = 0.5
)

// Resolver loads a caught-up ledger row.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*model.User, error)
}

// Config holds the overlay tunables.
type Config struct {
	CommissionRate float64
	OwnerDuration  time.Duration
	SweepInterval  time.Duration
	Channel        string
}

// Service manages the singleton house seat.
type Service struct {
	cfg      Config
	users    *repository.UserRepository
	casino   *repository.CasinoRepository
	accounts Resolver
	resolver notify.IdentityResolver
	notifier notify.Notifier
	clk      clock.Clock
}

// New creates a casino Service.
func New(
	cfg Config,
	users *repository.UserRepository,
	casinoRepo *repository.CasinoRepository,
	accounts Resolver,
	resolver notify.IdentityResolver,
	notifier notify.Notifier,
	clk clock.Clock,
) *Service {
	return &Service{
		cfg:      cfg,
		users:    users,
		casino:   casinoRepo,
		accounts: accounts,
		resolver: resolver,
		notifier: notifier,
		clk:      clk,
	}
}

// State returns the current house state.
func (s *Service) State(ctx context.Context) (*model.CasinoState, error) {
	return s.casino.Get(ctx)
}

// Claim seats the caller as the house if the seat is free and their
// balance qualifies. The per-bet cap starts at a fraction of the balance.
func (s *Service) Claim(ctx context.Context, userID string) (*model.CasinoState, error) {
	user, err := s.accounts.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}

	state, err := s.casino.Get(ctx)
	if err != nil {
		return nil, err
	}
	if state.OwnerID != "" {
		return nil, ErrAlreadyOwned
	}
	if user.Currency < state.MinBalance {
		return nil, ErrBelowMinBalance
	}

	autoCap := int64(float64(user.Currency) * autoCapFraction)
	now := s.clk.Now().UnixMilli()
	if err := s.casino.Claim(ctx, userID, autoCap, now); err != nil {
		if errors.Is(err, repository.ErrOwnerSeatTaken) {
			return nil, ErrAlreadyOwned
		}
		return nil, err
	}

	if err := s.resolver.SetOwnerRole(userID, true); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Failed to grant owner role")
	}
	s.announce(fmt.Sprintf("The house seat has been claimed by <@%s>.", userID))

	return s.casino.Get(ctx)
}

// Release frees the seat on the sitting owner's request.
func (s *Service) Release(ctx context.Context, userID string) error {
	state, err := s.casino.Get(ctx)
	if err != nil {
		return err
	}
	if state.OwnerID == "" || state.OwnerID != userID {
		return ErrNotOwner
	}
	return s.evict(ctx, userID, "released")
}

// SetMaxBet lets the sitting owner tune the per-bet cap within the
// allowed fraction range of their current balance.
func (s *Service) SetMaxBet(ctx context.Context, userID string, amount int64) error {
	state, err := s.casino.Get(ctx)
	if err != nil {
		return err
	}
	if state.OwnerID == "" || state.OwnerID != userID {
		return ErrNotOwner
	}

	owner, err := s.accounts.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	lo := int64(float64(owner.Currency) * minCapFraction)
	hi := int64(float64(owner.Currency) * maxCapFraction)
	if amount < lo || amount > hi {
		return fmt.Errorf("%w: allowed %d..%d", ErrCapOutOfRange, lo, hi)
	}

	if err := s.casino.SetMaxChanLe(ctx, userID, amount); err != nil {
		if errors.Is(err, repository.ErrNotOwner) {
			return ErrNotOwner
		}
		return err
	}
	return nil
}

// EnsureOwnerValid re-checks the sitting owner's solvency, evicting a
// bankrupt owner, and returns the (possibly updated) state. Called before
// each odd/even bet so the cap and counterparty reflect reality.
func (s *Service) EnsureOwnerValid(ctx context.Context) (*model.CasinoState, error) {
	state, err := s.casino.Get(ctx)
	if err != nil {
		return nil, err
	}
	if state.OwnerID == "" {
		return state, nil
	}

	owner, err := s.users.GetByID(ctx, state.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			_ = s.evict(ctx, state.OwnerID, "bankrupt")
			return s.casino.Get(ctx)
		}
		return nil, err
	}
	if owner.Currency < state.MinBalance {
		if err := s.evict(ctx, state.OwnerID, "bankrupt"); err != nil {
			return nil, err
		}
		return s.casino.Get(ctx)
	}
	return state, nil
}

// Settlement describes the house side of one odd/even bet.
type Settlement struct {
	OwnerID      string
	Commission   int64
	OwnerBalance int64
	// EvictAfter is set when the owner's balance fell below the minimum;
	// the caller evicts after the settlement transaction commits.
	EvictAfter bool
}

// SettleTx applies the house counterparty movement for one odd/even bet
// inside the bet's settlement transaction: the owner absorbs the stake
// plus commission and covers the payout from their own balance. If the
// payout would drive the owner negative the house stays out of this bet
// entirely. Returns nil when no owner sits.
func (s *Service) SettleTx(ctx context.Context, tx pgx.Tx, playerID string, bet, payout int64, win bool) (*Settlement, error) {
	state, err := s.casino.GetTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if state.OwnerID == "" || state.OwnerID == playerID {
		return nil, nil
	}

	owner, err := s.users.GetByIDTx(ctx, tx, state.OwnerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil
		}
		return nil, err
	}

	commission := int64(float64(bet) * s.cfg.CommissionRate)
	houseGain := bet + commission
	if win {
		houseGain -= payout
	}
	if owner.Currency+houseGain < 0 {
		// The house cannot cover this payout; the bet settles against the
		// global pool instead.
		return nil, nil
	}

	updated, err := s.users.AddCurrencyTx(ctx, tx, state.OwnerID, houseGain)
	if err != nil {
		return nil, err
	}

	return &Settlement{
		OwnerID:      state.OwnerID,
		Commission:   commission,
		OwnerBalance: updated.Currency,
		EvictAfter:   updated.Currency < state.MinBalance,
	}, nil
}

// EvictBankrupt evicts the named owner after a settlement left them below
// the minimum. Safe to call when the seat already changed hands.
func (s *Service) EvictBankrupt(ctx context.Context, ownerID string) {
	if err := s.evict(ctx, ownerID, "bankrupt"); err != nil && !errors.Is(err, repository.ErrNotOwner) {
		log.Error().Err(err).Str("owner_id", ownerID).Msg("Failed to evict bankrupt owner")
	}
}

// Run drives the periodic expiry sweep until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepExpiry(ctx)
		}
	}
}

func (s *Service) sweepExpiry(ctx context.Context) {
	state, err := s.casino.Get(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Casino expiry sweep failed")
		return
	}
	if state.OwnerID == "" || s.cfg.OwnerDuration <= 0 {
		return
	}

	now := s.clk.Now().UnixMilli()
	if now-state.StartedAt >= s.cfg.OwnerDuration.Milliseconds() {
		if err := s.evict(ctx, state.OwnerID, "expired"); err != nil {
			log.Error().Err(err).Str("owner_id", state.OwnerID).Msg("Failed to evict expired owner")
		}
	}
}

// evict frees the seat, retracts the role flag and announces. The state
// change is the source of truth; role and announcement are best effort.
func (s *Service) evict(ctx context.Context, ownerID, reason string) error {
	if err := s.casino.Release(ctx, ownerID); err != nil {
		return err
	}

	if err := s.resolver.SetOwnerRole(ownerID, false); err != nil {
		log.Warn().Err(err).Str("user_id", ownerID).Msg("Failed to retract owner role")
	}

	var msg string
	switch reason {
	case "expired":
		msg = fmt.Sprintf("The house seat of <@%s> has expired.", ownerID)
	case "bankrupt":
		msg = fmt.Sprintf("<@%s> went bankrupt and lost the house seat.", ownerID)
	default:
		msg = fmt.Sprintf("<@%s> released the house seat.", ownerID)
	}
	s.announce(msg)

	log.Info().Str("owner_id", ownerID).Str("reason", reason).Msg("Casino owner evicted")
	return nil
}

func (s *Service) announce(content string) {
	if s.cfg.Channel == "" {
		return
	}
	if _, err := s.notifier.Send(s.cfg.Channel, content); err != nil {
		log.Warn().Err(err).Msg("Failed to send casino announcement")
	}
}
