// Package service implements the command-facing orchestration on top of
// the repositories: account sync, shop, leaderboards, gift codes.
package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/notify"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/clock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/progression"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
)

// AccountService owns the "resolve and sync player" operation every
// subsystem entry point runs before reading the ledger, plus name and
// progression commands.
type AccountService struct {
	users    *repository.UserRepository
	accruer  *progression.Accruer
	resolver notify.IdentityResolver
	clk      clock.Clock
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(
	users *repository.UserRepository,
	accruer *progression.Accruer,
	resolver notify.IdentityResolver,
	clk clock.Clock,
) *AccountService {
	return &AccountService{users: users, accruer: accruer, resolver: resolver, clk: clk}
}

// Resolve loads the ledger row (creating it on first contact), applies
// passive exp and stamina catch-up, persists any change and returns the
// caught-up row. Every game command goes through here first so all
// features observe a consistent ledger.
func (s *AccountService) Resolve(ctx context.Context, userID string) (*model.User, error) {
	user, _, gained, err := s.resolveDetail(ctx, userID)
	if err != nil {
		return nil, err
	}
	if gained > 0 {
		s.applyNickname(user)
	}
	return user, nil
}

// Breakthrough runs a sync and reports how many levels the catch-up
// granted, for the manual progression command.
func (s *AccountService) Breakthrough(ctx context.Context, userID string) (*model.User, int, error) {
	user, _, gained, err := s.resolveDetail(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	if gained > 0 {
		s.applyNickname(user)
	}
	return user, gained, nil
}

func (s *AccountService) resolveDetail(ctx context.Context, userID string) (user *model.User, created bool, levelsGained int, err error) {
	nowMs := s.clk.Now().UnixMilli()

	baseName, nameErr := s.resolver.DisplayName(userID)
	if nameErr != nil || baseName == "" {
		baseName = "player"
	}

	user, created, err = s.users.GetOrCreate(ctx, userID, baseName, s.accruer.MaxStamina(), nowMs)
	if err != nil {
		return nil, false, 0, err
	}

	expChanged, gained := s.accruer.CatchUpExp(user, nowMs)
	if expChanged {
		if err := s.users.UpdateProgress(ctx, userID, user.Level, user.Exp, user.LastExpTimestamp); err != nil {
			return nil, false, 0, err
		}
	}
	if s.accruer.CatchUpStamina(user, nowMs) {
		if err := s.users.UpdateStamina(ctx, userID, user.Stamina, user.LastStaminaTS); err != nil {
			return nil, false, 0, err
		}
	}
	return user, created, gained, nil
}

// GrantExp credits active-source experience (farm, challenge rewards),
// persists, and decorates the nickname on level-up. Returns levels gained.
func (s *AccountService) GrantExp(ctx context.Context, userID string, amount int64) (int, error) {
	user, err := s.Resolve(ctx, userID)
	if err != nil {
		return 0, err
	}

	gained := s.accruer.AddExp(user, amount)
	if err := s.users.UpdateProgress(ctx, userID, user.Level, user.Exp, user.LastExpTimestamp); err != nil {
		return 0, err
	}
	if gained > 0 {
		s.applyNickname(user)
	}
	return gained, nil
}

// Rename validates and stores a new base name, then re-decorates the
// nickname.
func (s *AccountService) Rename(ctx context.Context, userID, newName string) error {
	if err := notify.ValidateBaseName(newName); err != nil {
		return err
	}

	user, err := s.Resolve(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.users.UpdateBaseName(ctx, userID, newName); err != nil {
		return err
	}

	user.BaseName = newName
	s.applyNickname(user)
	return nil
}

// SweepAll applies passive catch-up to every stale ledger row. Run on a
// periodic timer and at process start so inactive players never build an
// unbounded backlog.
func (s *AccountService) SweepAll(ctx context.Context) error {
	nowMs := s.clk.Now().UnixMilli()

	stale, err := s.users.ListNeedingSync(
		ctx,
		nowMs,
		s.accruer.ExpIntervalMs(),
		s.accruer.MaxStamina(),
		s.accruer.StaminaIntervalMs(),
	)
	if err != nil {
		return fmt.Errorf("failed to list stale users: %w", err)
	}

	for _, user := range stale {
		expChanged, _ := s.accruer.CatchUpExp(user, nowMs)
		if expChanged {
			if err := s.users.UpdateProgress(ctx, user.UserID, user.Level, user.Exp, user.LastExpTimestamp); err != nil {
				log.Error().Err(err).Str("user_id", user.UserID).Msg("Sweep: failed to persist progress")
				continue
			}
		}
		if s.accruer.CatchUpStamina(user, nowMs) {
			if err := s.users.UpdateStamina(ctx, user.UserID, user.Stamina, user.LastStaminaTS); err != nil {
				log.Error().Err(err).Str("user_id", user.UserID).Msg("Sweep: failed to persist stamina")
			}
		}
	}

	log.Debug().Int("users", len(stale)).Msg("Passive accrual sweep complete")
	return nil
}

// applyNickname pushes the decorated nickname; best effort.
func (s *AccountService) applyNickname(user *model.User) {
	nickname := notify.DecorateName(user.BaseName, user.Level)
	if err := s.resolver.SetNickname(user.UserID, nickname); err != nil {
		log.Warn().Err(err).Str("user_id", user.UserID).Msg("Failed to decorate nickname")
	}
}
