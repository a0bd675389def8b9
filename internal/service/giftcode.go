package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
)

// GiftCodeService issues and redeems reward codes. Each code credits a
// fixed currency amount, at most once per player, with an optional total
// use cap.
type GiftCodeService struct {
	pool     *pgxpool.Pool
	users    *repository.UserRepository
	codes    *repository.GiftCodeRepository
	accounts *AccountService
}

// NewGiftCodeService creates a new GiftCodeService instance.
func NewGiftCodeService(
	pool *pgxpool.Pool,
	users *repository.UserRepository,
	codes *repository.GiftCodeRepository,
	accounts *AccountService,
) *GiftCodeService {
	return &GiftCodeService{pool: pool, users: users, codes: codes, accounts: accounts}
}

// Issue creates a fresh code. maxUses of zero means unlimited.
func (s *GiftCodeService) Issue(ctx context.Context, currency, maxUses int64) (*model.GiftCode, error) {
	code := strings.ToUpper(uuid.NewString()[:8])
	gift, err := s.codes.Create(ctx, code, currency, maxUses)
	if err != nil {
		return nil, err
	}
	log.Info().Str("code", code).Int64("currency", currency).
		Int64("max_uses", maxUses).Msg("gift code issued")
	return gift, nil
}

// Redeem claims a code for a player: the claim record, the use counter
// and the currency credit commit together, so a double submit or an
// exhausted code can never pay twice.
func (s *GiftCodeService) Redeem(ctx context.Context, userID, code string) (*model.GiftCode, error) {
	if _, err := s.accounts.Resolve(ctx, userID); err != nil {
		return nil, err
	}

	code = strings.ToUpper(strings.TrimSpace(code))
	var gift *model.GiftCode
	err := repository.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		gift, err = s.codes.Get(ctx, tx, code)
		if err != nil {
			return err
		}
		if err := s.codes.InsertClaim(ctx, tx, code, userID); err != nil {
			return err
		}
		if err := s.codes.IncrementUses(ctx, tx, code); err != nil {
			return err
		}
		_, err = s.users.AddCurrencyTx(ctx, tx, userID, gift.Currency)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("code", code).Str("user", userID).
		Int64("currency", gift.Currency).Msg("gift code redeemed")
	return gift, nil
}

// Revoke deactivates a code so no further claims succeed.
func (s *GiftCodeService) Revoke(ctx context.Context, code string) error {
	return s.codes.Deactivate(ctx, strings.ToUpper(strings.TrimSpace(code)))
}
