// Package chanle implements the odd/even betting game, including the
// house-overlay settlement and the rolling outcome history.
package chanle

import (
	"context"
	"errors"
	"fmt"
	"math/rand"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/casino"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/lock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
)

// Errors for odd/even bets.
var (
	ErrInvalidChoice = errors.New("choice must be chan or le")
	ErrInvalidBet    = errors.New("bet amount must be positive")
	ErrNotEnough     = errors.New("not enough currency for this bet")
	ErrBetOverCap    = errors.New("bet exceeds the house per-bet cap")
)

// Config holds odd/even tunables.
type Config struct {
	PayoutRate  float64
	HistorySize int
}

// Outcome describes one settled bet for the presentation layer.
type Outcome struct {
	Result       string
	Choice       string
	Win          bool
	Bet          int64
	Payout       int64
	BalanceAfter int64
	Played       int64
	Won          int64
	History      []string
	OwnerID      string
	OwnerBalance int64
}

// Resolver loads a caught-up ledger row.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*model.User, error)
}

// Game runs odd/even bets. Roll is injected so tests can force outcomes;
// the default is a fair coin.
type Game struct {
	cfg      Config
	pool     *pgxpool.Pool
	users    *repository.UserRepository
	history  *repository.ChanLeRepository
	accounts Resolver
	house    *casino.Service
	locks    *lock.UserLock
	roll     func() string
}

// New creates the odd/even game.
func New(
	cfg Config,
	pool *pgxpool.Pool,
	users *repository.UserRepository,
	history *repository.ChanLeRepository,
	accounts Resolver,
	house *casino.Service,
	locks *lock.UserLock,
) *Game {
	return &Game{
		cfg:      cfg,
		pool:     pool,
		users:    users,
		history:  history,
		accounts: accounts,
		house:    house,
		locks:    locks,
		roll:     defaultRoll,
	}
}

func defaultRoll() string {
	if rand.Intn(2) == 0 {
		return model.ChanLeEven
	}
	return model.ChanLeOdd
}

// SetRoll overrides the outcome source (tests).
func (g *Game) SetRoll(roll func() string) {
	g.roll = roll
}

// Play settles one odd/even bet: validate, roll, then debit the stake,
// bump the counters, credit any payout and apply the house movement in a
// single transaction. allIn stakes the player's whole balance.
func (g *Game) Play(ctx context.Context, userID, choice string, amount int64, allIn bool) (*Outcome, error) {
	if choice != model.ChanLeEven && choice != model.ChanLeOdd {
		return nil, ErrInvalidChoice
	}

	var out *Outcome
	err := g.locks.WithLock(userID, func() error {
		user, err := g.accounts.Resolve(ctx, userID)
		if err != nil {
			return err
		}

		bet := amount
		if allIn {
			bet = user.Currency
		}
		if bet <= 0 {
			return ErrInvalidBet
		}
		if bet > user.Currency {
			return ErrNotEnough
		}

		state, err := g.house.EnsureOwnerValid(ctx)
		if err != nil {
			return err
		}
		if state.OwnerID != "" && state.OwnerID != userID && state.MaxChanLe > 0 && bet > state.MaxChanLe {
			return fmt.Errorf("%w: max %d", ErrBetOverCap, state.MaxChanLe)
		}

		result := g.roll()
		win := result == choice
		var payout int64
		if win {
			payout = int64(float64(bet) * g.cfg.PayoutRate)
		}

		var settlement *casino.Settlement
		err = repository.InTx(ctx, g.pool, func(tx pgx.Tx) error {
			if err := g.users.DebitCurrencyTx(ctx, tx, userID, bet); err != nil {
				return err
			}
			if err := g.users.IncrementChanLe(ctx, tx, userID, win); err != nil {
				return err
			}
			if payout > 0 {
				if _, err := g.users.AddCurrencyTx(ctx, tx, userID, payout); err != nil {
					return err
				}
			}
			settlement, err = g.house.SettleTx(ctx, tx, userID, bet, payout, win)
			if err != nil {
				return err
			}
			return g.history.RecordOutcome(ctx, tx, result)
		})
		if err != nil {
			return err
		}

		// Eviction is detected post-transaction, never mid-settlement.
		if settlement != nil && settlement.EvictAfter {
			g.house.EvictBankrupt(ctx, settlement.OwnerID)
		}

		history, err := g.history.Recent(ctx, g.cfg.HistorySize)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load odd/even history")
		}

		out = &Outcome{
			Result:       result,
			Choice:       choice,
			Win:          win,
			Bet:          bet,
			Payout:       payout,
			BalanceAfter: user.Currency - bet + payout,
			Played:       user.ChanLePlayed + 1,
			Won:          user.ChanLeWon + boolToInt64(win),
			History:      history,
		}
		if settlement != nil {
			out.OwnerID = settlement.OwnerID
			out.OwnerBalance = settlement.OwnerBalance
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func boolToInt64(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
