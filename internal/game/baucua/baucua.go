// Package baucua implements the shell-game betting round engine: a
// singleton waiting/running/finished state machine driven by wall-clock
// timers, with escrowed multi-face bets and pot settlement on close.
package baucua

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/notify"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/clock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/lock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
)

// Faces is the shell-game face set. Three dice are rolled from it with
// replacement.
var Faces = []string{"bau", "cua", "tom", "ca", "ga", "nai"}

// Errors for shell-game bets.
var (
	ErrInvalidFace = errors.New("unknown face")
	ErrInvalidBet  = errors.New("bet amount must be positive")
	ErrRoundLocked = errors.New("betting is locked for this round")
)

// Config holds round timing and display configuration.
type Config struct {
	Countdown  time.Duration
	LockWindow time.Duration
	Channel    string
}

// Resolver loads a caught-up ledger row.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*model.User, error)
}

// Engine drives the singleton betting round.
type Engine struct {
	cfg      Config
	pool     *pgxpool.Pool
	users    *repository.UserRepository
	rounds   *repository.BauCuaRepository
	accounts Resolver
	locks    *lock.UserLock
	notifier notify.Notifier
	clk      clock.Clock
	roll     func() string

	mu            sync.Mutex
	closeTimer    *time.Timer
	refreshCancel context.CancelFunc
}

// New creates the shell-game engine.
func New(
	cfg Config,
	pool *pgxpool.Pool,
	users *repository.UserRepository,
	rounds *repository.BauCuaRepository,
	accounts Resolver,
	locks *lock.UserLock,
	notifier notify.Notifier,
	clk clock.Clock,
) *Engine {
	return &Engine{
		cfg:      cfg,
		pool:     pool,
		users:    users,
		rounds:   rounds,
		accounts: accounts,
		locks:    locks,
		notifier: notifier,
		clk:      clk,
		roll:     defaultRoll,
	}
}

func defaultRoll() string {
	return Faces[rand.Intn(len(Faces))]
}

// SetRoll overrides the face source (tests).
func (e *Engine) SetRoll(roll func() string) {
	e.roll = roll
}

// Start recovers state after a restart: ensures an open round exists and,
// if one is already running, re-arms its close timer (settling overdue
// rounds immediately).
func (e *Engine) Start(ctx context.Context) error {
	round, err := e.rounds.EnsureWaiting(ctx)
	if err != nil {
		return fmt.Errorf("failed to ensure open round: %w", err)
	}

	if round.Status == model.RoundRunning {
		remaining := time.Duration(round.CloseAt-e.clk.Now().UnixMilli()) * time.Millisecond
		if remaining < 0 {
			remaining = 0
		}
		e.armCloseTimer(round.ID, remaining)
		e.startRefresher(round.ID)
	}
	return nil
}

// Stop cancels any pending timers; the round itself stays persisted and
// is recovered by the next Start.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closeTimer != nil {
		e.closeTimer.Stop()
		e.closeTimer = nil
	}
	if e.refreshCancel != nil {
		e.refreshCancel()
		e.refreshCancel = nil
	}
}

// PlaceBet escrows a bet on a face. The first bet of a round transitions
// it from waiting to running and arms the close timer. Bets at or after
// the lock instant are rejected with no balance change.
func (e *Engine) PlaceBet(ctx context.Context, userID, face string, amount int64) (*model.BauCuaRound, error) {
	if !validFace(face) {
		return nil, ErrInvalidFace
	}
	if amount <= 0 {
		return nil, ErrInvalidBet
	}

	var round *model.BauCuaRound
	err := e.locks.WithLock(userID, func() error {
		user, err := e.accounts.Resolve(ctx, userID)
		if err != nil {
			return err
		}
		if user.Currency < amount {
			return repository.ErrInsufficientFunds
		}

		round, err = e.rounds.EnsureWaiting(ctx)
		if err != nil {
			return err
		}

		now := e.clk.Now().UnixMilli()
		if round.Status == model.RoundWaiting {
			if err := e.beginRound(ctx, round, now); err != nil {
				return err
			}
		} else if now >= round.LockAt {
			return ErrRoundLocked
		}

		return repository.InTx(ctx, e.pool, func(tx pgx.Tx) error {
			if err := e.users.DebitCurrencyTx(ctx, tx, userID, amount); err != nil {
				return err
			}
			return e.rounds.UpsertBet(ctx, tx, round.ID, userID, face, amount)
		})
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

// beginRound transitions waiting to running, tolerating a concurrent
// first bet winning the transition race.
func (e *Engine) beginRound(ctx context.Context, round *model.BauCuaRound, now int64) error {
	closeAt := now + e.cfg.Countdown.Milliseconds()
	lockAt := closeAt - e.cfg.LockWindow.Milliseconds()

	err := repository.InTx(ctx, e.pool, func(tx pgx.Tx) error {
		return e.rounds.Start(ctx, tx, round.ID, now, lockAt, closeAt)
	})
	if err != nil {
		if errors.Is(err, repository.ErrRoundNotWaiting) {
			// Another bet started the round first; re-read its window.
			fresh, ferr := e.rounds.Current(ctx)
			if ferr != nil {
				return ferr
			}
			*round = *fresh
			if e.clk.Now().UnixMilli() >= round.LockAt {
				return ErrRoundLocked
			}
			return nil
		}
		return err
	}

	round.Status = model.RoundRunning
	round.StartedAt = now
	round.LockAt = lockAt
	round.CloseAt = closeAt

	e.armCloseTimer(round.ID, e.cfg.Countdown)
	e.startRefresher(round.ID)
	e.postBoard(ctx, round)

	log.Info().Int64("round_id", round.ID).Msg("Betting round started")
	return nil
}

// armCloseTimer schedules settlement. The callback re-fetches state before
// acting: the round may have been settled by a competing process.
func (e *Engine) armCloseTimer(roundID int64, in time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closeTimer != nil {
		e.closeTimer.Stop()
	}
	e.closeTimer = time.AfterFunc(in, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.CloseRound(ctx, roundID); err != nil {
			log.Error().Err(err).Int64("round_id", roundID).Msg("Round close failed")
		}
	})
}

// CloseRound settles a running round: rolls three faces, pays every bet
// amount x hit-count in one transaction, and opens the next waiting
// round. Safe to call twice; the conditional finish loses quietly.
func (e *Engine) CloseRound(ctx context.Context, roundID int64) error {
	e.stopRefresher()

	result := [3]string{e.roll(), e.roll(), e.roll()}
	hits := map[string]int64{}
	for _, face := range result {
		hits[face]++
	}

	var bets []*model.BauCuaBet
	err := repository.InTx(ctx, e.pool, func(tx pgx.Tx) error {
		if err := e.rounds.Finish(ctx, tx, roundID, result); err != nil {
			return err
		}

		var err error
		bets, err = e.rounds.BetsForRoundTx(ctx, tx, roundID)
		if err != nil {
			return err
		}

		for _, bet := range bets {
			payout := bet.Amount * hits[bet.Face]
			if payout <= 0 {
				continue
			}
			if _, err := e.users.AddCurrencyTx(ctx, tx, bet.UserID, payout); err != nil {
				return err
			}
		}

		_, err = e.rounds.CreateWaitingTx(ctx, tx)
		return err
	})
	if err != nil {
		if errors.Is(err, repository.ErrRoundNotRunning) {
			// Already settled elsewhere.
			return nil
		}
		return err
	}

	log.Info().
		Int64("round_id", roundID).
		Strs("result", result[:]).
		Int("bets", len(bets)).
		Msg("Betting round settled")

	e.announceResult(ctx, roundID, result, bets, hits)
	return nil
}

// startRefresher refreshes the live board at one-second cadence while the
// round runs. Display failures are logged and never affect settlement.
func (e *Engine) startRefresher(roundID int64) {
	if e.cfg.Channel == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	if e.refreshCancel != nil {
		e.refreshCancel()
	}
	e.refreshCancel = cancel
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				e.refreshBoard(ctx, roundID)
			}
		}
	}()
}

func (e *Engine) stopRefresher() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refreshCancel != nil {
		e.refreshCancel()
		e.refreshCancel = nil
	}
}

func (e *Engine) postBoard(ctx context.Context, round *model.BauCuaRound) {
	if e.cfg.Channel == "" {
		return
	}
	messageID, err := e.notifier.Send(e.cfg.Channel, e.renderBoard(ctx, round))
	if err != nil {
		log.Warn().Err(err).Msg("Failed to post round board")
		return
	}
	if err := e.rounds.SetMessageID(ctx, round.ID, messageID); err != nil {
		log.Warn().Err(err).Msg("Failed to store round board handle")
	}
}

func (e *Engine) refreshBoard(ctx context.Context, roundID int64) {
	round, err := e.rounds.Current(ctx)
	if err != nil || round.ID != roundID || round.Status != model.RoundRunning {
		return
	}
	if round.MessageID == "" {
		return
	}
	if err := e.notifier.Edit(e.cfg.Channel, round.MessageID, e.renderBoard(ctx, round)); err != nil {
		log.Warn().Err(err).Msg("Failed to refresh round board")
	}
}

// renderBoard formats time remaining, lock state and per-face pots with
// participants.
func (e *Engine) renderBoard(ctx context.Context, round *model.BauCuaRound) string {
	now := e.clk.Now().UnixMilli()
	remaining := time.Duration(round.CloseAt-now) * time.Millisecond
	if remaining < 0 {
		remaining = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Round #%d — closes in %ds", round.ID, int(remaining.Seconds()))
	if now >= round.LockAt {
		b.WriteString(" (LOCKED)")
	}
	b.WriteString("\n")

	for _, pot := range e.pots(ctx, round.ID) {
		fmt.Fprintf(&b, "%s: %d (%s)\n", pot.Face, pot.Total, strings.Join(pot.Users, ", "))
	}
	return b.String()
}

// pots aggregates the round's bets per face.
func (e *Engine) pots(ctx context.Context, roundID int64) []*model.FacePot {
	bets, err := e.rounds.BetsForRound(ctx, roundID)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load round bets")
		return nil
	}

	byFace := map[string]*model.FacePot{}
	for _, bet := range bets {
		pot, ok := byFace[bet.Face]
		if !ok {
			pot = &model.FacePot{Face: bet.Face}
			byFace[bet.Face] = pot
		}
		pot.Total += bet.Amount
		pot.Users = append(pot.Users, bet.UserID)
	}

	pots := make([]*model.FacePot, 0, len(byFace))
	for _, pot := range byFace {
		pots = append(pots, pot)
	}
	sort.Slice(pots, func(i, j int) bool { return pots[i].Face < pots[j].Face })
	return pots
}

func (e *Engine) announceResult(ctx context.Context, roundID int64, result [3]string, bets []*model.BauCuaBet, hits map[string]int64) {
	if e.cfg.Channel == "" {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Round #%d result: %s %s %s\n", roundID, result[0], result[1], result[2])
	for _, bet := range bets {
		payout := bet.Amount * hits[bet.Face]
		if payout > 0 {
			fmt.Fprintf(&b, "<@%s> wins %d on %s\n", bet.UserID, payout, bet.Face)
		}
	}

	if _, err := e.notifier.Send(e.cfg.Channel, b.String()); err != nil {
		log.Warn().Err(err).Msg("Failed to announce round result")
	}
}

func validFace(face string) bool {
	for _, f := range Faces {
		if f == face {
			return true
		}
	}
	return false
}
