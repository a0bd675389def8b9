package blackjack

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/model"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/notify"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/clock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
)

// Table lifecycle states.
const (
	stateWaiting   = "waiting"
	stateCountdown = "countdown"
	statePlaying   = "playing"
)

const dealerStandMin = 17

// maxSeats bounds a table so a single 52-card shoe comfortably covers a
// round; the engine still reshuffles if splitting drains it.
const maxSeats = 5

// Errors for table actions.
var (
	ErrTableExists   = errors.New("a table is already open here")
	ErrNoTable       = errors.New("no table open here")
	ErrNotJoinable   = errors.New("the table is not accepting players")
	ErrTableFull     = errors.New("all seats are taken")
	ErrAlreadySeated = errors.New("already seated at this table")
	ErrNotSeated     = errors.New("not seated at this table")
	ErrNotPlaying    = errors.New("no round in progress")
	ErrNotYourTurn   = errors.New("not your turn")
	ErrCannotDouble  = errors.New("double is only allowed as the first decision")
	ErrCannotSplit   = errors.New("the hand cannot be split")
	ErrMaxHands      = errors.New("hand limit reached")
	ErrInvalidBet    = errors.New("bet amount must be positive")
)

// Config holds table timing and hand-count limits.
type Config struct {
	StartDelay   time.Duration
	TurnChoice   time.Duration
	TurnTimeout  time.Duration
	IdleTeardown time.Duration
	MaxHands     int
}

// Resolver loads a caught-up ledger row.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (*model.User, error)
}

// Player is one seat at a table, in join order. Hands grow past one only
// by splitting and keep creation order.
type Player struct {
	UserID string
	Name   string
	Hands  []*Hand
	Seated bool
}

// Table is one card table, keyed by channel. State is in-memory only; a
// restart forfeits rounds in flight.
type Table struct {
	ID      string
	Bet     int64
	State   string
	Players []*Player
	Dealer  Hand
	Deck    *Deck

	cur     int
	curHand int
	turnGen int

	countdownTimer *time.Timer
	softTimer      *time.Timer
	hardTimer      *time.Timer
	idleTimer      *time.Timer
}

// Engine manages all open tables.
type Engine struct {
	cfg      Config
	pool     *pgxpool.Pool
	users    *repository.UserRepository
	accounts Resolver
	notifier notify.Notifier
	clk      clock.Clock

	mu      sync.Mutex
	tables  map[string]*Table
	rng     *rand.Rand
	newShoe func() *Deck

	// Announcements queue through outbox so network I/O never runs
	// under the engine mutex; one goroutine drains it in order.
	outbox   chan announcement
	quit     chan struct{}
	stopOnce sync.Once
}

type announcement struct {
	channelID string
	text      string
}

// New creates the table engine.
func New(
	cfg Config,
	pool *pgxpool.Pool,
	users *repository.UserRepository,
	accounts Resolver,
	notifier notify.Notifier,
	clk clock.Clock,
) *Engine {
	e := &Engine{
		cfg:      cfg,
		pool:     pool,
		users:    users,
		accounts: accounts,
		notifier: notifier,
		clk:      clk,
		tables:   make(map[string]*Table),
		rng:      rand.New(rand.NewSource(clk.Now().UnixNano())),
		outbox:   make(chan announcement, 64),
		quit:     make(chan struct{}),
	}
	e.newShoe = func() *Deck { return NewDeck(e.rng) }
	go e.deliver()
	return e
}

// SetShoe overrides the shoe for the next rounds (tests): cards are dealt
// in the given order.
func (e *Engine) SetShoe(cards ...Card) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.newShoe = func() *Deck {
		stacked := make([]Card, len(cards))
		copy(stacked, cards)
		return &Deck{cards: stacked}
	}
}

// Stop cancels every table's timers and the announcement drain.
// In-memory rounds are abandoned.
func (e *Engine) Stop() {
	e.mu.Lock()
	for _, tbl := range e.tables {
		tbl.stopAllTimers()
	}
	e.tables = make(map[string]*Table)
	e.mu.Unlock()
	e.stopOnce.Do(func() { close(e.quit) })
}

// CreateTable opens a lobby with a fixed per-hand stake and seats the
// creator. The stake is only checked here; it is debited when the round
// deals.
func (e *Engine) CreateTable(ctx context.Context, tableID, userID string, bet int64) (*Table, error) {
	if bet <= 0 {
		return nil, ErrInvalidBet
	}

	user, err := e.accounts.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Currency < bet {
		return nil, repository.ErrInsufficientFunds
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.tables[tableID]; ok {
		return nil, ErrTableExists
	}

	tbl := &Table{
		ID:    tableID,
		Bet:   bet,
		State: stateCountdown,
		Players: []*Player{
			{UserID: userID, Name: user.BaseName, Seated: true},
		},
	}
	e.tables[tableID] = tbl
	e.armCountdown(tbl)
	e.touch(tbl)

	log.Info().Str("table", tableID).Str("user", userID).
		Int64("bet", bet).Msg("blackjack table opened")
	return tbl, nil
}

// Join seats a player during the lobby phase and restarts the countdown
// so late joiners get the full window.
func (e *Engine) Join(ctx context.Context, tableID, userID string) error {
	user, err := e.accounts.Resolve(ctx, userID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, ok := e.tables[tableID]
	if !ok {
		return ErrNoTable
	}
	if tbl.State == statePlaying {
		return ErrNotJoinable
	}
	if tbl.player(userID) != nil {
		return ErrAlreadySeated
	}
	if len(tbl.Players) >= maxSeats {
		return ErrTableFull
	}
	if user.Currency < tbl.Bet {
		return repository.ErrInsufficientFunds
	}

	tbl.Players = append(tbl.Players, &Player{
		UserID: userID, Name: user.BaseName, Seated: true,
	})
	tbl.State = stateCountdown
	e.armCountdown(tbl)
	e.touch(tbl)
	return nil
}

// Leave removes a lobby player. Mid-round the seat stays until the round
// settles.
func (e *Engine) Leave(ctx context.Context, tableID, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, ok := e.tables[tableID]
	if !ok {
		return ErrNoTable
	}
	if tbl.State == statePlaying {
		return ErrNotJoinable
	}

	for i, p := range tbl.Players {
		if p.UserID == userID {
			tbl.Players = append(tbl.Players[:i], tbl.Players[i+1:]...)
			if len(tbl.Players) == 0 {
				e.teardownLocked(tbl, "empty lobby")
			}
			return nil
		}
	}
	return ErrNotSeated
}

// StartRound deals a new round: every seated player's stake is debited
// up front; players who can no longer cover it sit the round out. With no
// funded players the lobby reopens.
func (e *Engine) StartRound(ctx context.Context, tableID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, ok := e.tables[tableID]
	if !ok {
		return ErrNoTable
	}
	if tbl.State == statePlaying {
		return ErrNotJoinable
	}
	tbl.stopCountdown()

	funded := 0
	for _, p := range tbl.Players {
		p.Hands = nil
		p.Seated = false
		err := e.users.DebitCurrency(ctx, p.UserID, tbl.Bet)
		if err != nil {
			if errors.Is(err, repository.ErrInsufficientFunds) || errors.Is(err, repository.ErrUserNotFound) {
				e.announce(tbl.ID, fmt.Sprintf("%s cannot cover the %d stake and sits out", p.Name, tbl.Bet))
				continue
			}
			return fmt.Errorf("failed to collect stake: %w", err)
		}
		p.Seated = true
		p.Hands = []*Hand{{Bet: tbl.Bet}}
		funded++
	}

	if funded == 0 {
		tbl.State = stateWaiting
		e.announce(tbl.ID, "no player could cover the stake, the table is waiting")
		return nil
	}

	tbl.Deck = e.newShoe()
	tbl.Dealer = Hand{}
	for _, p := range tbl.Players {
		if !p.Seated {
			continue
		}
		p.Hands[0].Cards = []Card{e.draw(tbl), e.draw(tbl)}
	}
	tbl.Dealer.Cards = []Card{e.draw(tbl), e.draw(tbl)}

	tbl.State = statePlaying
	tbl.cur = -1
	tbl.curHand = 0
	e.advanceTurnLocked(context.WithoutCancel(ctx), tbl)
	e.touch(tbl)
	return nil
}

// Hit deals one card to the acting hand; 21 stands automatically and a
// bust forfeits the stake.
func (e *Engine) Hit(ctx context.Context, tableID, userID string) (*Hand, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, hand, err := e.actingHand(tableID, userID)
	if err != nil {
		return nil, err
	}

	hand.Cards = append(hand.Cards, e.draw(tbl))
	if v := hand.Value(); v >= 21 {
		hand.Busted = v > 21
		hand.Finished = true
		e.advanceTurnLocked(context.WithoutCancel(ctx), tbl)
	} else {
		e.armTurnTimers(tbl)
	}
	e.touch(tbl)
	return snapshotHand(hand), nil
}

// Stand finishes the acting hand.
func (e *Engine) Stand(ctx context.Context, tableID, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, hand, err := e.actingHand(tableID, userID)
	if err != nil {
		return err
	}

	hand.Finished = true
	e.advanceTurnLocked(context.WithoutCancel(ctx), tbl)
	e.touch(tbl)
	return nil
}

// Double doubles the stake on the acting hand's first decision: one more
// card is dealt and the hand is finished.
func (e *Engine) Double(ctx context.Context, tableID, userID string) (*Hand, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, hand, err := e.actingHand(tableID, userID)
	if err != nil {
		return nil, err
	}
	if !hand.CanDouble() {
		return nil, ErrCannotDouble
	}

	if err := e.users.DebitCurrency(ctx, userID, tbl.Bet); err != nil {
		return nil, err
	}
	hand.Bet += tbl.Bet
	hand.Doubled = true
	hand.Cards = append(hand.Cards, e.draw(tbl))
	hand.Busted = hand.Value() > 21
	hand.Finished = true
	e.advanceTurnLocked(context.WithoutCancel(ctx), tbl)
	e.touch(tbl)
	return snapshotHand(hand), nil
}

// Split divides a matching-value pair into two hands, each dealt a second
// card, the new hand staked at the table amount. Play continues on the
// first of the pair.
func (e *Engine) Split(ctx context.Context, tableID, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, hand, err := e.actingHand(tableID, userID)
	if err != nil {
		return err
	}
	if !hand.CanSplit() {
		return ErrCannotSplit
	}
	player := tbl.Players[tbl.cur]
	if len(player.Hands) >= e.cfg.MaxHands {
		return ErrMaxHands
	}

	if err := e.users.DebitCurrency(ctx, userID, tbl.Bet); err != nil {
		return err
	}

	moved := hand.Cards[1]
	hand.Cards = hand.Cards[:1]
	split := &Hand{Bet: tbl.Bet, Cards: []Card{moved}}

	// Insert the split hand right after the current one so play order
	// follows hand creation order.
	i := tbl.curHand
	player.Hands = append(player.Hands, nil)
	copy(player.Hands[i+2:], player.Hands[i+1:])
	player.Hands[i+1] = split

	hand.Cards = append(hand.Cards, e.draw(tbl))
	split.Cards = append(split.Cards, e.draw(tbl))

	e.armTurnTimers(tbl)
	e.touch(tbl)
	return nil
}

// Snapshot returns a copy of the table for rendering and tests.
func (e *Engine) Snapshot(tableID string) (*Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, ok := e.tables[tableID]
	if !ok {
		return nil, ErrNoTable
	}

	out := &Table{
		ID:      tbl.ID,
		Bet:     tbl.Bet,
		State:   tbl.State,
		Dealer:  *snapshotHand(&tbl.Dealer),
		cur:     tbl.cur,
		curHand: tbl.curHand,
	}
	for _, p := range tbl.Players {
		cp := &Player{UserID: p.UserID, Name: p.Name, Seated: p.Seated}
		for _, h := range p.Hands {
			cp.Hands = append(cp.Hands, snapshotHand(h))
		}
		out.Players = append(out.Players, cp)
	}
	return out, nil
}

// Turn reports whose hand is acting.
func (t *Table) Turn() (userID string, handIndex int) {
	if t.State != statePlaying || t.cur < 0 || t.cur >= len(t.Players) {
		return "", 0
	}
	return t.Players[t.cur].UserID, t.curHand
}

func (t *Table) player(userID string) *Player {
	for _, p := range t.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (t *Table) stopCountdown() {
	if t.countdownTimer != nil {
		t.countdownTimer.Stop()
		t.countdownTimer = nil
	}
}

func (t *Table) stopTurnTimers() {
	if t.softTimer != nil {
		t.softTimer.Stop()
		t.softTimer = nil
	}
	if t.hardTimer != nil {
		t.hardTimer.Stop()
		t.hardTimer = nil
	}
}

func (t *Table) stopAllTimers() {
	t.stopCountdown()
	t.stopTurnTimers()
	if t.idleTimer != nil {
		t.idleTimer.Stop()
		t.idleTimer = nil
	}
}

// draw takes the top card, swapping in a fresh shoe when the current one
// runs dry mid-round. Caller holds the engine mutex.
func (e *Engine) draw(tbl *Table) Card {
	card, ok := tbl.Deck.Draw()
	if !ok {
		tbl.Deck = e.newShoe()
		if tbl.Deck.Remaining() == 0 {
			tbl.Deck = NewDeck(e.rng)
		}
		card, _ = tbl.Deck.Draw()
		log.Debug().Str("table", tbl.ID).Msg("blackjack shoe reshuffled mid-round")
	}
	return card
}

// actingHand validates that userID holds the acting hand. Caller holds
// the engine mutex.
func (e *Engine) actingHand(tableID, userID string) (*Table, *Hand, error) {
	tbl, ok := e.tables[tableID]
	if !ok {
		return nil, nil, ErrNoTable
	}
	if tbl.State != statePlaying {
		return nil, nil, ErrNotPlaying
	}
	player := tbl.Players[tbl.cur]
	if player.UserID != userID {
		return nil, nil, ErrNotYourTurn
	}
	return tbl, player.Hands[tbl.curHand], nil
}

// advanceTurnLocked moves to the next unfinished hand in join then
// creation order, or ends the round when none remain. Caller holds the
// engine mutex.
func (e *Engine) advanceTurnLocked(ctx context.Context, tbl *Table) {
	tbl.stopTurnTimers()
	tbl.turnGen++

	// Resume within the current player's hands first.
	if tbl.cur >= 0 && tbl.cur < len(tbl.Players) {
		player := tbl.Players[tbl.cur]
		for i := tbl.curHand; i < len(player.Hands); i++ {
			if !player.Hands[i].Finished {
				tbl.curHand = i
				e.armTurnTimers(tbl)
				return
			}
		}
	}

	for i := tbl.cur + 1; i < len(tbl.Players); i++ {
		player := tbl.Players[i]
		if !player.Seated {
			continue
		}
		for j, h := range player.Hands {
			if !h.Finished {
				tbl.cur = i
				tbl.curHand = j
				e.armTurnTimers(tbl)
				e.announce(tbl.ID, fmt.Sprintf("%s, your move", player.Name))
				return
			}
		}
	}

	e.finishRoundLocked(ctx, tbl)
}

// armTurnTimers (re)arms the choice warning and the forced stand for the
// acting hand. Caller holds the engine mutex.
func (e *Engine) armTurnTimers(tbl *Table) {
	tbl.stopTurnTimers()
	tbl.turnGen++
	gen := tbl.turnGen
	tableID := tbl.ID

	if e.cfg.TurnChoice > 0 {
		tbl.softTimer = time.AfterFunc(e.cfg.TurnChoice, func() {
			e.warnTurn(tableID, gen)
		})
	}
	if e.cfg.TurnTimeout > 0 {
		tbl.hardTimer = time.AfterFunc(e.cfg.TurnTimeout, func() {
			e.forceStand(tableID, gen)
		})
	}
}

func (e *Engine) warnTurn(tableID string, gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, ok := e.tables[tableID]
	if !ok || tbl.State != statePlaying || tbl.turnGen != gen {
		return
	}
	player := tbl.Players[tbl.cur]
	e.announce(tbl.ID, fmt.Sprintf("%s, standing automatically soon", player.Name))
}

func (e *Engine) forceStand(tableID string, gen int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	tbl, ok := e.tables[tableID]
	if !ok || tbl.State != statePlaying || tbl.turnGen != gen {
		return
	}
	player := tbl.Players[tbl.cur]
	player.Hands[tbl.curHand].Finished = true
	e.announce(tbl.ID, fmt.Sprintf("%s ran out of time and stands", player.Name))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	e.advanceTurnLocked(ctx, tbl)
}

// armCountdown (re)arms the lobby countdown. Caller holds the engine
// mutex.
func (e *Engine) armCountdown(tbl *Table) {
	tbl.stopCountdown()
	tableID := tbl.ID
	tbl.countdownTimer = time.AfterFunc(e.cfg.StartDelay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := e.StartRound(ctx, tableID); err != nil && !errors.Is(err, ErrNoTable) {
			log.Error().Err(err).Str("table", tableID).Msg("failed to start blackjack round")
		}
	})
}

// finishRoundLocked plays the dealer and settles every hand in one
// transaction, then reopens the lobby. Caller holds the engine mutex.
func (e *Engine) finishRoundLocked(ctx context.Context, tbl *Table) {
	tbl.stopTurnTimers()

	// The dealer only draws when at least one hand is still live; with
	// every hand busted the stakes are already forfeit.
	live := false
	for _, p := range tbl.Players {
		if !p.Seated {
			continue
		}
		for _, h := range p.Hands {
			if !h.Busted && h.Value() <= 21 {
				live = true
			}
		}
	}
	if live {
		for tbl.Dealer.Value() < dealerStandMin {
			tbl.Dealer.Cards = append(tbl.Dealer.Cards, e.draw(tbl))
		}
	}
	dealerTotal := tbl.Dealer.Value()

	var lines []string
	err := repository.InTx(ctx, e.pool, func(tx pgx.Tx) error {
		for _, p := range tbl.Players {
			if !p.Seated {
				continue
			}
			for _, h := range p.Hands {
				kind := classify(h.Value(), h.Busted, dealerTotal)
				payout := h.Bet * payoutMultiple(kind)
				if payout > 0 {
					if _, err := e.users.AddCurrencyTx(ctx, tx, p.UserID, payout); err != nil {
						return err
					}
				}
				lines = append(lines, fmt.Sprintf("%s: %s (%d) -> +%d",
					p.Name, renderCards(h.Cards), h.Value(), payout))
			}
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Str("table", tbl.ID).Msg("failed to settle blackjack round")
	}

	e.announce(tbl.ID, fmt.Sprintf("dealer: %s (%d)\n%s",
		renderCards(tbl.Dealer.Cards), dealerTotal, strings.Join(lines, "\n")))

	// Reopen the lobby with the same seats and stake.
	tbl.State = stateCountdown
	tbl.cur = -1
	tbl.curHand = 0
	for _, p := range tbl.Players {
		p.Hands = nil
	}
	e.armCountdown(tbl)
	e.armIdleTeardown(tbl)
}

// armIdleTeardown closes the table after prolonged inactivity.
func (e *Engine) armIdleTeardown(tbl *Table) {
	if e.cfg.IdleTeardown <= 0 {
		return
	}
	if tbl.idleTimer != nil {
		tbl.idleTimer.Stop()
	}
	tableID := tbl.ID
	tbl.idleTimer = time.AfterFunc(e.cfg.IdleTeardown, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if cur, ok := e.tables[tableID]; ok && cur.State != statePlaying {
			e.teardownLocked(cur, "idle")
		}
	})
}

// touch refreshes the idle deadline on player activity. Caller holds the
// engine mutex.
func (e *Engine) touch(tbl *Table) {
	e.armIdleTeardown(tbl)
}

func (e *Engine) teardownLocked(tbl *Table, reason string) {
	tbl.stopAllTimers()
	delete(e.tables, tbl.ID)
	log.Info().Str("table", tbl.ID).Str("reason", reason).Msg("blackjack table closed")
}

// announce queues a post for the table's own channel or thread. Callers
// hold the engine mutex, so the send itself happens on the drain
// goroutine; a full outbox drops the message rather than stall play.
func (e *Engine) announce(channelID, text string) {
	select {
	case e.outbox <- announcement{channelID: channelID, text: text}:
	default:
		log.Warn().Str("channel", channelID).Msg("blackjack outbox full, dropping announcement")
	}
}

func (e *Engine) deliver() {
	for {
		select {
		case <-e.quit:
			return
		case a := <-e.outbox:
			if _, err := e.notifier.Send(a.channelID, a.text); err != nil {
				log.Warn().Err(err).Str("channel", a.channelID).Msg("failed to send blackjack announcement")
			}
		}
	}
}

func renderCards(cards []Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func snapshotHand(h *Hand) *Hand {
	cp := &Hand{
		Bet:      h.Bet,
		Doubled:  h.Doubled,
		Busted:   h.Busted,
		Finished: h.Finished,
	}
	cp.Cards = append(cp.Cards, h.Cards...)
	return cp
}
