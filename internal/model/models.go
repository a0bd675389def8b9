// Package model defines the persisted data models for the game bot.
package model

import "time"

// User is a player's ledger row: the canonical source of truth for
// progression, economy, combat stats and per-minigame counters.
type User struct {
	UserID           string  `db:"user_id"`
	BaseName         string  `db:"base_name"`
	Level            int     `db:"level"`
	Exp              int64   `db:"exp"`
	Currency         int64   `db:"currency"`
	DungeonLevel     int     `db:"bicanh_level"`
	LastExpTimestamp int64   `db:"last_exp_timestamp"` // ms epoch
	Attack           int64   `db:"attack"`
	Defense          int64   `db:"defense"`
	Health           int64   `db:"health"`
	Dodge            float64 `db:"dodge"`
	Accuracy         float64 `db:"accuracy"`
	CritRate         float64 `db:"crit_rate"`
	CritResistance   float64 `db:"crit_resistance"`
	ArmorPenetration float64 `db:"armor_penetration"`
	ArmorResistance  float64 `db:"armor_resistance"`
	Stamina          int     `db:"stamina"`
	LastStaminaTS    int64   `db:"last_stamina_timestamp"` // ms epoch
	ChanLePlayed     int64   `db:"chanle_played"`
	ChanLeWon        int64   `db:"chanle_won"`
}

// Round statuses for the bau cua betting round state machine.
const (
	RoundWaiting  = "waiting"
	RoundRunning  = "running"
	RoundFinished = "finished"
)

// BauCuaRound is one betting round. Exactly one round may be running at a
// time; result faces are populated only once the round is finished.
type BauCuaRound struct {
	ID        int64  `db:"id"`
	Status    string `db:"status"`
	StartedAt int64  `db:"started_at"` // ms epoch, 0 while waiting
	LockAt    int64  `db:"lock_at"`
	CloseAt   int64  `db:"close_at"`
	Result    [3]string
	MessageID string `db:"message_id"`
}

// BauCuaBet accumulates one user's stake on one face within a round.
type BauCuaBet struct {
	RoundID int64  `db:"round_id"`
	UserID  string `db:"user_id"`
	Face    string `db:"face"`
	Amount  int64  `db:"amount"`
}

// FacePot is the aggregated pot for one face with its participants.
type FacePot struct {
	Face   string
	Total  int64
	Users  []string
}

// FarmSession is a user's idle dungeon-farm session. It persists until the
// player claims; claiming zeroes TotalEarned without deleting the row.
type FarmSession struct {
	UserID      string `db:"user_id"`
	ThreadID    string `db:"thread_id"`
	MessageID   string `db:"message_id"`
	LastTick    int64  `db:"last_tick"` // ms epoch
	TotalEarned int64  `db:"total_earned"`
}

// CasinoState is the singleton house/owner record for the odd/even game.
type CasinoState struct {
	OwnerID    string `db:"owner_id"` // empty when no owner
	MinBalance int64  `db:"min_balance"`
	MaxChanLe  int64  `db:"max_chanle"`
	StartedAt  int64  `db:"started_at"` // ms epoch
}

// GiftCode is a redeemable reward code.
type GiftCode struct {
	Code       string    `db:"code"`
	Currency   int64     `db:"currency"`
	MaxUses    int64     `db:"max_uses"` // 0 = unlimited
	Uses       int64     `db:"uses"`
	Active     bool      `db:"active"`
	CreatedAt  time.Time `db:"created_at"`
}

// RichRank is one leaderboard row for the currency ranking.
type RichRank struct {
	UserID   string
	BaseName string
	Currency int64
}

// LevelRank is one leaderboard row for the level/exp ranking.
type LevelRank struct {
	UserID   string
	BaseName string
	Level    int
	Exp      int64
}

// ChanLe outcome values.
const (
	ChanLeEven = "chan"
	ChanLeOdd  = "le"
)
