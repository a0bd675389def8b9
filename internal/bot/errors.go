package bot

import (
	"errors"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/casino"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/dungeon"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/baucua"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/blackjack"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/chanle"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/mining"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/service"
)

var errNotAdmin = errors.New("admin role required")

// friendly maps known sentinels to player-facing replies.
var friendly = []struct {
	err  error
	text string
}{
	{errNotAdmin, "You need the admin role for that."},

	{repository.ErrInsufficientFunds, "You do not have enough linh thach."},
	{repository.ErrAlreadyClaimed, "You already redeemed this code."},
	{repository.ErrCodeNotFound, "That code does not exist or is spent."},
	{repository.ErrSessionExists, "You already have a farm running."},
	{repository.ErrSessionNotFound, "You have no farm running."},

	{chanle.ErrInvalidChoice, "Pick chan or le."},
	{chanle.ErrInvalidBet, "The stake must be positive."},
	{chanle.ErrNotEnough, "You do not have enough linh thach."},
	{chanle.ErrBetOverCap, "That stake is over the house cap."},

	{baucua.ErrInvalidFace, "Pick one of: bau, cua, tom, ca, ga, nai."},
	{baucua.ErrRoundLocked, "Betting for this round is closed."},

	{blackjack.ErrTableExists, "This channel already has a table."},
	{blackjack.ErrNoTable, "No table is open in this channel."},
	{blackjack.ErrNotJoinable, "The table is mid-round, wait for the next deal."},
	{blackjack.ErrTableFull, "All seats at this table are taken."},
	{blackjack.ErrAlreadySeated, "You are already seated."},
	{blackjack.ErrNotSeated, "You are not seated at this table."},
	{blackjack.ErrNotPlaying, "No round is in progress."},
	{blackjack.ErrNotYourTurn, "It is not your turn."},
	{blackjack.ErrCannotDouble, "You can only double as your first move."},
	{blackjack.ErrCannotSplit, "Only a fresh pair can be split."},
	{blackjack.ErrMaxHands, "You cannot split any further."},
	{blackjack.ErrInvalidBet, "The stake must be positive."},

	{mining.ErrNoStamina, "You are out of stamina."},

	{dungeon.ErrNoAttemptsLeft, "No challenges left today, come back tomorrow."},
	{dungeon.ErrTierTooLow, "Clear the first tier before farming."},
	{dungeon.ErrNothingToClaim, "Nothing to claim yet."},

	{casino.ErrAlreadyOwned, "The house seat is already taken."},
	{casino.ErrBelowMinBalance, "Your balance is too low to hold the house."},
	{casino.ErrNotOwner, "You do not hold the house seat."},
	{casino.ErrCapOutOfRange, "That cap is outside the allowed range."},

	{service.ErrUnknownStat, "That stat is not for sale."},
	{service.ErrInvalidQty, "The quantity must be positive."},
	{service.ErrNotEnough, "You do not have enough linh thach."},
}

func userMessage(err error) string {
	for _, f := range friendly {
		if errors.Is(err, f.err) {
			return f.text
		}
	}
	return "Something went wrong, try again later."
}
