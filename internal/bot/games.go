package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/blackjack"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/chanle"
)

func (b *Bot) handleChanLe(ctx context.Context, ic *discordgo.InteractionCreate, opts optionMap) (string, error) {
	allIn := opts.boolean("allin")
	amount := opts.integer("cuoc")
	if !allIn && amount <= 0 {
		return "", chanle.ErrInvalidBet
	}

	out, err := b.deps.ChanLe.Play(ctx, interactionUserID(ic), opts.str("cua"), amount, allIn)
	if err != nil {
		return "", err
	}

	verdict := "lost"
	if out.Win {
		verdict = fmt.Sprintf("won %d", out.Payout)
	}
	return fmt.Sprintf("The roll is **%s**. You bet %d on %s and %s. Balance: %d\nHistory: %s",
		out.Result, out.Bet, out.Choice, verdict, out.BalanceAfter,
		strings.Join(out.History, " ")), nil
}

func (b *Bot) handleBauCua(ctx context.Context, ic *discordgo.InteractionCreate, opts optionMap) (string, error) {
	face := opts.str("linhvat")
	amount := opts.integer("cuoc")
	round, err := b.deps.BauCua.PlaceBet(ctx, interactionUserID(ic), face, amount)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Bet of %d on **%s** taken for round #%d.", amount, face, round.ID), nil
}

func (b *Bot) handleMining(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	out, err := b.deps.Miner.Dig(ctx, interactionUserID(ic))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "You swing the pick %d time(s) and unearth **%d** linh thach.\n",
		out.Swings, out.Total)
	for _, t := range out.Tiers {
		fmt.Fprintf(&sb, "- %s: %d\n", t.Tier, t.Amount)
	}
	fmt.Fprintf(&sb, "Balance: %d", out.Balance)
	return sb.String(), nil
}

func (b *Bot) handleBlackjackCreate(ctx context.Context, ic *discordgo.InteractionCreate, opts optionMap) (string, error) {
	bet := opts.integer("cuoc")
	if bet <= 0 {
		bet = b.deps.Config.Games.Blackjack.DefaultBet
	}
	tbl, err := b.deps.Blackjack.CreateTable(ctx, ic.ChannelID, interactionUserID(ic), bet)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Table open, %d per seat. `/vaoban` to join, the deal starts shortly.", tbl.Bet), nil
}

func (b *Bot) handleBlackjackJoin(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	if err := b.deps.Blackjack.Join(ctx, ic.ChannelID, interactionUserID(ic)); err != nil {
		return "", err
	}
	return "You are seated. The deal starts shortly.", nil
}

func (b *Bot) handleBlackjackLeave(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	if err := b.deps.Blackjack.Leave(ctx, ic.ChannelID, interactionUserID(ic)); err != nil {
		return "", err
	}
	return "You left the table.", nil
}

func (b *Bot) handleBlackjackHit(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	hand, err := b.deps.Blackjack.Hit(ctx, ic.ChannelID, interactionUserID(ic))
	if err != nil {
		return "", err
	}
	if hand.Busted {
		return fmt.Sprintf("%s - **bust** at %d.", handLine(hand), hand.Value()), nil
	}
	return fmt.Sprintf("%s - %d.", handLine(hand), hand.Value()), nil
}

func (b *Bot) handleBlackjackStand(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	if err := b.deps.Blackjack.Stand(ctx, ic.ChannelID, interactionUserID(ic)); err != nil {
		return "", err
	}
	return "You stand.", nil
}

func (b *Bot) handleBlackjackDouble(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	hand, err := b.deps.Blackjack.Double(ctx, ic.ChannelID, interactionUserID(ic))
	if err != nil {
		return "", err
	}
	if hand.Busted {
		return fmt.Sprintf("Doubled to %d: %s - **bust** at %d.", hand.Bet, handLine(hand), hand.Value()), nil
	}
	return fmt.Sprintf("Doubled to %d: %s - %d.", hand.Bet, handLine(hand), hand.Value()), nil
}

func (b *Bot) handleBlackjackSplit(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	if err := b.deps.Blackjack.Split(ctx, ic.ChannelID, interactionUserID(ic)); err != nil {
		return "", err
	}
	return "Pair split into two hands.", nil
}

func handLine(h *blackjack.Hand) string {
	parts := make([]string, len(h.Cards))
	for i, c := range h.Cards {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
