package bot

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleCasinoClaim(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	state, err := b.deps.Casino.Claim(ctx, interactionUserID(ic))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("<@%s> now holds the house. Per-bet cap: %d.", state.OwnerID, state.MaxChanLe), nil
}

func (b *Bot) handleCasinoRelease(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	if err := b.deps.Casino.Release(ctx, interactionUserID(ic)); err != nil {
		return "", err
	}
	return "You stepped down from the house seat.", nil
}

func (b *Bot) handleCasinoSetCap(ctx context.Context, ic *discordgo.InteractionCreate, opts optionMap) (string, error) {
	amount := opts.integer("cuoc")
	if err := b.deps.Casino.SetMaxBet(ctx, interactionUserID(ic), amount); err != nil {
		return "", err
	}
	return fmt.Sprintf("House per-bet cap set to %d.", amount), nil
}
