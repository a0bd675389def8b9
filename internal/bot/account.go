package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/notify"
)

func (b *Bot) handleInfo(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	user, err := b.deps.Accounts.Resolve(ctx, interactionUserID(ic))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "**%s**\n", notify.DecorateName(user.BaseName, user.Level))
	fmt.Fprintf(&sb, "Level %d, %d exp\n", user.Level, user.Exp)
	fmt.Fprintf(&sb, "Linh thach: %d\n", user.Currency)
	fmt.Fprintf(&sb, "Stamina: %d\n", user.Stamina)
	fmt.Fprintf(&sb, "ATK %d / DEF %d / HP %d\n", user.Attack, user.Defense, user.Health)
	fmt.Fprintf(&sb, "Dodge %.0f%% / Acc %.0f%% / Crit %.0f%% / Crit res %.0f%%\n",
		user.Dodge, user.Accuracy, user.CritRate, user.CritResistance)
	fmt.Fprintf(&sb, "Pen %.0f%% / Armor %.0f%%\n", user.ArmorPenetration, user.ArmorResistance)
	fmt.Fprintf(&sb, "Dungeon tier cleared: %d\n", user.DungeonLevel-1)
	fmt.Fprintf(&sb, "Chan le: %d played, %d won", user.ChanLePlayed, user.ChanLeWon)
	return sb.String(), nil
}

func (b *Bot) handleBreakthrough(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	user, gained, err := b.deps.Accounts.Breakthrough(ctx, interactionUserID(ic))
	if err != nil {
		return "", err
	}
	if gained == 0 {
		return fmt.Sprintf("Not enough exp yet. You are level %d with %d exp.", user.Level, user.Exp), nil
	}
	return fmt.Sprintf("Breakthrough! You ascended %d level(s) and are now level %d.", gained, user.Level), nil
}

func (b *Bot) handleRename(ctx context.Context, ic *discordgo.InteractionCreate, opts optionMap) (string, error) {
	name := strings.TrimSpace(opts.str("ten"))
	if err := b.deps.Accounts.Rename(ctx, interactionUserID(ic), name); err != nil {
		return "", err
	}
	return fmt.Sprintf("You are now known as **%s**.", name), nil
}

func (b *Bot) handleTopRich(ctx context.Context, _ *discordgo.InteractionCreate, _ optionMap) (string, error) {
	rows, err := b.deps.Leaderboard.TopRich(ctx)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "Nobody on the board yet.", nil
	}
	var sb strings.Builder
	sb.WriteString("**Top 10 wealth**\n")
	for i, row := range rows {
		fmt.Fprintf(&sb, "%d. %s - %d\n", i+1, row.BaseName, row.Currency)
	}
	return sb.String(), nil
}

func (b *Bot) handleTopLevel(ctx context.Context, _ *discordgo.InteractionCreate, _ optionMap) (string, error) {
	rows, err := b.deps.Leaderboard.TopLevel(ctx)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "Nobody on the board yet.", nil
	}
	var sb strings.Builder
	sb.WriteString("**Top 10 level**\n")
	for i, row := range rows {
		fmt.Fprintf(&sb, "%d. %s - Lv %d (%d exp)\n", i+1, row.BaseName, row.Level, row.Exp)
	}
	return sb.String(), nil
}

func (b *Bot) handleRedeemCode(ctx context.Context, ic *discordgo.InteractionCreate, opts optionMap) (string, error) {
	gift, err := b.deps.GiftCodes.Redeem(ctx, interactionUserID(ic), opts.str("code"))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Code accepted, %d linh thach credited.", gift.Currency), nil
}

func (b *Bot) handleIssueCode(ctx context.Context, _ *discordgo.InteractionCreate, opts optionMap) (string, error) {
	gift, err := b.deps.GiftCodes.Issue(ctx, opts.integer("sotien"), opts.integer("luot"))
	if err != nil {
		return "", err
	}
	uses := "unlimited"
	if gift.MaxUses > 0 {
		uses = fmt.Sprintf("%d", gift.MaxUses)
	}
	return fmt.Sprintf("Created code `%s`: %d linh thach, %s uses.", gift.Code, gift.Currency, uses), nil
}
