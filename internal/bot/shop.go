package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleShopCatalog(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	listings, err := b.deps.Shop.Catalog(ctx, interactionUserID(ic))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("**Stat shop** (prices rise with each purchase)\n")
	for _, l := range listings {
		fmt.Fprintf(&sb, "%s - next unit %d (bought %d)\n", l.Stat.Label, l.NextCost, l.Bought)
	}
	sb.WriteString("Buy with `/muachiso`.")
	return sb.String(), nil
}

func (b *Bot) handleShopPurchase(ctx context.Context, ic *discordgo.InteractionCreate, opts optionMap) (string, error) {
	qty := int(opts.integer("soluong"))
	if qty == 0 {
		qty = 1
	}

	out, err := b.deps.Shop.Purchase(ctx, interactionUserID(ic), opts.str("chiso"), qty)
	if err != nil {
		return "", err
	}

	gain := fmt.Sprintf("+%d%%", out.Quantity)
	if out.Stat.Flat {
		gain = fmt.Sprintf("+%d", out.FlatGain)
	}
	return fmt.Sprintf("Bought %d x %s for %d: %s. Balance: %d",
		out.Quantity, out.Stat.Label, out.Cost, gain, out.Balance), nil
}
