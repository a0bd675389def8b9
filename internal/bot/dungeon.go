package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) handleDungeonInspect(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	tier, guardian, err := b.deps.Dungeon.Inspect(ctx, interactionUserID(ic))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Tier %d guardian awaits: ATK %.0f / DEF %.0f / HP %.0f (+%.0f%% to every roll). `/khieuchien` to fight.",
		tier, guardian.Attack, guardian.Defense, guardian.Health, guardian.Accuracy), nil
}

func (b *Bot) handleDungeonChallenge(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	out, err := b.deps.Dungeon.Challenge(ctx, interactionUserID(ic))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if out.Win {
		fmt.Fprintf(&sb, "**Victory** over the tier %d guardian in %d rounds! Tier %d is now open.\n",
			out.Tier, out.Rounds, out.NewTier)
	} else {
		fmt.Fprintf(&sb, "The tier %d guardian beat you down in %d rounds.\n", out.Tier, out.Rounds)
	}
	// Tail of the combat log keeps replies under the message cap.
	tail := out.Log
	if len(tail) > 6 {
		tail = tail[len(tail)-6:]
	}
	for _, line := range tail {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "Challenges left today: %d", out.Remaining)
	return sb.String(), nil
}

func (b *Bot) handleFarmStart(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	session, err := b.deps.Dungeon.StartFarm(ctx, interactionUserID(ic))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Farm started in <#%s>. Earnings accrue while you are away, `/nhanfarm` to collect.",
		session.ThreadID), nil
}

func (b *Bot) handleFarmClaim(ctx context.Context, ic *discordgo.InteractionCreate, _ optionMap) (string, error) {
	out, err := b.deps.Dungeon.ClaimFarm(ctx, interactionUserID(ic))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Collected **%d** linh thach from %s of tier %d farming.",
		out.Amount, out.FarmedFor, out.Tier), nil
}
