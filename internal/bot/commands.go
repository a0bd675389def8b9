package bot

import (
	"github.com/bwmarrin/discordgo"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/service"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	betOption := func(required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionInteger,
			Name:        "cuoc",
			Description: "stake amount",
			Required:    required,
			MinValue:    float64Ptr(1),
		}
	}

	return []*discordgo.ApplicationCommand{
		{Name: "info", Description: "Show your cultivation profile"},
		{Name: "dotpha", Description: "Attempt a breakthrough to the next level"},
		{
			Name:        "doiten",
			Description: "Change your display name",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "ten",
					Description: "new name (letters, digits and spaces)",
					Required:    true,
				},
			},
		},
		{Name: "topdaigia", Description: "Top 10 wealthiest players"},
		{Name: "toplevel", Description: "Top 10 highest level players"},
		{
			Name:        "giftcode",
			Description: "Redeem a gift code",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "code",
					Description: "the code to redeem",
					Required:    true,
				},
			},
		},
		{
			Name:        "taogiftcode",
			Description: "Create a gift code (admin)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "sotien",
					Description: "currency per claim",
					Required:    true,
					MinValue:    float64Ptr(1),
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "luot",
					Description: "maximum claims, 0 for unlimited",
				},
			},
		},
		{Name: "shop", Description: "Browse the stat shop with your personal prices"},
		{
			Name:        "muachiso",
			Description: "Buy stat points from the shop",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "chiso",
					Description: "stat to buy",
					Required:    true,
					Choices:     statChoices(),
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "soluong",
					Description: "units to buy",
					MinValue:    float64Ptr(1),
				},
			},
		},

		{
			Name:        "chanle",
			Description: "Bet on odd or even",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "cua",
					Description: "chan or le",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "chan", Value: "chan"},
						{Name: "le", Value: "le"},
					},
				},
				betOption(false),
				{
					Type:        discordgo.ApplicationCommandOptionBoolean,
					Name:        "allin",
					Description: "stake your whole balance",
				},
			},
		},
		{
			Name:        "baucua",
			Description: "Bet on a bau cua face",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "linhvat",
					Description: "face to back",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "bau", Value: "bau"},
						{Name: "cua", Value: "cua"},
						{Name: "tom", Value: "tom"},
						{Name: "ca", Value: "ca"},
						{Name: "ga", Value: "ga"},
						{Name: "nai", Value: "nai"},
					},
				},
				betOption(true),
			},
		},
		{Name: "daomo", Description: "Spend all stamina mining for currency"},

		{
			Name:        "danhbai",
			Description: "Open a blackjack table in this channel",
			Options:     []*discordgo.ApplicationCommandOption{betOption(false)},
		},
		{Name: "vaoban", Description: "Join the blackjack table in this channel"},
		{Name: "roiban", Description: "Leave the blackjack lobby"},
		{Name: "rut", Description: "Blackjack: draw a card"},
		{Name: "dan", Description: "Blackjack: stand on your hand"},
		{Name: "gapdoi", Description: "Blackjack: double down"},
		{Name: "tachbai", Description: "Blackjack: split a pair"},

		{Name: "hamnguc", Description: "Inspect the guardian of your next dungeon tier"},
		{Name: "khieuchien", Description: "Challenge the dungeon guardian"},
		{Name: "farmhamnguc", Description: "Start an idle farm in your cleared dungeon"},
		{Name: "nhanfarm", Description: "Claim your accumulated farm earnings"},

		{Name: "nhantruong", Description: "Claim the casino house seat"},
		{Name: "ruttruong", Description: "Give up the casino house seat"},
		{
			Name:        "setcuoc",
			Description: "Set the house per-bet cap",
			Options:     []*discordgo.ApplicationCommandOption{betOption(true)},
		},
	}
}

func statChoices() []*discordgo.ApplicationCommandOptionChoice {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(service.StatCatalog))
	for _, cfg := range service.StatCatalog {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  cfg.Label,
			Value: cfg.ID,
		})
	}
	return choices
}

func float64Ptr(v float64) *float64 {
	return &v
}
