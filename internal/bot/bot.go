// Package bot wires the Discord gateway to the game services: slash
// command registration, per-channel gating and interaction dispatch.
package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/casino"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/config"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/dungeon"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/baucua"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/blackjack"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/chanle"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/mining"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/service"
)

const handlerTimeout = 30 * time.Second

// Dependencies holds every service the handlers reach.
type Dependencies struct {
	Config      *config.Config
	Accounts    *service.AccountService
	Shop        *service.ShopService
	GiftCodes   *service.GiftCodeService
	Leaderboard *service.LeaderboardService
	ChanLe      *chanle.Game
	BauCua      *baucua.Engine
	Blackjack   *blackjack.Engine
	Miner       *mining.Miner
	Dungeon     *dungeon.Service
	Casino      *casino.Service
}

type handlerFunc func(ctx context.Context, ic *discordgo.InteractionCreate, opts optionMap) (string, error)

// Bot owns the gateway session and the command router.
type Bot struct {
	session  *discordgo.Session
	deps     *Dependencies
	handlers map[string]handlerFunc
	// channel gates by command name; empty means ungated
	gates      map[string]string
	registered []*discordgo.ApplicationCommand
}

// New opens a session and builds the router. Start must be called to
// connect.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	session, err := discordgo.New("Bot " + deps.Config.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	b := &Bot{session: session, deps: deps}
	b.buildRouter()

	session.AddHandler(b.onInteraction)
	return b, nil
}

// Session exposes the underlying gateway session for adapters.
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

func (b *Bot) buildRouter() {
	ch := b.deps.Config.Channels
	b.handlers = map[string]handlerFunc{
		"info":        b.handleInfo,
		"dotpha":      b.handleBreakthrough,
		"doiten":      b.handleRename,
		"topdaigia":   b.handleTopRich,
		"toplevel":    b.handleTopLevel,
		"giftcode":    b.handleRedeemCode,
		"taogiftcode": b.adminOnly(b.handleIssueCode),
		"shop":        b.handleShopCatalog,
		"muachiso":    b.handleShopPurchase,

		"chanle": b.handleChanLe,
		"baucua": b.handleBauCua,
		"daomo":  b.handleMining,

		"danhbai": b.handleBlackjackCreate,
		"vaoban":  b.handleBlackjackJoin,
		"roiban":  b.handleBlackjackLeave,
		"rut":     b.handleBlackjackHit,
		"dan":     b.handleBlackjackStand,
		"gapdoi":  b.handleBlackjackDouble,
		"tachbai": b.handleBlackjackSplit,

		"hamnguc":     b.handleDungeonInspect,
		"khieuchien":  b.handleDungeonChallenge,
		"farmhamnguc": b.handleFarmStart,
		"nhanfarm":    b.handleFarmClaim,

		"nhantruong": b.handleCasinoClaim,
		"ruttruong":  b.handleCasinoRelease,
		"setcuoc":    b.handleCasinoSetCap,
	}
	b.gates = map[string]string{
		"chanle":      ch.ChanLe,
		"baucua":      ch.BauCua,
		"danhbai":     ch.Blackjack,
		"hamnguc":     ch.Dungeon,
		"khieuchien":  ch.Dungeon,
		"farmhamnguc": ch.Dungeon,
		"nhanfarm":    ch.Dungeon,
		"nhantruong":  ch.Casino,
		"ruttruong":   ch.Casino,
		"setcuoc":     ch.Casino,
	}
}

// Start connects the gateway and registers the slash commands on the
// configured guild.
func (b *Bot) Start() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway: %w", err)
	}

	for _, cmd := range commandDefinitions() {
		created, err := b.session.ApplicationCommandCreate(
			b.session.State.User.ID, b.deps.Config.Bot.GuildID, cmd)
		if err != nil {
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		b.registered = append(b.registered, created)
	}

	log.Info().Int("commands", len(b.registered)).Msg("bot connected")
	return nil
}

// Stop disconnects the gateway.
func (b *Bot) Stop() {
	if err := b.session.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close gateway")
	}
}

func (b *Bot) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := ic.ApplicationCommandData()

	handler, ok := b.handlers[data.Name]
	if !ok {
		return
	}

	if gate := b.gates[data.Name]; gate != "" && ic.ChannelID != gate {
		b.reply(ic, fmt.Sprintf("use this command in <#%s>", gate), true)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	started := time.Now()
	content, err := b.dispatch(ctx, handler, ic, collectOptions(data.Options))
	if err != nil {
		log.Warn().Err(err).Str("command", data.Name).
			Str("user", interactionUserID(ic)).Msg("command failed")
		b.reply(ic, userMessage(err), true)
		return
	}

	log.Debug().Str("command", data.Name).Str("user", interactionUserID(ic)).
		Dur("took", time.Since(started)).Msg("command handled")
	b.reply(ic, content, false)
}

// dispatch runs a handler and converts a panic into an error, so a bug
// in one command never takes down the gateway session.
func (b *Bot) dispatch(ctx context.Context, handler handlerFunc, ic *discordgo.InteractionCreate, opts optionMap) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).
				Str("user", interactionUserID(ic)).Msg("handler panicked")
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, ic, opts)
}

// adminOnly wraps a handler with an admin role check.
func (b *Bot) adminOnly(next handlerFunc) handlerFunc {
	return func(ctx context.Context, ic *discordgo.InteractionCreate, opts optionMap) (string, error) {
		if !b.isAdmin(ic) {
			return "", errNotAdmin
		}
		return next(ctx, ic, opts)
	}
}

func (b *Bot) isAdmin(ic *discordgo.InteractionCreate) bool {
	roleID := b.deps.Config.Bot.AdminRoleID
	if roleID == "" || ic.Member == nil {
		return false
	}
	for _, r := range ic.Member.Roles {
		if r == roleID {
			return true
		}
	}
	return false
}

func (b *Bot) reply(ic *discordgo.InteractionCreate, content string, ephemeral bool) {
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content},
	}
	if ephemeral {
		resp.Data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := b.session.InteractionRespond(ic.Interaction, resp); err != nil {
		log.Warn().Err(err).Msg("failed to respond to interaction")
	}
}

func interactionUserID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

// optionMap indexes interaction options by name.
type optionMap map[string]*discordgo.ApplicationCommandInteractionDataOption

func collectOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) optionMap {
	m := make(optionMap, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (m optionMap) str(name string) string {
	if o, ok := m[name]; ok {
		return o.StringValue()
	}
	return ""
}

func (m optionMap) integer(name string) int64 {
	if o, ok := m[name]; ok {
		return o.IntValue()
	}
	return 0
}

func (m optionMap) boolean(name string) bool {
	if o, ok := m[name]; ok {
		return o.BoolValue()
	}
	return false
}
