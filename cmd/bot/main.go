// Package main is the entry point for the game bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ducyb294/TieuNgaoGiangHo/internal/bot"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/casino"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/config"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/dungeon"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/baucua"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/blackjack"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/chanle"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/game/mining"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/notify"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/clock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/db"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/pkg/lock"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/progression"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/repository"
	"github.com/ducyb294/TieuNgaoGiangHo/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Repositories
	userRepo := repository.NewUserRepository(dbPool.Pool)
	chanleRepo := repository.NewChanLeRepository(dbPool.Pool)
	baucuaRepo := repository.NewBauCuaRepository(dbPool.Pool)
	casinoRepo := repository.NewCasinoRepository(dbPool.Pool)
	farmRepo := repository.NewFarmRepository(dbPool.Pool)
	challengeRepo := repository.NewChallengeRepository(dbPool.Pool)
	shopRepo := repository.NewShopRepository(dbPool.Pool)
	giftRepo := repository.NewGiftCodeRepository(dbPool.Pool)
	boardRepo := repository.NewLeaderboardRepository(dbPool.Pool)

	if cfg.Casino.MinBalance > 0 {
		if err := casinoRepo.SetMinBalance(ctx, cfg.Casino.MinBalance); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed house minimum balance")
		}
	}

	clk := clock.RealClock{}
	locks := lock.NewUserLock()
	accruer := progression.NewAccruer(
		cfg.Progression.ExpPerMinute,
		cfg.Progression.MaxStamina,
		cfg.Progression.StaminaInterval,
		progression.DefaultExpCurve,
	)

	// The gateway session is shared between the command router and the
	// notifier adapters, so the bot is created before the services and
	// wired afterwards.
	deps := &bot.Dependencies{Config: cfg}
	discordBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}
	discord := notify.NewDiscord(discordBot.Session(), cfg.Bot.GuildID, cfg.Casino.RoleID)

	accounts := service.NewAccountService(userRepo, accruer, discord, clk)
	house := casino.New(
		casino.Config{
			CommissionRate: cfg.Casino.CommissionRate,
			OwnerDuration:  cfg.Casino.OwnerDuration,
			SweepInterval:  cfg.Casino.SweepInterval,
			Channel:        cfg.Channels.Casino,
		},
		userRepo, casinoRepo, accounts, discord, discord, clk,
	)

	deps.Accounts = accounts
	deps.Casino = house
	deps.Shop = service.NewShopService(userRepo, shopRepo, accounts, locks, nil)
	deps.GiftCodes = service.NewGiftCodeService(dbPool.Pool, userRepo, giftRepo, accounts)
	deps.Leaderboard = service.NewLeaderboardService(userRepo, boardRepo, discord, cfg.Channels.Leaderboard)
	deps.ChanLe = chanle.New(
		chanle.Config{
			PayoutRate:  cfg.Games.ChanLe.PayoutRate,
			HistorySize: cfg.Games.ChanLe.HistorySize,
		},
		dbPool.Pool, userRepo, chanleRepo, accounts, house, locks,
	)
	deps.BauCua = baucua.New(
		baucua.Config{
			Countdown:  cfg.Games.BauCua.Countdown,
			LockWindow: cfg.Games.BauCua.LockWindow,
			Channel:    cfg.Channels.BauCua,
		},
		dbPool.Pool, userRepo, baucuaRepo, accounts, locks, discord, clk,
	)
	deps.Blackjack = blackjack.New(
		blackjack.Config{
			StartDelay:   cfg.Games.Blackjack.StartDelay,
			TurnChoice:   cfg.Games.Blackjack.TurnChoice,
			TurnTimeout:  cfg.Games.Blackjack.TurnTimeout,
			IdleTeardown: cfg.Games.Blackjack.IdleTeardown,
			MaxHands:     cfg.Games.Blackjack.MaxHands,
		},
		dbPool.Pool, userRepo, accounts, discord, clk,
	)
	deps.Miner = mining.New(userRepo, accounts, locks, clk, cfg.Progression.StaminaInterval)
	deps.Dungeon = dungeon.New(
		dungeon.Config{
			DailyChallenges: cfg.Dungeon.DailyChallenges,
			FarmInterval:    cfg.Dungeon.FarmInterval,
			MaxCatchupTicks: cfg.Dungeon.MaxCatchupTicks,
			CurrencyRate:    cfg.Dungeon.CurrencyRate,
			ExpRate:         cfg.Dungeon.ExpRate,
			Channel:         cfg.Channels.Dungeon,
		},
		dbPool.Pool, userRepo, farmRepo, challengeRepo, accounts, locks, discord, clk,
	)

	if err := discordBot.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start bot")
	}
	defer discordBot.Stop()
	defer deps.Blackjack.Stop()

	if err := deps.BauCua.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to resume betting rounds")
	}
	defer deps.BauCua.Stop()

	// Background loops: passive accrual sweep, farm ticks, house expiry
	// sweep and the leaderboard refresh.
	go sweepLoop(ctx, accounts, cfg.Progression.SweepInterval)
	go deps.Dungeon.Run(ctx)
	go house.Run(ctx)
	go leaderboardLoop(ctx, deps.Leaderboard)

	log.Info().Msg("Bot is running. Press Ctrl+C to exit.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("Shutting down...")
	cancel()
}

func sweepLoop(ctx context.Context, accounts *service.AccountService, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	if err := accounts.SweepAll(ctx); err != nil {
		log.Error().Err(err).Msg("Initial accrual sweep failed")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := accounts.SweepAll(ctx); err != nil {
				log.Error().Err(err).Msg("Accrual sweep failed")
			}
		}
	}
}

func leaderboardLoop(ctx context.Context, boards *service.LeaderboardService) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := boards.Refresh(ctx); err != nil {
				log.Error().Err(err).Msg("Leaderboard refresh failed")
			}
		}
	}
}
