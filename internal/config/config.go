// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot         BotConfig         `mapstructure:"bot"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Channels    ChannelsConfig    `mapstructure:"channels"`
	Progression ProgressionConfig `mapstructure:"progression"`
	Games       GamesConfig       `mapstructure:"games"`
	Casino      CasinoConfig      `mapstructure:"casino"`
	Dungeon     DungeonConfig     `mapstructure:"dungeon"`
}

// BotConfig holds the Discord gateway configuration.
type BotConfig struct {
	Token       string `mapstructure:"token"`
	GuildID     string `mapstructure:"guild_id"`
	AdminRoleID string `mapstructure:"admin_role_id"`
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// ChannelsConfig maps feature surfaces to their display channels. Empty
// values disable the related display refresh, never the game logic.
type ChannelsConfig struct {
	Info        string `mapstructure:"info"`
	ChanLe      string `mapstructure:"chanle"`
	BauCua      string `mapstructure:"baucua"`
	Blackjack   string `mapstructure:"blackjack"`
	Dungeon     string `mapstructure:"dungeon"`
	Casino      string `mapstructure:"casino"`
	Leaderboard string `mapstructure:"leaderboard"`
}

// ProgressionConfig holds passive accrual tunables.
type ProgressionConfig struct {
	ExpPerMinute    int64         `mapstructure:"exp_per_minute"`
	MaxStamina      int           `mapstructure:"max_stamina"`
	StaminaInterval time.Duration `mapstructure:"stamina_interval"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	ChanLe    ChanLeConfig    `mapstructure:"chanle"`
	BauCua    BauCuaConfig    `mapstructure:"baucua"`
	Blackjack BlackjackConfig `mapstructure:"blackjack"`
}

// ChanLeConfig holds odd/even game configuration.
type ChanLeConfig struct {
	PayoutRate  float64 `mapstructure:"payout_rate"`
	HistorySize int     `mapstructure:"history_size"`
}

// BauCuaConfig holds betting round configuration.
type BauCuaConfig struct {
	Countdown  time.Duration `mapstructure:"countdown"`
	LockWindow time.Duration `mapstructure:"lock_window"`
}

// BlackjackConfig holds card table configuration.
type BlackjackConfig struct {
	StartDelay   time.Duration `mapstructure:"start_delay"`
	TurnChoice   time.Duration `mapstructure:"turn_choice"`
	TurnTimeout  time.Duration `mapstructure:"turn_timeout"`
	IdleTeardown time.Duration `mapstructure:"idle_teardown"`
	MaxHands     int           `mapstructure:"max_hands"`
	DefaultBet   int64         `mapstructure:"default_bet"`
}

// CasinoConfig holds house/owner overlay configuration.
type CasinoConfig struct {
	RoleID         string        `mapstructure:"role_id"`
	CommissionRate float64       `mapstructure:"commission_rate"`
	OwnerDuration  time.Duration `mapstructure:"owner_duration"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval"`
	MinBalance     int64         `mapstructure:"min_balance"`
}

// DungeonConfig holds guardian challenge and idle farm configuration.
type DungeonConfig struct {
	DailyChallenges int           `mapstructure:"daily_challenges"`
	FarmInterval    time.Duration `mapstructure:"farm_interval"`
	MaxCatchupTicks int           `mapstructure:"max_catchup_ticks"`
	CurrencyRate    int64         `mapstructure:"currency_rate"`
	ExpRate         int64         `mapstructure:"exp_rate"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the given directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST, GAMES_BAUCUA_COUNTDOWN.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. The game defaults mirror
// the live deployment's tuning.
func setDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gamebot")
	v.SetDefault("database.name", "gamebot")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("progression.exp_per_minute", 1)
	v.SetDefault("progression.max_stamina", 10)
	v.SetDefault("progression.stamina_interval", "1h")
	v.SetDefault("progression.sweep_interval", "10m")

	v.SetDefault("games.chanle.payout_rate", 1.95)
	v.SetDefault("games.chanle.history_size", 20)
	v.SetDefault("games.baucua.countdown", "2m")
	v.SetDefault("games.baucua.lock_window", "15s")
	v.SetDefault("games.blackjack.start_delay", "10s")
	v.SetDefault("games.blackjack.turn_choice", "10s")
	v.SetDefault("games.blackjack.turn_timeout", "15s")
	v.SetDefault("games.blackjack.idle_teardown", "30m")
	v.SetDefault("games.blackjack.max_hands", 4)
	v.SetDefault("games.blackjack.default_bet", 1000)

	v.SetDefault("casino.commission_rate", 0.05)
	v.SetDefault("casino.owner_duration", "24h")
	v.SetDefault("casino.sweep_interval", "1m")
	v.SetDefault("casino.min_balance", 10000000)

	v.SetDefault("dungeon.daily_challenges", 3)
	v.SetDefault("dungeon.farm_interval", "1m")
	v.SetDefault("dungeon.max_catchup_ticks", 360)
	v.SetDefault("dungeon.currency_rate", 5000)
	v.SetDefault("dungeon.exp_rate", 1000)
}
