package app

import (
	"strings"
	"time"

	"pinbot/cmd/internal/bot"
	"pinbot/cmd/internal/discord"
	"pinbot/cmd/internal/feed"
)

// Store backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	Store          string
	DatabaseURL    string
	DBSchema       string
	DBMaxConns     int32
	DBMinConns     int32
	MongoURI       string
	MongoDatabase  string
	MigrateOnStart bool

	// If true, /readyz returns 503 while running on the memory backend.
	ReadinessRequireDB bool

	DiscordToken string
	DiscordAppID string
	GuildIDs     []string

	ActivationRoleID string
	ActivatedRoleID  string
	LogChannel       string
	FollowUpTimeout  time.Duration
	CommandRate      float64
	CommandBurst     int
	ZenDownloadURL   string
	CppDownloadURL   string

	SweepInterval   time.Duration
	SweepRepair     bool
	ArchiveInterval time.Duration
	ArchiveEnabled  bool
	NotifyInterval  time.Duration

	FeedTokenHash      string
	FeedAllowedOrigins []string
	FeedOriginRequired bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	def := bot.DefaultConfig()
	return Config{
		HTTPAddr:  EnvString("PINBOT_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  EnvString("PINBOT_LOG_LEVEL", "info"),
		LogFormat: EnvString("PINBOT_LOG_FORMAT", "json"),

		ReadHeaderTimeout: EnvDuration("PINBOT_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("PINBOT_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("PINBOT_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("PINBOT_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    EnvInt("PINBOT_HTTP_MAX_HEADER_BYTES", 1<<20),

		Store:          strings.ToLower(EnvString("PINBOT_STORE", "")),
		DatabaseURL:    EnvString("PINBOT_DATABASE_URL", ""),
		DBSchema:       EnvString("PINBOT_DB_SCHEMA", "pinbot"),
		DBMaxConns:     EnvInt32("PINBOT_DB_MAX_CONNS", 10),
		DBMinConns:     EnvInt32("PINBOT_DB_MIN_CONNS", 0),
		MongoURI:       EnvString("MONGODB_URI", ""),
		MongoDatabase:  EnvString("PINBOT_MONGO_DATABASE", "pinbot"),
		MigrateOnStart: EnvBool("PINBOT_MIGRATE_ON_START", true),

		ReadinessRequireDB: EnvBool("PINBOT_READINESS_REQUIRE_DB", false),

		DiscordToken: EnvString("DISCORD_TOKEN", ""),
		DiscordAppID: EnvString("DISCORD_APP_ID", ""),
		GuildIDs:     EnvCSV("GUILD_IDS", nil),

		ActivationRoleID: EnvString("ACTIVATION_ROLE_ID", ""),
		ActivatedRoleID:  EnvString("ACTIVATED_ROLE_ID", ""),
		LogChannel:       EnvString("PINBOT_LOG_CHANNEL", def.LogChannel),
		FollowUpTimeout:  EnvDuration("PINBOT_FOLLOWUP_TIMEOUT", def.FollowUpTimeout),
		CommandRate:      EnvFloat("PINBOT_COMMAND_RATE", def.CommandRate),
		CommandBurst:     EnvInt("PINBOT_COMMAND_BURST", def.CommandBurst),
		ZenDownloadURL:   EnvString("PINBOT_DOWNLOAD_ZEN_URL", def.ZenDownloadURL),
		CppDownloadURL:   EnvString("PINBOT_DOWNLOAD_CPP_URL", def.CppDownloadURL),

		SweepInterval:   EnvDuration("PINBOT_SWEEP_INTERVAL", time.Hour),
		SweepRepair:     EnvBool("PINBOT_SWEEP_REPAIR", true),
		ArchiveInterval: EnvDuration("PINBOT_ARCHIVE_INTERVAL", 24*time.Hour),
		ArchiveEnabled:  EnvBool("PINBOT_ARCHIVE_ENABLED", false),
		NotifyInterval:  EnvDuration("PINBOT_NOTIFY_INTERVAL", 5*time.Minute),

		FeedTokenHash:      EnvString("PINBOT_FEED_TOKEN_HASH", ""),
		FeedAllowedOrigins: EnvCSV("PINBOT_FEED_ALLOWED_ORIGINS", []string{"http://localhost", "http://127.0.0.1"}),
		FeedOriginRequired: EnvBool("PINBOT_FEED_ORIGIN_REQUIRED", false),
	}
}

// Backend resolves the store engine: PINBOT_STORE when set, otherwise derived
// from whichever connection string is present.
func (c Config) Backend() string {
	switch c.Store {
	case BackendMemory, BackendPostgres, BackendMongo:
		return c.Store
	case "postgresql", "pg":
		return BackendPostgres
	case "mongodb":
		return BackendMongo
	}
	switch {
	case c.DatabaseURL != "":
		return BackendPostgres
	case c.MongoURI != "":
		return BackendMongo
	}
	return BackendMemory
}

// BotConfig is the command-surface slice of c.
func (c Config) BotConfig() bot.Config {
	return bot.Config{
		LogChannel:       c.LogChannel,
		FollowUpTimeout:  c.FollowUpTimeout,
		CommandRate:      c.CommandRate,
		CommandBurst:     c.CommandBurst,
		ActivationRoleID: c.ActivationRoleID,
		ActivatedRoleID:  c.ActivatedRoleID,
		ZenDownloadURL:   c.ZenDownloadURL,
		CppDownloadURL:   c.CppDownloadURL,
	}
}

// DiscordConfig is the gateway slice of c.
func (c Config) DiscordConfig() discord.Config {
	return discord.Config{AppID: c.DiscordAppID, Guilds: c.GuildIDs}
}

// FeedConfig is the /feed slice of c.
func (c Config) FeedConfig() feed.Config {
	return feed.Config{
		TokenHash:      c.FeedTokenHash,
		AllowedOrigins: c.FeedAllowedOrigins,
		OriginRequired: c.FeedOriginRequired,
	}
}
