package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STAKED_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STAKED_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── XRPL ──
	setStr(&cfg.XRPL.WSURL, "STAKED_XRPL_WS_URL")
	setStr(&cfg.XRPL.PoolAddress, "STAKED_XRPL_POOL_ADDRESS")
	setStr(&cfg.XRPL.FamilySeed, "STAKED_XRPL_FAMILY_SEED")
	setStr(&cfg.XRPL.EncryptedSeedPath, "STAKED_XRPL_ENCRYPTED_SEED_PATH")
	setStr(&cfg.XRPL.SeedPassword, "STAKED_XRPL_SEED_PASSWORD")
	setInt(&cfg.XRPL.FetchLimit, "STAKED_XRPL_FETCH_LIMIT")

	// ── Flare ──
	setStr(&cfg.Flare.RPCURL, "STAKED_FLARE_RPC_URL")
	setInt64(&cfg.Flare.ChainID, "STAKED_FLARE_CHAIN_ID")
	setStr(&cfg.Flare.AdminPrivateKey, "STAKED_FLARE_ADMIN_PRIVATE_KEY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "STAKED_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "STAKED_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "STAKED_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "STAKED_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "STAKED_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "STAKED_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "STAKED_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "STAKED_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "STAKED_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "STAKED_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "STAKED_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STAKED_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STAKED_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "STAKED_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "STAKED_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "STAKED_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "STAKED_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "STAKED_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "STAKED_S3_REGION")
	setStr(&cfg.S3.Bucket, "STAKED_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "STAKED_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "STAKED_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "STAKED_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "STAKED_S3_FORCE_PATH_STYLE")

	// ── Updater ──
	setDuration(&cfg.Updater.Interval, "STAKED_UPDATER_INTERVAL")
	setDuration(&cfg.Updater.ArchiveInterval, "STAKED_UPDATER_ARCHIVE_INTERVAL")
	setInt(&cfg.Updater.RetentionDays, "STAKED_UPDATER_RETENTION_DAYS")

	// ── Server ──
	setInt(&cfg.Server.Port, "STAKED_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "STAKED_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "STAKED_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "STAKED_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "STAKED_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "STAKED_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "STAKED_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "STAKED_MODE")
	setStr(&cfg.LogLevel, "STAKED_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
