package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for the staking backend. All fields can
// be set from TOML; secrets can additionally be injected via STAKED_*
// environment variables (see loader.go).
type Config struct {
	XRPL     XRPLConfig     `toml:"xrpl"`
	Flare    FlareConfig    `toml:"flare"`
	Pools    []PoolConfig   `toml:"pools"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Updater  UpdaterConfig  `toml:"updater"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`

	// Mode selects which subsystems run: "server", "updater", or "full".
	Mode string `toml:"mode"`

	// LogLevel is the minimum slog level: debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// XRPLConfig holds the XRP Ledger connection and pool wallet credentials.
type XRPLConfig struct {
	WSURL       string `toml:"ws_url"`
	PoolAddress string `toml:"pool_address"`

	// FamilySeed is the plaintext base58 family seed of the pool wallet.
	// Prefer EncryptedSeedPath + SeedPassword in production.
	FamilySeed        string `toml:"family_seed"`
	EncryptedSeedPath string `toml:"encrypted_seed_path"`
	SeedPassword      string `toml:"seed_password"`

	// FetchLimit caps account_tx page size per reconciliation pass.
	FetchLimit int `toml:"fetch_limit"`
}

// FlareConfig holds the Flare EVM endpoint and the reward payout key.
type FlareConfig struct {
	RPCURL          string `toml:"rpc_url"`
	ChainID         int64  `toml:"chain_id"`
	AdminPrivateKey string `toml:"admin_private_key"`
}

// PoolConfig describes one staking pool offered to users.
type PoolConfig struct {
	ID             string  `toml:"id"`
	Name           string  `toml:"name"`
	LockPeriodDays int     `toml:"lock_period_days"`
	APY            float64 `toml:"apy"`
}

// PostgresConfig holds Postgres connection parameters. DSN, when set, takes
// precedence over the discrete fields.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"sslmode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for cold archives.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// UpdaterConfig holds the background reconciliation and archive cadence.
type UpdaterConfig struct {
	Interval        duration `toml:"interval"`
	ArchiveInterval duration `toml:"archive_interval"`
	RetentionDays   int      `toml:"retention_days"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`

	// APIKey, when set, is required on every /api request as a Bearer token
	// or X-API-Key header. Empty disables auth.
	APIKey string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "15s", "24h").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "15s" or "24h".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		XRPL: XRPLConfig{
			WSURL:      "wss://s1.ripple.com",
			FetchLimit: 200,
		},
		Flare: FlareConfig{
			RPCURL:  "https://flare-api.flare.network/ext/C/rpc",
			ChainID: 14,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "flarestake",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "flarestake-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Updater: UpdaterConfig{
			Interval:        duration{15 * time.Second},
			ArchiveInterval: duration{24 * time.Hour},
			RetentionDays:   30,
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"unstake_completed", "unstake_failed", "claim_failed"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server":  true,
	"updater": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, updater, full)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// XRPL
	if c.XRPL.WSURL == "" {
		errs = append(errs, "xrpl: ws_url must not be empty")
	}
	if c.XRPL.PoolAddress == "" {
		errs = append(errs, "xrpl: pool_address must not be empty")
	}
	if c.XRPL.FamilySeed == "" && c.XRPL.EncryptedSeedPath == "" {
		errs = append(errs, "xrpl: either family_seed or encrypted_seed_path must be set")
	}
	if c.XRPL.EncryptedSeedPath != "" && c.XRPL.SeedPassword == "" {
		errs = append(errs, "xrpl: seed_password is required when encrypted_seed_path is set")
	}
	if c.XRPL.FetchLimit < 1 {
		errs = append(errs, "xrpl: fetch_limit must be >= 1")
	}

	// Flare
	if c.Flare.RPCURL == "" {
		errs = append(errs, "flare: rpc_url must not be empty")
	}
	if c.Flare.ChainID <= 0 {
		errs = append(errs, fmt.Sprintf("flare: chain_id must be positive, got %d", c.Flare.ChainID))
	}
	if c.Flare.AdminPrivateKey == "" {
		errs = append(errs, "flare: admin_private_key must not be empty")
	}

	// Pools are optional (empty falls back to the built-in catalog), but when
	// configured every entry must be complete and IDs must be unique.
	seen := map[string]bool{}
	for i, p := range c.Pools {
		if p.ID == "" {
			errs = append(errs, fmt.Sprintf("pools[%d]: id must not be empty", i))
			continue
		}
		if seen[p.ID] {
			errs = append(errs, fmt.Sprintf("pools[%d]: duplicate id %q", i, p.ID))
		}
		seen[p.ID] = true
		if p.LockPeriodDays < 1 {
			errs = append(errs, fmt.Sprintf("pools[%d]: lock_period_days must be >= 1", i))
		}
		if p.APY <= 0 {
			errs = append(errs, fmt.Sprintf("pools[%d]: apy must be > 0", i))
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Updater
	if c.Updater.Interval.Duration < time.Second {
		errs = append(errs, "updater: interval must be >= 1s")
	}
	if c.Updater.RetentionDays < 1 {
		errs = append(errs, "updater: retention_days must be >= 1")
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
