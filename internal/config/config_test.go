package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() Config {
	cfg := Defaults()
	cfg.XRPL.PoolAddress = "rPoolPoolPoolPoolPoolPoolPoolPool"
	cfg.XRPL.FamilySeed = "snoPBrXtMeMyMHUVTgbuqAfg1SUTb"
	cfg.Flare.AdminPrivateKey = "deadbeef"
	return cfg
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "server"
log_level = "debug"

[xrpl]
ws_url = "wss://s.altnet.rippletest.net"
pool_address = "rPool"
family_seed = "sSeed"

[updater]
interval = "30s"
archive_interval = "12h"

[[pools]]
id = "p1"
name = "Short"
lock_period_days = 30
apy = 8.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "server", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "wss://s.altnet.rippletest.net", cfg.XRPL.WSURL)
	assert.Equal(t, 30*time.Second, cfg.Updater.Interval.Duration)
	assert.Equal(t, 12*time.Hour, cfg.Updater.ArchiveInterval.Duration)
	require.Len(t, cfg.Pools, 1)
	assert.Equal(t, "p1", cfg.Pools[0].ID)

	// Untouched sections keep their defaults.
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, 200, cfg.XRPL.FetchLimit)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
[xrpl]
pool_address = "rFromToml"
family_seed = "sFromToml"
`)

	t.Setenv("STAKED_XRPL_POOL_ADDRESS", "rFromEnv")
	t.Setenv("STAKED_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("STAKED_SERVER_PORT", "9100")
	t.Setenv("STAKED_S3_ENABLED", "true")
	t.Setenv("STAKED_UPDATER_INTERVAL", "45s")
	t.Setenv("STAKED_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("STAKED_FLARE_CHAIN_ID", "16")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "rFromEnv", cfg.XRPL.PoolAddress)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.S3.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Updater.Interval.Duration)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, int64(16), cfg.Flare.ChainID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "banana"
	cfg.XRPL.PoolAddress = ""
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "pool_address")
	assert.Contains(t, err.Error(), "redis")
}

func TestValidateSeedSources(t *testing.T) {
	cfg := validConfig()
	cfg.XRPL.FamilySeed = ""
	assert.Error(t, cfg.Validate(), "no seed source at all")

	cfg.XRPL.EncryptedSeedPath = "/etc/stake/seed.json"
	assert.Error(t, cfg.Validate(), "encrypted seed without password")

	cfg.XRPL.SeedPassword = "pw"
	assert.NoError(t, cfg.Validate())
}

func TestValidatePools(t *testing.T) {
	cfg := validConfig()
	cfg.Pools = []PoolConfig{
		{ID: "p1", Name: "A", LockPeriodDays: 30, APY: 8},
		{ID: "p1", Name: "B", LockPeriodDays: 60, APY: 10},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate id")

	cfg.Pools = []PoolConfig{{ID: "p2", LockPeriodDays: 0, APY: -1}}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lock_period_days")
	assert.Contains(t, err.Error(), "apy")
}

func TestValidateS3OnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.S3.Enabled = false
	cfg.S3.Bucket = ""
	assert.NoError(t, cfg.Validate())

	cfg.S3.Enabled = true
	assert.Error(t, cfg.Validate())
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.XRPL.SeedPassword = "secret"
	cfg.Postgres.Password = "secret"
	cfg.Redis.Password = "secret"
	cfg.S3.AccessKey = "AKIA"
	cfg.S3.SecretKey = "secret"
	cfg.Server.APIKey = "secret"
	cfg.Notify.TelegramToken = "secret"

	red := RedactedConfig(&cfg)

	assert.Equal(t, "***", red.XRPL.FamilySeed)
	assert.Equal(t, "***", red.XRPL.SeedPassword)
	assert.Equal(t, "***", red.Flare.AdminPrivateKey)
	assert.Equal(t, "***", red.Postgres.Password)
	assert.Equal(t, "***", red.Redis.Password)
	assert.Equal(t, "***", red.S3.AccessKey)
	assert.Equal(t, "***", red.S3.SecretKey)
	assert.Equal(t, "***", red.Server.APIKey)
	assert.Equal(t, "***", red.Notify.TelegramToken)

	// Non-secrets and the original are untouched.
	assert.Equal(t, cfg.XRPL.PoolAddress, red.XRPL.PoolAddress)
	assert.Equal(t, "secret", cfg.Redis.Password)

	// Slice copies are independent.
	red.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
}

func TestDurationText(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("90s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))

	assert.Error(t, d.UnmarshalText([]byte("ninety")))
}
