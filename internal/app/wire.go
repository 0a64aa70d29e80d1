package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/flarexfi/flarestake/internal/blob/s3"
	"github.com/flarexfi/flarestake/internal/cache/redis"
	"github.com/flarexfi/flarestake/internal/config"
	"github.com/flarexfi/flarestake/internal/crypto"
	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/notify"
	"github.com/flarexfi/flarestake/internal/platform/flare"
	"github.com/flarexfi/flarestake/internal/platform/xrpl"
	"github.com/flarexfi/flarestake/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Positions domain.PositionStore
	Rewards   domain.RewardStore
	Unstakes  domain.UnstakeRequestStore
	Audit     domain.AuditStore

	// Caches
	RewardCache domain.RewardCache
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Ledger clients and the custodial pool wallet
	XRPL   *xrpl.Client
	Flare  *flare.Client
	Wallet *crypto.Wallet

	// Pool catalog
	Pools *domain.PoolCatalog

	// Blob storage (nil when S3 is disabled)
	BlobWriter domain.BlobWriter
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Positions = postgres.NewPositionStore(pool)
	deps.Rewards = postgres.NewRewardStore(pool)
	deps.Unstakes = postgres.NewUnstakeStore(pool)
	deps.Audit = postgres.NewAuditStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.RewardCache = redis.NewRewardCache(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- XRPL ---
	xrplClient := xrpl.NewClient(cfg.XRPL.WSURL, logger)
	closers = append(closers, func() { _ = xrplClient.Close() })
	deps.XRPL = xrplClient

	// --- Pool wallet ---
	seed, err := crypto.LoadSeed(crypto.SeedConfig{
		RawSeed:           cfg.XRPL.FamilySeed,
		EncryptedSeedPath: cfg.XRPL.EncryptedSeedPath,
		SeedPassword:      cfg.XRPL.SeedPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: pool seed: %w", err)
	}
	wallet, err := crypto.WalletFromSeed(seed)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: pool wallet: %w", err)
	}
	if wallet.Address() != cfg.XRPL.PoolAddress {
		cleanup()
		return nil, nil, fmt.Errorf("wire: pool wallet derives %s but xrpl.pool_address is %s",
			wallet.Address(), cfg.XRPL.PoolAddress)
	}
	deps.Wallet = wallet

	// --- Flare ---
	flareClient, err := flare.NewClient(ctx, cfg.Flare.RPCURL, cfg.Flare.ChainID, cfg.Flare.AdminPrivateKey, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: flare: %w", err)
	}
	closers = append(closers, flareClient.Close)
	deps.Flare = flareClient

	// --- Pool catalog ---
	deps.Pools = domain.NewPoolCatalog(poolsFromConfig(cfg.Pools))

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			postgres.NewRewardStore(pool),
			postgres.NewUnstakeStore(pool),
			deps.Audit,
		)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}

// poolsFromConfig converts the configured pool sections into the domain
// catalog shape. An empty slice falls back to the built-in catalog.
func poolsFromConfig(pools []config.PoolConfig) []domain.Pool {
	out := make([]domain.Pool, 0, len(pools))
	for _, p := range pools {
		out = append(out, domain.Pool{
			ID:             p.ID,
			Name:           p.Name,
			LockPeriodDays: p.LockPeriodDays,
			APY:            p.APY,
		})
	}
	return out
}
