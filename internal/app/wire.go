package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/mintbay/marketd/internal/bank"
	s3blob "github.com/mintbay/marketd/internal/blob/s3"
	"github.com/mintbay/marketd/internal/cache/redis"
	"github.com/mintbay/marketd/internal/config"
	"github.com/mintbay/marketd/internal/crypto"
	"github.com/mintbay/marketd/internal/domain"
	"github.com/mintbay/marketd/internal/notify"
	"github.com/mintbay/marketd/internal/registry"
	"github.com/mintbay/marketd/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Identities
	Custody  common.Address
	Operator common.Address

	// Ledger collaborators
	Registry domain.AssetRegistry
	Access   domain.AccessController
	Bank     domain.Bank

	// Stores
	TokenStore   domain.TokenStore
	ListingStore domain.ListingStore
	EventStore   domain.EventStore
	AuditStore   domain.AuditStore

	// Redis
	ListingCache domain.ListingCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 returns true for modes that require object storage.
func needsS3(cfg *config.Config) bool {
	switch cfg.Mode {
	case "archive", "full":
		return true
	default:
		return cfg.Archive.Enabled
	}
}

// operatorAddress resolves the operator identity. An explicit address wins;
// otherwise it is derived from the configured operator key.
func operatorAddress(cfg *config.Config) (common.Address, error) {
	if cfg.Market.OperatorAddress != "" {
		return common.HexToAddress(cfg.Market.OperatorAddress), nil
	}

	keyHex, err := crypto.LoadOperatorKey(crypto.OperatorKeyConfig{
		EncryptedKeyPath: cfg.Market.OperatorKeyPath,
		KeyPassword:      cfg.Market.OperatorKeyPass,
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("load operator key: %w", err)
	}
	signer, err := crypto.NewSigner(keyHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("operator key: %w", err)
	}
	return signer.Address(), nil
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Custody: common.HexToAddress(cfg.Market.CustodyAddress),
	}

	operator, err := operatorAddress(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: %w", err)
	}
	deps.Operator = operator

	deps.Registry = registry.NewAssetRegistry()
	deps.Access = registry.NewStaticAccessController(operator)
	deps.Bank = bank.New()

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.TokenStore = postgres.NewTokenStore(pool)
	deps.ListingStore = postgres.NewListingStore(pool)
	deps.EventStore = postgres.NewEventStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

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

	deps.ListingCache = redis.NewListingCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (only for modes that archive) ---
	if needsS3(cfg) {
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
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		reader := s3blob.NewReader(s3Client)
		deps.BlobReader = reader
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, reader, deps.EventStore, deps.AuditStore)
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
	if cfg.Notify.WebhookURL != "" {
		senders = append(senders, notify.NewWebhookSender(cfg.Notify.WebhookURL, cfg.Notify.WebhookSecret))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
