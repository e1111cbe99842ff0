// Package bootstrap assembles the pipeline and its backends from config.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"solvency/internal/config"
	"solvency/internal/domain"
	"solvency/internal/infra/artifacts"
	"solvency/internal/infra/coordinator"
	"solvency/internal/infra/db"
	"solvency/internal/infra/evm"
	"solvency/internal/infra/historymem"
	"solvency/internal/infra/lock"
	"solvency/internal/infra/metrics"
	"solvency/internal/infra/policyopa"
	"solvency/internal/infra/ratelimit"
	"solvency/internal/infra/registry"
	"solvency/internal/usecase"
)

type ledgerRegistry interface {
	usecase.Registry
	usecase.RegistryEvents
}

type App struct {
	Config          config.Config
	Log             logrus.FieldLogger
	Store           domain.ArtifactStore
	ArtifactBackend string
	Pipeline        *usecase.Pipeline
	Exporter        *usecase.EpochExporter
	History         *usecase.PublicationHistory
	Registry        ledgerRegistry
	RateLimiter     domain.RateLimiter
	Metrics         *metrics.Recorder
	Policy          *policyopa.Engine

	closers []func() error
}

// New wires every backend named by cfg. Optional backends fall back to their
// in-process versions when unconfigured.
func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*App, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	app := &App{Config: cfg, Log: log, ArtifactBackend: cfg.ArtifactBackend, Metrics: metrics.New()}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	dbStore, err := db.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	if dbStore.DB != nil {
		app.closers = append(app.closers, func() error {
			sqlDB, err := dbStore.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		})
	}

	if err := app.openArtifacts(cfg, dbStore); err != nil {
		return nil, err
	}

	var historyRepo usecase.HistoryRepository = historymem.New()
	if dbStore.DB != nil {
		historyRepo = db.NewHistoryRepository(dbStore.DB)
	}
	app.History = usecase.NewPublicationHistory(historyRepo, cfg.HistoryLimit)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = lock.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, rdb.Close)
	}
	var publishLock domain.Lock = lock.NewMemory()
	app.RateLimiter = ratelimit.NewMemory()
	if rdb != nil {
		if publishLock, err = lock.NewRedis(rdb, cfg.PublishLockTTL); err != nil {
			return nil, err
		}
		if app.RateLimiter, err = ratelimit.NewRedis(rdb, "solvency"); err != nil {
			return nil, err
		}
	}

	var (
		client *ethclient.Client
		reader usecase.LedgerReader
	)
	if cfg.RPCURL != "" {
		client, err = ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			return nil, &domain.TransientError{Op: "dial rpc", Err: err}
		}
		app.closers = append(app.closers, func() error { client.Close(); return nil })
		reader = evm.NewLedgerReader(client)
	} else {
		log.Warn("RPC_URL not set; reserves read from an empty static ledger")
		reader = evm.NewStaticReader(nil)
	}

	if client != nil && cfg.RegistryAddress != "" {
		if !common.IsHexAddress(cfg.RegistryAddress) {
			return nil, domain.NewInputError("REGISTRY_ADDRESS", "%q is not a hex address", cfg.RegistryAddress)
		}
		onchain, err := registry.NewEVM(client, common.HexToAddress(cfg.RegistryAddress))
		if err != nil {
			return nil, err
		}
		onchain.PollInterval = cfg.ReceiptPollInterval
		onchain.Log = log
		app.Registry = onchain
	} else {
		log.Warn("registry contract not configured; publishing to an in-process registry")
		app.Registry = registry.NewMemory()
	}

	var signer usecase.Signer
	if cfg.PublisherPrivateKey != "" {
		keySigner, err := evm.NewKeySigner(cfg.PublisherPrivateKey, cfg.ChainID)
		if err != nil {
			return nil, err
		}
		log.WithField("publisher", keySigner.Address().Hex()).Info("publisher key loaded")
		signer = keySigner
	}

	var custody common.Address
	if cfg.CustodyAddress != "" {
		if !common.IsHexAddress(cfg.CustodyAddress) {
			return nil, domain.NewInputError("CUSTODY_ADDRESS", "%q is not a hex address", cfg.CustodyAddress)
		}
		custody = common.HexToAddress(cfg.CustodyAddress)
	}

	app.Policy, err = policyopa.NewEngine(ctx, cfg.PolicyPath)
	if err != nil {
		return nil, err
	}
	log.WithField("policy_hash", app.Policy.BundleHash()).Info("publish policy loaded")

	publisher := usecase.NewLedgerPublisher(app.Registry, cfg.PublishTimeout)
	publisher.Lock = publishLock
	publisher.History = app.History
	publisher.Log = log

	oracle := usecase.NewReservesOracle(reader)
	app.Pipeline = &usecase.Pipeline{
		Store:          app.Store,
		Committer:      usecase.NewMerkleCommitter(cfg.MerkleSortLeaves),
		Oracle:         oracle,
		Composer:       usecase.NewProofComposer(cfg.TokenDecimals),
		Verifier:       usecase.NewProofVerifier(cfg.ProofMaxAge),
		Publisher:      publisher,
		Policy:         app.Policy,
		Signer:         signer,
		Custody:        custody,
		Decimals:       cfg.TokenDecimals,
		AllowInsolvent: cfg.AllowInsolventPublish,
		Observer:       app.Metrics,
		Log:            log,
	}
	app.Exporter = usecase.NewEpochExporter(app.Store)
	app.Exporter.Log = log

	ok = true
	return app, nil
}

func (a *App) openArtifacts(cfg config.Config, dbStore *db.Store) error {
	switch cfg.ArtifactBackend {
	case "", "fs":
		fsStore, err := artifacts.NewFileStore(cfg.ArtifactDir)
		if err != nil {
			return err
		}
		a.Store, a.ArtifactBackend = fsStore, "fs"
	case "sqlite":
		sqliteStore, err := artifacts.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, sqliteStore.Close)
		a.Store = sqliteStore
	case "postgres":
		if dbStore.DB == nil {
			return domain.NewInputError("ARTIFACT_BACKEND", "postgres backend requires POSTGRES_DSN")
		}
		a.Store = db.NewArtifactRepository(dbStore.DB)
	case "memory":
		a.Store = artifacts.NewMemoryStore()
	default:
		return domain.NewInputError("ARTIFACT_BACKEND", "unknown backend %q", cfg.ArtifactBackend)
	}
	return nil
}

// SessionSource reads liabilities from one coordinator session. Nil when no
// coordinator is configured.
func (a *App) SessionSource(sessionID string) usecase.LiabilitySource {
	if a.Config.CoordinatorURL == "" {
		return nil
	}
	return &coordinator.SessionSource{
		URL:       a.Config.CoordinatorURL,
		Timeout:   a.Config.CoordinatorTimeout,
		SessionID: sessionID,
		Decimals:  a.Config.TokenDecimals,
		Log:       a.Log,
	}
}

// ResolveEpochKey maps a registry key back to a locally exported epoch.
func (a *App) ResolveEpochKey(ctx context.Context) (func(common.Hash) (string, bool), error) {
	epochs, err := a.Exporter.List(ctx)
	if err != nil {
		return nil, err
	}
	return usecase.EpochKeyResolver(epochs), nil
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("close app: %w", errors.Join(errs...))
	}
	return nil
}
