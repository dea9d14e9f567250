// Package bootstrap wires configuration, observability and the storage and
// session backends shared by the binaries.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/cassiomorais/wallet/internal/domain/account"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/domain/outbox"
	"github.com/cassiomorais/wallet/internal/domain/session"
	"github.com/cassiomorais/wallet/internal/infrastructure/config"
	"github.com/cassiomorais/wallet/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/wallet/internal/infrastructure/redis"
	"github.com/cassiomorais/wallet/internal/repository/memory"
	"github.com/cassiomorais/wallet/internal/repository/postgres"
	"github.com/cassiomorais/wallet/internal/service"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Storage is the ledger's persistence, backed by Postgres or by memory.
type Storage struct {
	Accounts  account.Repository
	Ledger    ledger.Repository
	Outbox    outbox.Repository
	TxManager service.TransactionManager
}

// Probe is a named readiness check.
type Probe struct {
	Name string
	Ping func(ctx context.Context) error
}

type App struct {
	Config   *config.Config
	Logger   zerolog.Logger
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Pool     *pgxpool.Pool // nil with the memory storage driver
	Redis    *redis.Client // nil unless sessions or the relay need it
	Storage  Storage
	Sessions session.Store
	Probes   []Probe

	tracer *sdktrace.TracerProvider
}

// New loads configuration and connects the configured backends. needRedis
// forces a Redis connection even when sessions live in memory.
func New(ctx context.Context, serviceName, metricsNamespace string, needRedis bool) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout).
		With().Str("service", serviceName).Str("instance", cfg.InstanceID).Logger()
	logger.Info().
		Str("storage", cfg.Storage.Driver).
		Str("sessions", cfg.Sessions.Driver).
		Msg("Starting")

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(ctx, serviceName, cfg.Observability.OTLPEndpoint, cfg.Observability.TraceSampleRatio)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			app.tracer = tp
			logger.Info().Str("endpoint", cfg.Observability.OTLPEndpoint).Msg("Tracing enabled")
		}
	}

	if cfg.Observability.EnableMetrics {
		app.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		app.Metrics = observability.NewMetrics(metricsNamespace, app.Registry)
		logger.Info().Msg("Metrics initialized")
	}

	if err := app.connectStorage(ctx); err != nil {
		app.Close()
		return nil, err
	}
	if err := app.connectSessions(ctx, needRedis); err != nil {
		app.Close()
		return nil, err
	}

	return app, nil
}

func (a *App) connectStorage(ctx context.Context) error {
	if a.Config.Storage.Driver == config.DriverMemory {
		store := memory.NewStore()
		a.Storage = Storage{
			Accounts:  memory.NewAccountRepository(store),
			Ledger:    memory.NewLedgerRepository(store),
			Outbox:    memory.NewOutboxRepository(store),
			TxManager: store,
		}
		a.Logger.Warn().Msg("Using in-memory storage; balances are lost on restart")
		return nil
	}

	if a.Config.Database.AutoMigrate {
		if err := postgres.Migrate(a.Config.Database.DatabaseURL(), "up"); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		a.Logger.Info().Msg("Migrations applied")
	}

	pool, err := postgres.NewPool(ctx, &a.Config.Database)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.Pool = pool
	a.Storage = Storage{
		Accounts:  postgres.NewAccountRepository(pool),
		Ledger:    postgres.NewLedgerRepository(pool),
		Outbox:    postgres.NewOutboxRepository(pool),
		TxManager: postgres.NewTxManager(pool),
	}
	a.Probes = append(a.Probes, Probe{Name: "database", Ping: pool.Ping})
	a.Logger.Info().Msg("Connected to PostgreSQL")
	return nil
}

func (a *App) connectSessions(ctx context.Context, needRedis bool) error {
	if a.Config.Sessions.Driver == config.DriverRedis || needRedis {
		client, err := infraRedis.NewClient(ctx, &a.Config.Redis)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		a.Redis = client
		a.Probes = append(a.Probes, Probe{Name: "redis", Ping: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}})
		a.Logger.Info().Str("addr", a.Config.Redis.RedisAddr()).Msg("Connected to Redis")
	}

	if a.Config.Sessions.Driver == config.DriverRedis {
		a.Sessions = infraRedis.NewSessionStore(a.Redis, a.Config.Sessions.KeyPrefix)
	} else {
		a.Sessions = memory.NewSessionStore()
		a.Logger.Warn().Msg("Using in-memory sessions; tokens are lost on restart")
	}
	return nil
}

// Services are the core components built on the App's backends.
type Services struct {
	Ledger   *service.LedgerService
	Accounts *service.AccountService
	Auth     *service.AuthService
	History  *service.HistoryService
}

func (a *App) Services() (*Services, error) {
	cfg := a.Config
	hasher := service.NewBcryptHasher(cfg.Auth.BcryptCost)

	ledgerSvc := service.NewLedgerService(
		a.Storage.Accounts, a.Storage.Ledger, a.Storage.Outbox, a.Storage.TxManager,
		service.LedgerConfig{
			MaxAttempts:    cfg.Ledger.MaxAttempts,
			RetryDelay:     cfg.Ledger.RetryDelay,
			MaxRetryDelay:  cfg.Ledger.MaxRetryDelay,
			AttemptTimeout: cfg.Ledger.AttemptTimeout,
		},
		a.Logger, a.Metrics,
	)

	authSvc, err := service.NewAuthService(a.Storage.Accounts, a.Sessions, hasher, service.AuthConfig{
		Secret:     []byte(cfg.Auth.JWTSecret),
		Issuer:     cfg.Auth.Issuer,
		SessionTTL: cfg.Auth.SessionTTL,
	}, a.Logger, a.Metrics)
	if err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	return &Services{
		Ledger:   ledgerSvc,
		Accounts: service.NewAccountService(a.Storage.Accounts, ledgerSvc, a.Storage.TxManager, hasher, cfg.Ledger.SignupBonusAmount(), a.Logger, a.Metrics),
		Auth:     authSvc,
		History:  service.NewHistoryService(a.Storage.Ledger, cfg.Ledger.HistoryDefaultLimit, cfg.Ledger.HistoryMaxLimit),
	}, nil
}

// Close releases backends and flushes spans.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			a.Logger.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.tracer != nil {
		if err := observability.Shutdown(context.Background(), a.tracer); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to flush traces")
		}
	}
}
