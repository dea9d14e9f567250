package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/wallet/internal/bootstrap"
	"github.com/cassiomorais/wallet/internal/infrastructure/config"
	infraRedis "github.com/cassiomorais/wallet/internal/infrastructure/redis"
	"github.com/cassiomorais/wallet/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const relayLockKey = "wallet:outbox-relay"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, "wallet-worker", "wallet_worker", true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	// The relay reads the outbox written by the API; an in-memory store
	// would be private to this process.
	if app.Config.Storage.Driver != config.DriverPostgres {
		app.Logger.Fatal().Str("storage", app.Config.Storage.Driver).Msg("Worker requires the postgres storage driver")
	}

	workerCfg := app.Config.Worker
	producer := infraRedis.NewStreamProducer(app.Redis, workerCfg.Stream, workerCfg.StreamMaxLen)
	lock := infraRedis.NewDistributedLock(app.Redis, relayLockKey, app.Config.InstanceID, workerCfg.LockTTL)

	relay := worker.NewRelay(
		app.Storage.TxManager,
		app.Storage.Outbox,
		producer,
		lock,
		worker.RelayConfig{
			Stream:           producer.Stream(),
			BatchSize:        workerCfg.BatchSize,
			PollInterval:     workerCfg.OutboxPollInterval,
			BreakerThreshold: workerCfg.CircuitBreakerThreshold,
			BreakerTimeout:   workerCfg.CircuitBreakerTimeout,
		},
		app.Logger,
		app.Metrics,
	)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Outbox relay (polls the outbox table and publishes to Redis Streams).
	g.Go(func() error {
		return relay.Run(gCtx)
	})

	// 2. Metrics endpoint.
	if app.Metrics != nil {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", app.Config.Server.Port),
			Handler:           promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	app.Logger.Info().
		Str("stream", producer.Stream()).
		Str("lock", relayLockKey).
		Msg("Worker started")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}
