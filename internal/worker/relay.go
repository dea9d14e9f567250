// Package worker drains the transactional outbox into the ledger event stream.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/outbox"
	"github.com/cassiomorais/wallet/internal/infrastructure/observability"
	"github.com/cassiomorais/wallet/internal/service"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Publisher delivers one outbox entry downstream.
type Publisher interface {
	Publish(ctx context.Context, entry *outbox.Entry) error
}

// Leader is a renewable lease. Only the holder relays, so entries are not
// published twice by concurrent worker instances.
type Leader interface {
	Refresh(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type RelayConfig struct {
	Stream           string
	BatchSize        int
	PollInterval     time.Duration
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// Relay polls pending outbox entries and publishes them through a circuit
// breaker. An entry is marked published only after the publisher accepted
// it; delivery is at least once.
type Relay struct {
	txManager  service.TransactionManager
	outboxRepo outbox.Repository
	publisher  Publisher
	leader     Leader
	breaker    *gobreaker.CircuitBreaker[struct{}]
	cfg        RelayConfig
	logger     zerolog.Logger
	metrics    *observability.Metrics
}

// NewRelay builds a relay. A nil leader means this process always relays.
func NewRelay(
	txManager service.TransactionManager,
	outboxRepo outbox.Repository,
	publisher Publisher,
	leader Leader,
	cfg RelayConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *Relay {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}

	r := &Relay{
		txManager:  txManager,
		outboxRepo: outboxRepo,
		publisher:  publisher,
		leader:     leader,
		cfg:        cfg,
		logger:     observability.Component(logger, "outbox-relay"),
		metrics:    metrics,
	}

	breakerName := "publish:" + cfg.Stream
	r.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		IsExcluded: func(err error) bool {
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.metrics.BreakerState(name, to.String())
			r.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})
	metrics.BreakerState(breakerName, gobreaker.StateClosed.String())

	return r
}

// Run relays until ctx is cancelled. Batch errors are logged and retried on
// the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	defer func() {
		if r.leader == nil {
			return
		}
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := r.leader.Release(releaseCtx); err != nil {
			r.logger.Warn().Err(err).Msg("Failed to release relay lock")
		}
	}()

	r.logger.Info().
		Str("stream", r.cfg.Stream).
		Int("batch_size", r.cfg.BatchSize).
		Dur("poll_interval", r.cfg.PollInterval).
		Msg("Outbox relay started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Outbox relay stopped")
			return nil
		case <-ticker.C:
		}

		leading, err := r.lead(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("Relay lock check failed")
			continue
		}
		if !leading {
			continue
		}

		if _, err := r.RelayOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error().Err(err).Msg("Outbox relay batch failed")
		}
	}
}

func (r *Relay) lead(ctx context.Context) (bool, error) {
	if r.leader == nil {
		return true, nil
	}
	return r.leader.Refresh(ctx)
}

// RelayOnce publishes one batch and returns how many entries were
// published. An open breaker ends the batch early and leaves the remaining
// entries pending without spending their retries.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { r.metrics.ObserveRelayBatch(r.cfg.Stream, time.Since(start)) }()

	published := 0
	err := r.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := r.outboxRepo.GetPending(txCtx, r.cfg.BatchSize)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			_, err := r.breaker.Execute(func() (struct{}, error) {
				return struct{}{}, r.publisher.Publish(ctx, entry)
			})

			switch {
			case err == nil:
				r.metrics.BreakerRequest(r.breaker.Name(), "success")
				if err := r.outboxRepo.MarkPublished(txCtx, entry.ID); err != nil {
					return err
				}
				published++
				r.metrics.Relayed(r.cfg.Stream, "published")

			case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
				r.metrics.BreakerRequest(r.breaker.Name(), "rejected")
				r.metrics.Relayed(r.cfg.Stream, "deferred")
				r.logger.Debug().Int("remaining", len(entries)-published).Msg("Breaker open, deferring batch")
				return nil

			case ctx.Err() != nil:
				return ctx.Err()

			default:
				r.metrics.BreakerRequest(r.breaker.Name(), "failure")
				r.metrics.Relayed(r.cfg.Stream, "failed")
				r.logger.Error().
					Err(err).
					Str("outbox_id", entry.ID.String()).
					Str("event_type", entry.EventType).
					Int("retry_count", entry.RetryCount+1).
					Msg("Failed to publish outbox entry")
				if err := r.outboxRepo.MarkFailed(txCtx, entry.ID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if published > 0 {
		r.logger.Debug().Int("published", published).Str("stream", r.cfg.Stream).Msg("Outbox batch relayed")
	}
	return published, nil
}
