package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/account"
	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/domain/outbox"
	"github.com/cassiomorais/wallet/internal/infrastructure/observability"
	"github.com/cassiomorais/wallet/pkg/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var ledgerTracer = observability.Tracer("ledger")

type LedgerConfig struct {
	MaxAttempts    uint
	RetryDelay     time.Duration
	MaxRetryDelay  time.Duration
	AttemptTimeout time.Duration
}

func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxAttempts:    5,
		RetryDelay:     20 * time.Millisecond,
		MaxRetryDelay:  500 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	}
}

// LedgerService is the transfer engine. Every balance change runs in one
// unit of work that locks the involved accounts in ascending id order.
type LedgerService struct {
	accountRepo account.Repository
	ledgerRepo  ledger.Repository
	outboxRepo  outbox.Repository
	txManager   TransactionManager
	cfg         LedgerConfig
	now         func() time.Time
	logger      zerolog.Logger
	metrics     *observability.Metrics
}

func NewLedgerService(
	accountRepo account.Repository,
	ledgerRepo ledger.Repository,
	outboxRepo outbox.Repository,
	txManager TransactionManager,
	cfg LedgerConfig,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *LedgerService {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultLedgerConfig().AttemptTimeout
	}
	return &LedgerService{
		accountRepo: accountRepo,
		ledgerRepo:  ledgerRepo,
		outboxRepo:  outboxRepo,
		txManager:   txManager,
		cfg:         cfg,
		now:         time.Now,
		logger:      observability.Component(logger, "ledger"),
		metrics:     metrics,
	}
}

// Transfer moves req.Amount from the caller to the resolved recipient.
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	start := time.Now()
	ctx, span := ledgerTracer.Start(ctx, "ledger.Transfer")
	defer span.End()
	span.SetAttributes(attribute.String("account.id", req.CallerID.String()))

	result, err := s.transfer(ctx, req)

	outcome := transferOutcome(result, err)
	s.metrics.ObserveTransfer(outcome, time.Since(start))
	span.SetAttributes(attribute.String("transfer.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		return nil, err
	}
	span.SetAttributes(attribute.String("transaction.id", result.Transaction.ID.String()))
	return result, nil
}

func (s *LedgerService) transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	key, err := ledger.ScopedKey(req.CallerID, req.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	// 1. Resolve recipient
	recipient, err := s.resolveRecipient(ctx, req.RecipientIdentifier)
	if err != nil {
		return nil, err
	}

	// 2. No self transfers
	if recipient.ID == req.CallerID {
		return nil, domainErrors.ErrInvalidSelfTransfer
	}

	// 3. Amount must be positive with cent precision
	if err := ledger.ValidateAmount(req.Amount); err != nil {
		return nil, err
	}

	// 4. Idempotency: a committed key is answered with its original result
	if replay, err := s.replay(ctx, req.CallerID, key); err != nil || replay != nil {
		return replay, err
	}

	// 5-8. Atomic unit with bounded retries
	var result *TransferResult
	cfg := retry.Config{
		MaxAttempts:  s.cfg.MaxAttempts,
		InitialDelay: s.cfg.RetryDelay,
		MaxDelay:     s.cfg.MaxRetryDelay,
		RetryIf: func(err error) bool {
			// an attempt that timed out waiting for a lock is retried while
			// the caller is still waiting
			return domainErrors.IsRetryable(err) ||
				(errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil)
		},
		OnRetry: func(n uint, err error) {
			s.metrics.TransferRetried()
			s.logger.Warn().Err(err).
				Uint("attempt", n+1).
				Str("account_id", req.CallerID.String()).
				Str("idempotency_key", key).
				Msg("Transfer attempt conflicted, retrying")
		},
	}
	err = retry.Do(ctx, cfg, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
		defer cancel()

		r, err := s.attempt(attemptCtx, req.CallerID, recipient.ID, req.Amount, req.Description, key)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	switch {
	case err == nil:
		s.logger.Info().
			Str("transaction_id", result.Transaction.ID.String()).
			Str("account_id", req.CallerID.String()).
			Str("recipient_id", recipient.ID.String()).
			Str("amount", ledger.Format(req.Amount)).
			Str("idempotency_key", key).
			Msg("Transfer committed")
		return result, nil

	case ctx.Err() != nil:
		// the caller went away or the request deadline passed; nothing committed
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrTransferFailed, ctx.Err())

	case errors.Is(err, domainErrors.ErrDuplicateIdempotencyKey):
		// a concurrent request with the same key won the race
		replay, rerr := s.replay(ctx, req.CallerID, key)
		if rerr != nil {
			return nil, rerr
		}
		if replay == nil {
			return nil, fmt.Errorf("%w: %w", domainErrors.ErrTransferFailed, err)
		}
		return replay, nil

	case domainErrors.IsRetryable(err), errors.Is(err, context.DeadlineExceeded):
		s.logger.Error().Err(err).
			Str("account_id", req.CallerID.String()).
			Str("idempotency_key", key).
			Msg("Transfer failed after retries")
		return nil, fmt.Errorf("%w: %w", domainErrors.ErrTransferFailed, err)

	default:
		return nil, err
	}
}

// attempt runs one unit of work: lock both accounts in id order, re-read
// and check the sender balance, debit, credit, append the transaction and
// its outbox event.
func (s *LedgerService) attempt(ctx context.Context, callerID, recipientID uuid.UUID, amount decimal.Decimal, description, key string) (*TransferResult, error) {
	var result *TransferResult
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		locked := make(map[uuid.UUID]*account.Account, 2)
		for _, id := range sortUUIDs(callerID, recipientID) {
			acct, err := s.accountRepo.Lock(txCtx, id)
			if err != nil {
				if errors.Is(err, domainErrors.ErrAccountNotFound) && id == recipientID {
					return domainErrors.ErrRecipientNotFound
				}
				return err
			}
			locked[id] = acct
		}
		sender, recipient := locked[callerID], locked[recipientID]

		if err := sender.Debit(amount); err != nil {
			return err
		}
		if err := recipient.Credit(amount); err != nil {
			return err
		}

		// stamped while both locks are held, so per-account history order
		// follows commit order
		tx, err := ledger.NewTransaction(ledger.KindTransfer, sender.ID, recipient.ID, amount, description, key, s.now())
		if err != nil {
			return err
		}
		tx.FromName = sender.Name
		tx.ToName = recipient.Name

		if err := s.accountRepo.UpdateBalance(txCtx, sender.ID, sender.Balance); err != nil {
			return err
		}
		if err := s.accountRepo.UpdateBalance(txCtx, recipient.ID, recipient.Balance); err != nil {
			return err
		}
		if err := s.ledgerRepo.Insert(txCtx, tx); err != nil {
			return err
		}
		if err := s.outboxRepo.Insert(txCtx, outbox.ForTransaction(tx)); err != nil {
			return err
		}

		result = &TransferResult{
			Transaction:   tx,
			SenderBalance: sender.Balance,
			RecipientName: recipient.Name,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// replay returns the committed result for key, or nil when there is none.
func (s *LedgerService) replay(ctx context.Context, callerID uuid.UUID, key string) (*TransferResult, error) {
	existing, err := s.ledgerRepo.GetByIdempotencyKey(ctx, key)
	if errors.Is(err, domainErrors.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sender, err := s.accountRepo.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}

	s.metrics.TransferReplayed()
	s.logger.Debug().
		Str("transaction_id", existing.ID.String()).
		Str("idempotency_key", key).
		Msg("Transfer replayed from idempotency key")

	return &TransferResult{
		Transaction:   existing,
		SenderBalance: sender.Balance,
		RecipientName: existing.ToName,
		Replayed:      true,
	}, nil
}

func (s *LedgerService) resolveRecipient(ctx context.Context, identifier string) (*account.Account, error) {
	kind, value, err := account.ParseIdentifier(identifier)
	if err != nil {
		return nil, err
	}

	var recipient *account.Account
	switch kind {
	case account.IdentifierEmail:
		recipient, err = s.accountRepo.GetByEmail(ctx, value)
	default:
		recipient, err = s.accountRepo.GetByNationalID(ctx, value)
	}
	if errors.Is(err, domainErrors.ErrAccountNotFound) {
		return nil, domainErrors.ErrRecipientNotFound
	}
	if err != nil {
		return nil, err
	}
	return recipient, nil
}

// Issue credits system-issued money (the signup bonus) to an account from
// the notional issuance account. Called with a context inside a unit of work
// it joins that unit. Reusing key returns the original transaction.
func (s *LedgerService) Issue(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal, description, key string) (*ledger.Transaction, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.Issue")
	defer span.End()

	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, err
	}

	var issued *ledger.Transaction
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		acct, err := s.accountRepo.Lock(txCtx, accountID)
		if err != nil {
			return err
		}
		if err := acct.Credit(amount); err != nil {
			return err
		}

		tx, err := ledger.NewTransaction(ledger.KindIssuance, ledger.IssuanceAccountID, acct.ID, amount, description, key, s.now())
		if err != nil {
			return err
		}
		tx.FromName = ledger.IssuerName
		tx.ToName = acct.Name

		if err := s.accountRepo.UpdateBalance(txCtx, acct.ID, acct.Balance); err != nil {
			return err
		}
		if err := s.ledgerRepo.Insert(txCtx, tx); err != nil {
			return err
		}
		if err := s.outboxRepo.Insert(txCtx, outbox.ForTransaction(tx)); err != nil {
			return err
		}
		issued = tx
		return nil
	})
	if errors.Is(err, domainErrors.ErrDuplicateIdempotencyKey) {
		return s.ledgerRepo.GetByIdempotencyKey(ctx, key)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue failed")
		return nil, err
	}

	f, _ := amount.Float64()
	s.metrics.Issued(f)
	return issued, nil
}

func transferOutcome(result *TransferResult, err error) string {
	switch {
	case err == nil && result.Replayed:
		return "replayed"
	case err == nil:
		return "committed"
	case errors.Is(err, domainErrors.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domainErrors.ErrRecipientNotFound):
		return "recipient_not_found"
	case errors.Is(err, domainErrors.ErrInvalidAmount),
		errors.Is(err, domainErrors.ErrInvalidSelfTransfer),
		errors.Is(err, domainErrors.ErrInvalidInput):
		return "rejected"
	case errors.Is(err, domainErrors.ErrTransferFailed):
		return "failed"
	default:
		return "error"
	}
}

// sortUUIDs returns the two ids in ascending byte order, the global lock
// order for accounts.
func sortUUIDs(a, b uuid.UUID) [2]uuid.UUID {
	if bytes.Compare(a[:], b[:]) < 0 {
		return [2]uuid.UUID{a, b}
	}
	return [2]uuid.UUID{b, a}
}
