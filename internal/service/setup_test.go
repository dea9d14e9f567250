package service

import (
	"context"
	"testing"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/account"
	"github.com/cassiomorais/wallet/internal/domain/outbox"
	"github.com/cassiomorais/wallet/internal/repository/memory"
	"github.com/cassiomorais/wallet/internal/testutil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret-test-secret-test-secret!")

type fixture struct {
	store      *memory.Store
	accounts   *memory.AccountRepository
	ledgerRepo *memory.LedgerRepository
	outboxRepo *memory.OutboxRepository
	sessions   *memory.SessionStore
	hasher     *BcryptHasher

	ledger   *LedgerService
	registry *AccountService
	auth     *AuthService
	history  *HistoryService
}

func fastLedgerConfig() LedgerConfig {
	return LedgerConfig{
		MaxAttempts:    3,
		RetryDelay:     time.Millisecond,
		MaxRetryDelay:  5 * time.Millisecond,
		AttemptTimeout: 2 * time.Second,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	f := &fixture{
		store:      store,
		accounts:   memory.NewAccountRepository(store),
		ledgerRepo: memory.NewLedgerRepository(store),
		outboxRepo: memory.NewOutboxRepository(store),
		sessions:   memory.NewSessionStore(),
		hasher:     NewBcryptHasher(bcrypt.MinCost),
	}
	f.ledger = NewLedgerService(f.accounts, f.ledgerRepo, f.outboxRepo, store, fastLedgerConfig(), zerolog.Nop(), nil)
	f.registry = NewAccountService(f.accounts, f.ledger, store, f.hasher, decimal.RequireFromString("10.00"), zerolog.Nop(), nil)
	f.history = NewHistoryService(f.ledgerRepo, 50, 100)

	auth, err := NewAuthService(f.accounts, f.sessions, f.hasher, AuthConfig{
		Secret:     testSecret,
		Issuer:     "wallet-test",
		SessionTTL: time.Hour,
	}, zerolog.Nop(), nil)
	require.NoError(t, err)
	f.auth = auth

	return f
}

// seed stores an account with a balance written directly, outside the ledger.
func (f *fixture) seed(t *testing.T, name, balance string) *account.Account {
	t.Helper()
	acct := testutil.NewTestAccount(name, "", balance)
	require.NoError(t, f.accounts.Create(context.Background(), acct))
	return acct
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) string {
	t.Helper()
	acct, err := f.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return acct.Balance.StringFixed(2)
}

func (f *fixture) pendingOutbox(t *testing.T) []*outbox.Entry {
	t.Helper()
	entries, err := f.outboxRepo.GetPending(context.Background(), 1000)
	require.NoError(t, err)
	return entries
}

func (f *fixture) transferReq(from, to *account.Account, amount, key string) TransferRequest {
	return TransferRequest{
		CallerID:            from.ID,
		RecipientIdentifier: to.Email,
		Amount:              decimal.RequireFromString(amount),
		IdempotencyKey:      key,
	}
}
