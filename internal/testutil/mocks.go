package testutil

import (
	"context"
	"sync"

	"github.com/cassiomorais/wallet/internal/domain/account"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Account Repository Mock ---

// MockAccountRepository delegates to Next unless a Func override is set.
type MockAccountRepository struct {
	Next account.Repository

	LockFunc          func(ctx context.Context, id uuid.UUID) (*account.Account, error)
	UpdateBalanceFunc func(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error
	GetByIDFunc       func(ctx context.Context, id uuid.UUID) (*account.Account, error)
}

func (m *MockAccountRepository) Create(ctx context.Context, acct *account.Account) error {
	return m.Next.Create(ctx, acct)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return m.Next.GetByID(ctx, id)
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return m.Next.GetByEmail(ctx, email)
}

func (m *MockAccountRepository) GetByNationalID(ctx context.Context, nationalID string) (*account.Account, error) {
	return m.Next.GetByNationalID(ctx, nationalID)
}

func (m *MockAccountRepository) Lock(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	if m.LockFunc != nil {
		return m.LockFunc(ctx, id)
	}
	return m.Next.Lock(ctx, id)
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	if m.UpdateBalanceFunc != nil {
		return m.UpdateBalanceFunc(ctx, id, balance)
	}
	return m.Next.UpdateBalance(ctx, id, balance)
}

func (m *MockAccountRepository) Search(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]*account.Account, error) {
	return m.Next.Search(ctx, query, exclude, limit)
}

// --- Ledger Repository Mock ---

// MockLedgerRepository delegates to Next unless a Func override is set.
type MockLedgerRepository struct {
	Next ledger.Repository

	InsertFunc              func(ctx context.Context, tx *ledger.Transaction) error
	GetByIdempotencyKeyFunc func(ctx context.Context, key string) (*ledger.Transaction, error)
}

func (m *MockLedgerRepository) Insert(ctx context.Context, tx *ledger.Transaction) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, tx)
	}
	return m.Next.Insert(ctx, tx)
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return m.Next.GetByID(ctx, id)
}

func (m *MockLedgerRepository) GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	if m.GetByIdempotencyKeyFunc != nil {
		return m.GetByIdempotencyKeyFunc(ctx, key)
	}
	return m.Next.GetByIdempotencyKey(ctx, key)
}

func (m *MockLedgerRepository) ListForAccount(ctx context.Context, accountID uuid.UUID, page ledger.Page) ([]*ledger.Transaction, error) {
	return m.Next.ListForAccount(ctx, accountID, page)
}

// --- Transaction Manager Mock ---

// MockTransactionManager is a mock implementation of TransactionManager.
// Without an override it delegates to Next, or runs fn directly.
type MockTransactionManager struct {
	Next interface {
		WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
	}
	WithTransactionFunc func(ctx context.Context, fn func(ctx context.Context) error) error

	mu    sync.Mutex
	calls int
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.WithTransactionFunc != nil {
		return m.WithTransactionFunc(ctx, fn)
	}
	if m.Next != nil {
		return m.Next.WithTransaction(ctx, fn)
	}
	return fn(ctx)
}

// Calls returns how many units of work were started.
func (m *MockTransactionManager) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// --- Outbox Repository Mock ---

// MockOutboxRepository is a mock implementation of outbox.Repository.
type MockOutboxRepository struct {
	InsertFunc        func(ctx context.Context, entry *outbox.Entry) error
	GetPendingFunc    func(ctx context.Context, limit int) ([]*outbox.Entry, error)
	MarkPublishedFunc func(ctx context.Context, id uuid.UUID) error
	MarkFailedFunc    func(ctx context.Context, id uuid.UUID) error
}

func (m *MockOutboxRepository) Insert(ctx context.Context, entry *outbox.Entry) error {
	if m.InsertFunc != nil {
		return m.InsertFunc(ctx, entry)
	}
	return nil
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Entry, error) {
	if m.GetPendingFunc != nil {
		return m.GetPendingFunc(ctx, limit)
	}
	return nil, nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	if m.MarkPublishedFunc != nil {
		return m.MarkPublishedFunc(ctx, id)
	}
	return nil
}

func (m *MockOutboxRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	if m.MarkFailedFunc != nil {
		return m.MarkFailedFunc(ctx, id)
	}
	return nil
}

// --- Publisher Mock ---

// MockPublisher records published outbox entries.
type MockPublisher struct {
	PublishFunc func(ctx context.Context, entry *outbox.Entry) error

	mu        sync.Mutex
	Published []*outbox.Entry
}

func (m *MockPublisher) Publish(ctx context.Context, entry *outbox.Entry) error {
	if m.PublishFunc != nil {
		if err := m.PublishFunc(ctx, entry); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, entry)
	return nil
}

func (m *MockPublisher) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Published)
}
