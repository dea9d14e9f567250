package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/account"
	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/domain/outbox"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAccount(t *testing.T, s *Store, email, nationalID, balance string) *account.Account {
	t.Helper()
	acct, err := account.NewAccount("Holder "+email, email, nationalID, "hash")
	require.NoError(t, err)
	acct.Balance = decimal.RequireFromString(balance)
	require.NoError(t, NewAccountRepository(s).Create(context.Background(), acct))
	return acct
}

func TestCreate_Conflict(t *testing.T) {
	s := NewStore()
	seedAccount(t, s, "a@example.com", "52998224725", "0")

	dup, err := account.NewAccount("Other", "A@example.com", "11144477735", "hash")
	require.NoError(t, err)
	err = NewAccountRepository(s).Create(context.Background(), dup)
	assert.ErrorIs(t, err, domainErrors.ErrConflict)

	dup, err = account.NewAccount("Other", "b@example.com", "529.982.247-25", "hash")
	require.NoError(t, err)
	err = NewAccountRepository(s).Create(context.Background(), dup)
	assert.ErrorIs(t, err, domainErrors.ErrConflict)
}

func TestGetters_NotFound(t *testing.T) {
	s := NewStore()
	repo := NewAccountRepository(s)
	ctx := context.Background()

	_, err := repo.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, domainErrors.ErrAccountNotFound)
	_, err = repo.GetByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, domainErrors.ErrAccountNotFound)
	_, err = repo.GetByNationalID(ctx, "52998224725")
	assert.ErrorIs(t, err, domainErrors.ErrAccountNotFound)
}

func TestWithTransaction_RollbackDiscardsStagedWrites(t *testing.T) {
	s := NewStore()
	accounts := NewAccountRepository(s)
	txns := NewLedgerRepository(s)
	a := seedAccount(t, s, "a@example.com", "52998224725", "100")
	b := seedAccount(t, s, "b@example.com", "11144477735", "0")
	boom := errors.New("boom")

	err := s.WithTransaction(context.Background(), func(ctx context.Context) error {
		_, err := accounts.Lock(ctx, a.ID)
		require.NoError(t, err)
		require.NoError(t, accounts.UpdateBalance(ctx, a.ID, decimal.RequireFromString("40")))

		tx, err := ledger.NewTransaction(ledger.KindTransfer, a.ID, b.ID, decimal.RequireFromString("60"), "", "k", time.Now())
		require.NoError(t, err)
		require.NoError(t, txns.Insert(ctx, tx))

		// visible inside the unit
		got, err := accounts.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "40.00", ledger.Format(got.Balance))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := accounts.GetByID(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", ledger.Format(got.Balance))

	_, err = txns.GetByIdempotencyKey(context.Background(), "k")
	assert.ErrorIs(t, err, domainErrors.ErrTransactionNotFound)

	// lock was released
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := accounts.Lock(ctx, a.ID)
		return err
	}))
}

func TestLock_BlocksUntilReleasedOrCancelled(t *testing.T) {
	s := NewStore()
	accounts := NewAccountRepository(s)
	a := seedAccount(t, s, "a@example.com", "52998224725", "100")

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = s.WithTransaction(context.Background(), func(ctx context.Context) error {
			_, err := accounts.Lock(ctx, a.ID)
			assert.NoError(t, err)
			close(held)
			<-done
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		_, err := accounts.Lock(ctx, a.ID)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(done)
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	assert.NoError(t, s.WithTransaction(ctx2, func(ctx context.Context) error {
		_, err := accounts.Lock(ctx, a.ID)
		return err
	}))
}

func TestNestedTransactionJoinsUnit(t *testing.T) {
	s := NewStore()
	accounts := NewAccountRepository(s)

	acct, err := account.NewAccount("Nested", "n@example.com", "39053344705", "hash")
	require.NoError(t, err)

	err = s.WithTransaction(context.Background(), func(ctx context.Context) error {
		if err := accounts.Create(ctx, acct); err != nil {
			return err
		}
		return s.WithTransaction(ctx, func(ctx context.Context) error {
			locked, err := accounts.Lock(ctx, acct.ID)
			if err != nil {
				return err
			}
			return accounts.UpdateBalance(ctx, locked.ID, decimal.RequireFromString("10"))
		})
	})
	require.NoError(t, err)

	got, err := accounts.GetByEmail(context.Background(), "n@example.com")
	require.NoError(t, err)
	assert.Equal(t, "10.00", ledger.Format(got.Balance))
}

func TestUpdateBalance_RequiresLock(t *testing.T) {
	s := NewStore()
	a := seedAccount(t, s, "a@example.com", "52998224725", "100")

	err := NewAccountRepository(s).UpdateBalance(context.Background(), a.ID, decimal.Zero)
	assert.Error(t, err)
}

func TestLedger_DuplicateKey(t *testing.T) {
	s := NewStore()
	txns := NewLedgerRepository(s)
	a, b := uuid.New(), uuid.New()

	tx1, err := ledger.NewTransaction(ledger.KindTransfer, a, b, decimal.RequireFromString("1"), "", "same", time.Now())
	require.NoError(t, err)
	require.NoError(t, txns.Insert(context.Background(), tx1))

	tx2, err := ledger.NewTransaction(ledger.KindTransfer, a, b, decimal.RequireFromString("2"), "", "same", time.Now())
	require.NoError(t, err)
	assert.ErrorIs(t, txns.Insert(context.Background(), tx2), domainErrors.ErrDuplicateIdempotencyKey)
}

func TestListForAccount_OrderAndCursor(t *testing.T) {
	s := NewStore()
	txns := NewLedgerRepository(s)
	ctx := context.Background()
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	insert := func(from, to uuid.UUID, at time.Time, key string) *ledger.Transaction {
		tx, err := ledger.NewTransaction(ledger.KindTransfer, from, to, decimal.RequireFromString("1"), "", key, at)
		require.NoError(t, err)
		require.NoError(t, txns.Insert(ctx, tx))
		return tx
	}

	t1 := insert(a, b, base, "1")
	t2 := insert(b, a, base.Add(time.Second), "2")
	t3 := insert(a, b, base.Add(time.Second), "3") // same timestamp as t2
	insert(b, c, base.Add(2*time.Second), "4")     // not involving a

	page, err := txns.ListForAccount(ctx, a, ledger.Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, t1.ID, page[2].ID)
	// uuid v7 ids generated later sort higher
	assert.Equal(t, []uuid.UUID{t3.ID, t2.ID}, []uuid.UUID{page[0].ID, page[1].ID})

	first, err := txns.ListForAccount(ctx, a, ledger.Page{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first, 2)

	insert(a, c, base.Add(time.Minute), "5")

	cursor := first[1].ID
	rest, err := txns.ListForAccount(ctx, a, ledger.Page{Limit: 2, Before: &cursor})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, t1.ID, rest[0].ID)

	empty, err := txns.ListForAccount(ctx, a, ledger.Page{Limit: 2, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	unknown := uuid.New()
	_, err = txns.ListForAccount(ctx, a, ledger.Page{Limit: 2, Before: &unknown})
	assert.ErrorIs(t, err, domainErrors.ErrInvalidInput)
}

func TestSearch(t *testing.T) {
	s := NewStore()
	me := seedAccount(t, s, "ana@example.com", "52998224725", "0")
	seedAccount(t, s, "anabela@example.com", "11144477735", "0")
	seedAccount(t, s, "bruno@example.com", "39053344705", "0")

	found, err := NewAccountRepository(s).Search(context.Background(), "ANA", me.ID, 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "anabela@example.com", found[0].Email)

	found, err = NewAccountRepository(s).Search(context.Background(), "390.533", uuid.Nil, 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bruno@example.com", found[0].Email)
}

func TestOutbox_Lifecycle(t *testing.T) {
	s := NewStore()
	repo := NewOutboxRepository(s)
	ctx := context.Background()

	entry := outbox.NewEntry(outbox.AggregateTransaction, uuid.New(), outbox.EventTransferCommitted, nil)
	entry.MaxRetries = 2
	require.NoError(t, repo.Insert(ctx, entry))

	pending, err := repo.GetPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.MarkFailed(ctx, entry.ID))
	pending, _ = repo.GetPending(ctx, 10)
	require.Len(t, pending, 1)
	assert.Equal(t, 1, pending[0].RetryCount)

	require.NoError(t, repo.MarkFailed(ctx, entry.ID))
	pending, _ = repo.GetPending(ctx, 10)
	assert.Empty(t, pending)

	other := outbox.NewEntry(outbox.AggregateTransaction, uuid.New(), outbox.EventTransferCommitted, nil)
	require.NoError(t, repo.Insert(ctx, other))
	require.NoError(t, repo.MarkPublished(ctx, other.ID))
	pending, _ = repo.GetPending(ctx, 10)
	assert.Empty(t, pending)
}
