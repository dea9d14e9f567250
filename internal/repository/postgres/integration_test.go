//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/account"
	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/repository/postgres"
	"github.com/cassiomorais/wallet/internal/service"
	"github.com/cassiomorais/wallet/internal/testutil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"golang.org/x/sync/errgroup"
)

type PostgresSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	pool      *pgxpool.Pool

	accounts *postgres.AccountRepository
	ledger   *postgres.LedgerRepository
	outbox   *postgres.OutboxRepository
	txm      *postgres.TxManager
	engine   *service.LedgerService
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("wallet"),
		tcpostgres.WithUsername("wallet"),
		tcpostgres.WithPassword("wallet"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = ctr

	url, err := ctr.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.Require().NoError(postgres.Migrate(url, "up"))

	s.pool, err = pgxpool.New(ctx, url)
	s.Require().NoError(err)

	s.accounts = postgres.NewAccountRepository(s.pool)
	s.ledger = postgres.NewLedgerRepository(s.pool)
	s.outbox = postgres.NewOutboxRepository(s.pool)
	s.txm = postgres.NewTxManager(s.pool)
	s.engine = service.NewLedgerService(s.accounts, s.ledger, s.outbox, s.txm, service.LedgerConfig{
		MaxAttempts:    5,
		RetryDelay:     5 * time.Millisecond,
		MaxRetryDelay:  50 * time.Millisecond,
		AttemptTimeout: 5 * time.Second,
	}, zerolog.Nop(), nil)
}

func (s *PostgresSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		s.NoError(testcontainers.TerminateContainer(s.container))
	}
}

func (s *PostgresSuite) SetupTest() {
	_, err := s.pool.Exec(context.Background(), `TRUNCATE outbox, transactions, accounts`)
	s.Require().NoError(err)
}

func (s *PostgresSuite) seed(name, balance string) *account.Account {
	acct := testutil.NewTestAccount(name, "", balance)
	s.Require().NoError(s.accounts.Create(context.Background(), acct))
	return acct
}

func (s *PostgresSuite) balance(acct *account.Account) string {
	got, err := s.accounts.GetByID(context.Background(), acct.ID)
	s.Require().NoError(err)
	return got.Balance.StringFixed(2)
}

func (s *PostgresSuite) transfer(ctx context.Context, from, to *account.Account, amount, key string) (*service.TransferResult, error) {
	return s.engine.Transfer(ctx, service.TransferRequest{
		CallerID:            from.ID,
		RecipientIdentifier: to.Email,
		Amount:              decimal.RequireFromString(amount),
		IdempotencyKey:      key,
	})
}

func (s *PostgresSuite) TestCreate_Conflict() {
	ctx := context.Background()
	a := s.seed("Alice", "0")

	dup := testutil.NewTestAccount("Other", a.NationalID, "0")
	s.ErrorIs(s.accounts.Create(ctx, dup), domainErrors.ErrConflict)

	other := testutil.NationalIDs[0]
	if other == a.NationalID {
		other = testutil.NationalIDs[1]
	}
	dup = testutil.NewTestAccount("Other", other, "0")
	dup.Email = a.Email
	s.ErrorIs(s.accounts.Create(ctx, dup), domainErrors.ErrConflict)
}

func (s *PostgresSuite) TestTransfer_Rent() {
	ctx := context.Background()
	a := s.seed("Alice", "100.00")
	b := s.seed("Bob", "0")

	res, err := s.transfer(ctx, a, b, "30.00", "rent")
	s.Require().NoError(err)
	s.Equal("70.00", res.SenderBalance.StringFixed(2))
	s.Equal("70.00", s.balance(a))
	s.Equal("30.00", s.balance(b))

	for _, id := range []*account.Account{a, b} {
		txns, err := s.ledger.ListForAccount(ctx, id.ID, ledger.Page{Limit: 10})
		s.Require().NoError(err)
		s.Require().Len(txns, 1)
		s.Equal(res.Transaction.ID, txns[0].ID)
		s.True(txns[0].Amount.Equal(decimal.RequireFromString("30")))
	}

	pending, err := s.outbox.GetPending(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(res.Transaction.ID, pending[0].AggregateID)
	s.Equal("30.00", pending[0].Payload["amount"])
}

func (s *PostgresSuite) TestTransfer_IdempotencyKeyIsUnique() {
	ctx := context.Background()
	a := s.seed("Alice", "100.00")
	b := s.seed("Bob", "0")

	first, err := s.transfer(ctx, a, b, "10.00", "same")
	s.Require().NoError(err)

	again, err := s.transfer(ctx, a, b, "10.00", "same")
	s.Require().NoError(err)
	s.True(again.Replayed)
	s.Equal(first.Transaction.ID, again.Transaction.ID)
	s.Equal("90.00", s.balance(a))

	// a raw insert with a used key is classified
	dup := *first.Transaction
	dup.ID = uuid.New()
	s.ErrorIs(s.ledger.Insert(ctx, &dup), domainErrors.ErrDuplicateIdempotencyKey)
}

func (s *PostgresSuite) TestTransfer_ConcurrentOverdraft() {
	a := s.seed("Alice", "100.00")
	b := s.seed("Bob", "0")

	var (
		mu           sync.Mutex
		committed    int
		insufficient int
	)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.transfer(context.Background(), a, b, "30.00", fmt.Sprintf("k-%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				committed++
			case errors.Is(err, domainErrors.ErrInsufficientFunds):
				insufficient++
			default:
				s.Failf("unexpected error", "%v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(3, committed)
	s.Equal(7, insufficient)
	s.Equal("10.00", s.balance(a))
	s.Equal("90.00", s.balance(b))
}

func (s *PostgresSuite) TestTransfer_OppositeDirections() {
	a := s.seed("Alice", "100.00")
	b := s.seed("Bob", "100.00")

	g, ctx := errgroup.WithContext(context.Background())
	for i := range 10 {
		g.Go(func() error {
			_, err := s.transfer(ctx, a, b, "6.00", fmt.Sprintf("ab-%d", i))
			return err
		})
		g.Go(func() error {
			_, err := s.transfer(ctx, b, a, "5.00", fmt.Sprintf("ba-%d", i))
			return err
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal("90.00", s.balance(a))
	s.Equal("110.00", s.balance(b))
}

func (s *PostgresSuite) TestHistory_OrderAndCursor() {
	ctx := context.Background()
	a := s.seed("Alice", "100.00")
	b := s.seed("Bob", "0")

	var ids []string
	for i := range 5 {
		res, err := s.transfer(ctx, a, b, "1.00", fmt.Sprintf("h-%d", i))
		s.Require().NoError(err)
		ids = append(ids, res.Transaction.ID.String())
	}

	page, err := s.ledger.ListForAccount(ctx, b.ID, ledger.Page{Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(ids[4], page[0].ID.String())
	s.Equal(ids[3], page[1].ID.String())

	cursor := page[1].ID
	rest, err := s.ledger.ListForAccount(ctx, b.ID, ledger.Page{Limit: 10, Before: &cursor})
	s.Require().NoError(err)
	s.Require().Len(rest, 3)
	s.Equal(ids[2], rest[0].ID.String())
	s.Equal(ids[0], rest[2].ID.String())

	stranger := s.seed("Carol", "0")
	_, err = s.ledger.ListForAccount(ctx, stranger.ID, ledger.Page{Limit: 10, Before: &cursor})
	s.ErrorIs(err, domainErrors.ErrInvalidInput)
}

func (s *PostgresSuite) TestSearch() {
	ctx := context.Background()
	caller := s.seed("Mariana", "0")
	s.seed("Mario", "0")
	s.seed("Carlos", "0")

	found, err := s.accounts.Search(ctx, "MAR", caller.ID, 5)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("Mario", found[0].Name)

	found, err = s.accounts.Search(ctx, "100%", caller.ID, 5)
	s.Require().NoError(err)
	s.Empty(found)
}

func (s *PostgresSuite) TestOutbox_SkipLocked() {
	ctx := context.Background()
	a := s.seed("Alice", "10.00")
	b := s.seed("Bob", "0")
	_, err := s.transfer(ctx, a, b, "1.00", "o-1")
	s.Require().NoError(err)

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- s.txm.WithTransaction(ctx, func(txCtx context.Context) error {
			entries, err := s.outbox.GetPending(txCtx, 10)
			if err != nil {
				return err
			}
			if len(entries) != 1 {
				return fmt.Errorf("want 1 entry, got %d", len(entries))
			}
			close(locked)
			<-release
			return s.outbox.MarkPublished(txCtx, entries[0].ID)
		})
	}()
	<-locked

	err = s.txm.WithTransaction(ctx, func(txCtx context.Context) error {
		entries, err := s.outbox.GetPending(txCtx, 10)
		s.Empty(entries)
		return err
	})
	s.NoError(err)
	close(release)
	s.Require().NoError(<-done)
}
