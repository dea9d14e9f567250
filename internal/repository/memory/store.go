// Package memory is an in-process storage backend. Accounts are locked one by
// one with channel mutexes that honor context cancellation, writes are staged
// in a unit of work, and a commit applies them under a single write lock so
// readers never observe half of a transfer.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/cassiomorais/wallet/internal/domain/account"
	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/domain/outbox"
	"github.com/google/uuid"
)

type ctxKey int

const unitKey ctxKey = iota

type Store struct {
	mu           sync.RWMutex
	accounts     map[uuid.UUID]*account.Account
	byEmail      map[string]uuid.UUID
	byNationalID map[string]uuid.UUID
	txns         []*ledger.Transaction
	txByID       map[uuid.UUID]*ledger.Transaction
	txByKey      map[string]*ledger.Transaction
	outbox       []*outbox.Entry

	locksMu sync.Mutex
	locks   map[uuid.UUID]chan struct{}
}

func NewStore() *Store {
	return &Store{
		accounts:     make(map[uuid.UUID]*account.Account),
		byEmail:      make(map[string]uuid.UUID),
		byNationalID: make(map[string]uuid.UUID),
		txByID:       make(map[uuid.UUID]*ledger.Transaction),
		txByKey:      make(map[string]*ledger.Transaction),
		locks:        make(map[uuid.UUID]chan struct{}),
	}
}

// Ping always succeeds; it lets the store stand in as a readiness check.
func (s *Store) Ping(context.Context) error {
	return nil
}

// unit stages the writes of one atomic unit of work.
type unit struct {
	held     []uuid.UUID
	accounts map[uuid.UUID]*account.Account
	created  []uuid.UUID
	txns     []*ledger.Transaction
	outbox   []*outbox.Entry
}

func unitFrom(ctx context.Context) *unit {
	u, _ := ctx.Value(unitKey).(*unit)
	return u
}

// WithTransaction runs fn in a unit of work. A nested call joins the
// enclosing unit.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if unitFrom(ctx) != nil {
		return fn(ctx)
	}

	u := &unit{accounts: make(map[uuid.UUID]*account.Account)}
	defer s.release(u)

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(context.WithValue(ctx, unitKey, u)); err != nil {
		return err
	}
	// a caller that gave up before commit leaves no effect
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(u)
}

func (s *Store) withUnit(ctx context.Context, fn func(u *unit) error) error {
	if u := unitFrom(ctx); u != nil {
		return fn(u)
	}
	return s.WithTransaction(ctx, func(ctx context.Context) error {
		return fn(unitFrom(ctx))
	})
}

func (s *Store) commit(u *unit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range u.created {
		a := u.accounts[id]
		if _, ok := s.byEmail[a.Email]; ok {
			return domainErrors.ErrConflict
		}
		if _, ok := s.byNationalID[a.NationalID]; ok {
			return domainErrors.ErrConflict
		}
	}
	for _, tx := range u.txns {
		if _, ok := s.txByKey[tx.IdempotencyKey]; ok {
			return domainErrors.ErrDuplicateIdempotencyKey
		}
	}

	for id, a := range u.accounts {
		cp := *a
		s.accounts[id] = &cp
	}
	for _, id := range u.created {
		a := u.accounts[id]
		s.byEmail[a.Email] = id
		s.byNationalID[a.NationalID] = id
	}
	for _, tx := range u.txns {
		s.txns = append(s.txns, tx)
		s.txByID[tx.ID] = tx
		s.txByKey[tx.IdempotencyKey] = tx
	}
	s.outbox = append(s.outbox, u.outbox...)
	return nil
}

func (s *Store) lockFor(id uuid.UUID) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}
	return ch
}

func (s *Store) acquire(ctx context.Context, u *unit, id uuid.UUID) error {
	for _, h := range u.held {
		if h == id {
			return nil
		}
	}
	select {
	case s.lockFor(id) <- struct{}{}:
		u.held = append(u.held, id)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("lock account %s: %w", id, ctx.Err())
	}
}

func (s *Store) release(u *unit) {
	for i := len(u.held) - 1; i >= 0; i-- {
		<-s.lockFor(u.held[i])
	}
	u.held = nil
}

func (s *Store) committedAccount(id uuid.UUID) (*account.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[id]
	if !ok {
		return nil, false
	}
	cp := *a
	return &cp, true
}
