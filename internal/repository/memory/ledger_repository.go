package memory

import (
	"context"
	"sort"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/google/uuid"
)

type LedgerRepository struct {
	s *Store
}

func NewLedgerRepository(s *Store) *LedgerRepository {
	return &LedgerRepository{s: s}
}

func (r *LedgerRepository) Insert(ctx context.Context, tx *ledger.Transaction) error {
	return r.s.withUnit(ctx, func(u *unit) error {
		r.s.mu.RLock()
		_, taken := r.s.txByKey[tx.IdempotencyKey]
		r.s.mu.RUnlock()
		if taken {
			return domainErrors.ErrDuplicateIdempotencyKey
		}
		for _, staged := range u.txns {
			if staged.IdempotencyKey == tx.IdempotencyKey {
				return domainErrors.ErrDuplicateIdempotencyKey
			}
		}

		cp := *tx
		u.txns = append(u.txns, &cp)
		return nil
	})
}

func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return r.find(ctx, func(tx *ledger.Transaction) bool { return tx.ID == id }, func() (*ledger.Transaction, bool) {
		tx, ok := r.s.txByID[id]
		return tx, ok
	})
}

func (r *LedgerRepository) GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	return r.find(ctx, func(tx *ledger.Transaction) bool { return tx.IdempotencyKey == key }, func() (*ledger.Transaction, bool) {
		tx, ok := r.s.txByKey[key]
		return tx, ok
	})
}

func (r *LedgerRepository) find(ctx context.Context, match func(*ledger.Transaction) bool, committed func() (*ledger.Transaction, bool)) (*ledger.Transaction, error) {
	if u := unitFrom(ctx); u != nil {
		for _, tx := range u.txns {
			if match(tx) {
				cp := *tx
				return &cp, nil
			}
		}
	}

	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	tx, ok := committed()
	if !ok {
		return nil, domainErrors.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *LedgerRepository) ListForAccount(ctx context.Context, accountID uuid.UUID, page ledger.Page) ([]*ledger.Transaction, error) {
	r.s.mu.RLock()
	var cursor *ledger.Transaction
	if page.Before != nil {
		c, ok := r.s.txByID[*page.Before]
		if !ok || !c.Involves(accountID) {
			r.s.mu.RUnlock()
			return nil, domainErrors.NewValidationError("before", "unknown transaction")
		}
		cursor = c
	}

	var matched []*ledger.Transaction
	for _, tx := range r.s.txns {
		if !tx.Involves(accountID) {
			continue
		}
		if cursor != nil && !cursor.Before(tx) {
			continue
		}
		cp := *tx
		matched = append(matched, &cp)
	}
	r.s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].Before(matched[j]) })

	if page.Offset >= len(matched) {
		return []*ledger.Transaction{}, nil
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && len(matched) > page.Limit {
		matched = matched[:page.Limit]
	}
	return matched, nil
}
