package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/cassiomorais/wallet/internal/domain/account"
	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var errNotLocked = errors.New("account not locked in this unit of work")

type AccountRepository struct {
	s *Store
}

func NewAccountRepository(s *Store) *AccountRepository {
	return &AccountRepository{s: s}
}

func (r *AccountRepository) Create(ctx context.Context, acct *account.Account) error {
	return r.s.withUnit(ctx, func(u *unit) error {
		r.s.mu.RLock()
		_, emailTaken := r.s.byEmail[acct.Email]
		_, nidTaken := r.s.byNationalID[acct.NationalID]
		r.s.mu.RUnlock()
		if emailTaken || nidTaken {
			return domainErrors.ErrConflict
		}
		for _, id := range u.created {
			staged := u.accounts[id]
			if staged.Email == acct.Email || staged.NationalID == acct.NationalID {
				return domainErrors.ErrConflict
			}
		}

		cp := *acct
		u.accounts[acct.ID] = &cp
		u.created = append(u.created, acct.ID)
		return nil
	})
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	if u := unitFrom(ctx); u != nil {
		if a, ok := u.accounts[id]; ok {
			cp := *a
			return &cp, nil
		}
	}
	a, ok := r.s.committedAccount(id)
	if !ok {
		return nil, domainErrors.ErrAccountNotFound
	}
	return a, nil
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.getBy(ctx, func(a *account.Account) bool { return a.Email == email }, r.s.byEmail, email)
}

func (r *AccountRepository) GetByNationalID(ctx context.Context, nationalID string) (*account.Account, error) {
	return r.getBy(ctx, func(a *account.Account) bool { return a.NationalID == nationalID }, r.s.byNationalID, nationalID)
}

func (r *AccountRepository) getBy(ctx context.Context, match func(*account.Account) bool, index map[string]uuid.UUID, key string) (*account.Account, error) {
	if u := unitFrom(ctx); u != nil {
		for _, id := range u.created {
			if a := u.accounts[id]; match(a) {
				cp := *a
				return &cp, nil
			}
		}
	}

	r.s.mu.RLock()
	id, ok := index[key]
	r.s.mu.RUnlock()
	if !ok {
		return nil, domainErrors.ErrAccountNotFound
	}
	return r.GetByID(ctx, id)
}

// Lock blocks until the account's lock is free or ctx is done, then returns
// the latest committed state.
func (r *AccountRepository) Lock(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	var locked *account.Account
	err := r.s.withUnit(ctx, func(u *unit) error {
		if a, ok := u.accounts[id]; ok {
			cp := *a
			locked = &cp
			return r.s.acquire(ctx, u, id)
		}

		if err := r.s.acquire(ctx, u, id); err != nil {
			return err
		}
		a, ok := r.s.committedAccount(id)
		if !ok {
			return domainErrors.ErrAccountNotFound
		}
		u.accounts[id] = a
		cp := *a
		locked = &cp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return locked, nil
}

func (r *AccountRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	u := unitFrom(ctx)
	if u == nil {
		return errNotLocked
	}
	a, ok := u.accounts[id]
	if !ok {
		return errNotLocked
	}
	if balance.IsNegative() {
		return domainErrors.ErrInsufficientFunds
	}
	a.Balance = balance
	a.Version++
	return nil
}

func (r *AccountRepository) Search(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]*account.Account, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	digits := account.NormalizeNationalID(q)

	r.s.mu.RLock()
	var found []*account.Account
	for _, a := range r.s.accounts {
		if a.ID == exclude {
			continue
		}
		if strings.Contains(strings.ToLower(a.Name), q) ||
			strings.Contains(a.Email, q) ||
			(digits != "" && strings.Contains(a.NationalID, digits)) {
			cp := *a
			found = append(found, &cp)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(found, func(i, j int) bool {
		if found[i].Name != found[j].Name {
			return found[i].Name < found[j].Name
		}
		return found[i].Email < found[j].Email
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}
