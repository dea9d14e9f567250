package service

import (
	"context"

	"github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/google/uuid"
)

// HistoryService reads an account's committed transactions, newest first.
type HistoryService struct {
	ledgerRepo   ledger.Repository
	defaultLimit int
	maxLimit     int
}

func NewHistoryService(ledgerRepo ledger.Repository, defaultLimit, maxLimit int) *HistoryService {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = min(50, maxLimit)
	}
	return &HistoryService{
		ledgerRepo:   ledgerRepo,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// List returns one page of the account's history. A zero limit takes the
// default page size; larger limits are capped.
func (s *HistoryService) List(ctx context.Context, accountID uuid.UUID, page ledger.Page) ([]*ledger.Transaction, error) {
	if page.Offset < 0 {
		return nil, errors.NewValidationError("offset", "cannot be negative")
	}
	switch {
	case page.Limit < 0:
		return nil, errors.NewValidationError("limit", "cannot be negative")
	case page.Limit == 0:
		page.Limit = s.defaultLimit
	case page.Limit > s.maxLimit:
		page.Limit = s.maxLimit
	}
	return s.ledgerRepo.ListForAccount(ctx, accountID, page)
}
