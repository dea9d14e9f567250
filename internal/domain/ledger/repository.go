package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Page selects a window of an account's history. When Before is set, the
// window starts right after that transaction, so later inserts never shift it.
type Page struct {
	Limit  int
	Offset int
	Before *uuid.UUID
}

type Repository interface {
	// Insert appends a transaction; a reused idempotency key yields ErrDuplicateIdempotencyKey
	Insert(ctx context.Context, tx *Transaction) error

	// GetByID retrieves a transaction by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetByIdempotencyKey retrieves the committed transaction for a scoped key
	GetByIdempotencyKey(ctx context.Context, key string) (*Transaction, error)

	// ListForAccount returns the account's transactions newest first
	ListForAccount(ctx context.Context, accountID uuid.UUID, page Page) ([]*Transaction, error)
}
