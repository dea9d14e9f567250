package account

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Repository defines the interface for account persistence
type Repository interface {
	// Create inserts a new account; duplicate email or national id yields ErrConflict
	Create(ctx context.Context, account *Account) error

	// GetByID retrieves an account by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetByEmail retrieves an account by normalized email
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// GetByNationalID retrieves an account by normalized national id
	GetByNationalID(ctx context.Context, nationalID string) (*Account, error)

	// Lock locks an account for update (SELECT FOR UPDATE) inside the current unit of work
	Lock(ctx context.Context, id uuid.UUID) (*Account, error)

	// UpdateBalance writes the balance of a locked account
	UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error

	// Search matches name, email or national id fragments, skipping exclude
	Search(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]*Account, error)
}
