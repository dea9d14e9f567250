package outbox

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Insert creates a new outbox entry inside the current unit of work
	Insert(ctx context.Context, entry *Entry) error

	// GetPending returns pending entries oldest first, up to limit
	GetPending(ctx context.Context, limit int) ([]*Entry, error)

	// MarkPublished marks an outbox entry as published
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed increments the retry count; the entry turns failed once retries run out
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
