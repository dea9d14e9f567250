package outbox

import (
	"time"

	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/google/uuid"
)

const (
	AggregateTransaction = "transaction"

	EventTransferCommitted = "transfer.committed"
	EventFundsIssued       = "funds.issued"

	DefaultMaxRetries = 5
)

type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       map[string]any
	Status        Status
	RetryCount    int
	MaxRetries    int
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusFailed    Status = "failed"
)

func NewEntry(aggregateType string, aggregateID uuid.UUID, eventType string, payload map[string]any) *Entry {
	return &Entry{
		ID:            uuid.New(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       payload,
		Status:        StatusPending,
		RetryCount:    0,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

// ForTransaction builds the event recorded alongside a committed ledger
// transaction. Amounts travel as fixed two-digit strings.
func ForTransaction(tx *ledger.Transaction) *Entry {
	eventType := EventTransferCommitted
	if tx.Kind == ledger.KindIssuance {
		eventType = EventFundsIssued
	}
	return NewEntry(AggregateTransaction, tx.ID, eventType, map[string]any{
		"transaction_id":  tx.ID.String(),
		"kind":            string(tx.Kind),
		"from_account_id": tx.FromAccountID.String(),
		"to_account_id":   tx.ToAccountID.String(),
		"amount":          ledger.Format(tx.Amount),
		"description":     tx.Description,
		"created_at":      tx.CreatedAt.Format(time.RFC3339Nano),
	})
}

// Exhausted reports whether the relay should stop retrying the entry.
func (e *Entry) Exhausted() bool {
	return e.RetryCount >= e.MaxRetries
}
