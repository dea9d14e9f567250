package outbox

import (
	"testing"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntry(t *testing.T) {
	aggregateID := uuid.New()
	payload := map[string]any{
		"transaction_id": aggregateID.String(),
		"amount":         "10.00",
	}

	entry := NewEntry(AggregateTransaction, aggregateID, EventTransferCommitted, payload)

	require.NotNil(t, entry)
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.Equal(t, AggregateTransaction, entry.AggregateType)
	assert.Equal(t, aggregateID, entry.AggregateID)
	assert.Equal(t, EventTransferCommitted, entry.EventType)
	assert.Equal(t, payload, entry.Payload)
	assert.Equal(t, StatusPending, entry.Status)
	assert.Equal(t, 0, entry.RetryCount)
	assert.Equal(t, DefaultMaxRetries, entry.MaxRetries)
	assert.False(t, entry.CreatedAt.IsZero())
	assert.Nil(t, entry.PublishedAt)
}

func TestForTransaction(t *testing.T) {
	from, to := uuid.New(), uuid.New()

	tests := []struct {
		name      string
		kind      ledger.Kind
		from      uuid.UUID
		eventType string
	}{
		{"transfer", ledger.KindTransfer, from, EventTransferCommitted},
		{"issuance", ledger.KindIssuance, ledger.IssuanceAccountID, EventFundsIssued},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := ledger.NewTransaction(tt.kind, tt.from, to, decimal.RequireFromString("7.5"), "lunch", "k", time.Now())
			require.NoError(t, err)

			entry := ForTransaction(tx)
			assert.Equal(t, tt.eventType, entry.EventType)
			assert.Equal(t, tx.ID, entry.AggregateID)
			assert.Equal(t, "7.50", entry.Payload["amount"])
			assert.Equal(t, tt.from.String(), entry.Payload["from_account_id"])
			assert.Equal(t, to.String(), entry.Payload["to_account_id"])
			assert.Equal(t, string(tt.kind), entry.Payload["kind"])
		})
	}
}

func TestEntry_Exhausted(t *testing.T) {
	entry := NewEntry(AggregateTransaction, uuid.New(), EventTransferCommitted, nil)
	assert.False(t, entry.Exhausted())

	entry.RetryCount = entry.MaxRetries
	assert.True(t, entry.Exhausted())
}

func TestEntry_UniqueIDs(t *testing.T) {
	aggregateID := uuid.New()
	entry1 := NewEntry(AggregateTransaction, aggregateID, EventTransferCommitted, nil)
	entry2 := NewEntry(AggregateTransaction, aggregateID, EventTransferCommitted, nil)

	assert.NotEqual(t, entry1.ID, entry2.ID)
	assert.Equal(t, entry1.AggregateID, entry2.AggregateID)
}
