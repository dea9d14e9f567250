package service

import (
	"github.com/cassiomorais/wallet/internal/domain/account"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/domain/session"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Controllers convert their HTTP DTOs to this type.
type RegisterRequest struct {
	Name       string
	Email      string
	NationalID string
	Password   string
}

// Controllers convert their HTTP DTOs to this type.
type TransferRequest struct {
	CallerID            uuid.UUID
	RecipientIdentifier string
	Amount              decimal.Decimal
	Description         string
	// IdempotencyKey is the client key or a request-scoped nonce; it is
	// scoped to CallerID before storage.
	IdempotencyKey string
}

type TransferResult struct {
	Transaction   *ledger.Transaction
	SenderBalance decimal.Decimal
	RecipientName string
	// Replayed is true when an earlier commit with the same key was returned.
	Replayed bool
}

// IssuedSession is a freshly signed bearer token and its session record.
type IssuedSession struct {
	Token   string
	Session *session.Session
	Account *account.Account
}
