package ledger

import (
	"bytes"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultDescription   = "Transferência"
	MaxDescriptionLength = 140
	MaxIdempotencyKeyLen = 128
)

// IssuanceAccountID is the notional source of system-issued credit such as
// the signup bonus. No account row carries this id.
var IssuanceAccountID = uuid.Nil

// IssuerName is the display name of the issuance account.
const IssuerName = "Wallet"

type Kind string

const (
	KindTransfer Kind = "transfer"
	KindIssuance Kind = "issuance"
)

type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Transaction is immutable once committed. One record serves both parties.
type Transaction struct {
	ID             uuid.UUID
	Kind           Kind
	FromAccountID  uuid.UUID
	ToAccountID    uuid.UUID
	FromName       string
	ToName         string
	Amount         decimal.Decimal
	Description    string
	IdempotencyKey string
	CreatedAt      time.Time
}

// NewTransaction validates the record invariants: positive amount with cent
// precision, distinct parties, non-empty idempotency key.
func NewTransaction(kind Kind, from, to uuid.UUID, amount decimal.Decimal, description, key string, at time.Time) (*Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return nil, err
	}
	if from == to {
		return nil, errors.ErrInvalidSelfTransfer
	}
	if key == "" {
		return nil, errors.NewValidationError("idempotency_key", "cannot be empty")
	}
	if kind == KindTransfer && from == IssuanceAccountID {
		return nil, errors.NewValidationError("from_account_id", "cannot be empty")
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	return &Transaction{
		ID:             id,
		Kind:           kind,
		FromAccountID:  from,
		ToAccountID:    to,
		Amount:         amount,
		Description:    NormalizeDescription(description),
		IdempotencyKey: key,
		CreatedAt:      at.UTC().Truncate(time.Microsecond),
	}, nil
}

// Involves reports whether the account is either party.
func (t *Transaction) Involves(accountID uuid.UUID) bool {
	return t.FromAccountID == accountID || t.ToAccountID == accountID
}

func (t *Transaction) DirectionFor(viewer uuid.UUID) Direction {
	if t.FromAccountID == viewer {
		return DirectionOutgoing
	}
	return DirectionIncoming
}

// SignedAmountFor is negative for the sender's view and positive for the
// recipient's.
func (t *Transaction) SignedAmountFor(viewer uuid.UUID) decimal.Decimal {
	if t.DirectionFor(viewer) == DirectionOutgoing {
		return t.Amount.Neg()
	}
	return t.Amount
}

// Before orders transactions newest first: by CreatedAt, then by ID.
func (t *Transaction) Before(other *Transaction) bool {
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.After(other.CreatedAt)
	}
	return bytes.Compare(t.ID[:], other.ID[:]) > 0
}

func NormalizeDescription(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return DefaultDescription
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		description = string([]rune(description)[:MaxDescriptionLength])
	}
	return description
}

// ScopedKey derives the stored idempotency key from the caller and the
// client-supplied (or request-scoped) key, so keys never collide across
// accounts.
func ScopedKey(callerID uuid.UUID, clientKey string) (string, error) {
	if clientKey == "" || len(clientKey) > MaxIdempotencyKeyLen {
		return "", errors.NewValidationError("idempotency_key", "must have between 1 and 128 characters")
	}
	for _, r := range clientKey {
		if !unicode.IsPrint(r) || unicode.IsSpace(r) {
			return "", errors.NewValidationError("idempotency_key", "must contain only printable characters")
		}
	}
	return callerID.String() + ":" + clientKey, nil
}

// SignupKey is the idempotency key of an account's signup bonus.
func SignupKey(accountID uuid.UUID) string {
	return "signup:" + accountID.String()
}
