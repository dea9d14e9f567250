package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/account"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NationalIDs are syntactically valid CPFs for fixtures.
var NationalIDs = []string{
	"52998224725",
	"11144477735",
	"12345678909",
	"39053344705",
	"98765432100",
	"86288366757",
	"71428793860",
}

var seq atomic.Int64

// NewTestAccount builds a valid account with a unique email and the given
// balance. nationalID may be empty to take the next fixture CPF.
func NewTestAccount(name, nationalID string, balance string) *account.Account {
	n := seq.Add(1)
	if nationalID == "" {
		nationalID = NationalIDs[int(n-1)%len(NationalIDs)]
	}
	now := time.Now().UTC()
	return &account.Account{
		ID:           uuid.New(),
		Name:         name,
		Email:        fmt.Sprintf("user%d@example.com", n),
		NationalID:   nationalID,
		PasswordHash: "$2a$04$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva",
		Balance:      Amount(balance),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Amount parses a decimal literal and panics on malformed input.
func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
