package account

import (
	"strings"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinPasswordLength = 6
	// bcrypt ignores everything past 72 bytes.
	MaxPasswordLength = 72
	MaxNameLength     = 120
)

var validate = validator.New()

type Account struct {
	ID           uuid.UUID
	Name         string
	Email        string
	NationalID   string
	PasswordHash string
	Balance      decimal.Decimal
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewAccount normalizes and validates identity fields. The balance starts at
// zero; the signup bonus is credited through the ledger.
func NewAccount(name, email, nationalID, passwordHash string) (*Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.NewValidationError("name", "cannot be empty")
	}
	if len([]rune(name)) > MaxNameLength {
		return nil, errors.NewValidationError("name", "too long")
	}

	email = NormalizeEmail(email)
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}

	nationalID = NormalizeNationalID(nationalID)
	if err := ValidateNationalID(nationalID); err != nil {
		return nil, err
	}

	if passwordHash == "" {
		return nil, errors.NewValidationError("password", "cannot be empty")
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	return &Account{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		NationalID:   nationalID,
		PasswordHash: passwordHash,
		Balance:      decimal.Zero,
		Version:      0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}
	if a.Balance.LessThan(amount) {
		return errors.ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return errors.ErrInvalidAmount
	}

	a.Balance = a.Balance.Add(amount)
	a.Version++
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ValidateEmail(email string) error {
	if err := validate.Var(email, "required,email,max=254"); err != nil {
		return errors.NewValidationError("email", "must be a valid email address")
	}
	return nil
}

// NormalizeNationalID strips the usual CPF punctuation ("123.456.789-09").
func NormalizeNationalID(id string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(id) {
		switch r {
		case '.', '-', ' ', '/':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ValidateNationalID checks a normalized CPF: 11 digits, not all equal, with
// both mod-11 check digits correct.
func ValidateNationalID(id string) error {
	if len(id) != 11 {
		return errors.NewValidationError("national_id", "must have 11 digits")
	}
	digits := make([]int, 11)
	for i, r := range id {
		if r < '0' || r > '9' {
			return errors.NewValidationError("national_id", "must contain only digits")
		}
		digits[i] = int(r - '0')
	}

	allEqual := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return errors.NewValidationError("national_id", "invalid check digits")
	}

	if checkDigit(digits[:9]) != digits[9] || checkDigit(digits[:10]) != digits[10] {
		return errors.NewValidationError("national_id", "invalid check digits")
	}
	return nil
}

func checkDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}
	rem := (sum * 10) % 11
	if rem == 10 {
		return 0
	}
	return rem
}

// IdentifierKind tells whether a login or recipient identifier is an email or
// a national id.
type IdentifierKind int

const (
	IdentifierEmail IdentifierKind = iota
	IdentifierNationalID
)

// ParseIdentifier normalizes an email-or-national-id string.
func ParseIdentifier(identifier string) (IdentifierKind, string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return 0, "", errors.NewValidationError("identifier", "cannot be empty")
	}
	if strings.Contains(identifier, "@") {
		return IdentifierEmail, NormalizeEmail(identifier), nil
	}
	return IdentifierNationalID, NormalizeNationalID(identifier), nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.NewValidationError("password", "must have at least 6 characters")
	}
	if len(password) > MaxPasswordLength {
		return errors.NewValidationError("password", "must have at most 72 bytes")
	}
	return nil
}
