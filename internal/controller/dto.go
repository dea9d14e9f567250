package controller

import (
	"time"

	"github.com/cassiomorais/wallet/internal/domain/account"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/cassiomorais/wallet/internal/service"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Request DTOs ---
// These DTOs handle HTTP/JSON concerns. Controllers convert them to service
// layer DTOs before calling business logic.

type RegisterRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Email      string `json:"email" validate:"required,email,max=254"`
	NationalID string `json:"national_id" validate:"required,national_id"`
	Password   string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest takes an email or a national id as identifier.
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required"`
	Password   string `json:"password" validate:"required"`
}

// TransferRequest accepts the amount as a JSON string ("30.00") or number.
type TransferRequest struct {
	RecipientIdentifier string          `json:"recipient_identifier" validate:"required"`
	Amount              decimal.Decimal `json:"amount"`
	Description         string          `json:"description"`
	IdempotencyKey      string          `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

// --- Response DTOs ---

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

// ProfileResponse is the caller's own account, balance included.
type ProfileResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	NationalID string    `json:"national_id"`
	Balance    string    `json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
}

func FromAccount(a *account.Account) ProfileResponse {
	return ProfileResponse{
		ID:         a.ID.String(),
		Name:       a.Name,
		Email:      a.Email,
		NationalID: a.NationalID,
		Balance:    ledger.Format(a.Balance),
		CreatedAt:  a.CreatedAt,
	}
}

type SessionResponse struct {
	Token     string          `json:"token"`
	TokenType string          `json:"token_type"`
	ExpiresAt time.Time       `json:"expires_at"`
	Account   ProfileResponse `json:"account"`
}

func FromSession(s *service.IssuedSession) SessionResponse {
	return SessionResponse{
		Token:     s.Token,
		TokenType: "Bearer",
		ExpiresAt: s.Session.ExpiresAt,
		Account:   FromAccount(s.Account),
	}
}

type BalanceResponse struct {
	Balance string `json:"balance"`
}

// TransactionResponse is a transaction as seen by one of its parties: the
// amount is negative for the sender and positive for the recipient.
type TransactionResponse struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Direction     string    `json:"direction"`
	Amount        string    `json:"amount"`
	FromAccountID string    `json:"from_account_id"`
	FromName      string    `json:"from_name"`
	ToAccountID   string    `json:"to_account_id"`
	ToName        string    `json:"to_name"`
	Description   string    `json:"description"`
	CreatedAt     time.Time `json:"created_at"`
}

func FromTransaction(tx *ledger.Transaction, viewer uuid.UUID) TransactionResponse {
	return TransactionResponse{
		ID:            tx.ID.String(),
		Kind:          string(tx.Kind),
		Direction:     string(tx.DirectionFor(viewer)),
		Amount:        ledger.Format(tx.SignedAmountFor(viewer)),
		FromAccountID: tx.FromAccountID.String(),
		FromName:      tx.FromName,
		ToAccountID:   tx.ToAccountID.String(),
		ToName:        tx.ToName,
		Description:   tx.Description,
		CreatedAt:     tx.CreatedAt,
	}
}

type TransferResponse struct {
	Transaction   TransactionResponse `json:"transaction"`
	RecipientName string              `json:"recipient_name"`
	Balance       string              `json:"balance"`
	Replayed      bool                `json:"replayed"`
}

func FromTransferResult(res *service.TransferResult, caller uuid.UUID) TransferResponse {
	return TransferResponse{
		Transaction:   FromTransaction(res.Transaction, caller),
		RecipientName: res.RecipientName,
		Balance:       ledger.Format(res.SenderBalance),
		Replayed:      res.Replayed,
	}
}

// HistoryResponse carries one page. NextBefore is the cursor for the next
// page and is absent once a page comes back empty.
type HistoryResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	NextBefore   string                `json:"next_before,omitempty"`
}

// SearchResult deliberately omits the balance.
type SearchResult struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	NationalID string `json:"national_id"`
}

func FromSearchHit(a *account.Account) SearchResult {
	return SearchResult{
		ID:         a.ID.String(),
		Name:       a.Name,
		Email:      a.Email,
		NationalID: a.NationalID,
	}
}
