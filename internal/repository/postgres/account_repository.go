package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/wallet/internal/domain/account"
	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, name, email, national_id, password_hash, balance, version, created_at, updated_at`

// AccountRepository implements account.Repository using PostgreSQL.
type AccountRepository struct {
	pool *pgxpool.Pool
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

type scanner interface {
	Scan(dest ...any) error
}

// scanAccount scans an account from any source implementing the scanner interface.
func (r *AccountRepository) scanAccount(s scanner) (*account.Account, error) {
	a := &account.Account{}
	var balanceStr string
	err := s.Scan(&a.ID, &a.Name, &a.Email, &a.NationalID, &a.PasswordHash, &balanceStr, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrAccountNotFound
		}
		return nil, classify("scan account", err)
	}

	a.Balance, err = numericToDecimal(balanceStr)
	if err != nil {
		return nil, fmt.Errorf("parse balance: %w", err)
	}
	return a, nil
}

// Create inserts a new account.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO accounts (`+accountColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.Name, a.Email, a.NationalID, a.PasswordHash, decimalToNumeric(a.Balance), a.Version, a.CreatedAt, a.UpdatedAt,
	)
	return classify("insert account", err)
}

// GetByID retrieves an account by its ID.
func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return r.scanAccount(r.db(ctx).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*account.Account, error) {
	return r.scanAccount(r.db(ctx).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
}

func (r *AccountRepository) GetByNationalID(ctx context.Context, nationalID string) (*account.Account, error) {
	return r.scanAccount(r.db(ctx).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE national_id = $1`, nationalID))
}

// Lock acquires a row-level lock on the account (SELECT FOR UPDATE). The
// lock is held until the enclosing transaction ends.
func (r *AccountRepository) Lock(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	if !inTx(ctx) {
		return nil, fmt.Errorf("lock account %s: no transaction in context", id)
	}
	return r.scanAccount(r.db(ctx).QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
}

// UpdateBalance writes the balance of a locked account. The table's check
// constraint rejects negative balances as ErrInsufficientFunds.
func (r *AccountRepository) UpdateBalance(ctx context.Context, id uuid.UUID, balance decimal.Decimal) error {
	tag, err := r.db(ctx).Exec(ctx,
		`UPDATE accounts SET balance = $1, version = version + 1, updated_at = $2 WHERE id = $3`,
		decimalToNumeric(balance), time.Now().UTC(), id,
	)
	if err != nil {
		return classify("update balance", err)
	}
	if tag.RowsAffected() == 0 {
		return domainErrors.ErrAccountNotFound
	}
	return nil
}

// Search matches a case-insensitive fragment of name or email, or a digit
// fragment of the national id.
func (r *AccountRepository) Search(ctx context.Context, query string, exclude uuid.UUID, limit int) ([]*account.Account, error) {
	if limit <= 0 {
		limit = 5
	}
	pattern := likePattern(query)
	digits := account.NormalizeNationalID(query)
	digitPattern := ""
	if digits != "" {
		digitPattern = likePattern(digits)
	}

	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE id <> $1
		   AND (name ILIKE $2 OR email ILIKE $2 OR ($3 <> '' AND national_id LIKE $3))
		 ORDER BY name, id
		 LIMIT $4`,
		exclude, pattern, digitPattern, limit,
	)
	if err != nil {
		return nil, classify("search accounts", err)
	}
	defer rows.Close()

	accounts := make([]*account.Account, 0, limit)
	for rows.Next() {
		a, err := r.scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, classify("search accounts", rows.Err())
}
