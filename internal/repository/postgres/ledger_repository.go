package postgres

import (
	"context"
	"errors"
	"fmt"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/cassiomorais/wallet/internal/domain/ledger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const transactionColumns = `id, kind, from_account_id, to_account_id, from_name, to_name, amount, description, idempotency_key, created_at`

// LedgerRepository stores the append-only transaction log.
type LedgerRepository struct {
	pool *pgxpool.Pool
}

func NewLedgerRepository(pool *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) db(ctx context.Context) DBTX {
	return ConnFromCtx(ctx, r.pool)
}

func (r *LedgerRepository) scanTransaction(s scanner) (*ledger.Transaction, error) {
	tx := &ledger.Transaction{}
	var (
		kind      string
		amountStr string
	)
	err := s.Scan(&tx.ID, &kind, &tx.FromAccountID, &tx.ToAccountID, &tx.FromName, &tx.ToName,
		&amountStr, &tx.Description, &tx.IdempotencyKey, &tx.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrTransactionNotFound
		}
		return nil, classify("scan transaction", err)
	}
	tx.Kind = ledger.Kind(kind)
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.Amount, err = numericToDecimal(amountStr)
	if err != nil {
		return nil, fmt.Errorf("parse amount: %w", err)
	}
	return tx, nil
}

func (r *LedgerRepository) Insert(ctx context.Context, tx *ledger.Transaction) error {
	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.ID, string(tx.Kind), tx.FromAccountID, tx.ToAccountID, tx.FromName, tx.ToName,
		decimalToNumeric(tx.Amount), tx.Description, tx.IdempotencyKey, tx.CreatedAt,
	)
	return classify("insert transaction", err)
}

func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
}

func (r *LedgerRepository) GetByIdempotencyKey(ctx context.Context, key string) (*ledger.Transaction, error) {
	return r.scanTransaction(r.db(ctx).QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE idempotency_key = $1`, key))
}

// ListForAccount returns transactions where the account is either party,
// ordered by created_at then id, both descending. uuid comparison in
// Postgres is bytewise, matching ledger.Transaction.Before.
func (r *LedgerRepository) ListForAccount(ctx context.Context, accountID uuid.UUID, page ledger.Page) ([]*ledger.Transaction, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if page.Before != nil {
		cursor, cerr := r.GetByID(ctx, *page.Before)
		if errors.Is(cerr, domainErrors.ErrTransactionNotFound) || (cerr == nil && !cursor.Involves(accountID)) {
			return nil, domainErrors.NewValidationError("before", "unknown transaction")
		}
		if cerr != nil {
			return nil, cerr
		}
		rows, err = r.db(ctx).Query(ctx,
			`SELECT `+transactionColumns+` FROM transactions
			 WHERE (from_account_id = $1 OR to_account_id = $1)
			   AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4 OFFSET $5`,
			accountID, cursor.CreatedAt, cursor.ID, page.Limit, page.Offset,
		)
	} else {
		rows, err = r.db(ctx).Query(ctx,
			`SELECT `+transactionColumns+` FROM transactions
			 WHERE from_account_id = $1 OR to_account_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2 OFFSET $3`,
			accountID, page.Limit, page.Offset,
		)
	}
	if err != nil {
		return nil, classify("list transactions", err)
	}
	defer rows.Close()

	txns := make([]*ledger.Transaction, 0, page.Limit)
	for rows.Next() {
		tx, err := r.scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, tx)
	}
	return txns, classify("list transactions", rows.Err())
}
