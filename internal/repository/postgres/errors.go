package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"

	domainErrors "github.com/cassiomorais/wallet/internal/domain/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	constraintAccountEmail      = "accounts_email_key"
	constraintAccountNationalID = "accounts_national_id_key"
	constraintIdempotencyKey    = "transactions_idempotency_key_key"
	constraintBalanceNonNeg     = "accounts_balance_check"
)

// SQLSTATE codes
const (
	codeUniqueViolation      = "23505"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeAdminShutdown        = "57P01"
	codeCrashShutdown        = "57P02"
	codeCannotConnectNow     = "57P03"
	codeTooManyConnections   = "53300"
)

// classify maps driver errors onto the domain taxonomy, keeping the original
// error in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%s: %w: %w", op, domainErrors.ErrSerializationConflict, err)
		case codeUniqueViolation:
			switch pgErr.ConstraintName {
			case constraintIdempotencyKey:
				return fmt.Errorf("%s: %w", op, domainErrors.ErrDuplicateIdempotencyKey)
			case constraintAccountEmail, constraintAccountNationalID:
				return fmt.Errorf("%s: %w", op, domainErrors.ErrConflict)
			}
			return fmt.Errorf("%s: %w: %w", op, domainErrors.ErrConflict, err)
		case codeCheckViolation:
			if pgErr.ConstraintName == constraintBalanceNonNeg {
				return fmt.Errorf("%s: %w", op, domainErrors.ErrInsufficientFunds)
			}
		case codeAdminShutdown, codeCrashShutdown, codeCannotConnectNow,
			codeTooManyConnections:
			return fmt.Errorf("%s: %w: %w", op, domainErrors.ErrServiceUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var connErr *pgconn.ConnectError
	var netErr net.Error
	if errors.As(err, &connErr) || errors.As(err, &netErr) || pgconn.Timeout(err) {
		return fmt.Errorf("%s: %w: %w", op, domainErrors.ErrServiceUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
