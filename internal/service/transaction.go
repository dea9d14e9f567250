package service

import "context"

// TransactionManager defines the interface for transaction management.
// Services use this to wrap multiple repository operations in one atomic unit.
type TransactionManager interface {
	// WithTransaction executes fn within a unit of work. If fn returns an
	// error, everything is rolled back; otherwise it is committed. A call made
	// with a context already inside a unit joins that unit.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
