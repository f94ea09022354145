package repositories

import "context"

// TxFn is a function that runs within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager handles database transactions. The category service
// itself never opens one (see the concurrency notes in DESIGN.md); the
// seeder uses it to install the default taxonomy atomically.
type TransactionManager interface {
	// ExecTx executes a function within a transaction
	ExecTx(ctx context.Context, fn TxFn) error
}
