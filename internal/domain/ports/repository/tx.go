package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager provides a thin abstraction to execute a function within a
// database transaction, passing the underlying transaction handle via `tx`.
//
// Use-case interfaces stay clean (no driver transaction types leak out);
// repository methods accept the opaque Tx and detect the concrete handle on
// the implementation side. Repositories MUST gracefully accept a nil Tx and
// fall back to the pool (non-transactional path).
//
// USAGE
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		_, _, err := ledger.AppendAndApply(ctx, tx, entry)
//		return err
//	})
//
// The concrete type of Tx is infra-defined (pgx.Tx for Postgres).
// Keep this interface small and stable.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
