package repository

import (
	"context"

	"studio-credit-ledger/internal/domain/model"
)

// -----------------------------
// Credit ledger
// -----------------------------

type LedgerRepository interface {
	// GetBalance returns the current balance for a user; unseen users read as
	// zero without error.
	GetBalance(ctx context.Context, tx Tx, userID string) (int64, error)
	// AppendAndApply atomically writes the entry and moves the balance. It
	// returns the balance after the entry and whether it applied: a replayed
	// source key reports the balance its first application produced with
	// applied=false. An entry that would drive the balance negative returns
	// ErrInsufficientCredits and writes nothing.
	AppendAndApply(ctx context.Context, tx Tx, entry *model.LedgerEntry) (balanceAfter int64, applied bool, err error)
	FindBySourceKey(ctx context.Context, tx Tx, sourceKey string) (*model.LedgerEntry, error)
	// ListByUser pages the user's entries newest first.
	ListByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error)
	// SumByType aggregates entry amounts across all users, for reporting.
	SumByType(ctx context.Context, tx Tx, entryType model.EntryType) (int64, error)
}
