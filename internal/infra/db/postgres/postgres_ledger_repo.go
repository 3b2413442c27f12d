package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"studio-credit-ledger/internal/domain"
	"studio-credit-ledger/internal/domain/model"
	"studio-credit-ledger/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*ledgerRepo)(nil)

type ledgerRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewLedgerRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *ledgerRepo {
	return &ledgerRepo{pool: pool, tm: tm}
}

func (r *ledgerRepo) GetBalance(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	const q = `SELECT balance FROM credit_balances WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return 0, err
	}

	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Never-seen users simply have no credits yet.
			return 0, nil
		}
		return 0, mapDBErr(err)
	}
	return balance, nil
}

// AppendAndApply writes the log entry and moves the balance in one
// transaction. All writers for a user serialize on the balance row lock, so
// after the lock is held the source-key replay check is authoritative.
//
// When called with a nil tx it opens its own transaction; when the caller
// already holds one, the whole check-insert-update sequence joins it.
func (r *ledgerRepo) AppendAndApply(ctx context.Context, tx repository.Tx, entry *model.LedgerEntry) (int64, bool, error) {
	if entry == nil || entry.UserID == "" || entry.Amount == 0 {
		return 0, false, domain.ErrInvalidArgument
	}
	if entry.Type.RequiresUniqueSourceKey() && entry.SourceKey == "" {
		return 0, false, domain.ErrInvalidArgument
	}

	if _, ok := tx.(pgx.Tx); ok {
		return r.appendAndApply(ctx, tx, entry)
	}

	var (
		balanceAfter int64
		applied      bool
	)
	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		var err error
		balanceAfter, applied, err = r.appendAndApply(ctx, tx, entry)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return balanceAfter, applied, nil
}

func (r *ledgerRepo) appendAndApply(ctx context.Context, tx repository.Tx, entry *model.LedgerEntry) (int64, bool, error) {
	// Ensure the balance row exists so it can be locked.
	const ensure = `INSERT INTO credit_balances (user_id, balance, updated_at) VALUES ($1, 0, NOW()) ON CONFLICT (user_id) DO NOTHING;`
	if _, err := execSQL(ctx, r.pool, tx, ensure, entry.UserID); err != nil {
		return 0, false, mapDBErr(err)
	}

	const lock = `SELECT balance FROM credit_balances WHERE user_id=$1 FOR UPDATE;`
	row, err := pickRow(ctx, r.pool, tx, lock, entry.UserID)
	if err != nil {
		return 0, false, err
	}
	var current int64
	if err := row.Scan(&current); err != nil {
		return 0, false, mapDBErr(err)
	}

	if entry.Type.RequiresUniqueSourceKey() {
		const dup = `SELECT balance_after FROM ledger_entries WHERE source_key=$1 AND type IN ('purchase','trial_grant') LIMIT 1;`
		row, err := pickRow(ctx, r.pool, tx, dup, entry.SourceKey)
		if err != nil {
			return 0, false, err
		}
		var prior int64
		switch err := row.Scan(&prior); {
		case err == nil:
			// Replay: report the balance the original application produced.
			return prior, false, nil
		case errors.Is(err, pgx.ErrNoRows):
			// first application, fall through
		default:
			return 0, false, mapDBErr(err)
		}
	}

	next := current + entry.Amount
	if next < 0 {
		return 0, false, domain.ErrInsufficientCredits
	}

	const insert = `
INSERT INTO ledger_entries (id, user_id, amount, type, source_key, metadata, balance_after, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	if _, err := execSQL(ctx, r.pool, tx, insert,
		entry.ID, entry.UserID, entry.Amount, entry.Type, entry.SourceKey, entry.Metadata, next, entry.CreatedAt); err != nil {
		return 0, false, mapDBErr(err)
	}

	const update = `UPDATE credit_balances SET balance=$2, updated_at=NOW() WHERE user_id=$1;`
	if _, err := execSQL(ctx, r.pool, tx, update, entry.UserID, next); err != nil {
		return 0, false, mapDBErr(err)
	}

	entry.BalanceAfter = next
	return next, true, nil
}

func (r *ledgerRepo) FindBySourceKey(ctx context.Context, tx repository.Tx, sourceKey string) (*model.LedgerEntry, error) {
	const q = `SELECT id, user_id, amount, type, source_key, metadata, balance_after, created_at FROM ledger_entries WHERE source_key=$1 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, sourceKey)
	if err != nil {
		return nil, err
	}

	e := &model.LedgerEntry{}
	if err := row.Scan(&e.ID, &e.UserID, &e.Amount, &e.Type, &e.SourceKey, &e.Metadata, &e.BalanceAfter, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return e, nil
}

func (r *ledgerRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const q = `SELECT id, user_id, amount, type, source_key, metadata, balance_after, created_at FROM ledger_entries WHERE user_id=$1 ORDER BY created_at DESC OFFSET $2 LIMIT $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, offset, limit)
	if err != nil {
		return nil, mapDBErr(err)
	}
	defer rows.Close()

	var out []*model.LedgerEntry
	for rows.Next() {
		e := new(model.LedgerEntry)
		if err := rows.Scan(&e.ID, &e.UserID, &e.Amount, &e.Type, &e.SourceKey, &e.Metadata, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *ledgerRepo) SumByType(ctx context.Context, tx repository.Tx, entryType model.EntryType) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM ledger_entries WHERE type=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, entryType)
	if err != nil {
		return 0, err
	}

	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}

// mapDBErr converts driver errors into domain errors. 23505 covers the
// defensive case where the unique source-key index trips despite the row
// lock; deadline errors become retryable ErrUnavailable.
func mapDBErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrUnavailable
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return domain.ErrDuplicateSourceKey
		case "23514":
			return domain.ErrInsufficientCredits
		}
	}
	if errors.Is(err, domain.ErrInvalidArgument) || errors.Is(err, domain.ErrInvalidExecContext) {
		return err
	}
	return domain.ErrOperationFailed
}
