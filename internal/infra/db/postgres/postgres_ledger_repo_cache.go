package postgres

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"studio-credit-ledger/internal/domain/model"
	"studio-credit-ledger/internal/domain/ports/repository"
	"studio-credit-ledger/internal/infra/metrics"
	red "studio-credit-ledger/internal/infra/redis"
)

var _ repository.LedgerRepository = (*ledgerRepoCacheDecorator)(nil)

// ledgerRepoCacheDecorator serves balance reads from redis with a short TTL.
// Reads are advisory only; every mutation goes to the inner repo, which keeps
// the authoritative sufficiency check inside the store transaction, and
// invalidates the cached balance.
type ledgerRepoCacheDecorator struct {
	inner repository.LedgerRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewLedgerRepoCacheDecorator(inner repository.LedgerRepository, cache red.RedisClient, ttl time.Duration) repository.LedgerRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ledgerRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

func balanceKey(userID string) string { return fmt.Sprintf("balance:%s", userID) }

func (d *ledgerRepoCacheDecorator) GetBalance(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	// Transactional reads bypass the cache; they want the locked row.
	if tx != nil {
		return d.inner.GetBalance(ctx, tx, userID)
	}

	key := balanceKey(userID)
	if val, err := d.cache.Get(ctx, key); err == nil {
		if n, perr := strconv.ParseInt(val, 10, 64); perr == nil {
			metrics.IncCacheRequest("balance", "hit")
			return n, nil
		}
	}

	// A redis miss or error both fall through to the store.
	metrics.IncCacheRequest("balance", "miss")
	n, err := d.inner.GetBalance(ctx, tx, userID)
	if err != nil {
		return 0, err
	}
	_ = d.cache.Set(ctx, key, strconv.FormatInt(n, 10), d.ttl)
	return n, nil
}

func (d *ledgerRepoCacheDecorator) AppendAndApply(ctx context.Context, tx repository.Tx, entry *model.LedgerEntry) (int64, bool, error) {
	balanceAfter, applied, err := d.inner.AppendAndApply(ctx, tx, entry)
	if err == nil {
		_ = d.cache.Del(ctx, balanceKey(entry.UserID))
	}
	return balanceAfter, applied, err
}

func (d *ledgerRepoCacheDecorator) FindBySourceKey(ctx context.Context, tx repository.Tx, sourceKey string) (*model.LedgerEntry, error) {
	return d.inner.FindBySourceKey(ctx, tx, sourceKey)
}

func (d *ledgerRepoCacheDecorator) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	return d.inner.ListByUser(ctx, tx, userID, offset, limit)
}

func (d *ledgerRepoCacheDecorator) SumByType(ctx context.Context, tx repository.Tx, entryType model.EntryType) (int64, error) {
	return d.inner.SumByType(ctx, tx, entryType)
}
