//go:build !integration

package postgres

import (
	"context"
	"time"

	"studio-credit-ledger/internal/domain/model"
	"studio-credit-ledger/internal/domain/ports/repository"
	red "studio-credit-ledger/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerLedgerRepo mocks the database repository that the decorator wraps.
type mockInnerLedgerRepo struct {
	GetBalanceFunc      func(ctx context.Context, tx repository.Tx, userID string) (int64, error)
	AppendAndApplyFunc  func(ctx context.Context, tx repository.Tx, entry *model.LedgerEntry) (int64, bool, error)
	FindBySourceKeyFunc func(ctx context.Context, tx repository.Tx, sourceKey string) (*model.LedgerEntry, error)
	ListByUserFunc      func(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error)
	SumByTypeFunc       func(ctx context.Context, tx repository.Tx, entryType model.EntryType) (int64, error)
}

func (m *mockInnerLedgerRepo) GetBalance(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	return m.GetBalanceFunc(ctx, tx, userID)
}
func (m *mockInnerLedgerRepo) AppendAndApply(ctx context.Context, tx repository.Tx, entry *model.LedgerEntry) (int64, bool, error) {
	return m.AppendAndApplyFunc(ctx, tx, entry)
}
func (m *mockInnerLedgerRepo) FindBySourceKey(ctx context.Context, tx repository.Tx, sourceKey string) (*model.LedgerEntry, error) {
	return m.FindBySourceKeyFunc(ctx, tx, sourceKey)
}
func (m *mockInnerLedgerRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	return m.ListByUserFunc(ctx, tx, userID, offset, limit)
}
func (m *mockInnerLedgerRepo) SumByType(ctx context.Context, tx repository.Tx, entryType model.EntryType) (int64, error) {
	return m.SumByTypeFunc(ctx, tx, entryType)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc    func(ctx context.Context, key string) (string, error)
	SetFunc    func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	DelFunc    func(ctx context.Context, keys ...string) error
	PingFunc   func(ctx context.Context) error
	IncrFunc   func(ctx context.Context, key string) (int64, error)
	ExpireFunc func(ctx context.Context, key string, expiration time.Duration) error
	CloseFunc  func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	return m.GetFunc(ctx, key)
}
func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, expiration)
	}
	return nil
}
func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc != nil {
		return m.DelFunc(ctx, keys...)
	}
	return nil
}
func (m *mockRedisClient) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}
func (m *mockRedisClient) Incr(ctx context.Context, key string) (int64, error) {
	if m.IncrFunc != nil {
		return m.IncrFunc(ctx, key)
	}
	return 0, nil
}
func (m *mockRedisClient) Expire(ctx context.Context, key string, expiration time.Duration) error {
	if m.ExpireFunc != nil {
		return m.ExpireFunc(ctx, key, expiration)
	}
	return nil
}
func (m *mockRedisClient) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
