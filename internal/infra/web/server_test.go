//go:build !integration

package web

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"studio-credit-ledger/internal/domain/model"
	red "studio-credit-ledger/internal/infra/redis"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(nil)
	return &l
}

// mockLedgerUC stubs usecase.LedgerUseCase with overridable behavior.
type mockLedgerUC struct {
	GrantTrialCreditsFunc func(ctx context.Context, userID string) (int64, error)
	BalanceFunc           func(ctx context.Context, userID string) (int64, error)
	HistoryFunc           func(ctx context.Context, userID string, offset, limit int) ([]*model.LedgerEntry, error)
}

func (m *mockLedgerUC) GrantTrialCredits(ctx context.Context, userID string) (int64, error) {
	if m.GrantTrialCreditsFunc != nil {
		return m.GrantTrialCreditsFunc(ctx, userID)
	}
	return 2, nil
}

func (m *mockLedgerUC) DeductCredits(ctx context.Context, userID string, amount int64, entryType model.EntryType, metadata map[string]interface{}) (int64, error) {
	return 0, errors.New("not implemented")
}

func (m *mockLedgerUC) AddCredits(ctx context.Context, userID string, amount int64, sourceKey string, metadata map[string]interface{}) (int64, error) {
	return 0, errors.New("not implemented")
}

func (m *mockLedgerUC) HasSufficientCredits(ctx context.Context, userID string, required int64) (bool, error) {
	return true, nil
}

func (m *mockLedgerUC) Balance(ctx context.Context, userID string) (int64, error) {
	if m.BalanceFunc != nil {
		return m.BalanceFunc(ctx, userID)
	}
	return 0, nil
}

func (m *mockLedgerUC) History(ctx context.Context, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, userID, offset, limit)
	}
	return nil, nil
}

// mockPaymentUC stubs usecase.PaymentUseCase.
type mockPaymentUC struct {
	CreateOrderFunc func(ctx context.Context, userID, packageID string) (*model.Order, error)
	VerifyFunc      func(ctx context.Context, userID, orderID, paymentID, signature, packageID string) (int64, int64, error)
}

func (m *mockPaymentUC) CreateOrder(ctx context.Context, userID, packageID string) (*model.Order, error) {
	if m.CreateOrderFunc != nil {
		return m.CreateOrderFunc(ctx, userID, packageID)
	}
	return &model.Order{ID: "order_mock", UserID: userID, PackageID: packageID, Amount: 49900, Currency: "INR", Status: model.OrderStatusCreated}, nil
}

func (m *mockPaymentUC) Verify(ctx context.Context, userID, orderID, paymentID, signature, packageID string) (int64, int64, error) {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, userID, orderID, paymentID, signature, packageID)
	}
	return 40, 42, nil
}

// mockWebhookUC stubs usecase.WebhookUseCase and records deliveries.
type mockWebhookUC struct {
	HandleEventFunc func(ctx context.Context, rawBody []byte, signature string) error
	calls           int
}

func (m *mockWebhookUC) HandleEvent(ctx context.Context, rawBody []byte, signature string) error {
	m.calls++
	if m.HandleEventFunc != nil {
		return m.HandleEventFunc(ctx, rawBody, signature)
	}
	return nil
}

// countingRedis implements red.RedisClient for rate limiter tests.
type countingRedis struct {
	counts  map[string]int64
	incrErr error
}

var _ red.RedisClient = (*countingRedis)(nil)

func newCountingRedis() *countingRedis { return &countingRedis{counts: map[string]int64{}} }

func (c *countingRedis) Ping(ctx context.Context) error { return nil }
func (c *countingRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}
func (c *countingRedis) Get(ctx context.Context, key string) (string, error) {
	return "", errors.New("key not found")
}
func (c *countingRedis) Incr(ctx context.Context, key string) (int64, error) {
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	c.counts[key]++
	return c.counts[key], nil
}
func (c *countingRedis) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return nil
}
func (c *countingRedis) Del(ctx context.Context, keys ...string) error { return nil }
func (c *countingRedis) Close() error                                  { return nil }

type serverTestDeps struct {
	ledger  *mockLedgerUC
	payment *mockPaymentUC
	webhook *mockWebhookUC
	auth    *AuthManager
	server  *Server
}

func newServerTestDeps() *serverTestDeps {
	deps := &serverTestDeps{
		ledger:  &mockLedgerUC{},
		payment: &mockPaymentUC{},
		webhook: &mockWebhookUC{},
		auth:    NewAuthManager("test_jwt_secret", time.Hour),
	}
	deps.server = NewServer(deps.ledger, deps.payment, deps.webhook, deps.auth, nil, 5*time.Second, newTestLogger())
	return deps
}

func (d *serverTestDeps) tokenFor(userID string) string {
	tok, err := d.auth.Mint(userID)
	if err != nil {
		panic(fmt.Sprintf("mint token: %v", err))
	}
	return tok
}
