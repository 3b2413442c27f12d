// File: internal/usecase/mocks_test.go
package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"studio-credit-ledger/internal/domain"
	"studio-credit-ledger/internal/domain/model"
	"studio-credit-ledger/internal/domain/ports/adapter"
	"studio-credit-ledger/internal/domain/ports/repository"
)

// newTestLogger creates a silent logger for tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(nil)
	return &logger
}

// memLedgerRepo is a small in-memory LedgerRepository used by unit tests. It
// mirrors the store contract: mutations serialize on a mutex, unique source
// keys replay transparently, and debits below zero are rejected.
type memLedgerRepo struct {
	mu          sync.Mutex
	balances    map[string]int64
	entries     []*model.LedgerEntry
	bySourceKey map[string]*model.LedgerEntry
	appendErr   error // used by tests to simulate store failures
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{
		balances:    make(map[string]int64),
		bySourceKey: make(map[string]*model.LedgerEntry),
	}
}

func (m *memLedgerRepo) GetBalance(ctx context.Context, tx repository.Tx, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *memLedgerRepo) AppendAndApply(ctx context.Context, tx repository.Tx, entry *model.LedgerEntry) (int64, bool, error) {
	if m.appendErr != nil {
		return 0, false, m.appendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.Type.RequiresUniqueSourceKey() {
		if prior, ok := m.bySourceKey[entry.SourceKey]; ok {
			return prior.BalanceAfter, false, nil
		}
	}

	next := m.balances[entry.UserID] + entry.Amount
	if next < 0 {
		return 0, false, domain.ErrInsufficientCredits
	}

	cp := *entry
	cp.BalanceAfter = next
	if cp.ID == "" {
		cp.ID = ulid.Make().String()
	}
	m.balances[entry.UserID] = next
	m.entries = append(m.entries, &cp)
	if cp.Type.RequiresUniqueSourceKey() {
		m.bySourceKey[cp.SourceKey] = &cp
	}
	return next, true, nil
}

func (m *memLedgerRepo) FindBySourceKey(ctx context.Context, tx repository.Tx, sourceKey string) (*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.SourceKey == sourceKey {
			cp := *e
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memLedgerRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.LedgerEntry
	for i := len(m.entries) - 1; i >= 0; i-- {
		if m.entries[i].UserID == userID {
			cp := *m.entries[i]
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *memLedgerRepo) SumByType(ctx context.Context, tx repository.Tx, entryType model.EntryType) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, e := range m.entries {
		if e.Type == entryType {
			sum += e.Amount
		}
	}
	return sum, nil
}

// countEntries reports how many recorded entries match type and user.
func (m *memLedgerRepo) countEntries(userID string, entryType model.EntryType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.UserID == userID && e.Type == entryType {
			n++
		}
	}
	return n
}

// memOrderRepo is an in-memory OrderRepository honoring the merge-upsert and
// terminal-status rules.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*model.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*model.Order)}
}

func (m *memOrderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	if prev, ok := m.orders[o.ID]; ok {
		if prev.Status.Terminal() {
			cp.Status = prev.Status
		}
		if cp.PaymentID == "" {
			cp.PaymentID = prev.PaymentID
		}
		if cp.Method == "" {
			cp.Method = prev.Method
		}
	}
	m.orders[o.ID] = &cp
	return nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memOrderRepo) ApplyEvent(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, paymentID, method string, meta map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		o = &model.Order{ID: id, Status: status, CreatedAt: time.Now(), Meta: map[string]interface{}{}}
		m.orders[id] = o
	} else if !o.Status.Terminal() {
		o.Status = status
	}
	if paymentID != "" {
		o.PaymentID = paymentID
	}
	if method != "" {
		o.Method = method
	}
	if o.Meta == nil {
		o.Meta = map[string]interface{}{}
	}
	for k, v := range meta {
		o.Meta[k] = v
	}
	o.UpdatedAt = time.Now()
	return nil
}

func (m *memOrderRepo) MarkCapturedIfCreated(ctx context.Context, tx repository.Tx, id string, paymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != model.OrderStatusCreated {
		return false, nil
	}
	o.Status = model.OrderStatusCaptured
	if paymentID != "" {
		o.PaymentID = paymentID
	}
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *memOrderRepo) ListCapturedSince(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.orders {
		if o.Status == model.OrderStatusCaptured && !o.UpdatedAt.Before(cutoff) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memOrderRepo) ListCreatedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.orders {
		if o.Status == model.OrderStatusCreated && o.CreatedAt.Before(olderThan) {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

// MockPaymentGateway lets tests script provider responses.
type MockPaymentGateway struct {
	CreateOrderFunc  func(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (string, error)
	FetchPaymentFunc func(ctx context.Context, paymentID string) (*adapter.GatewayPayment, error)
}

func (g *MockPaymentGateway) Name() string { return "razorpay" }

func (g *MockPaymentGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (string, error) {
	if g.CreateOrderFunc != nil {
		return g.CreateOrderFunc(ctx, amount, currency, receipt, notes)
	}
	return "order_mock", nil
}

func (g *MockPaymentGateway) FetchPayment(ctx context.Context, paymentID string) (*adapter.GatewayPayment, error) {
	if g.FetchPaymentFunc != nil {
		return g.FetchPaymentFunc(ctx, paymentID)
	}
	return &adapter.GatewayPayment{ID: paymentID, Status: adapter.GatewayPaymentCaptured}, nil
}
