//go:build !integration

package usecase

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"studio-credit-ledger/internal/domain"
	"studio-credit-ledger/internal/domain/model"
	"studio-credit-ledger/internal/infra/payment"
)

func webhookSig(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func capturedEvent(orderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured","method":"card","amount":99900,"currency":"INR"}}}}`, paymentID, orderID))
}

type webhookUCTestDeps struct {
	ledgerRepo *memLedgerRepo
	orders     *memOrderRepo
	ledgerUC   LedgerUseCase
}

func newWebhookUCDeps() *webhookUCTestDeps {
	deps := &webhookUCTestDeps{
		ledgerRepo: newMemLedgerRepo(),
		orders:     newMemOrderRepo(),
	}
	deps.ledgerUC = NewLedgerUseCase(deps.ledgerRepo, 2, 5*time.Second, newTestLogger())
	return deps
}

func (d *webhookUCTestDeps) uc() *webhookUC {
	verifier := payment.NewHMACVerifier(testAPISecret, testWebhookSecret)
	return NewWebhookUseCase(d.orders, d.ledgerUC, verifier, "razorpay", testPackages, newTestLogger())
}

func (d *webhookUCTestDeps) seedOrder(ctx context.Context) {
	_ = d.orders.Save(ctx, nil, &model.Order{
		ID: "order_123", UserID: "user-1", PackageID: "studio",
		Amount: 99900, Currency: "INR", Status: model.OrderStatusCreated,
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	})
}

func TestWebhookUC_HandleEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects a bad signature without touching state", func(t *testing.T) {
		deps := newWebhookUCDeps()
		deps.seedOrder(ctx)
		body := capturedEvent("order_123", "pay_9")

		err := deps.uc().HandleEvent(ctx, body, webhookSig("wrong_secret", body))
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
		o, _ := deps.orders.FindByID(ctx, nil, "order_123")
		if o.Status != model.OrderStatusCreated {
			t.Errorf("order status changed on rejected event: %s", o.Status)
		}
		if len(deps.ledgerRepo.entries) != 0 {
			t.Errorf("ledger touched on rejected event")
		}
	})

	t.Run("signature is over the exact raw bytes", func(t *testing.T) {
		deps := newWebhookUCDeps()
		body := capturedEvent("order_123", "pay_9")
		sig := webhookSig(testWebhookSecret, body)
		tampered := append([]byte{' '}, body...)

		if err := deps.uc().HandleEvent(ctx, tampered, sig); !errors.Is(err, domain.ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature for altered body, got %v", err)
		}
	})

	t.Run("missing order id is a client error", func(t *testing.T) {
		deps := newWebhookUCDeps()
		body := []byte(`{"event":"payment.captured","payload":{}}`)

		err := deps.uc().HandleEvent(ctx, body, webhookSig(testWebhookSecret, body))
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("captured event settles the order and credits the account", func(t *testing.T) {
		deps := newWebhookUCDeps()
		deps.seedOrder(ctx)
		body := capturedEvent("order_123", "pay_9")

		if err := deps.uc().HandleEvent(ctx, body, webhookSig(testWebhookSecret, body)); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		o, _ := deps.orders.FindByID(ctx, nil, "order_123")
		if o.Status != model.OrderStatusCaptured || o.PaymentID != "pay_9" {
			t.Errorf("unexpected order state: %+v", o)
		}
		bal, _ := deps.ledgerUC.Balance(ctx, "user-1")
		if bal != 120 {
			t.Errorf("expected 120 credits from webhook settlement, got %d", bal)
		}
	})

	t.Run("redelivery refreshes metadata but credits once", func(t *testing.T) {
		deps := newWebhookUCDeps()
		deps.seedOrder(ctx)
		uc := deps.uc()
		body := capturedEvent("order_123", "pay_9")
		sig := webhookSig(testWebhookSecret, body)

		if err := uc.HandleEvent(ctx, body, sig); err != nil {
			t.Fatalf("first delivery: %v", err)
		}
		if err := uc.HandleEvent(ctx, body, sig); err != nil {
			t.Fatalf("redelivery: %v", err)
		}
		if n := deps.ledgerRepo.countEntries("user-1", model.EntryTypePurchase); n != 1 {
			t.Errorf("expected exactly 1 purchase entry after redelivery, got %d", n)
		}
		bal, _ := deps.ledgerUC.Balance(ctx, "user-1")
		if bal != 120 {
			t.Errorf("expected balance 120 after redelivery, got %d", bal)
		}
	})

	t.Run("webhook-first settlement then client verify does not double credit", func(t *testing.T) {
		deps := newWebhookUCDeps()
		deps.seedOrder(ctx)
		body := capturedEvent("order_123", "pay_9")
		if err := deps.uc().HandleEvent(ctx, body, webhookSig(testWebhookSecret, body)); err != nil {
			t.Fatalf("webhook: %v", err)
		}

		// Client verification arrives late; the shared source key absorbs it.
		verifier := payment.NewHMACVerifier(testAPISecret, testWebhookSecret)
		payUC := NewPaymentUseCase(deps.orders, deps.ledgerUC, &MockPaymentGateway{}, verifier, testPackages, newTestLogger())
		sig := checkoutSig(testAPISecret, "order_123", "pay_9")
		_, balance, err := payUC.Verify(ctx, "user-1", "order_123", "pay_9", sig, "studio")
		if err != nil {
			t.Fatalf("late verify: %v", err)
		}
		if balance != 120 {
			t.Errorf("expected balance to stay 120, got %d", balance)
		}
		if n := deps.ledgerRepo.countEntries("user-1", model.EntryTypePurchase); n != 1 {
			t.Errorf("expected exactly 1 purchase entry, got %d", n)
		}
	})

	t.Run("failed event marks the order failed and grants nothing", func(t *testing.T) {
		deps := newWebhookUCDeps()
		deps.seedOrder(ctx)
		body := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_123","status":"failed"}}}}`)

		if err := deps.uc().HandleEvent(ctx, body, webhookSig(testWebhookSecret, body)); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		o, _ := deps.orders.FindByID(ctx, nil, "order_123")
		if o.Status != model.OrderStatusFailed {
			t.Errorf("expected failed status, got %s", o.Status)
		}
		if len(deps.ledgerRepo.entries) != 0 {
			t.Errorf("failed payment must not credit")
		}
	})

	t.Run("terminal status is never downgraded", func(t *testing.T) {
		deps := newWebhookUCDeps()
		deps.seedOrder(ctx)
		uc := deps.uc()
		captured := capturedEvent("order_123", "pay_9")
		if err := uc.HandleEvent(ctx, captured, webhookSig(testWebhookSecret, captured)); err != nil {
			t.Fatalf("captured: %v", err)
		}

		failed := []byte(`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_123","status":"failed"}}}}`)
		if err := uc.HandleEvent(ctx, failed, webhookSig(testWebhookSecret, failed)); err != nil {
			t.Fatalf("late failed event: %v", err)
		}
		o, _ := deps.orders.FindByID(ctx, nil, "order_123")
		if o.Status != model.OrderStatusCaptured {
			t.Errorf("terminal status downgraded to %s", o.Status)
		}
	})

	t.Run("unmapped event name passes through as status", func(t *testing.T) {
		deps := newWebhookUCDeps()
		body := []byte(`{"event":"payment.authorized","payload":{"payment":{"entity":{"id":"pay_5","order_id":"order_555","status":"authorized"}}}}`)

		if err := deps.uc().HandleEvent(ctx, body, webhookSig(testWebhookSecret, body)); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		o, _ := deps.orders.FindByID(ctx, nil, "order_555")
		if string(o.Status) != "payment.authorized" {
			t.Errorf("expected raw event as status, got %s", o.Status)
		}
	})

	t.Run("captured event for an unregistered order updates status only", func(t *testing.T) {
		deps := newWebhookUCDeps()
		body := capturedEvent("order_unknown", "pay_7")

		if err := deps.uc().HandleEvent(ctx, body, webhookSig(testWebhookSecret, body)); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if len(deps.ledgerRepo.entries) != 0 {
			t.Errorf("cannot credit an order with no known user")
		}
	})
}
