// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"studio-credit-ledger/internal/domain"
	"studio-credit-ledger/internal/domain/model"
	"studio-credit-ledger/internal/domain/ports/adapter"
	"studio-credit-ledger/internal/domain/ports/repository"
	"studio-credit-ledger/internal/infra/logging"
	"studio-credit-ledger/internal/infra/metrics"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

type WebhookUseCase interface {
	// HandleEvent validates and applies one gateway webhook delivery. The raw
	// body is the exact byte payload the signature was computed over.
	// Redelivery of the same event is a no-op beyond refreshing metadata.
	HandleEvent(ctx context.Context, rawBody []byte, signature string) error
}

type webhookUC struct {
	orders      repository.OrderRepository
	ledger      LedgerUseCase
	verifier    adapter.SignatureVerifier
	gatewayName string
	resolver    *creditResolver
	log         *zerolog.Logger
}

func NewWebhookUseCase(
	orders repository.OrderRepository,
	ledger LedgerUseCase,
	verifier adapter.SignatureVerifier,
	gatewayName string,
	packages []model.CreditPackage,
	logger *zerolog.Logger,
) *webhookUC {
	return &webhookUC{
		orders:      orders,
		ledger:      ledger,
		verifier:    verifier,
		gatewayName: gatewayName,
		resolver:    newCreditResolver(packages, logger),
		log:         logger,
	}
}

// webhookEnvelope mirrors the gateway's event envelope. Only the fields we
// act on are decoded; everything else rides along in the entity meta.
type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity *paymentEntity `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity *orderEntity `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID       string `json:"id"`
	OrderID  string `json:"order_id"`
	Status   string `json:"status"`
	Method   string `json:"method"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Email    string `json:"email"`
	Contact  string `json:"contact"`
}

type orderEntity struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

func (u *webhookUC) HandleEvent(ctx context.Context, rawBody []byte, signature string) error {
	defer logging.TraceDuration(u.log, "WebhookUC.HandleEvent")()
	if signature == "" {
		metrics.IncWebhookEvent("unknown", "bad_signature")
		return domain.ErrInvalidSignature
	}
	if !u.verifier.VerifyWebhook(rawBody, signature) {
		metrics.IncWebhookEvent("unknown", "bad_signature")
		u.log.Warn().Msg("webhook signature mismatch")
		return domain.ErrInvalidSignature
	}

	var env webhookEnvelope
	if err := json.Unmarshal(rawBody, &env); err != nil {
		metrics.IncWebhookEvent("unknown", "bad_payload")
		return domain.ErrInvalidArgument
	}

	// Payment entity's order reference wins over the order entity's own id.
	var orderID, paymentID, method string
	if p := env.Payload.Payment.Entity; p != nil && p.OrderID != "" {
		orderID, paymentID, method = p.OrderID, p.ID, p.Method
	} else if o := env.Payload.Order.Entity; o != nil && o.ID != "" {
		orderID = o.ID
	}
	if orderID == "" {
		metrics.IncWebhookEvent(env.Event, "bad_payload")
		return domain.ErrInvalidArgument
	}

	status := mapEventStatus(env.Event)
	meta := eventMeta(&env)

	if err := u.orders.ApplyEvent(ctx, repository.NoTX, orderID, status, paymentID, method, meta); err != nil {
		metrics.IncWebhookEvent(env.Event, "error")
		return err
	}
	metrics.IncPayment(string(status))

	// Captured events also drive the credit grant so a purchase whose client
	// verification never happened (browser closed, network failure) still
	// settles. The shared source key makes this safe when both paths fire.
	if status == model.OrderStatusCaptured {
		if err := u.creditCapturedOrder(ctx, orderID, paymentID); err != nil {
			metrics.IncWebhookEvent(env.Event, "error")
			return err
		}
	}

	metrics.IncWebhookEvent(env.Event, "ok")
	return nil
}

func (u *webhookUC) creditCapturedOrder(ctx context.Context, orderID, paymentID string) error {
	o, err := u.orders.FindByID(ctx, repository.NoTX, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if o.UserID == "" {
		// Order was never registered with us; nothing to credit against.
		u.log.Warn().Str("order_id", orderID).Msg("captured event for unknown order, skipping credit grant")
		return nil
	}

	credits := u.resolver.Resolve(o.PackageID)
	balance, err := u.ledger.AddCredits(ctx, o.UserID, credits, OrderSourceKey(u.gatewayName, orderID), map[string]interface{}{
		"order_id":   orderID,
		"payment_id": paymentID,
		"package_id": o.PackageID,
		"via":        "webhook",
	})
	if err != nil {
		return err
	}
	metrics.IncWebhookCreditGrant()
	u.log.Info().Str("order_id", orderID).Str("user_id", o.UserID).Int64("balance", balance).Msg("webhook settled order")
	return nil
}

func mapEventStatus(event string) model.OrderStatus {
	switch event {
	case "payment.captured":
		return model.OrderStatusCaptured
	case "payment.failed":
		return model.OrderStatusFailed
	default:
		// Unmapped events pass their raw name through as status.
		return model.OrderStatus(event)
	}
}

func eventMeta(env *webhookEnvelope) map[string]interface{} {
	meta := map[string]interface{}{"event": env.Event}
	if p := env.Payload.Payment.Entity; p != nil {
		if p.Status != "" {
			meta["payment_status"] = p.Status
		}
		if p.Amount != 0 {
			meta["amount"] = p.Amount
		}
		if p.Currency != "" {
			meta["currency"] = p.Currency
		}
		if p.Email != "" {
			meta["email"] = p.Email
		}
		if p.Contact != "" {
			meta["contact"] = p.Contact
		}
	}
	if o := env.Payload.Order.Entity; o != nil && o.Receipt != "" {
		meta["receipt"] = o.Receipt
	}
	return meta
}
