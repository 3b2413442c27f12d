// File: internal/usecase/payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"studio-credit-ledger/internal/domain"
	"studio-credit-ledger/internal/domain/model"
	"studio-credit-ledger/internal/domain/ports/adapter"
	"studio-credit-ledger/internal/domain/ports/repository"
	"studio-credit-ledger/internal/infra/logging"
	"studio-credit-ledger/internal/infra/metrics"
)

// Compile-time check
var _ PaymentUseCase = (*paymentUC)(nil)

type PaymentUseCase interface {
	// CreateOrder registers a pending order with the gateway for the given
	// package and persists it with status created.
	CreateOrder(ctx context.Context, userID, packageID string) (*model.Order, error)
	// Verify validates a client-submitted payment confirmation and, on
	// success, credits the account. Idempotent per order: a duplicate submit
	// reports the same resulting balance without a second grant.
	Verify(ctx context.Context, userID, orderID, paymentID, signature, packageID string) (creditsAdded, newBalance int64, err error)
}

// OrderSourceKey is the deterministic idempotency key tying a credit grant to
// its gateway order, shared by the verify path, the webhook path, and the
// reconciler.
func OrderSourceKey(gatewayName, orderID string) string {
	return fmt.Sprintf("%s_order_%s", gatewayName, orderID)
}

type paymentUC struct {
	orders   repository.OrderRepository
	ledger   LedgerUseCase
	gateway  adapter.PaymentGateway
	verifier adapter.SignatureVerifier
	resolver *creditResolver
	log      *zerolog.Logger
}

func NewPaymentUseCase(
	orders repository.OrderRepository,
	ledger LedgerUseCase,
	gateway adapter.PaymentGateway,
	verifier adapter.SignatureVerifier,
	packages []model.CreditPackage,
	logger *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		orders:   orders,
		ledger:   ledger,
		gateway:  gateway,
		verifier: verifier,
		resolver: newCreditResolver(packages, logger),
		log:      logger,
	}
}

func (u *paymentUC) CreateOrder(ctx context.Context, userID, packageID string) (*model.Order, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.CreateOrder")()
	if userID == "" || packageID == "" {
		return nil, domain.ErrInvalidArgument
	}
	pkg, ok := u.resolver.Find(packageID)
	if !ok {
		return nil, domain.ErrInvalidArgument
	}

	orderID, err := u.gateway.CreateOrder(ctx, pkg.Price, pkg.Currency, "pkg_"+packageID, map[string]string{
		"user_id":    userID,
		"package_id": packageID,
	})
	if err != nil {
		return nil, fmt.Errorf("gateway create order: %w", err)
	}

	now := time.Now()
	o := &model.Order{
		ID:        orderID,
		UserID:    userID,
		PackageID: packageID,
		Amount:    pkg.Price,
		Currency:  pkg.Currency,
		Status:    model.OrderStatusCreated,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.orders.Save(ctx, repository.NoTX, o); err != nil {
		return nil, err
	}
	metrics.IncPayment(string(model.OrderStatusCreated))
	u.log.Info().Str("order_id", orderID).Str("user_id", userID).Str("package_id", packageID).Msg("payment order created")
	return o, nil
}

func (u *paymentUC) Verify(ctx context.Context, userID, orderID, paymentID, signature, packageID string) (int64, int64, error) {
	defer logging.TraceDuration(u.log, "PaymentUC.Verify")()
	if userID == "" || orderID == "" || paymentID == "" || signature == "" {
		return 0, 0, domain.ErrInvalidArgument
	}

	// Signature mismatch short-circuits with no side effects.
	if !u.verifier.VerifyCheckout(orderID, paymentID, signature) {
		u.log.Warn().Str("order_id", orderID).Str("user_id", userID).Msg("checkout signature mismatch")
		return 0, 0, domain.ErrInvalidSignature
	}

	// An order created by us must belong to the caller.
	if o, err := u.orders.FindByID(ctx, repository.NoTX, orderID); err == nil {
		if o.UserID != "" && o.UserID != userID {
			return 0, 0, domain.ErrInvalidArgument
		}
		if packageID == "" {
			packageID = o.PackageID
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return 0, 0, err
	}

	gp, err := u.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return 0, 0, fmt.Errorf("gateway fetch payment: %w", err)
	}
	if gp.OrderID != "" && gp.OrderID != orderID {
		return 0, 0, domain.ErrInvalidArgument
	}
	if gp.Status != adapter.GatewayPaymentCaptured && gp.Status != adapter.GatewayPaymentAuthorized {
		return 0, 0, domain.ErrPaymentNotSuccessful
	}

	credits := u.resolver.Resolve(packageID)
	newBalance, err := u.ledger.AddCredits(ctx, userID, credits, OrderSourceKey(u.gateway.Name(), orderID), map[string]interface{}{
		"order_id":   orderID,
		"payment_id": paymentID,
		"package_id": packageID,
		"method":     gp.Method,
		"amount":     gp.Amount,
		"currency":   gp.Currency,
	})
	if err != nil {
		return 0, 0, err
	}

	if moved, err := u.orders.MarkCapturedIfCreated(ctx, repository.NoTX, orderID, paymentID); err != nil {
		// The grant is durable; status refresh failures are retried by the
		// webhook and reconciler paths.
		u.log.Error().Err(err).Str("order_id", orderID).Msg("mark captured failed after credit grant")
	} else if moved {
		metrics.IncPayment(string(model.OrderStatusCaptured))
		metrics.AddPaymentRevenue(gp.Currency, gp.Amount)
	}

	u.log.Info().Str("order_id", orderID).Str("user_id", userID).Int64("credits", credits).Int64("balance", newBalance).Msg("payment verified and credited")
	return credits, newBalance, nil
}
