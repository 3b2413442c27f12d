package adapter

import (
	"context"
	"time"
)

// Gateway payment states we act on. Anything else is treated as not yet
// successful.
const (
	GatewayPaymentCaptured   = "captured"
	GatewayPaymentAuthorized = "authorized"
	GatewayPaymentFailed     = "failed"
)

// GatewayPayment is the provider-agnostic view of a payment fetched by id.
type GatewayPayment struct {
	ID        string
	OrderID   string
	Status    string // captured / authorized / failed / created / ...
	Method    string
	Amount    int64 // smallest currency unit
	Currency  string
	Email     string
	Contact   string
	CreatedAt time.Time
}

// PaymentGateway is the hex port for the payment provider.
type PaymentGateway interface {
	Name() string

	// CreateOrder registers an order with the provider and returns the
	// provider-assigned order id the client checkout will reference.
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (orderID string, err error)

	// FetchPayment retrieves the live payment state by provider payment id.
	FetchPayment(ctx context.Context, paymentID string) (*GatewayPayment, error)
}
