package model

import "time"

type OrderStatus string

const (
	OrderStatusCreated  OrderStatus = "created"  // order registered with the gateway, awaiting payment
	OrderStatusCaptured OrderStatus = "captured" // gateway confirmed the charge
	OrderStatusFailed   OrderStatus = "failed"   // gateway reported a failed charge
)

// Terminal reports whether no further status transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCaptured || s == OrderStatusFailed
}

// Order records a gateway payment order. The gateway-assigned order id is the
// primary key; at most one successful credit-granting ledger entry may ever
// reference it (enforced by the ledger's source-key uniqueness).
type Order struct {
	ID        string // gateway order id
	UserID    string
	PackageID string
	Amount    int64 // smallest currency unit
	Currency  string
	Status    OrderStatus
	PaymentID string                 // set by reconciliation
	Method    string                 // card/upi/... as reported by the gateway
	Meta      map[string]interface{} // raw gateway fields, merged on each event
	CreatedAt time.Time
	UpdatedAt time.Time
}
