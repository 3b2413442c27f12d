package repository

import (
	"context"
	"time"

	"studio-credit-ledger/internal/domain/model"
)

// -----------------------------
// Payment orders
// -----------------------------

type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Order, error)
	// ApplyEvent merge-upserts gateway event data onto the order row. Fields
	// the event does not carry are preserved, meta maps are merged, and a
	// terminal status is never downgraded.
	ApplyEvent(ctx context.Context, tx Tx, id string, status model.OrderStatus, paymentID, method string, meta map[string]interface{}) error
	// MarkCapturedIfCreated moves a created order to captured and reports
	// whether the transition happened.
	MarkCapturedIfCreated(ctx context.Context, tx Tx, id string, paymentID string) (bool, error)
	// ListCapturedSince lists captured orders updated at or after cutoff,
	// oldest first, for the reconciliation sweep.
	ListCapturedSince(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Order, error)
	// ListCreatedOlderThan lists orders still in created past their expected
	// confirmation window.
	ListCreatedOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Order, error)
}
