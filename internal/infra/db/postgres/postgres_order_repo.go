package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"studio-credit-ledger/internal/domain"
	"studio-credit-ledger/internal/domain/model"
	"studio-credit-ledger/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo {
	return &orderRepo{pool: pool}
}

const orderColumns = `id, user_id, package_id, amount, currency, status, payment_id, method, meta, created_at, updated_at`

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	if o.Meta == nil {
		o.Meta = map[string]interface{}{}
	}
	// A webhook event row may land before the creating Save does; the upsert
	// must never move a terminal status back or blank out an attached payment.
	const q = `
INSERT INTO payment_orders (` + orderColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  user_id=$2, package_id=$3, amount=$4, currency=$5,
  status = CASE WHEN payment_orders.status IN ('captured','failed')
                THEN payment_orders.status ELSE EXCLUDED.status END,
  payment_id = COALESCE(NULLIF(EXCLUDED.payment_id, ''), payment_orders.payment_id),
  method     = COALESCE(NULLIF(EXCLUDED.method, ''), payment_orders.method),
  meta       = payment_orders.meta || EXCLUDED.meta,
  updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q, o.ID, o.UserID, o.PackageID, o.Amount, o.Currency, o.Status, o.PaymentID, o.Method, o.Meta, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return mapDBErr(err)
	}
	return nil
}

func (r *orderRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Order, error) {
	q := `SELECT ` + orderColumns + ` FROM payment_orders WHERE id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += " FOR UPDATE"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanOrder(row)
}

// ApplyEvent merge-upserts the order for a gateway event. Fields absent from
// the event (empty strings, nil meta) keep their stored values, the meta maps
// merge key-wise, and a terminal status is never overwritten.
func (r *orderRepo) ApplyEvent(ctx context.Context, tx repository.Tx, id string, status model.OrderStatus, paymentID, method string, meta map[string]interface{}) error {
	if meta == nil {
		meta = map[string]interface{}{}
	}
	const q = `
INSERT INTO payment_orders (id, user_id, package_id, amount, currency, status, payment_id, method, meta, created_at, updated_at)
VALUES ($1, '', '', 0, '', $2, $3, $4, $5, NOW(), NOW())
ON CONFLICT (id) DO UPDATE SET
  status = CASE WHEN payment_orders.status IN ('captured','failed') THEN payment_orders.status ELSE EXCLUDED.status END,
  payment_id = COALESCE(NULLIF(EXCLUDED.payment_id, ''), payment_orders.payment_id),
  method = COALESCE(NULLIF(EXCLUDED.method, ''), payment_orders.method),
  meta = payment_orders.meta || EXCLUDED.meta,
  updated_at = NOW();`

	_, err := execSQL(ctx, r.pool, tx, q, id, status, paymentID, method, meta)
	if err != nil {
		return mapDBErr(err)
	}
	return nil
}

// MarkCapturedIfCreated atomically transitions created -> captured.
func (r *orderRepo) MarkCapturedIfCreated(ctx context.Context, tx repository.Tx, id string, paymentID string) (bool, error) {
	const q = `
UPDATE payment_orders
   SET status = 'captured',
       payment_id = COALESCE(NULLIF($2, ''), payment_id),
       updated_at = NOW()
 WHERE id = $1
   AND status = 'created';`

	cmd, err := execSQL(ctx, r.pool, tx, q, id, paymentID)
	if err != nil {
		return false, mapDBErr(err)
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *orderRepo) ListCapturedSince(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderColumns + ` FROM payment_orders WHERE status='captured' AND updated_at >= $1 ORDER BY updated_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, cutoff, limit)
}

func (r *orderRepo) ListCreatedOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + orderColumns + ` FROM payment_orders WHERE status='created' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *orderRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Order, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, mapDBErr(err)
	}
	defer rows.Close()

	var out []*model.Order
	for rows.Next() {
		o := new(model.Order)
		if err := rows.Scan(&o.ID, &o.UserID, &o.PackageID, &o.Amount, &o.Currency, &o.Status, &o.PaymentID, &o.Method, &o.Meta, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, o)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	o := &model.Order{}
	if err := row.Scan(&o.ID, &o.UserID, &o.PackageID, &o.Amount, &o.Currency, &o.Status, &o.PaymentID, &o.Method, &o.Meta, &o.CreatedAt, &o.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return o, nil
}
