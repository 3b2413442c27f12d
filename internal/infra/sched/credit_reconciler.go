package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"studio-credit-ledger/internal/domain"
	"studio-credit-ledger/internal/domain/model"
	"studio-credit-ledger/internal/domain/ports/repository"
	"studio-credit-ledger/internal/usecase"
)

// CreditReconciler periodically sweeps for captured orders that never got
// their credit grant (webhook credit failed mid-flight, or the event arrived
// before the order row existed) and re-drives the idempotent grant. It also
// surfaces stale created orders so abandoned checkouts are visible.
type CreditReconciler struct {
	orders      repository.OrderRepository
	ledger      usecase.LedgerUseCase
	gatewayName string
	packages    []model.CreditPackage
	interval    time.Duration // how often to scan
	staleAfter  time.Duration // how old a created order must be to count as stale
	lookback    time.Duration // how far back to scan for captured orders
	log         *zerolog.Logger
}

func NewCreditReconciler(
	orders repository.OrderRepository,
	ledger usecase.LedgerUseCase,
	gatewayName string,
	packages []model.CreditPackage,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *CreditReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &CreditReconciler{
		orders:      orders,
		ledger:      ledger,
		gatewayName: gatewayName,
		packages:    packages,
		interval:    interval,
		staleAfter:  staleAfter,
		lookback:    24 * time.Hour,
		log:         logger,
	}
}

func (w *CreditReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *CreditReconciler) tick(ctx context.Context) {
	captured, err := w.orders.ListCapturedSince(ctx, repository.NoTX, time.Now().Add(-w.lookback), 200)
	if err != nil {
		w.log.Error().Err(err).Msg("credit-reconciler: list captured orders")
		return
	}
	for _, o := range captured {
		if o.UserID == "" {
			continue
		}
		w.settle(ctx, o)
	}

	stale, err := w.orders.ListCreatedOlderThan(ctx, repository.NoTX, time.Now().Add(-w.staleAfter), 200)
	if err != nil {
		w.log.Error().Err(err).Msg("credit-reconciler: list stale created orders")
		return
	}
	if len(stale) > 0 {
		w.log.Warn().Int("count", len(stale)).Msg("credit-reconciler: stale created orders awaiting gateway confirmation")
	}
}

func (w *CreditReconciler) settle(ctx context.Context, o *model.Order) {
	credits, _ := usecase.ResolveCredits(w.packages, o.PackageID)
	if credits <= 0 {
		w.log.Error().Str("order_id", o.ID).Str("package_id", o.PackageID).Msg("credit-reconciler: cannot resolve credits")
		return
	}

	// AddCredits is a replay no-op when either confirmation path already
	// settled the order, so this sweep is safe to run repeatedly.
	balance, err := w.ledger.AddCredits(ctx, o.UserID, credits, usecase.OrderSourceKey(w.gatewayName, o.ID), map[string]interface{}{
		"order_id":   o.ID,
		"payment_id": o.PaymentID,
		"package_id": o.PackageID,
		"via":        "reconciler",
	})
	if err != nil {
		if !errors.Is(err, domain.ErrUnavailable) {
			w.log.Error().Err(err).Str("order_id", o.ID).Msg("credit-reconciler: settle failed")
		}
		return
	}
	w.log.Debug().Str("order_id", o.ID).Str("user_id", o.UserID).Int64("balance", balance).Msg("credit-reconciler: order settled")
}
