package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"studio-credit-ledger/internal/domain"
	"studio-credit-ledger/internal/infra/logging"
	"studio-credit-ledger/internal/infra/metrics"
	red "studio-credit-ledger/internal/infra/redis"
)

// maxWebhookBody bounds webhook payload size; gateway events are small.
const maxWebhookBody = 1 << 20

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument),
		errors.Is(err, domain.ErrInvalidSignature),
		errors.Is(err, domain.ErrPaymentNotSuccessful):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrInsufficientCredits):
		return http.StatusPaymentRequired
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type createOrderRequest struct {
	PackageID string `json:"packageId"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	userID, ok := userIDFrom(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PackageID == "" {
		writeError(w, http.StatusBadRequest, "packageId is required")
		return
	}

	order, err := s.paymentUC.CreateOrder(ctx, userID, req.PackageID)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("create order failed")
		writeError(w, statusFor(err), "failed to create order")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"orderId":  order.ID,
		"amount":   order.Amount,
		"currency": order.Currency,
	})
}

type verifyRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
	Signature string `json:"signature"`
	PackageID string `json:"packageId"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	result, reason := "ok", ""
	defer func() {
		metrics.PaymentVerifyRequests.WithLabelValues(result, reason).Inc()
		metrics.PaymentVerifyDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	userID, ok := userIDFrom(ctx)
	if !ok {
		result, reason = "fail", "unknown"
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, red.UserEndpointKey(userID, "verify"), 10, time.Minute)
		if err != nil {
			// A redis outage must not block settlements; fail open.
			logging.With(ctx, s.log).Warn().Err(err).Msg("rate limiter check failed, allowing request")
		} else if !allowed {
			result, reason = "fail", "rate_limited"
			writeError(w, http.StatusTooManyRequests, "too many verification attempts")
			return
		}
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		result, reason = "fail", "bad_json"
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || req.PaymentID == "" || req.Signature == "" {
		result, reason = "fail", "missing_field"
		writeError(w, http.StatusBadRequest, "orderId, paymentId and signature are required")
		return
	}
	ctx = logging.WithOrderID(ctx, req.OrderID)

	credits, balance, err := s.paymentUC.Verify(ctx, userID, req.OrderID, req.PaymentID, req.Signature, req.PackageID)
	if err != nil {
		result = "fail"
		switch {
		case errors.Is(err, domain.ErrInvalidSignature):
			reason = "bad_signature"
		case errors.Is(err, domain.ErrPaymentNotSuccessful):
			reason = "not_successful"
		case errors.Is(err, domain.ErrInvalidArgument):
			reason = "missing_field"
		case errors.Is(err, domain.ErrUnavailable):
			reason = "gateway_error"
		default:
			reason = "credit_error"
		}
		logging.With(ctx, s.log).Warn().Err(err).Msg("payment verification failed")
		writeError(w, statusFor(err), "payment verification failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":      true,
		"creditsAdded": credits,
		"newBalance":   balance,
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	signature := r.Header.Get("X-Razorpay-Signature")
	if signature == "" {
		writeError(w, http.StatusBadRequest, "missing signature header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := s.webhookUC.HandleEvent(ctx, body, signature); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidSignature), errors.Is(err, domain.ErrInvalidArgument):
			// Client-error statuses tell the gateway not to retry this body.
			writeError(w, http.StatusBadRequest, "invalid event")
		default:
			s.log.Error().Err(err).Msg("webhook processing failed")
			writeError(w, http.StatusInternalServerError, "event processing failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	userID, ok := userIDFrom(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	balance, err := s.ledgerUC.Balance(ctx, userID)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("balance read failed")
		writeError(w, statusFor(err), "failed to get balance")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	userID, ok := userIDFrom(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	entries, err := s.ledgerUC.History(ctx, userID, offset, limit)
	if err != nil {
		writeError(w, statusFor(err), "failed to list transactions")
		return
	}

	type entryView struct {
		ID        string    `json:"id"`
		Amount    int64     `json:"amount"`
		Type      string    `json:"type"`
		CreatedAt time.Time `json:"createdAt"`
	}
	out := make([]entryView, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryView{ID: e.ID, Amount: e.Amount, Type: string(e.Type), CreatedAt: e.CreatedAt})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data":   out,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleTrialGrant(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	userID, ok := userIDFrom(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}

	balance, err := s.ledgerUC.GrantTrialCredits(ctx, userID)
	if err != nil {
		logging.With(ctx, s.log).Error().Err(err).Msg("trial grant failed")
		writeError(w, statusFor(err), "failed to grant trial credits")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"balance": balance})
}
