package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"studio-credit-ledger/internal/infra/logging"
	red "studio-credit-ledger/internal/infra/redis"
	"studio-credit-ledger/internal/usecase"
)

type Server struct {
	ledgerUC  usecase.LedgerUseCase
	paymentUC usecase.PaymentUseCase
	webhookUC usecase.WebhookUseCase
	auth      *AuthManager
	limiter   *red.RateLimiter
	timeout   time.Duration
	log       *zerolog.Logger
}

func NewServer(
	ledgerUC usecase.LedgerUseCase,
	paymentUC usecase.PaymentUseCase,
	webhookUC usecase.WebhookUseCase,
	auth *AuthManager,
	limiter *red.RateLimiter,
	timeout time.Duration,
	logger *zerolog.Logger,
) *Server {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Server{
		ledgerUC:  ledgerUC,
		paymentUC: paymentUC,
		webhookUC: webhookUC,
		auth:      auth,
		limiter:   limiter,
		timeout:   timeout,
		log:       logger,
	}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(traceID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusBadRequest, "method not allowed")
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Webhook deliveries authenticate by signature, not session.
	r.Post("/api/v1/webhooks/razorpay", s.handleWebhook)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Post("/api/v1/payments/order", s.handleCreateOrder)
		r.Post("/api/v1/payments/verify", s.handleVerify)
		r.Get("/api/v1/credits/balance", s.handleBalance)
		r.Get("/api/v1/credits/history", s.handleHistory)
		r.Post("/api/v1/credits/trial", s.handleTrialGrant)
	})

	return r
}

// traceID tags every request context so log lines across the call chain
// correlate on one id.
func traceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.With(r.Context(), s.log).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
