// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studio-credit-ledger/internal/config"
	pg "studio-credit-ledger/internal/infra/db/postgres"
	"studio-credit-ledger/internal/infra/logging"
	"studio-credit-ledger/internal/infra/metrics"
	pay "studio-credit-ledger/internal/infra/payment"
	red "studio-credit-ledger/internal/infra/redis"
	"studio-credit-ledger/internal/infra/sched"
	"studio-credit-ledger/internal/infra/web"
	"studio-credit-ledger/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("developer mode enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	tm := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)

	// ---- Repositories ----
	ledgerRepo := pg.NewLedgerRepoCacheDecorator(pg.NewLedgerRepo(pool, tm), redisClient, cfg.Redis.TTL)
	orderRepo := pg.NewOrderRepo(pool)

	// ---- Gateway ----
	gateway, err := pay.NewRazorpayGateway(cfg.Gateway.KeyID, cfg.Gateway.KeySecret, cfg.Gateway.BaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("razorpay gateway")
	}
	verifier := pay.NewHMACVerifier(cfg.Gateway.KeySecret, cfg.Gateway.WebhookSecret)

	// ---- Use cases ----
	ledgerUC := usecase.NewLedgerUseCase(ledgerRepo, cfg.Credits.TrialAmount, cfg.Server.Timeout, logger)
	paymentUC := usecase.NewPaymentUseCase(orderRepo, ledgerUC, gateway, verifier, cfg.Credits.Packages, logger)
	webhookUC := usecase.NewWebhookUseCase(orderRepo, ledgerUC, verifier, gateway.Name(), cfg.Credits.Packages, logger)

	// ---- Reconciler ----
	reconciler := sched.NewCreditReconciler(orderRepo, ledgerUC, gateway.Name(), cfg.Credits.Packages, cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, logger)
	go reconciler.Start(ctx)

	// ---- HTTP servers ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.TTL)
	srv := web.NewServer(ledgerUC, paymentUC, webhookUC, auth, rateLimiter, cfg.Server.Timeout, logger)

	apiServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.Port), Handler: srv.Router()}
	go func() {
		logger.Info().Str("addr", apiServer.Addr).Msg("api listening")
		if err := apiServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("api server")
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Server.MetricsPort), Handler: metricsMux}
	go func() {
		logger.Info().Str("addr", metricsServer.Addr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shCancel()
	_ = apiServer.Shutdown(shCtx)
	_ = metricsServer.Shutdown(shCtx)
}
