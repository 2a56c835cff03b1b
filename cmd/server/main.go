package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"mitoc/member/internal/alerts"
	"mitoc/member/internal/common"
	"mitoc/member/internal/config"
	"mitoc/member/internal/db"
	"mitoc/member/internal/db/repositories"
	"mitoc/member/internal/logging"
	"mitoc/member/internal/metrics"
	"mitoc/member/internal/providers"
	"mitoc/member/internal/routes"
	"mitoc/member/internal/services"
	"mitoc/member/internal/signature"
	"mitoc/member/internal/workers"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// .env is optional; deployments set real environment variables
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// Initialize structured logging
	if err := logging.Init(cfg.AppEnv); err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer logging.Close()

	logging.Info("Member service starting up",
		"environment", cfg.AppEnv,
		"timestamp", time.Now().Format(time.RFC3339),
	)

	// Error tracking
	var alerter alerts.Alerter = &alerts.NoopAlerter{}
	if cfg.SentryDSN != "" {
		sentryAlerter, err := alerts.NewSentry(cfg.SentryDSN, cfg.AppEnv)
		if err != nil {
			logging.Error("Failed to initialize Sentry, continuing without it", "error", err.Error())
		} else {
			alerter = sentryAlerter
			defer sentryAlerter.Flush(2 * time.Second)
		}
	}

	// Connect to the gear database
	conn, err := db.Connect(cfg)
	if err != nil {
		logging.Error("Failed to connect to Postgres", "error", err.Error())
		log.Fatalf("❌ Failed to connect to Postgres: %v", err)
	}
	logging.Info("Connected to Postgres")

	metricsReg := metrics.NewMetricsRegistry()

	// Trips API client with a verified-email lookup cache in front
	tripsProvider := providers.NewTripsAPIProvider(cfg.TripsAPIBaseURL, cfg.MembershipSecretKey, cfg.TripsAPITimeout)
	cache := common.NewCacheService(cfg.EmailCacheTTL, 10*time.Minute)
	trips := providers.NewCachingTripsAPI(tripsProvider, cache, cfg.EmailCacheTTL, metricsReg)

	// Optional redis-backed retry queue for failed notifications
	var queue *common.NotifyQueue
	if cfg.RetryQueueEnabled() {
		queue = common.NewNotifyQueue(common.NewRedisClient(cfg))
		logging.Info("Notification retry queue enabled", "stream", common.NotifyStream)
	} else {
		logging.Info("REDIS_HOST not set, failed notifications will only alert")
	}

	store := repositories.NewMemberRepository(conn)
	notifier := services.NewNotifier(trips, alerter, queue, metricsReg)
	membershipSvc := services.NewMembershipService(store, trips, notifier, metricsReg)
	waiverSvc := services.NewWaiverService(store, trips, notifier, metricsReg)

	var signer *signature.SecureAcceptanceSigner
	if cfg.VerifySignature {
		signer = signature.NewSecureAcceptanceSigner(cfg.CyberSourceSecretKey)
	} else {
		logging.Warn("CyberSource signature verification is DISABLED")
	}

	upSince := time.Now()
	router := routes.RegisterRoutes(conn, membershipSvc, waiverSvc, signer, metricsReg, upSince)

	// Metrics endpoint lives outside the Chi router
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)
	logging.Info("Prometheus metrics endpoint registered at /metrics")

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logging.Info("Server starting", "port", cfg.Port, "environment", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	if queue != nil {
		worker := workers.NewNotifyWorker("notify-1", queue, trips, alerter, metricsReg)
		group.Go(func() error {
			return worker.Start(gctx)
		})
	}

	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		logging.Error("Server exited with error", "error", err.Error())
		log.Fatalf("❌ Server error: %v", err)
	}
	logging.Info("Server stopped")
}
