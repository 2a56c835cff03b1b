package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jmoiron/sqlx"

	"mitoc/member/internal/api"
	"mitoc/member/internal/logging"
	"mitoc/member/internal/metrics"
	"mitoc/member/internal/middleware"
	"mitoc/member/internal/signature"
)

// RegisterRoutes wires the webhook endpoints onto a chi router. A nil
// signer disables payment signature verification.
func RegisterRoutes(
	db *sqlx.DB,
	membershipSvc api.MembershipProcessor,
	waiverSvc api.WaiverProcessor,
	signer *signature.SecureAcceptanceSigner,
	metricsReg *metrics.MetricsRegistry,
	upSince time.Time,
) http.Handler {

	r := chi.NewRouter()

	// global middleware
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RateLimitMiddleware)
	r.Use(middleware.MetricsMiddleware(metricsReg))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	logging.Info("Router initialized with metrics and logging middleware")

	// health check
	r.Get("/healthCheck", api.HealthCheckHandler(db, upSince))

	// Payment and waiver notifications arrive from CyberSource and
	// DocuSign respectively
	r.Post("/members/membership", api.AddMembershipHandler(membershipSvc, signer, metricsReg))
	r.Post("/members/waiver", api.AddWaiverHandler(waiverSvc))

	return r
}
