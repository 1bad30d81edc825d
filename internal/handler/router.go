// Package handler wires the HTTP surface of the gateway: the complaint
// submission and account lookup endpoints, operational endpoints and the
// protective middleware (CORS, rate limit, body cap).
package handler

import (
	"net/http"

	"github.com/rawbank/reclamations-gateway-go/internal/config"
	"github.com/rawbank/reclamations-gateway-go/internal/infra/observability"
	"github.com/rawbank/reclamations-gateway-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *config.Config, complaints *service.ComplaintsService, lookup *service.LookupService, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.RequestLogger(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/health", healthHandler())
	r.Get("/healthz", healthHandler())
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API ---
	r.Route("/api", func(r chi.Router) {
		// The form is the only legitimate caller; everything else is
		// rejected at the CORS layer.
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{cfg.FrontendOrigin},
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
			MaxAge:         300,
		}))
		r.Use(httprate.Limit(
			cfg.RateLimitRequests,
			cfg.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByRealIP),
			httprate.WithLimitHandler(rateLimitHandler(logger)),
		))
		r.Use(middleware.RequestSize(cfg.MaxBodyBytes))
		r.Use(observability.MetricsMiddleware(metrics))

		r.Post("/complaints", submitComplaintHandler(complaints, metrics, logger))
		r.Get("/complaints/{trackingId}/status", complaintStatusHandler(complaints, logger))
		r.Post("/accounts", accountsLookupHandler(lookup, metrics, logger))
		r.Get("/accounts", accountsLookupByQueryHandler(lookup, metrics, logger))
	})

	return r
}

func healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func rateLimitHandler(logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger.Warn("rate limit exceeded",
			zap.String("remote", r.RemoteAddr),
			zap.String("path", r.URL.Path),
		)
		writeError(w, http.StatusTooManyRequests, "Trop de requêtes, réessayez plus tard")
	}
}
