package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/flowmarket/marketplace/internal/config"
)

func NewRouter(handler *Handler, health *HealthHandler, limiter Limiter, cfg config.RateLimitConfig, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware (applied to all routes)
	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))

	// Health and metrics endpoints are registered BEFORE the rate limiter
	// so Kubernetes probes and Prometheus scrapes are never rejected under load.
	r.Get("/healthz", health.Liveness)
	r.Get("/readyz", health.Readiness)
	r.Handle("/metrics", promhttp.Handler())

	// Provider callbacks are also exempt: a redelivery storm from a payment
	// provider must not be dropped by the client limiter.
	r.Route("/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", handler.MercadoPagoWebhook)
		r.Post("/stripe", handler.StripeWebhook)
		r.Post("/github", handler.GitHubWebhook)
		r.Post("/n8n", handler.N8NWebhook)
	})

	// Rate limiter only applies to API routes below
	r.Group(func(r chi.Router) {
		rl := NewRateLimiter(limiter, cfg, logger)
		r.Use(rl.Middleware)

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/templates", func(r chi.Router) {
				r.Get("/", handler.ListTemplates)
				r.Post("/", handler.CreateTemplate)
				r.Get("/popular", handler.PopularTemplates)
				r.Get("/{id}", handler.GetTemplate)
				r.Post("/{id}/download", handler.DownloadTemplate)
			})
			r.Get("/categories", handler.ListCategories)

			r.Route("/freelancers", func(r chi.Router) {
				r.Get("/", handler.ListFreelancers)
				r.Post("/", handler.CreateFreelancer)
				r.Get("/{id}", handler.GetFreelancer)
				r.Post("/{id}/verify", handler.VerifyFreelancer)
			})

			r.Route("/implementations", func(r chi.Router) {
				r.Get("/", handler.ListImplementations)
				r.Post("/", handler.CreateImplementation)
				r.Get("/{id}", handler.GetImplementation)
				r.Post("/{id}/accept", handler.AcceptImplementation)
				r.Patch("/{id}/status", handler.UpdateImplementationStatus)
			})

			r.Get("/search", handler.Search)
			r.Get("/search/suggestions", handler.Suggestions)
			r.Get("/search/stats", handler.SearchStats)

			r.Route("/assistant", func(r chi.Router) {
				r.Post("/query", handler.AssistantQuery)
				r.Post("/action", handler.AssistantAction)
				r.Post("/bulk", handler.AssistantBulk)
			})

			r.Route("/payments", func(r chi.Router) {
				r.Post("/checkout", handler.CreateCheckout)
				r.Post("/refund", handler.Refund)
				r.Get("/revenue", handler.Revenue)
			})

			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", handler.EnqueueJob)
				r.Get("/{id}", handler.GetJobStatus)
			})

			r.Get("/analytics/intents", handler.IntentBreakdown)
		})
	})

	return r
}
