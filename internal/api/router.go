/**
 * @description
 * HTTP router setup for the condominium API using go-chi/chi.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Fblink88/ComunidadElMaiten/pkg/ratelimit"
)

// Instrumentation records HTTP traffic and exposes the collected metrics.
type Instrumentation interface {
	Middleware(next http.Handler) http.Handler
	Handler() http.Handler
}

// RouterConfig wires the cross-cutting collaborators of the router.
type RouterConfig struct {
	Verifier         TokenVerifier
	AllowedOrigins   []string
	Limiter          ratelimit.Limiter
	WebhookRateLimit int
	Metrics          Instrumentation
}

// NewRouter creates a new Chi router and registers the API routes.
func NewRouter(h *Handler, cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	authenticated := AuthMiddleware(cfg.Verifier)
	webhookLimit := ratelimit.Middleware(cfg.Limiter, ratelimit.Rule{
		Scope:    "webhook_flow",
		Limit:    cfg.WebhookRateLimit,
		Window:   time.Minute,
		Rejected: http.HandlerFunc(h.handleGatewayWebhookLimited),
	}, h.logger)

	r.Route("/api", func(r chi.Router) {
		r.With(authenticated).Post("/auth/register", h.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(authenticated)
			r.Use(h.requirePerson)

			r.Get("/auth/me", h.handleMe)
			r.Get("/auth/verificar", h.handleVerifyToken)

			r.Route("/departamentos", func(r chi.Router) {
				r.Get("/", h.handleListUnits)
				r.Post("/", h.handleCreateUnit)
				r.Get("/activos", h.handleListActiveUnits)
				r.Get("/{id}", h.handleGetUnit)
				r.Put("/{id}", h.handleUpdateUnit)
				r.Delete("/{id}", h.handleDeleteUnit)
				r.Post("/{id}/usuarios/{usuarioID}", h.handleAddUnitMember)
				r.Delete("/{id}/usuarios/{usuarioID}", h.handleRemoveUnitMember)
			})

			r.Route("/usuarios", func(r chi.Router) {
				r.Get("/", h.handleListPeople)
				r.Get("/departamento/{id}", h.handleListPeopleByUnit)
				r.Get("/{id}", h.handleGetPerson)
				r.Put("/{id}", h.handleUpdatePerson)
				r.Delete("/{id}", h.handleDeletePerson)
				r.Patch("/{id}/rol", h.handleChangeRole)
			})

			r.Route("/gastos", func(r chi.Router) {
				r.Post("/mensuales", h.handleBillPeriod)
				r.Get("/mensuales", h.handleListMonthlyExpenses)
				r.Get("/mensuales/{periodo}", h.handleGetMonthlyExpense)
				r.Post("/extraordinarios", h.handleCreateExtraordinaryExpense)
				r.Get("/extraordinarios", h.handleListExtraordinaryExpenses)
				r.Get("/extraordinarios/{id}", h.handleGetExtraordinaryExpense)
				r.Post("/extraordinarios/{id}/pagar/{departamentoID}", h.handleMarkExtraordinaryPaid)
			})
		})

		r.Route("/pagos", func(r chi.Router) {
			r.With(webhookLimit).Post("/webhook/flow", h.handleGatewayWebhook)

			r.Group(func(r chi.Router) {
				r.Use(authenticated)
				r.Use(h.requirePerson)

				r.Post("/", h.handleCreatePayment)
				r.Get("/mis-pagos", h.handleMyPayments)
				r.Get("/pendientes", h.handlePendingPayments)
				r.Get("/periodo/{periodo}", h.handlePaymentsByPeriod)
				r.Get("/departamento/{id}", h.handlePaymentsByUnit)
				r.Get("/{id}", h.handleGetPayment)
				r.Post("/{id}/verificar", h.handleVerifyPayment)
			})
		})
	})

	return r
}
