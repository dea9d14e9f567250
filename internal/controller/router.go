package controller

import (
	"net/http"
	"time"

	"github.com/cassiomorais/wallet/internal/infrastructure/config"
	"github.com/cassiomorais/wallet/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/wallet/internal/middleware"
	"github.com/cassiomorais/wallet/internal/service"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const ServiceName = "wallet-api"

type RouterDeps struct {
	AccountService *service.AccountService
	AuthService    *service.AuthService
	LedgerService  *service.LedgerService
	HistoryService *service.HistoryService
	HealthChecks   []HealthCheck
	Metrics        *observability.Metrics
	// MetricsHandler serves /metrics; nil leaves the route unregistered.
	MetricsHandler http.Handler
	Server         config.ServerConfig
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	requestTimeout := deps.Server.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing(ServiceName))
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", customMW.IdempotencyHeader},
		ExposedHeaders:   []string{customMW.IdempotencyHeader, replayedHeader, "Retry-After"},
		AllowCredentials: deps.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.Metrics(deps.Metrics))

	healthH := NewHealthController(ServiceName, deps.HealthChecks...)
	authH := NewAuthController(deps.AccountService, deps.AuthService)
	accountH := NewAccountController(deps.AccountService)
	transferH := NewTransferController(deps.LedgerService, deps.HistoryService)

	r.Get("/", healthH.Index)
	r.Get("/health", healthH.Health)
	r.Get("/health/live", healthH.Liveness)
	r.Get("/health/ready", healthH.Readiness)

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		// Credential endpoints pay for a bcrypt hash per request.
		r.Group(func(r chi.Router) {
			r.Use(customMW.RateLimit(deps.Server.AuthRateLimit))
			r.Post("/register", authH.Register)
			r.Post("/login", authH.Login)
		})

		r.Group(func(r chi.Router) {
			r.Use(customMW.RequireAuth(deps.AuthService))

			r.Post("/logout", authH.Logout)
			r.Get("/profile", accountH.Profile)
			r.Get("/balance", accountH.Balance)
			r.Get("/users/search", accountH.Search)
			r.Get("/transactions", transferH.Transactions)
			r.With(customMW.Idempotency()).Post("/transfer", transferH.Transfer)
		})
	})

	return r
}
