package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/config"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/middleware"
	"github.com/CyberRepublic/Elastos.Essentials.Plugins.PasswordManager/internal/vault"
)

// Dependencies holds all the dependencies needed for handlers.
type Dependencies struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *vault.Registry
	Vaults   VaultLister
}

// NewRouter creates and configures the HTTP router. The registry must have
// been built with RequestPrompter so that prompts read request credentials.
func NewRouter(deps *Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Metrics())
	r.Use(middleware.Logging(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	if deps.Config.Server.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(deps.Config.Server.RequestTimeout))
	}
	r.Use(middleware.SecurityHeaders(false))

	r.NotFound(NotFoundHandler)
	r.MethodNotAllowed(MethodNotAllowedHandler)

	healthHandler := NewHealthHandler(deps.Vaults)
	apiHandler := NewAPIHandler(deps.Registry, deps.Config.Server.MaxRequestBodySize)

	// Health checks and metrics (no caller, no rate limit)
	r.Get("/health", healthHandler.Liveness)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if deps.Config.RateLimit.Requests > 0 {
			r.Use(middleware.RateLimit(middleware.NewRateLimiter(
				deps.Config.RateLimit.Requests,
				deps.Config.RateLimit.Window,
			)))
		}
		r.Use(middleware.MaxBodySize(deps.Config.Server.MaxRequestBodySize))
		r.Use(middleware.CallerApp(deps.Config.Server.ManagerToken))
		r.Use(Credentials())

		r.Get("/generate", apiHandler.GenerateSecret)

		r.Route("/identities/{identity}", func(r chi.Router) {
			r.Get("/", apiHandler.Status)
			r.Delete("/", apiHandler.DeleteVault)
			r.Post("/lock", apiHandler.Lock)
			r.Post("/passphrase", apiHandler.ChangePassphrase)
			r.Put("/policy", apiHandler.SetUnlockPolicy)
			r.Get("/audit", apiHandler.AuditLog)

			r.Route("/records", func(r chi.Router) {
				r.Get("/", apiHandler.GetAllRecords)
				r.Put("/", apiHandler.SetRecord)
				r.Get("/{key}", apiHandler.GetRecord)
				r.Delete("/{key}", apiHandler.DeleteRecord)
			})
		})
	})

	return r
}
