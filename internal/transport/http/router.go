package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"medivault/pkg/platform/middleware/auth"
	"medivault/pkg/platform/middleware/metadata"
	"medivault/pkg/platform/middleware/requesttime"
)

// Deps carries the domain services the router exposes.
type Deps struct {
	Auth     AuthService
	Vault    VaultService
	Recorder AuditService
	Logger   *slog.Logger
}

// NewRouter wires all endpoints. Routes under the session middleware see a
// verified session and request-scoped identity in their context.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(requestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	authHandler := NewAuthHandler(deps.Auth, deps.Logger)
	authHandler.RegisterPublic(r)

	r.Group(func(protected chi.Router) {
		protected.Use(auth.RequireSession(deps.Auth, deps.Logger))

		authHandler.RegisterProtected(protected)

		NewVaultHandler(deps.Vault, deps.Logger).Register(protected)

		protected.Group(func(trail chi.Router) {
			trail.Use(auth.RequirePermission("audit:read"))
			NewAuditHandler(deps.Recorder, deps.Logger).Register(trail)
		})
	})

	return r
}
