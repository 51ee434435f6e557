package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sekolahku/sekolahku/internal/admins"
	"github.com/sekolahku/sekolahku/internal/approval"
	"github.com/sekolahku/sekolahku/internal/audit"
	"github.com/sekolahku/sekolahku/internal/auth"
	"github.com/sekolahku/sekolahku/internal/perms"
	"github.com/sekolahku/sekolahku/internal/schools"
	"github.com/sekolahku/sekolahku/internal/shared"
	"github.com/sekolahku/sekolahku/internal/tenant"
	"github.com/sekolahku/sekolahku/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	AuthHandler     *auth.Handler
	PermsHandler    *perms.Handler
	AdminsHandler   *admins.Handler
	SchoolsHandler  *schools.Handler
	ApprovalHandler *approval.Handler
	AuditHandler    *audit.Handler
	JobsHandler     *jobs.Handler
	PermsGuard      perms.Middleware
	TenantResolver  tenant.Middleware
}

// NewRouter constructs the chi.Router for the JSON API.
//
// Everything under /api/schools/{schoolID} runs behind the tenant
// resolver and, except where noted, a permission guard. The catalog and
// /api/me are deliberately guard-free: an admin with no grants still
// needs both to render anything at all.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)
		r.Get("/me", params.AuthHandler.HandleMe)

		r.Route("/permissions", params.PermsHandler.MountCatalog)

		r.Route("/schools/{schoolID}", func(r chi.Router) {
			r.Use(params.TenantResolver.RequireSchool)

			// Grant writes carry their own authority rules in the
			// service layer, on top of STAFF:READ here.
			r.Group(func(r chi.Router) {
				r.Use(params.PermsGuard.Require(perms.ResourceStaff, perms.ActionRead))
				r.Route("/admins", func(r chi.Router) {
					params.AdminsHandler.MountRoutes(r)
					params.PermsHandler.MountGrants(r)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(params.PermsGuard.Require(perms.ResourceSettings, perms.ActionRead))
				r.Route("/profile", params.SchoolsHandler.MountRoutes)
			})

			r.Group(func(r chi.Router) {
				r.Use(params.PermsGuard.Require(perms.ResourceSettings, perms.ActionWrite))
				params.ApprovalHandler.MountRoutes(r)
			})

			r.Group(func(r chi.Router) {
				r.Use(params.PermsGuard.Require(perms.ResourceSettings, perms.ActionAdmin))
				r.Route("/audit", params.AuditHandler.MountRoutes)
			})
		})

		r.Route("/platform", params.ApprovalHandler.MountPlatformRoutes)
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}
