package admins

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sekolahku/sekolahku/internal/platform/httpx"
	"github.com/sekolahku/sekolahku/internal/shared"
	"github.com/sekolahku/sekolahku/internal/tenant"
)

// Handler exposes read endpoints for school admins.
type Handler struct {
	logger *slog.Logger
	repo   *Repository
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, repo *Repository) *Handler {
	return &Handler{logger: logger, repo: repo}
}

// MountRoutes registers admin routes under a school scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{adminID}", h.get)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := tenant.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrTenantRequired)
		return
	}
	list, err := h.repo.ListBySchool(r.Context(), schoolID)
	if err != nil {
		h.logger.Error("list school admins", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if list == nil {
		list = []SchoolAdmin{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"admins": list})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := tenant.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrTenantRequired)
		return
	}
	admin, err := h.repo.GetInSchool(r.Context(), schoolID, chi.URLParam(r, "adminID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, admin)
}
