package perms

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sekolahku/sekolahku/internal/platform/httpx"
	"github.com/sekolahku/sekolahku/internal/shared"
	"github.com/sekolahku/sekolahku/internal/tenant"
)

// Handler exposes the permission catalog and grant management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountCatalog registers the catalog route.
func (h *Handler) MountCatalog(r chi.Router) {
	r.Get("/", h.listCatalog)
}

// MountGrants registers per-admin grant routes under a school scope.
func (h *Handler) MountGrants(r chi.Router) {
	r.Get("/{adminID}/permissions", h.getGrants)
	r.Put("/{adminID}/permissions", h.assignPermissions)
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListCatalog(r.Context())
	if err != nil {
		h.logger.Error("list permission catalog", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if perms == nil {
		perms = []Permission{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": perms})
}

func (h *Handler) getGrants(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := tenant.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrTenantRequired)
		return
	}
	grants, err := h.service.GetGrants(r.Context(), schoolID, chi.URLParam(r, "adminID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grants)
}

type assignPermissionsRequest struct {
	PermissionIDs []int64 `json:"permissionIds" validate:"required,dive,gt=0"`
}

func (h *Handler) assignPermissions(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := tenant.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrTenantRequired)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.AdminID() == "" {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}

	var req assignPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}

	caller := &Caller{AdminID: sess.AdminID(), IP: r.RemoteAddr, Platform: sess.IsPlatform()}
	grants, err := h.service.AssignPermissions(r.Context(), schoolID, chi.URLParam(r, "adminID"), req.PermissionIDs, caller)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, grants)
}
