package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sekolahku/sekolahku/internal/perms"
	"github.com/sekolahku/sekolahku/internal/platform/httpx"
	"github.com/sekolahku/sekolahku/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	perms          *perms.Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, permsService *perms.Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		perms:          permsService,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type meResponse struct {
	AdminID     string             `json:"adminId"`
	Role        string             `json:"role"`
	SchoolID    string             `json:"schoolId,omitempty"`
	Platform    bool               `json:"platform"`
	Principal   bool               `json:"principal"`
	Permissions []perms.Permission `json:"permissions"`
	CSRFToken   string             `json:"csrfToken"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}

	account, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}

	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	sess.SetIdentity(account.ID, account.SchoolID, account.Role, account.IsPlatform)

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, account.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}

	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"adminId":   account.ID,
		"name":      account.Name,
		"role":      account.Role,
		"schoolId":  account.SchoolID,
		"platform":  account.IsPlatform,
		"csrfToken": csrfToken,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"loggedOut": true})
}

// HandleMe is the permission-exempt bootstrap endpoint: it must never
// depend on a resource grant, otherwise an admin with zero grants could
// not even discover which school they belong to.
func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.AdminID() == "" {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return
	}

	resp := meResponse{
		AdminID:     sess.AdminID(),
		Role:        sess.Role(),
		SchoolID:    sess.SchoolID(),
		Platform:    sess.IsPlatform(),
		Permissions: []perms.Permission{},
	}
	resp.CSRFToken, _ = h.csrfManager.EnsureToken(r.Context(), sess)

	if !sess.IsPlatform() && sess.SchoolID() != "" {
		grants, err := h.perms.GetGrants(r.Context(), sess.SchoolID(), sess.AdminID())
		if err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				h.logger.Error("load own grants", slog.Any("error", err))
			}
		} else {
			resp.Principal = grants.Principal
			resp.Permissions = grants.Permissions
		}
	}

	httpx.JSON(w, http.StatusOK, resp)
}
