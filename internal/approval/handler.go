package approval

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/sekolahku/sekolahku/internal/platform/httpx"
	"github.com/sekolahku/sekolahku/internal/schools"
	"github.com/sekolahku/sekolahku/internal/shared"
	"github.com/sekolahku/sekolahku/internal/tenant"
)

// Handler exposes the sensitive-change endpoints for school profiles.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	schools   *schools.Repository
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, schoolRepo *schools.Repository) *Handler {
	return &Handler{logger: logger, service: service, schools: schoolRepo, validator: validator.New()}
}

// MountRoutes registers the change-request flow under a school scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/change-request", h.requestChange)
	r.Post("/verify", h.verifyChange)
}

// MountPlatformRoutes registers maintenance endpoints for platform
// operators.
func (h *Handler) MountPlatformRoutes(r chi.Router) {
	r.Post("/approval-tokens/cleanup", h.cleanup)
}

type changeRequest struct {
	Changes map[string]string `json:"changes" validate:"required,min=1"`
}

func (h *Handler) requestChange(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		httpx.RespondError(w, shared.ErrTenantRequired)
		return
	}

	var req changeRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}
	for field := range req.Changes {
		if _, ok := schools.ProfileFields[field]; !ok {
			httpx.RespondError(w, shared.ErrInvalidInput)
			return
		}
	}

	payload, err := json.Marshal(req.Changes)
	if err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}

	if err := h.service.RequestToken(r.Context(), actor, payload, clientIP(r), r.UserAgent()); err != nil {
		h.respondServiceError(w, err, "request approval token")
		return
	}

	// Never echo the code or even confirm the delivery address.
	httpx.JSON(w, http.StatusAccepted, map[string]any{"acknowledged": true})
}

type verifyRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

func (h *Handler) verifyChange(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(r)
	if !ok {
		httpx.RespondError(w, shared.ErrTenantRequired)
		return
	}

	var req verifyRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrInvalidInput)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.RespondError(w, shared.ErrVerificationFailed)
		return
	}

	verified, err := h.service.VerifyToken(r.Context(), req.Code, actor, clientIP(r), r.UserAgent())
	if err != nil {
		h.respondServiceError(w, err, "verify approval token")
		return
	}

	var changes map[string]string
	if err := json.Unmarshal(verified.ProposedChanges, &changes); err != nil {
		h.logger.Error("decode proposed changes", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	school, err := h.schools.ApplyProfileChanges(r.Context(), verified.SchoolID, changes)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"school":           school,
		"appliedChanges":   changes,
		"previousSnapshot": verified.CurrentSnapshot,
	})
}

func (h *Handler) cleanup(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || !sess.IsPlatform() {
		httpx.RespondError(w, shared.ErrForbidden)
		return
	}
	deleted, err := h.service.CleanupExpired(r.Context())
	if err != nil {
		h.logger.Error("cleanup approval tokens", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"deleted": deleted})
}

func (h *Handler) actor(r *http.Request) (Actor, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil || sess.AdminID() == "" {
		return Actor{}, false
	}
	schoolID, ok := tenant.FromContext(r.Context())
	if !ok {
		return Actor{}, false
	}
	return Actor{AdminID: sess.AdminID(), SchoolID: schoolID}, true
}

func (h *Handler) respondServiceError(w http.ResponseWriter, err error, action string) {
	var rl *shared.RateLimitError
	if errors.As(err, &rl) {
		httpx.RespondRateLimited(w, rl.RetryAfter)
		return
	}
	if h.logger != nil && !errors.Is(err, shared.ErrVerificationFailed) {
		h.logger.Error(action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func clientIP(r *http.Request) string {
	return r.RemoteAddr
}
