// Package audit exposes the per-school audit trail over HTTP. Writes go
// through shared.AuditStore from the services that own the events.
package audit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sekolahku/sekolahku/internal/platform/httpx"
	"github.com/sekolahku/sekolahku/internal/shared"
	"github.com/sekolahku/sekolahku/internal/tenant"
)

// Handler serves read access to audit events.
type Handler struct {
	logger *slog.Logger
	store  *shared.AuditStore
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, store *shared.AuditStore) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers audit routes under a school scope.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
}

type eventResponse struct {
	ID       int64          `json:"id"`
	ActorID  string         `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       string         `json:"at"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := tenant.FromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrTenantRequired)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	events, err := h.store.List(r.Context(), schoolID, limit)
	if err != nil {
		h.logger.Error("list audit events", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]eventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, eventResponse{
			ID:       ev.ID,
			ActorID:  ev.ActorID,
			Action:   ev.Action,
			Entity:   ev.Entity,
			EntityID: ev.EntityID,
			Meta:     ev.Meta,
			At:       ev.At.UTC().Format(time.RFC3339),
		})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"events": out})
}
