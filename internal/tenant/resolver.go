// Package tenant establishes the school a request operates under. It
// decides scope only, never permissions.
package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sekolahku/sekolahku/internal/platform/httpx"
	"github.com/sekolahku/sekolahku/internal/shared"
)

// HeaderSchoolID carries an explicit target school, required for platform
// operators acting on behalf of a tenant.
const HeaderSchoolID = "X-School-ID"

type schoolContextKey struct{}

// WithSchool stores the resolved school ID in context.
func WithSchool(ctx context.Context, schoolID string) context.Context {
	return context.WithValue(ctx, schoolContextKey{}, schoolID)
}

// FromContext extracts the resolved school ID.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(schoolContextKey{}).(string)
	return id, ok && id != ""
}

// Resolve derives the acting school from the session plus an optional
// explicit hint (route param or header).
//
// Tenant-scoped admins always act within their own school; naming a
// different one is a cross-tenant attempt and fails. Platform operators
// carry no school of their own and must name the target explicitly.
func Resolve(sess *shared.Session, hint string) (string, error) {
	if sess == nil || sess.AdminID() == "" {
		return "", shared.ErrTenantRequired
	}

	if sess.IsPlatform() {
		if hint == "" {
			return "", fmt.Errorf("%w: platform callers must name a target school", shared.ErrTenantRequired)
		}
		return hint, nil
	}

	own := sess.SchoolID()
	if own == "" {
		return "", shared.ErrTenantRequired
	}
	if hint != "" && hint != own {
		return "", fmt.Errorf("%w: cannot act on another school", shared.ErrForbidden)
	}
	return own, nil
}

// Middleware resolves the school context for every request below it and
// rejects scoped operations that cannot be bound to one.
type Middleware struct {
	Logger *slog.Logger
}

// RequireSchool binds the resolved school ID into the request context.
// The hint is taken from the {schoolID} route param when present,
// otherwise from the X-School-ID header.
func (m Middleware) RequireSchool(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		hint := chi.URLParam(r, "schoolID")
		if hint == "" {
			hint = r.Header.Get(HeaderSchoolID)
		}
		schoolID, err := Resolve(sess, hint)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Warn("resolve school context",
					slog.String("path", r.URL.Path),
					slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithSchool(r.Context(), schoolID)))
	})
}
