package perms_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sekolahku/internal/perms"
	"github.com/sekolahku/sekolahku/internal/shared"
	"github.com/sekolahku/sekolahku/internal/tenant"
)

func requireGuard(t *testing.T, svc *perms.Service, adminID, schoolID string) int {
	t.Helper()
	guard := perms.Middleware{Service: svc}
	h := guard.Require(perms.ResourceStaff, perms.ActionRead)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	sess := &shared.Session{ID: "sess-1"}
	sess.SetIdentity(adminID, schoolID, "Staff", false)

	req := httptest.NewRequest(http.MethodGet, "/admins", nil)
	ctx := shared.ContextWithSession(req.Context(), sess)
	ctx = tenant.WithSchool(ctx, schoolID)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req.WithContext(ctx))
	return rec.Code
}

func TestRequireAllowsGrantedAdmin(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "admin", "Staff")
	repo.setGrants("admin", repo.permissionID(t, perms.ResourceStaff, perms.ActionRead))
	svc := newService(repo, nil)

	require.Equal(t, http.StatusNoContent, requireGuard(t, svc, "admin", "school-1"))
}

func TestRequireDeniesUngrantedAdmin(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "admin", "Staff")
	svc := newService(repo, nil)

	require.Equal(t, http.StatusForbidden, requireGuard(t, svc, "admin", "school-1"))
}

func TestRequireDeniesAdminMissingFromSchool(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo, nil)

	// The repository reports the missing record as a wrapped not-found.
	// That is a 403, never a 500.
	require.Equal(t, http.StatusForbidden, requireGuard(t, svc, "ghost", "school-1"))
}
