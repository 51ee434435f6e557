package perms_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sekolahku/internal/perms"
	"github.com/sekolahku/sekolahku/internal/shared"
)

type stubRepo struct {
	catalog map[int64]perms.Permission
	admins  map[string]perms.Admin // key: schoolID + "/" + adminID
	grants  map[string][]perms.Permission

	nextID         int64
	replaceErr     error
	replaceCalls   int
	grantsForCalls map[string]int
}

func newStubRepo() *stubRepo {
	repo := &stubRepo{
		catalog:        make(map[int64]perms.Permission),
		admins:         make(map[string]perms.Admin),
		grants:         make(map[string][]perms.Permission),
		grantsForCalls: make(map[string]int),
	}
	_ = repo.EnsureCatalog(context.Background())
	return repo
}

func (r *stubRepo) permissionID(t *testing.T, resource perms.Resource, action perms.Action) int64 {
	t.Helper()
	for id, p := range r.catalog {
		if p.Resource == resource && p.Action == action {
			return id
		}
	}
	t.Fatalf("catalog missing %s:%s", resource, action)
	return 0
}

func (r *stubRepo) addAdmin(schoolID, adminID, role string) {
	r.admins[schoolID+"/"+adminID] = perms.Admin{
		ID:       adminID,
		SchoolID: schoolID,
		Name:     "Admin " + adminID,
		Email:    adminID + "@school.test",
		Role:     role,
	}
}

func (r *stubRepo) setGrants(adminID string, ids ...int64) {
	var grants []perms.Permission
	for _, id := range ids {
		grants = append(grants, r.catalog[id])
	}
	r.grants[adminID] = grants
}

// EnsureCatalog mirrors the upsert semantics of the real repository:
// a (resource, action) pair that already exists keeps its row and ID.
func (r *stubRepo) EnsureCatalog(ctx context.Context) error {
	for _, e := range perms.CatalogEntries() {
		exists := false
		for _, p := range r.catalog {
			if p.Resource == e.Resource && p.Action == e.Action {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		r.nextID++
		e.ID = r.nextID
		r.catalog[e.ID] = e
	}
	return nil
}

func (r *stubRepo) ListCatalog(ctx context.Context) ([]perms.Permission, error) {
	var out []perms.Permission
	for _, e := range perms.CatalogEntries() {
		for id, p := range r.catalog {
			if p.Resource == e.Resource && p.Action == e.Action {
				p.ID = id
				out = append(out, p)
			}
		}
	}
	return out, nil
}

func (r *stubRepo) PermissionsByIDs(ctx context.Context, ids []int64) ([]perms.Permission, error) {
	var out []perms.Permission
	for _, id := range ids {
		if p, ok := r.catalog[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *stubRepo) AdminInSchool(ctx context.Context, schoolID, adminID string) (*perms.Admin, error) {
	admin, ok := r.admins[schoolID+"/"+adminID]
	if !ok {
		// Wrapped: sentinel checks on this path must use errors.Is.
		return nil, fmt.Errorf("admin %s in school %s: %w", adminID, schoolID, shared.ErrNotFound)
	}
	return &admin, nil
}

func (r *stubRepo) GrantsFor(ctx context.Context, adminID string) ([]perms.Permission, error) {
	r.grantsForCalls[adminID]++
	return r.grants[adminID], nil
}

func (r *stubRepo) ReplaceGrants(ctx context.Context, adminID string, permissionIDs []int64) ([]perms.Permission, error) {
	r.replaceCalls++
	if r.replaceErr != nil {
		return nil, r.replaceErr
	}
	before := r.grants[adminID]
	r.setGrants(adminID, permissionIDs...)
	return before, nil
}

type captureAudit struct {
	events []shared.AuditEvent
}

func (a *captureAudit) Record(ctx context.Context, ev shared.AuditEvent) error {
	a.events = append(a.events, ev)
	return nil
}

type stubNotifier struct {
	calls int
	err   error
}

func (n *stubNotifier) PermissionsChanged(ctx context.Context, email, name string, permissions []perms.Permission) error {
	n.calls++
	return n.err
}

func newService(repo *stubRepo, notifier perms.Notifier) *perms.Service {
	return perms.NewService(repo, nil, notifier, nil)
}

func TestEnsureCatalogTwiceKeepsOneRowPerPair(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo, nil)

	require.NoError(t, svc.EnsureCatalog(context.Background()))
	require.NoError(t, svc.EnsureCatalog(context.Background()))

	list, err := svc.ListCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, list, len(perms.Resources())*len(perms.Actions()))

	seen := make(map[string]struct{}, len(list))
	for _, p := range list {
		_, dup := seen[p.Key()]
		require.False(t, dup, "duplicate catalog row %s", p.Key())
		seen[p.Key()] = struct{}{}
	}
}

func TestAssignPermissionsReplacesWholeSet(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "target", "Teacher")
	svc := newService(repo, nil)

	p1 := repo.permissionID(t, perms.ResourceStudents, perms.ActionRead)
	p2 := repo.permissionID(t, perms.ResourceGrades, perms.ActionWrite)
	p3 := repo.permissionID(t, perms.ResourceClasses, perms.ActionRead)

	_, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{p1, p2}, nil)
	require.NoError(t, err)

	grants, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{p3}, nil)
	require.NoError(t, err)
	require.Len(t, grants.Permissions, 1)
	require.Equal(t, p3, grants.Permissions[0].ID)

	current, err := svc.GetGrants(context.Background(), "school-1", "target")
	require.NoError(t, err)
	require.Len(t, current.Permissions, 1)
	require.Equal(t, p3, current.Permissions[0].ID)
}

func TestAssignPermissionsPrincipalTargetRejected(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "head", "Principal")
	repo.addAdmin("school-1", "vice", "Vice Principal")
	svc := newService(repo, nil)

	p1 := repo.permissionID(t, perms.ResourceStudents, perms.ActionRead)

	for _, target := range []string{"head", "vice"} {
		_, err := svc.AssignPermissions(context.Background(), "school-1", target, []int64{p1}, nil)
		require.ErrorIs(t, err, shared.ErrInvalidOperation, "target %s", target)
	}
	require.Zero(t, repo.replaceCalls)
}

func TestAssignPermissionsTargetNotFound(t *testing.T) {
	repo := newStubRepo()
	svc := newService(repo, nil)

	_, err := svc.AssignPermissions(context.Background(), "school-1", "ghost", nil, nil)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAssignPermissionsCallerOutsideSchool(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "target", "Teacher")
	repo.addAdmin("school-2", "outsider", "Teacher")
	svc := newService(repo, nil)

	p1 := repo.permissionID(t, perms.ResourceStudents, perms.ActionRead)
	_, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{p1},
		&perms.Caller{AdminID: "outsider"})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Zero(t, repo.replaceCalls)
}

func TestAssignPermissionsCallerNeedsStaffAdmin(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "target", "Teacher")
	repo.addAdmin("school-1", "caller", "Teacher")
	repo.setGrants("caller", repo.permissionID(t, perms.ResourceStudents, perms.ActionAdmin))
	svc := newService(repo, nil)

	p1 := repo.permissionID(t, perms.ResourceStudents, perms.ActionRead)
	_, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{p1},
		&perms.Caller{AdminID: "caller"})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestAssignPermissionsEscalationGuard(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "target", "Teacher")
	repo.addAdmin("school-1", "caller", "Administrator")
	repo.setGrants("caller",
		repo.permissionID(t, perms.ResourceStaff, perms.ActionAdmin),
		repo.permissionID(t, perms.ResourceStudents, perms.ActionRead),
	)
	svc := newService(repo, nil)

	gradesAdmin := repo.permissionID(t, perms.ResourceGrades, perms.ActionAdmin)
	_, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{gradesAdmin},
		&perms.Caller{AdminID: "caller"})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Zero(t, repo.replaceCalls)
}

func TestAssignPermissionsAdminGrantAllowedWhenCallerHoldsIt(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "target", "Teacher")
	repo.addAdmin("school-1", "caller", "Administrator")
	repo.setGrants("caller",
		repo.permissionID(t, perms.ResourceStaff, perms.ActionAdmin),
		repo.permissionID(t, perms.ResourceGrades, perms.ActionAdmin),
	)
	svc := newService(repo, nil)

	gradesAdmin := repo.permissionID(t, perms.ResourceGrades, perms.ActionAdmin)
	grants, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{gradesAdmin},
		&perms.Caller{AdminID: "caller"})
	require.NoError(t, err)
	require.Len(t, grants.Permissions, 1)
	require.Equal(t, gradesAdmin, grants.Permissions[0].ID)
}

func TestAssignPermissionsPrincipalCallerUnconditional(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "target", "Teacher")
	repo.addAdmin("school-1", "head", "Principal")
	svc := newService(repo, nil)

	gradesAdmin := repo.permissionID(t, perms.ResourceGrades, perms.ActionAdmin)
	_, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{gradesAdmin},
		&perms.Caller{AdminID: "head"})
	require.NoError(t, err)
}

func TestAssignPermissionsUnknownIDAllOrNothing(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "target", "Teacher")
	existing := repo.permissionID(t, perms.ResourceStudents, perms.ActionRead)
	repo.setGrants("target", existing)
	svc := newService(repo, nil)

	valid := repo.permissionID(t, perms.ResourceGrades, perms.ActionRead)
	_, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{valid, 99999}, nil)
	require.ErrorIs(t, err, shared.ErrInvalidInput)
	require.Zero(t, repo.replaceCalls)

	current, err := svc.GetGrants(context.Background(), "school-1", "target")
	require.NoError(t, err)
	require.Len(t, current.Permissions, 1)
	require.Equal(t, existing, current.Permissions[0].ID)
}

func TestAssignPermissionsNotifierFailureSwallowed(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "target", "Teacher")
	notifier := &stubNotifier{err: errors.New("smtp down")}
	svc := newService(repo, notifier)

	p1 := repo.permissionID(t, perms.ResourceStudents, perms.ActionRead)
	grants, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{p1}, nil)
	require.NoError(t, err)
	require.Len(t, grants.Permissions, 1)
	require.Equal(t, 1, notifier.calls)
}

func TestAssignPermissionsAuditCarriesCallerIP(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "target", "Teacher")
	repo.addAdmin("school-1", "head", "Principal")
	old := repo.permissionID(t, perms.ResourceStudents, perms.ActionRead)
	repo.setGrants("target", old)
	audit := &captureAudit{}
	svc := perms.NewService(repo, audit, nil, nil)

	next := repo.permissionID(t, perms.ResourceGrades, perms.ActionWrite)
	_, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{next},
		&perms.Caller{AdminID: "head", IP: "203.0.113.9:51724"})
	require.NoError(t, err)

	require.Len(t, audit.events, 1)
	ev := audit.events[0]
	require.Equal(t, "permissions.assign", ev.Action)
	require.Equal(t, "head", ev.ActorID)
	require.Equal(t, "target", ev.EntityID)
	require.Equal(t, "203.0.113.9:51724", ev.Meta["ip"])
	require.Equal(t, []int64{next}, ev.Meta["added_ids"])
	require.Equal(t, []int64{old}, ev.Meta["removed_ids"])
}

func TestAssignPermissionsAuditDiffFromReplacedSet(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "target", "Teacher")
	old := repo.permissionID(t, perms.ResourceStudents, perms.ActionRead)
	kept := repo.permissionID(t, perms.ResourceClasses, perms.ActionRead)
	repo.setGrants("target", old, kept)
	audit := &captureAudit{}
	svc := perms.NewService(repo, audit, nil, nil)

	next := repo.permissionID(t, perms.ResourceGrades, perms.ActionWrite)
	_, err := svc.AssignPermissions(context.Background(), "school-1", "target", []int64{kept, next}, nil)
	require.NoError(t, err)

	// The diff comes from the prior set the replacement itself returned,
	// not from a separate read that could be stale by the time the
	// replacement commits.
	require.Zero(t, repo.grantsForCalls["target"])
	require.Len(t, audit.events, 1)
	ev := audit.events[0]
	require.Equal(t, []int64{next}, ev.Meta["added_ids"])
	require.Equal(t, []int64{old}, ev.Meta["removed_ids"])
	require.Equal(t, 1, ev.Meta["added_count"])
	require.Equal(t, 1, ev.Meta["removed_count"])
}

func TestGetGrantsPrincipalNeverReadsGrants(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "head", "Principal")
	// Even with stray rows, the grant set of a principal is not exposed.
	repo.setGrants("head", repo.permissionID(t, perms.ResourceStudents, perms.ActionRead))
	svc := newService(repo, nil)

	grants, err := svc.GetGrants(context.Background(), "school-1", "head")
	require.NoError(t, err)
	require.True(t, grants.Principal)
	require.Empty(t, grants.Permissions)
}

func TestHasPermissionLiveGrants(t *testing.T) {
	repo := newStubRepo()
	repo.addAdmin("school-1", "admin", "Staff")
	repo.setGrants("admin", repo.permissionID(t, perms.ResourceGrades, perms.ActionAdmin))
	svc := newService(repo, nil)

	ok, err := svc.HasPermission(context.Background(), "school-1", "admin", perms.ResourceGrades, perms.ActionWrite)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasAdminPermission(context.Background(), "school-1", "admin", perms.ResourceGrades)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = svc.HasPermission(context.Background(), "school-1", "admin", perms.ResourceStudents, perms.ActionRead)
	require.NoError(t, err)
	require.False(t, ok)

	// Replacement is visible on the next evaluation, no caching.
	classesRead := repo.permissionID(t, perms.ResourceClasses, perms.ActionRead)
	_, err = svc.AssignPermissions(context.Background(), "school-1", "admin", []int64{classesRead}, nil)
	require.NoError(t, err)

	ok, err = svc.HasPermission(context.Background(), "school-1", "admin", perms.ResourceGrades, perms.ActionWrite)
	require.NoError(t, err)
	require.False(t, ok)
}
