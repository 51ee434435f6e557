package perms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sekolahku/sekolahku/internal/shared"
)

// Notifier delivers best-effort messages to admins whose permissions
// changed. Failures must never affect the grant transaction.
type Notifier interface {
	PermissionsChanged(ctx context.Context, email, name string, permissions []Permission) error
}

// AuditRecorder persists grant-change audit events.
type AuditRecorder interface {
	Record(ctx context.Context, ev shared.AuditEvent) error
}

// Caller identifies the actor performing a grant mutation. A nil *Caller
// means the mutation comes from the system itself (seed scripts,
// platform maintenance) and skips tenant-scoped authority checks.
type Caller struct {
	AdminID  string
	IP       string
	Platform bool
}

// Grants is the role plus current permission set of one admin.
type Grants struct {
	AdminID     string       `json:"adminId"`
	Role        string       `json:"role"`
	Principal   bool         `json:"principal"`
	Permissions []Permission `json:"permissions"`
}

// Service is the sole write path for admin grant sets.
type Service struct {
	repo     Repository
	audit    AuditRecorder
	notifier Notifier
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, audit AuditRecorder, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, audit: audit, notifier: notifier, logger: logger}
}

// EnsureCatalog idempotently seeds the permission catalog. Safe to run on
// every process start.
func (s *Service) EnsureCatalog(ctx context.Context) error {
	return s.repo.EnsureCatalog(ctx)
}

// ListCatalog returns every grantable permission.
func (s *Service) ListCatalog(ctx context.Context) ([]Permission, error) {
	return s.repo.ListCatalog(ctx)
}

// GetGrants returns the admin's role and current permission list.
// Principal grant sets are never read; the response carries the
// principal flag and an empty list instead.
func (s *Service) GetGrants(ctx context.Context, schoolID, adminID string) (Grants, error) {
	admin, err := s.repo.AdminInSchool(ctx, schoolID, adminID)
	if err != nil {
		return Grants{}, err
	}
	if IsPrincipalRole(admin.Role) {
		return Grants{AdminID: admin.ID, Role: admin.Role, Principal: true, Permissions: []Permission{}}, nil
	}
	grants, err := s.repo.GrantsFor(ctx, admin.ID)
	if err != nil {
		return Grants{}, err
	}
	if grants == nil {
		grants = []Permission{}
	}
	return Grants{AdminID: admin.ID, Role: admin.Role, Permissions: grants}, nil
}

// HasPermission loads the admin's live grants and evaluates
// (resource, action) against them.
func (s *Service) HasPermission(ctx context.Context, schoolID, adminID string, resource Resource, action Action) (bool, error) {
	admin, err := s.repo.AdminInSchool(ctx, schoolID, adminID)
	if err != nil {
		return false, err
	}
	if IsPrincipalRole(admin.Role) {
		return true, nil
	}
	grants, err := s.repo.GrantsFor(ctx, admin.ID)
	if err != nil {
		return false, err
	}
	return Allowed(admin.Role, grants, resource, action), nil
}

// HasAdminPermission reports whether the admin holds ADMIN on resource.
func (s *Service) HasAdminPermission(ctx context.Context, schoolID, adminID string, resource Resource) (bool, error) {
	admin, err := s.repo.AdminInSchool(ctx, schoolID, adminID)
	if err != nil {
		return false, err
	}
	if IsPrincipalRole(admin.Role) {
		return true, nil
	}
	grants, err := s.repo.GrantsFor(ctx, admin.ID)
	if err != nil {
		return false, err
	}
	return AllowedAdmin(admin.Role, grants, resource), nil
}

// AssignPermissions replaces the target admin's grant set with exactly
// the given permission IDs. All-or-nothing: authority checks and catalog
// validation happen before any write, and the replacement itself is a
// single transaction.
func (s *Service) AssignPermissions(ctx context.Context, schoolID, targetID string, permissionIDs []int64, caller *Caller) (Grants, error) {
	target, err := s.repo.AdminInSchool(ctx, schoolID, targetID)
	if err != nil {
		return Grants{}, err
	}

	if IsPrincipalRole(target.Role) {
		return Grants{}, fmt.Errorf("%w: principal permissions are permanent and cannot be edited", shared.ErrInvalidOperation)
	}

	permissionIDs = dedupeIDs(permissionIDs)
	requested, err := s.repo.PermissionsByIDs(ctx, permissionIDs)
	if err != nil {
		return Grants{}, err
	}

	if caller != nil && !caller.Platform {
		if err := s.authorizeCaller(ctx, schoolID, caller.AdminID, requested); err != nil {
			return Grants{}, err
		}
	}

	if len(requested) != len(permissionIDs) {
		missing := missingIDs(permissionIDs, requested)
		return Grants{}, fmt.Errorf("%w: unknown permission ids %v", shared.ErrInvalidInput, missing)
	}

	// The prior set is read inside the replacement transaction so the
	// audit diff cannot go stale under a concurrent assignment.
	before, err := s.repo.ReplaceGrants(ctx, target.ID, permissionIDs)
	if err != nil {
		return Grants{}, err
	}

	added, removed := diffIDs(before, requested)
	s.recordAudit(ctx, schoolID, target, caller, len(requested), added, removed)
	s.notify(ctx, target, requested)

	return Grants{AdminID: target.ID, Role: target.Role, Permissions: requested}, nil
}

// authorizeCaller enforces the IDOR and privilege-escalation guards for a
// tenant-scoped caller.
func (s *Service) authorizeCaller(ctx context.Context, schoolID, callerID string, requested []Permission) error {
	callerAdmin, err := s.repo.AdminInSchool(ctx, schoolID, callerID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return fmt.Errorf("%w: caller has no admin record in this school", shared.ErrForbidden)
		}
		return err
	}

	// Principal authority within its school is unconditional.
	if IsPrincipalRole(callerAdmin.Role) {
		return nil
	}

	callerGrants, err := s.repo.GrantsFor(ctx, callerAdmin.ID)
	if err != nil {
		return err
	}

	if !AllowedAdmin(callerAdmin.Role, callerGrants, ResourceStaff) {
		return fmt.Errorf("%w: STAFF:ADMIN is required to modify other administrators' permissions", shared.ErrForbidden)
	}

	// A non-Principal can never hand out ADMIN rights it does not hold.
	for _, p := range requested {
		if p.Action != ActionAdmin {
			continue
		}
		if !AllowedAdmin(callerAdmin.Role, callerGrants, p.Resource) {
			return fmt.Errorf("%w: cannot grant %s without holding it yourself", shared.ErrForbidden, p.Key())
		}
	}
	return nil
}

func (s *Service) recordAudit(ctx context.Context, schoolID string, target *Admin, caller *Caller, total int, added, removed []int64) {
	if s.audit == nil {
		return
	}
	actorID := shared.SystemActor
	actorIP := ""
	if caller != nil {
		if caller.AdminID != "" {
			actorID = caller.AdminID
		}
		actorIP = caller.IP
	}
	ev := shared.AuditEvent{
		SchoolID: schoolID,
		ActorID:  actorID,
		Action:   "permissions.assign",
		Entity:   "school_admin",
		EntityID: target.ID,
		Meta: map[string]any{
			"target_role":   target.Role,
			"ip":            actorIP,
			"total":         total,
			"added_ids":     added,
			"removed_ids":   removed,
			"added_count":   len(added),
			"removed_count": len(removed),
		},
	}
	if err := s.audit.Record(ctx, ev); err != nil && s.logger != nil {
		s.logger.Error("record permission audit", slog.Any("error", err))
	}
}

// notify informs the target about the new permission set. Best effort:
// failure is logged and swallowed, never rolled back into the grant.
func (s *Service) notify(ctx context.Context, target *Admin, permissions []Permission) {
	if s.notifier == nil || target.Email == "" {
		return
	}
	if err := s.notifier.PermissionsChanged(ctx, target.Email, target.Name, permissions); err != nil && s.logger != nil {
		s.logger.Warn("notify permission change",
			slog.String("admin", target.ID),
			slog.Any("error", err))
	}
}

func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func missingIDs(requested []int64, found []Permission) []int64 {
	have := make(map[int64]struct{}, len(found))
	for _, p := range found {
		have[p.ID] = struct{}{}
	}
	var missing []int64
	for _, id := range requested {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func diffIDs(before, after []Permission) (added, removed []int64) {
	beforeSet := make(map[int64]struct{}, len(before))
	for _, p := range before {
		beforeSet[p.ID] = struct{}{}
	}
	afterSet := make(map[int64]struct{}, len(after))
	for _, p := range after {
		afterSet[p.ID] = struct{}{}
		if _, ok := beforeSet[p.ID]; !ok {
			added = append(added, p.ID)
		}
	}
	for _, p := range before {
		if _, ok := afterSet[p.ID]; !ok {
			removed = append(removed, p.ID)
		}
	}
	return added, removed
}
