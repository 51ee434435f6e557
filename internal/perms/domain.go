package perms

import "strings"

// Resource identifies a protected domain area. Values are persisted and
// referenced by endpoint guards, so they are stable strings and must not
// be renamed.
type Resource string

const (
	ResourceStudents      Resource = "STUDENTS"
	ResourceStaff         Resource = "STAFF"
	ResourceClasses       Resource = "CLASSES"
	ResourceGrades        Resource = "GRADES"
	ResourceAttendance    Resource = "ATTENDANCE"
	ResourceFinance       Resource = "FINANCE"
	ResourceAnnouncements Resource = "ANNOUNCEMENTS"
	ResourceSettings      Resource = "SETTINGS"
)

// Action is the access level on a resource. ADMIN subsumes READ and WRITE
// on the same resource.
type Action string

const (
	ActionRead  Action = "READ"
	ActionWrite Action = "WRITE"
	ActionAdmin Action = "ADMIN"
)

// Resources lists every resource in catalog order.
func Resources() []Resource {
	return []Resource{
		ResourceAnnouncements,
		ResourceAttendance,
		ResourceClasses,
		ResourceFinance,
		ResourceGrades,
		ResourceSettings,
		ResourceStaff,
		ResourceStudents,
	}
}

// Actions lists every action in catalog order.
func Actions() []Action {
	return []Action{ActionAdmin, ActionRead, ActionWrite}
}

// Permission is an immutable catalog entry, unique per (resource, action).
type Permission struct {
	ID          int64    `json:"id"`
	Resource    Resource `json:"resource"`
	Action      Action   `json:"action"`
	Description string   `json:"description"`
}

// Key returns the composite identity of the permission.
func (p Permission) Key() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// IsPrincipalRole reports whether a role string classifies as the
// Principal sentinel: permanent full access, grants never read or written.
// The match is a case-insensitive substring, so "Vice Principal" and
// "principal-assistant" both qualify. Deliberately kept this broad until
// product signs off on narrowing it.
func IsPrincipalRole(role string) bool {
	return strings.Contains(strings.ToLower(role), "principal")
}

// Allowed decides whether an actor with the given role and grant set may
// perform action on resource. Rules short-circuit in order: Principal
// bypass, ADMIN-implies-all on the resource, then the exact grant.
func Allowed(role string, grants []Permission, resource Resource, action Action) bool {
	if IsPrincipalRole(role) {
		return true
	}
	for _, g := range grants {
		if g.Resource != resource {
			continue
		}
		if g.Action == ActionAdmin || g.Action == action {
			return true
		}
	}
	return false
}

// AllowedAdmin is the ADMIN-only specialization of Allowed, used to gate
// grant-management authority itself.
func AllowedAdmin(role string, grants []Permission, resource Resource) bool {
	if IsPrincipalRole(role) {
		return true
	}
	for _, g := range grants {
		if g.Resource == resource && g.Action == ActionAdmin {
			return true
		}
	}
	return false
}

// validResources and validActions back catalog membership checks.
var (
	validResources = func() map[Resource]struct{} {
		m := make(map[Resource]struct{})
		for _, r := range Resources() {
			m[r] = struct{}{}
		}
		return m
	}()
	validActions = map[Action]struct{}{
		ActionRead:  {},
		ActionWrite: {},
		ActionAdmin: {},
	}
)

// ValidResource reports whether r belongs to the catalog vocabulary.
func ValidResource(r Resource) bool {
	_, ok := validResources[r]
	return ok
}

// ValidAction reports whether a belongs to the catalog vocabulary.
func ValidAction(a Action) bool {
	_, ok := validActions[a]
	return ok
}
