package tenant_test

import (
	"context"
	"errors"
	"testing"

	"github.com/sekolahku/sekolahku/internal/shared"
	"github.com/sekolahku/sekolahku/internal/tenant"
)

func scopedSession(adminID, schoolID string) *shared.Session {
	s := &shared.Session{ID: "sess-" + adminID}
	s.SetIdentity(adminID, schoolID, "Teacher", false)
	return s
}

func platformSession(adminID string) *shared.Session {
	s := &shared.Session{ID: "sess-" + adminID}
	s.SetIdentity(adminID, "", "Operator", true)
	return s
}

func TestResolveScopedAdminUsesOwnSchool(t *testing.T) {
	got, err := tenant.Resolve(scopedSession("admin-1", "school-1"), "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "school-1" {
		t.Fatalf("expected school-1, got %s", got)
	}
}

func TestResolveScopedAdminMatchingHint(t *testing.T) {
	got, err := tenant.Resolve(scopedSession("admin-1", "school-1"), "school-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "school-1" {
		t.Fatalf("expected school-1, got %s", got)
	}
}

func TestResolveCrossTenantHintForbidden(t *testing.T) {
	_, err := tenant.Resolve(scopedSession("admin-1", "school-1"), "school-2")
	if !errors.Is(err, shared.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestResolveAnonymousSession(t *testing.T) {
	_, err := tenant.Resolve(nil, "school-1")
	if !errors.Is(err, shared.ErrTenantRequired) {
		t.Fatalf("expected tenant required, got %v", err)
	}

	_, err = tenant.Resolve(&shared.Session{ID: "anon"}, "school-1")
	if !errors.Is(err, shared.ErrTenantRequired) {
		t.Fatalf("expected tenant required, got %v", err)
	}
}

func TestResolveScopedAdminWithoutSchool(t *testing.T) {
	_, err := tenant.Resolve(scopedSession("admin-1", ""), "")
	if !errors.Is(err, shared.ErrTenantRequired) {
		t.Fatalf("expected tenant required, got %v", err)
	}
}

func TestResolvePlatformRequiresExplicitTarget(t *testing.T) {
	_, err := tenant.Resolve(platformSession("op-1"), "")
	if !errors.Is(err, shared.ErrTenantRequired) {
		t.Fatalf("expected tenant required, got %v", err)
	}

	got, err := tenant.Resolve(platformSession("op-1"), "school-7")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "school-7" {
		t.Fatalf("expected school-7, got %s", got)
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := tenant.WithSchool(context.Background(), "school-1")
	got, ok := tenant.FromContext(ctx)
	if !ok || got != "school-1" {
		t.Fatalf("expected school-1 in context, got %q ok=%v", got, ok)
	}

	if _, ok := tenant.FromContext(context.Background()); ok {
		t.Fatal("empty context must not resolve a school")
	}
}
