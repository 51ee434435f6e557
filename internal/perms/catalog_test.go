package perms

import (
	"sort"
	"testing"
)

func TestCatalogEntriesExhaustive(t *testing.T) {
	entries := CatalogEntries()

	want := len(Resources()) * len(Actions())
	if len(entries) != want {
		t.Fatalf("expected %d entries, got %d", want, len(entries))
	}

	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if _, dup := seen[e.Key()]; dup {
			t.Fatalf("duplicate catalog entry %s", e.Key())
		}
		seen[e.Key()] = struct{}{}
		if !ValidResource(e.Resource) {
			t.Fatalf("unknown resource %s", e.Resource)
		}
		if !ValidAction(e.Action) {
			t.Fatalf("unknown action %s", e.Action)
		}
		if e.Description == "" {
			t.Fatalf("entry %s missing description", e.Key())
		}
	}
}

func TestCatalogEntriesOrdered(t *testing.T) {
	entries := CatalogEntries()
	sorted := sort.SliceIsSorted(entries, func(i, j int) bool {
		if entries[i].Resource != entries[j].Resource {
			return entries[i].Resource < entries[j].Resource
		}
		return entries[i].Action < entries[j].Action
	})
	if !sorted {
		t.Fatal("catalog entries must be ordered by (resource, action)")
	}
}

func TestDescribePermission(t *testing.T) {
	if got := DescribePermission(ResourceStudents, ActionRead); got != "View Students" {
		t.Fatalf("unexpected READ description: %q", got)
	}
	if got := DescribePermission(ResourceGrades, ActionWrite); got != "Create and update Grades" {
		t.Fatalf("unexpected WRITE description: %q", got)
	}
	if got := DescribePermission(ResourceStaff, ActionAdmin); got != "Full control over Staff" {
		t.Fatalf("unexpected ADMIN description: %q", got)
	}
}
