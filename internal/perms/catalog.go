package perms

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// DescribePermission builds the human-readable description seeded into the
// catalog for a (resource, action) pair.
func DescribePermission(resource Resource, action Action) string {
	label := titleCaser.String(strings.ReplaceAll(strings.ToLower(string(resource)), "_", " "))
	switch action {
	case ActionRead:
		return "View " + label
	case ActionWrite:
		return "Create and update " + label
	case ActionAdmin:
		return "Full control over " + label
	default:
		return label
	}
}

// CatalogEntries returns the exhaustive resource x action cross-product in
// (resource, action) order. This is the source of truth for what can be
// granted; EnsureCatalog seeds exactly this set.
func CatalogEntries() []Permission {
	entries := make([]Permission, 0, len(Resources())*len(Actions()))
	for _, r := range Resources() {
		for _, a := range Actions() {
			entries = append(entries, Permission{
				Resource:    r,
				Action:      a,
				Description: DescribePermission(r, a),
			})
		}
	}
	return entries
}
