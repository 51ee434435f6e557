package perms

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sekolahku/sekolahku/internal/platform/db"
	"github.com/sekolahku/sekolahku/internal/shared"
)

// Admin is the slice of a school admin record this module needs.
type Admin struct {
	ID       string
	SchoolID string
	Name     string
	Email    string
	Role     string
}

// Repository defines persistence operations for the permission module.
type Repository interface {
	EnsureCatalog(ctx context.Context) error
	ListCatalog(ctx context.Context) ([]Permission, error)
	PermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error)
	AdminInSchool(ctx context.Context, schoolID, adminID string) (*Admin, error)
	GrantsFor(ctx context.Context, adminID string) ([]Permission, error)
	ReplaceGrants(ctx context.Context, adminID string, permissionIDs []int64) ([]Permission, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// EnsureCatalog upserts every (resource, action) pair. ON CONFLICT DO
// NOTHING keeps repeat runs and concurrent instances from clobbering
// existing descriptions or racing on first boot.
func (r *PGRepository) EnsureCatalog(ctx context.Context) error {
	for _, entry := range CatalogEntries() {
		_, err := r.pool.Exec(ctx, `INSERT INTO permissions (resource, action, description)
VALUES ($1, $2, $3)
ON CONFLICT (resource, action) DO NOTHING`,
			string(entry.Resource), string(entry.Action), entry.Description)
		if err != nil {
			return err
		}
	}
	return nil
}

// ListCatalog returns the full catalog ordered by (resource, action).
func (r *PGRepository) ListCatalog(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, resource, action, description
FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// PermissionsByIDs fetches catalog entries for the given IDs. Unknown IDs
// are simply absent from the result; the service layer decides whether
// that is an error.
func (r *PGRepository) PermissionsByIDs(ctx context.Context, ids []int64) ([]Permission, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, resource, action, description
FROM permissions WHERE id = ANY($1) ORDER BY resource, action`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// AdminInSchool resolves an admin within the given school.
func (r *PGRepository) AdminInSchool(ctx context.Context, schoolID, adminID string) (*Admin, error) {
	var admin Admin
	err := r.pool.QueryRow(ctx, `SELECT id, school_id, name, email, role
FROM school_admins WHERE id=$1 AND school_id=$2`, adminID, schoolID).
		Scan(&admin.ID, &admin.SchoolID, &admin.Name, &admin.Email, &admin.Role)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &admin, nil
}

// GrantsFor returns the admin's current permission set ordered by
// (resource, action).
func (r *PGRepository) GrantsFor(ctx context.Context, adminID string) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.resource, p.action, p.description
FROM admin_permissions ap
JOIN permissions p ON p.id = ap.permission_id
WHERE ap.admin_id = $1
ORDER BY p.resource, p.action`, adminID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanPermissions(rows)
}

// ReplaceGrants swaps the admin's grant set for exactly the given IDs in
// one transaction. Delete-then-insert, never a partial merge. The prior
// set is read within the same transaction and returned so audit diffs
// reflect exactly what this replacement displaced.
func (r *PGRepository) ReplaceGrants(ctx context.Context, adminID string, permissionIDs []int64) ([]Permission, error) {
	var before []Permission
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT p.id, p.resource, p.action, p.description
FROM admin_permissions ap
JOIN permissions p ON p.id = ap.permission_id
WHERE ap.admin_id = $1
ORDER BY p.resource, p.action`, adminID)
		if err != nil {
			return err
		}
		before, err = scanPermissions(rows)
		rows.Close()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM admin_permissions WHERE admin_id=$1`, adminID); err != nil {
			return err
		}
		for _, id := range permissionIDs {
			if _, err := tx.Exec(ctx, `INSERT INTO admin_permissions (admin_id, permission_id, created_at)
VALUES ($1, $2, NOW())`, adminID, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return before, nil
}

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var perms []Permission
	for rows.Next() {
		var p Permission
		var resource, action string
		if err := rows.Scan(&p.ID, &resource, &action, &p.Description); err != nil {
			return nil, err
		}
		p.Resource = Resource(resource)
		p.Action = Action(action)
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

var _ Repository = (*PGRepository)(nil)
