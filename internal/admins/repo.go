package admins

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sekolahku/sekolahku/internal/shared"
)

// Repository provides PostgreSQL backed persistence for school admins.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const adminColumns = `id, COALESCE(school_id::text, ''), name, email, role, is_platform, created_at, updated_at`

// ListBySchool returns every admin of a school ordered by name.
func (r *Repository) ListBySchool(ctx context.Context, schoolID string) ([]SchoolAdmin, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+adminColumns+`
FROM school_admins WHERE school_id=$1 ORDER BY name, id`, schoolID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []SchoolAdmin
	for rows.Next() {
		var a SchoolAdmin
		if err := rows.Scan(&a.ID, &a.SchoolID, &a.Name, &a.Email, &a.Role, &a.IsPlatform, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByID fetches one admin regardless of school.
func (r *Repository) GetByID(ctx context.Context, adminID string) (*SchoolAdmin, error) {
	var a SchoolAdmin
	err := r.pool.QueryRow(ctx, `SELECT `+adminColumns+`
FROM school_admins WHERE id=$1`, adminID).
		Scan(&a.ID, &a.SchoolID, &a.Name, &a.Email, &a.Role, &a.IsPlatform, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

// GetInSchool fetches an admin scoped to a school.
func (r *Repository) GetInSchool(ctx context.Context, schoolID, adminID string) (*SchoolAdmin, error) {
	var a SchoolAdmin
	err := r.pool.QueryRow(ctx, `SELECT `+adminColumns+`
FROM school_admins WHERE id=$1 AND school_id=$2`, adminID, schoolID).
		Scan(&a.ID, &a.SchoolID, &a.Name, &a.Email, &a.Role, &a.IsPlatform, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}
