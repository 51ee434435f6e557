package schools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sekolahku/sekolahku/internal/shared"
)

// Repository provides PostgreSQL backed persistence for schools.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID fetches a school.
func (r *Repository) GetByID(ctx context.Context, schoolID string) (*School, error) {
	var s School
	err := r.pool.QueryRow(ctx, `SELECT id, name, subdomain, email, phone, address, created_at, updated_at
FROM schools WHERE id=$1`, schoolID).
		Scan(&s.ID, &s.Name, &s.Subdomain, &s.Email, &s.Phone, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

// Snapshot returns the current profile as JSON, handed back on token
// verification so the caller can diff before applying.
func (r *Repository) Snapshot(ctx context.Context, schoolID string) (json.RawMessage, error) {
	school, err := r.GetByID(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]string{
		"name":      school.Name,
		"subdomain": school.Subdomain,
		"email":     school.Email,
		"phone":     school.Phone,
		"address":   school.Address,
	})
}

// ApplyProfileChanges updates the whitelisted profile fields. Only called
// after a verification token has been consumed.
func (r *Repository) ApplyProfileChanges(ctx context.Context, schoolID string, changes map[string]string) (*School, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("%w: no changes supplied", shared.ErrInvalidInput)
	}
	set := ""
	args := []any{schoolID}
	i := 2
	for field, value := range changes {
		if _, ok := ProfileFields[field]; !ok {
			return nil, fmt.Errorf("%w: field %q is not part of the school profile", shared.ErrInvalidInput, field)
		}
		if set != "" {
			set += ", "
		}
		set += fmt.Sprintf("%s=$%d", field, i)
		args = append(args, value)
		i++
	}

	tag, err := r.pool.Exec(ctx, `UPDATE schools SET `+set+`, updated_at=NOW() WHERE id=$1`, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, shared.ErrNotFound
	}
	return r.GetByID(ctx, schoolID)
}
