package approval

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sekolahku/sekolahku/internal/shared"
)

// Repository defines persistence operations for approval tokens.
type Repository interface {
	Create(ctx context.Context, token Token) error
	FindByDigest(ctx context.Context, digest string) (*Token, error)
	// Consume marks the token used. It must be exactly-once: the update
	// only succeeds while used_at is still null, and the boolean reports
	// whether this call won.
	Consume(ctx context.Context, tokenID string, at time.Time) (bool, error)
	// DeleteStale removes expired tokens and consumed tokens older than
	// the retention window. Returns the number of rows deleted.
	DeleteStale(ctx context.Context, now time.Time, retention time.Duration) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create persists a freshly issued token.
func (r *PGRepository) Create(ctx context.Context, token Token) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO approval_tokens
(id, school_id, admin_id, digest, proposed_changes, issued_at, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		token.ID, token.SchoolID, token.AdminID, token.Digest, []byte(token.ProposedChanges),
		token.IssuedAt, token.ExpiresAt, token.IP, token.UserAgent)
	return err
}

// FindByDigest looks a token up by its code digest.
func (r *PGRepository) FindByDigest(ctx context.Context, digest string) (*Token, error) {
	var t Token
	err := r.pool.QueryRow(ctx, `SELECT id, school_id, admin_id, digest, proposed_changes, issued_at, expires_at, used_at, ip, user_agent
FROM approval_tokens WHERE digest=$1`, digest).
		Scan(&t.ID, &t.SchoolID, &t.AdminID, &t.Digest, &t.ProposedChanges, &t.IssuedAt, &t.ExpiresAt, &t.UsedAt, &t.IP, &t.UserAgent)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Consume is a conditional update; the affected-row count decides the
// winner under concurrent verification attempts.
func (r *PGRepository) Consume(ctx context.Context, tokenID string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE approval_tokens SET used_at=$2
WHERE id=$1 AND used_at IS NULL`, tokenID, at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteStale sweeps expired and long-consumed tokens.
func (r *PGRepository) DeleteStale(ctx context.Context, now time.Time, retention time.Duration) (int64, error) {
	cutoff := now.Add(-retention)
	tag, err := r.pool.Exec(ctx, `DELETE FROM approval_tokens
WHERE expires_at < $1 OR (used_at IS NOT NULL AND used_at < $2)`, now, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
