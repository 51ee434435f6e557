package approval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sekolahku/sekolahku/internal/shared"
)

// Verification failure reasons. Every one of them wraps
// shared.ErrVerificationFailed, so the HTTP boundary collapses them into a
// single generic message while logs and tests keep the precise cause.
var (
	ErrTokenInvalid  = fmt.Errorf("%w: unknown token", shared.ErrVerificationFailed)
	ErrTokenExpired  = fmt.Errorf("%w: token expired", shared.ErrVerificationFailed)
	ErrTokenUsed     = fmt.Errorf("%w: token already used", shared.ErrVerificationFailed)
	ErrActorMismatch = fmt.Errorf("%w: token bound to another admin", shared.ErrVerificationFailed)
)

// Actor is the authenticated identity requesting or verifying a token.
type Actor struct {
	AdminID  string
	SchoolID string
}

// Contact is the verified delivery address for an admin.
type Contact struct {
	Email string
	Name  string
}

// AdminDirectory resolves an admin's verified contact within a school.
type AdminDirectory interface {
	AdminContact(ctx context.Context, schoolID, adminID string) (*Contact, error)
}

// SnapshotProvider returns the current state of the entity a change
// targets, handed back to the caller on successful verification.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, schoolID string) (json.RawMessage, error)
}

// Notifier delivers the verification code out-of-band.
type Notifier interface {
	ApprovalCode(ctx context.Context, email, name, code string, expiresAt time.Time) error
}

// Config bounds token issuance and verification.
type Config struct {
	TokenTTL      time.Duration
	IssueLimit    int
	IssueWindow   time.Duration
	VerifyLimit   int
	VerifyWindow  time.Duration
	Retention     time.Duration
}

// DefaultConfig mirrors the documented product limits: three codes per
// hour, five verification attempts per minute, ten-minute validity.
func DefaultConfig() Config {
	return Config{
		TokenTTL:     10 * time.Minute,
		IssueLimit:   3,
		IssueWindow:  time.Hour,
		VerifyLimit:  5,
		VerifyWindow: time.Minute,
		Retention:    24 * time.Hour,
	}
}

// VerifiedChange is returned on successful verification: what was asked
// for plus the entity as it stands, for the caller to apply.
type VerifiedChange struct {
	SchoolID        string          `json:"schoolId"`
	ProposedChanges json.RawMessage `json:"proposedChanges"`
	CurrentSnapshot json.RawMessage `json:"currentSnapshot"`
}

// Service implements the token issuance/verification state machine.
type Service struct {
	repo      Repository
	directory AdminDirectory
	snapshots SnapshotProvider
	notifier  Notifier
	limiter   shared.RateLimiter
	audit     *shared.AuditStore
	logger    *slog.Logger
	cfg       Config
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, directory AdminDirectory, snapshots SnapshotProvider, notifier Notifier, limiter shared.RateLimiter, audit *shared.AuditStore, logger *slog.Logger, cfg Config) *Service {
	if cfg.TokenTTL <= 0 {
		cfg = DefaultConfig()
	}
	return &Service{
		repo:      repo,
		directory: directory,
		snapshots: snapshots,
		notifier:  notifier,
		limiter:   limiter,
		audit:     audit,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// RequestToken issues a pending token bound to the proposed changes and
// dispatches the code out-of-band. The code never travels back over the
// primary channel; callers only get a generic acknowledgement.
func (s *Service) RequestToken(ctx context.Context, actor Actor, proposedChanges json.RawMessage, ip, userAgent string) error {
	if len(proposedChanges) == 0 || string(proposedChanges) == "null" {
		return fmt.Errorf("%w: proposed changes required", shared.ErrInvalidInput)
	}

	if err := s.allow(ctx, "issue:"+actor.AdminID, s.cfg.IssueWindow, s.cfg.IssueLimit); err != nil {
		return err
	}

	contact, err := s.directory.AdminContact(ctx, actor.SchoolID, actor.AdminID)
	if err != nil {
		return err
	}

	code, err := generateCode()
	if err != nil {
		return err
	}

	now := s.now()
	token := Token{
		ID:              uuid.NewString(),
		SchoolID:        actor.SchoolID,
		AdminID:         actor.AdminID,
		Digest:          digestCode(code),
		ProposedChanges: proposedChanges,
		IssuedAt:        now,
		ExpiresAt:       now.Add(s.cfg.TokenTTL),
		IP:              ip,
		UserAgent:       userAgent,
	}
	if err := s.repo.Create(ctx, token); err != nil {
		return err
	}

	if err := s.notifier.ApprovalCode(ctx, contact.Email, contact.Name, code, token.ExpiresAt); err != nil {
		return err
	}

	s.recordAudit(ctx, actor, "approval.token_issued", token.ID, map[string]any{
		"ip":         ip,
		"user_agent": userAgent,
		"expires_at": token.ExpiresAt,
	})
	return nil
}

// VerifyToken validates and consumes a code. Consumption is exactly-once:
// under concurrent attempts only one caller gets the payload, the rest
// fail with the already-used reason.
func (s *Service) VerifyToken(ctx context.Context, code string, actor Actor, ip, userAgent string) (*VerifiedChange, error) {
	if err := s.allow(ctx, "verify:"+actor.AdminID, s.cfg.VerifyWindow, s.cfg.VerifyLimit); err != nil {
		return nil, err
	}

	token, err := s.repo.FindByDigest(ctx, digestCode(code))
	if err != nil {
		if err == shared.ErrNotFound {
			return nil, s.fail(actor, ip, ErrTokenInvalid)
		}
		return nil, err
	}

	now := s.now()
	if !now.Before(token.ExpiresAt) {
		return nil, s.fail(actor, ip, ErrTokenExpired)
	}
	if token.UsedAt != nil {
		return nil, s.fail(actor, ip, ErrTokenUsed)
	}
	if token.AdminID != actor.AdminID {
		return nil, s.fail(actor, ip, ErrActorMismatch)
	}

	consumed, err := s.repo.Consume(ctx, token.ID, now)
	if err != nil {
		return nil, err
	}
	if !consumed {
		// Lost the race against a concurrent verification.
		return nil, s.fail(actor, ip, ErrTokenUsed)
	}

	snapshot, err := s.snapshots.Snapshot(ctx, token.SchoolID)
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, actor, "approval.token_verified", token.ID, map[string]any{
		"ip":         ip,
		"user_agent": userAgent,
	})

	return &VerifiedChange{
		SchoolID:        token.SchoolID,
		ProposedChanges: token.ProposedChanges,
		CurrentSnapshot: snapshot,
	}, nil
}

// CleanupExpired sweeps expired and long-consumed tokens. The HTTP
// surface restricts this to platform callers; the worker runs it nightly.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.repo.DeleteStale(ctx, s.now(), s.cfg.Retention)
}

func (s *Service) allow(ctx context.Context, key string, window time.Duration, limit int) error {
	if s.limiter == nil {
		return nil
	}
	allowed, retryAfter, err := s.limiter.CheckAndIncrement(ctx, "approval:"+key, window, limit)
	if err != nil {
		return err
	}
	if !allowed {
		return &shared.RateLimitError{RetryAfter: retryAfter}
	}
	return nil
}

// fail logs the precise reason; the wrapped error still reads as the
// generic verification failure at the boundary.
func (s *Service) fail(actor Actor, ip string, reason error) error {
	if s.logger != nil {
		s.logger.Warn("token verification failed",
			slog.String("admin", actor.AdminID),
			slog.String("ip", ip),
			slog.Any("reason", reason))
	}
	return reason
}

func (s *Service) recordAudit(ctx context.Context, actor Actor, action, tokenID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	ev := shared.AuditEvent{
		SchoolID: actor.SchoolID,
		ActorID:  actor.AdminID,
		Action:   action,
		Entity:   "approval_token",
		EntityID: tokenID,
		Meta:     meta,
	}
	if err := s.audit.Record(ctx, ev); err != nil && s.logger != nil {
		s.logger.Error("record approval audit", slog.Any("error", err))
	}
}

// SetClock overrides the time source for tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}
