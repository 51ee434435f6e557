package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/sekolahku/sekolahku/internal/auth"
	"github.com/sekolahku/sekolahku/internal/shared"
)

type stubRepo struct {
	accounts map[string]*auth.Account // by email
	sessions map[string]string       // session ID -> admin ID
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		accounts: make(map[string]*auth.Account),
		sessions: make(map[string]string),
	}
}

func (r *stubRepo) addAccount(t *testing.T, email, password string, active bool) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	r.accounts[email] = &auth.Account{
		ID:           "admin-" + email,
		SchoolID:     "school-1",
		Name:         "Admin",
		Email:        email,
		Role:         "Administrator",
		PasswordHash: string(hash),
		IsActive:     active,
	}
}

func (r *stubRepo) FindByEmail(ctx context.Context, email string) (*auth.Account, error) {
	account, ok := r.accounts[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return account, nil
}

func (r *stubRepo) CreateSession(ctx context.Context, id, adminID string, expiresAt time.Time, ip, ua string) error {
	r.sessions[id] = adminID
	return nil
}

func (r *stubRepo) DeleteSession(ctx context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func TestAuthenticate(t *testing.T) {
	repo := newStubRepo()
	repo.addAccount(t, "budi@school.test", "kata-sandi-aman", true)
	svc := auth.NewService(repo)

	account, err := svc.Authenticate(context.Background(), "budi@school.test", "kata-sandi-aman")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if account.SchoolID != "school-1" {
		t.Fatalf("unexpected school: %s", account.SchoolID)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	repo := newStubRepo()
	repo.addAccount(t, "budi@school.test", "kata-sandi-aman", true)
	svc := auth.NewService(repo)

	_, err := svc.Authenticate(context.Background(), "budi@school.test", "salah")
	if !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	svc := auth.NewService(newStubRepo())

	_, err := svc.Authenticate(context.Background(), "ghost@school.test", "apapun")
	if !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestAuthenticateInactiveAccount(t *testing.T) {
	repo := newStubRepo()
	repo.addAccount(t, "budi@school.test", "kata-sandi-aman", false)
	svc := auth.NewService(repo)

	_, err := svc.Authenticate(context.Background(), "budi@school.test", "kata-sandi-aman")
	if !errors.Is(err, shared.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for inactive account, got %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	repo := newStubRepo()
	svc := auth.NewService(repo)

	if err := svc.RegisterSession(context.Background(), "sess-1", "admin-1", time.Now().Add(time.Hour), "10.0.0.1", "go-test"); err != nil {
		t.Fatalf("register session: %v", err)
	}
	if repo.sessions["sess-1"] != "admin-1" {
		t.Fatal("session row not recorded")
	}

	if err := svc.RemoveSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("remove session: %v", err)
	}
	if _, ok := repo.sessions["sess-1"]; ok {
		t.Fatal("session row not removed")
	}
}
