package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/sakif/broken-weave/internal/apperror"
	"github.com/sakif/broken-weave/internal/auth"
	"github.com/sakif/broken-weave/internal/model"
)

// fakeUserRepo is an in-memory repository.UserRepository. A fake rather
// than a mock framework keeps the tests dependency-free and readable.
type fakeUserRepo struct {
	users  map[string]*model.User // keyed by username
	nextID int64

	// set to non-nil to simulate database failures
	createErr error
	existsErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User), nextID: 1}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	copied := *user
	f.users[user.Username] = &copied
	return nil
}

func (f *fakeUserRepo) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	u, ok := f.users[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	return u, nil
}

func (f *fakeUserRepo) UserExists(_ context.Context, username, email string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	for _, u := range f.users {
		if u.Username == username || u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	// bcrypt minimum cost keeps the tests fast
	ps := auth.NewPasswordServiceForTest(4)

	return NewAuthService(repo, ts, ps, newTestLogger())
}

func TestRegister(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	user, err := svc.Register(ctx, "jane", "jane@example.com", "hunter22")
	if err != nil {
		t.Fatalf("registering: %v", err)
	}

	if user.ID == 0 {
		t.Error("expected server-assigned id")
	}
	if user.IsAdmin {
		t.Error("new accounts must not be admin")
	}
	if user.PasswordHash == "hunter22" {
		t.Error("password stored in plain text")
	}
	if err := auth.NewPasswordServiceForTest(4).Verify(user.PasswordHash, "hunter22"); err != nil {
		t.Errorf("stored hash does not verify against original password: %v", err)
	}
}

func TestRegisterMissingFields(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	tests := []struct {
		name                      string
		username, email, password string
	}{
		{"no username", "", "a@b.com", "pw"},
		{"no email", "jane", "", "pw"},
		{"no password", "jane", "a@b.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.email, tt.password)
			if !errors.Is(err, apperror.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestRegisterDuplicate(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "jane", "jane@example.com", "pw"); err != nil {
		t.Fatalf("first registration: %v", err)
	}

	// same username, different email
	_, err := svc.Register(ctx, "jane", "other@example.com", "pw")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate username: expected conflict, got %v", err)
	}

	// same email, different username
	_, err = svc.Register(ctx, "janet", "jane@example.com", "pw")
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("duplicate email: expected conflict, got %v", err)
	}
}

func TestLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "jane", "jane@example.com", "hunter22"); err != nil {
		t.Fatalf("registering: %v", err)
	}

	result, err := svc.Login(ctx, "jane", "hunter22")
	if err != nil {
		t.Fatalf("logging in: %v", err)
	}
	if result.User.Username != "jane" {
		t.Errorf("username = %q, want jane", result.User.Username)
	}

	ts, err := auth.NewTokenService("test-secret-at-least-16-chars!!")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	identity, err := ts.Validate(result.Token)
	if err != nil {
		t.Fatalf("validating issued token: %v", err)
	}
	if identity.UserID != result.User.ID || identity.Username != "jane" || identity.IsAdmin {
		t.Errorf("token identity = %+v does not match user", identity)
	}
}

// Wrong password and unknown username must be indistinguishable so the
// endpoint cannot be used to probe which usernames exist.
func TestLoginBadCredentialsIndistinguishable(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestAuthService(t, repo)
	ctx := context.Background()

	if _, err := svc.Register(ctx, "jane", "jane@example.com", "hunter22"); err != nil {
		t.Fatalf("registering: %v", err)
	}

	_, errWrongPass := svc.Login(ctx, "jane", "wrong")
	_, errNoUser := svc.Login(ctx, "nobody", "wrong")

	if !errors.Is(errWrongPass, apperror.ErrUnauthorized) {
		t.Fatalf("wrong password: expected unauthorized, got %v", errWrongPass)
	}
	if !errors.Is(errNoUser, apperror.ErrUnauthorized) {
		t.Fatalf("unknown user: expected unauthorized, got %v", errNoUser)
	}
	if errWrongPass.Error() != errNoUser.Error() {
		t.Errorf("error messages differ: %q vs %q", errWrongPass.Error(), errNoUser.Error())
	}
}

func TestLoginMissingFields(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())
	ctx := context.Background()

	if _, err := svc.Login(ctx, "", "pw"); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("missing username: expected validation error, got %v", err)
	}
	if _, err := svc.Login(ctx, "jane", ""); !errors.Is(err, apperror.ErrValidation) {
		t.Errorf("missing password: expected validation error, got %v", err)
	}
}
