package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/example/appointment-scheduler/internal/persistence"
)

type userStoreStub struct {
	users map[string]persistence.User

	createErr  error
	updateErr  error
	getErr     error
	listErr    error
	deleteErr  error
	adminCount int
	countErr   error
	deleted    []string
}

func newUserStoreStub(seed ...persistence.User) *userStoreStub {
	stub := &userStoreStub{users: make(map[string]persistence.User)}
	for _, user := range seed {
		stub.users[user.ID] = user
		if user.IsAdmin {
			stub.adminCount++
		}
	}
	return stub
}

func (s *userStoreStub) CreateUser(ctx context.Context, user persistence.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.users {
		if existing.Username == user.Username {
			return persistence.ErrDuplicate
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *userStoreStub) UpdateUser(ctx context.Context, user persistence.User) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.users[user.ID]; !ok {
		return persistence.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

func (s *userStoreStub) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if s.getErr != nil {
		return persistence.User{}, s.getErr
	}
	user, ok := s.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return user, nil
}

func (s *userStoreStub) GetUserByUsername(ctx context.Context, username string) (persistence.User, error) {
	for _, user := range s.users {
		if user.Username == username {
			return user, nil
		}
	}
	return persistence.User{}, persistence.ErrNotFound
}

func (s *userStoreStub) ListUsers(ctx context.Context) ([]persistence.User, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]persistence.User, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) CountAdmins(ctx context.Context) (int, error) {
	if s.countErr != nil {
		return 0, s.countErr
	}
	return s.adminCount, nil
}

func (s *userStoreStub) DeleteUser(ctx context.Context, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.users[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(s.users, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func TestAuthServiceAuthenticate(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	secret := []byte("test-secret")

	hash, err := CreatePasswordHash("correct horse")
	if err != nil {
		t.Fatalf("hashing password failed: %v", err)
	}
	account := persistence.User{
		ID:           "user-1",
		Username:     "pat",
		PasswordHash: hash,
		AuthMethod:   AuthMethodLocal,
		IsAdmin:      true,
	}

	t.Run("issues a token for valid credentials", func(t *testing.T) {
		service := NewAuthService(newUserStoreStub(account), secret, time.Hour, now)

		result, err := service.Authenticate(context.Background(), AuthenticateParams{Username: "pat", Password: "correct horse"})
		if err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
		if result.Token == "" {
			t.Fatal("expected a token")
		}
		if result.UserID != "user-1" || !result.IsAdmin {
			t.Fatalf("unexpected result %+v", result)
		}
		if !result.ExpiresAt.Equal(now().Add(time.Hour)) {
			t.Fatalf("unexpected expiry %v", result.ExpiresAt)
		}

		principal, err := service.ValidateToken(context.Background(), result.Token)
		if err != nil {
			t.Fatalf("ValidateToken returned error: %v", err)
		}
		if principal.UserID != "user-1" || !principal.IsAdmin {
			t.Fatalf("unexpected principal %+v", principal)
		}
	})

	t.Run("validates required attributes", func(t *testing.T) {
		service := NewAuthService(newUserStoreStub(account), secret, time.Hour, now)

		_, err := service.Authenticate(context.Background(), AuthenticateParams{})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("hides unknown usernames behind invalid credentials", func(t *testing.T) {
		service := NewAuthService(newUserStoreStub(account), secret, time.Hour, now)

		_, err := service.Authenticate(context.Background(), AuthenticateParams{Username: "nobody", Password: "whatever"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("rejects wrong passwords", func(t *testing.T) {
		service := NewAuthService(newUserStoreStub(account), secret, time.Hour, now)

		_, err := service.Authenticate(context.Background(), AuthenticateParams{Username: "pat", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("rejects accounts without a local password", func(t *testing.T) {
		external := account
		external.ID = "user-2"
		external.Username = "sam"
		external.AuthMethod = "ldap"
		service := NewAuthService(newUserStoreStub(external), secret, time.Hour, now)

		_, err := service.Authenticate(context.Background(), AuthenticateParams{Username: "sam", Password: "correct horse"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})
}

func TestAuthServiceValidateToken(t *testing.T) {
	secret := []byte("test-secret")
	issuedAt := time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

	hash, err := CreatePasswordHash("correct horse")
	if err != nil {
		t.Fatalf("hashing password failed: %v", err)
	}
	account := persistence.User{ID: "user-1", Username: "pat", PasswordHash: hash, AuthMethod: AuthMethodLocal}

	issue := func(t *testing.T, service *AuthService) string {
		t.Helper()
		result, err := service.Authenticate(context.Background(), AuthenticateParams{Username: "pat", Password: "correct horse"})
		if err != nil {
			t.Fatalf("Authenticate returned error: %v", err)
		}
		return result.Token
	}

	t.Run("rejects expired tokens", func(t *testing.T) {
		clock := issuedAt
		service := NewAuthService(newUserStoreStub(account), secret, time.Hour, func() time.Time { return clock })
		token := issue(t, service)

		clock = issuedAt.Add(2 * time.Hour)
		if _, err := service.ValidateToken(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects tokens without an expiry", func(t *testing.T) {
		claims := authClaims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		if err != nil {
			t.Fatalf("signing token failed: %v", err)
		}

		service := NewAuthService(newUserStoreStub(account), secret, time.Hour, func() time.Time { return issuedAt })
		if _, err := service.ValidateToken(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects tokens signed with another secret", func(t *testing.T) {
		issuer := NewAuthService(newUserStoreStub(account), []byte("other-secret"), time.Hour, func() time.Time { return issuedAt })
		token := issue(t, issuer)

		service := NewAuthService(newUserStoreStub(account), secret, time.Hour, func() time.Time { return issuedAt })
		if _, err := service.ValidateToken(context.Background(), token); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects garbage tokens", func(t *testing.T) {
		service := NewAuthService(newUserStoreStub(account), secret, time.Hour, func() time.Time { return issuedAt })

		if _, err := service.ValidateToken(context.Background(), "not.a.token"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestAuthServiceCurrentUser(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	account := persistence.User{ID: "user-1", Username: "pat"}

	t.Run("loads the account behind the principal", func(t *testing.T) {
		service := NewAuthService(newUserStoreStub(account), []byte("s"), time.Hour, now)

		user, err := service.CurrentUser(context.Background(), Principal{UserID: "user-1"})
		if err != nil {
			t.Fatalf("CurrentUser returned error: %v", err)
		}
		if user.Username != "pat" {
			t.Fatalf("unexpected user %+v", user)
		}
	})

	t.Run("treats deleted accounts as unauthorized", func(t *testing.T) {
		service := NewAuthService(newUserStoreStub(), []byte("s"), time.Hour, now)

		if _, err := service.CurrentUser(context.Background(), Principal{UserID: "gone"}); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})
}
