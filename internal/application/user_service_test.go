package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

type provisionerStub struct {
	applied []string
	err     error
}

func (s *provisionerStub) ApplyFutureRules(ctx context.Context, userID string) error {
	if s.err != nil {
		return s.err
	}
	s.applied = append(s.applied, userID)
	return nil
}

func TestUserServiceCreateUser(t *testing.T) {
	admin := Principal{UserID: "admin-1", IsAdmin: true}
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }

	input := UserInput{
		Username:    "pat",
		Password:    "correct horse",
		DisplayName: "Pat Doe",
		Email:       "pat@example.com",
	}

	t.Run("requires administrator privileges", func(t *testing.T) {
		service := NewUserService(newUserStoreStub(), &ruleSourceStub{}, &provisionerStub{}, sequentialIDs("user"), now)

		_, err := service.CreateUser(context.Background(), Principal{UserID: "user-1"}, input)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("validates required attributes", func(t *testing.T) {
		service := NewUserService(newUserStoreStub(), &ruleSourceStub{}, &provisionerStub{}, sequentialIDs("user"), now)

		_, err := service.CreateUser(context.Background(), admin, UserInput{Email: "not-an-address"})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		for _, field := range []string{"username", "display_name", "email", "password"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Fatalf("expected field error for %q, got %v", field, vErr.FieldErrors)
			}
		}
	})

	t.Run("stores the account and provisions future rules", func(t *testing.T) {
		store := newUserStoreStub()
		provisioner := &provisionerStub{}
		service := NewUserService(store, &ruleSourceStub{}, provisioner, sequentialIDs("user"), now)

		user, err := service.CreateUser(context.Background(), admin, input)
		if err != nil {
			t.Fatalf("CreateUser returned error: %v", err)
		}
		if user.PasswordHash == "" || user.PasswordHash == "correct horse" {
			t.Fatal("expected a derived password hash")
		}
		if user.AuthMethod != AuthMethodLocal {
			t.Fatalf("expected local auth method, got %q", user.AuthMethod)
		}
		if len(provisioner.applied) != 1 || provisioner.applied[0] != user.ID {
			t.Fatalf("expected provisioning for %s, got %v", user.ID, provisioner.applied)
		}
	})

	t.Run("succeeds when provisioning fails", func(t *testing.T) {
		service := NewUserService(newUserStoreStub(), &ruleSourceStub{}, &provisionerStub{err: errors.New("boom")}, sequentialIDs("user"), now)

		if _, err := service.CreateUser(context.Background(), admin, input); err != nil {
			t.Fatalf("CreateUser returned error: %v", err)
		}
	})

	t.Run("maps duplicate usernames", func(t *testing.T) {
		store := newUserStoreStub(persistence.User{ID: "user-0", Username: "pat"})
		service := NewUserService(store, &ruleSourceStub{}, &provisionerStub{}, sequentialIDs("user"), now)

		if _, err := service.CreateUser(context.Background(), admin, input); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})
}

func TestUserServiceSetup(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	input := UserInput{Username: "root", Password: "first admin", DisplayName: "Root"}

	t.Run("creates the first administrator", func(t *testing.T) {
		store := newUserStoreStub()
		service := NewUserService(store, &ruleSourceStub{}, nil, sequentialIDs("user"), now)

		user, err := service.Setup(context.Background(), input)
		if err != nil {
			t.Fatalf("Setup returned error: %v", err)
		}
		if !user.IsAdmin {
			t.Fatal("expected setup account to be an administrator")
		}
	})

	t.Run("refuses once an administrator exists", func(t *testing.T) {
		store := newUserStoreStub(persistence.User{ID: "admin-1", Username: "root", IsAdmin: true})
		service := NewUserService(store, &ruleSourceStub{}, nil, sequentialIDs("user"), now)

		if _, err := service.Setup(context.Background(), input); !errors.Is(err, ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
	})

	t.Run("reports whether setup is required", func(t *testing.T) {
		empty := NewUserService(newUserStoreStub(), &ruleSourceStub{}, nil, sequentialIDs("user"), now)
		required, err := empty.SetupRequired(context.Background())
		if err != nil {
			t.Fatalf("SetupRequired returned error: %v", err)
		}
		if !required {
			t.Fatal("expected setup required for an empty store")
		}

		seeded := NewUserService(newUserStoreStub(persistence.User{ID: "admin-1", IsAdmin: true}), &ruleSourceStub{}, nil, sequentialIDs("user"), now)
		required, err = seeded.SetupRequired(context.Background())
		if err != nil {
			t.Fatalf("SetupRequired returned error: %v", err)
		}
		if required {
			t.Fatal("expected setup done once an administrator exists")
		}
	})
}

func TestUserServiceUpdateUser(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	account := persistence.User{ID: "user-1", Username: "pat", DisplayName: "Pat Doe", PasswordHash: "hash", IsAdmin: false}
	input := UserInput{Username: "pat", DisplayName: "Pat D. Doe"}

	t.Run("users edit their own profile", func(t *testing.T) {
		store := newUserStoreStub(account)
		service := NewUserService(store, &ruleSourceStub{}, nil, sequentialIDs("user"), now)

		updated, err := service.UpdateUser(context.Background(), Principal{UserID: "user-1"}, "user-1", input)
		if err != nil {
			t.Fatalf("UpdateUser returned error: %v", err)
		}
		if updated.DisplayName != "Pat D. Doe" {
			t.Fatalf("unexpected display name %q", updated.DisplayName)
		}
		if updated.PasswordHash != "hash" {
			t.Fatal("expected password hash untouched without a new password")
		}
	})

	t.Run("rejects editing another user's profile", func(t *testing.T) {
		service := NewUserService(newUserStoreStub(account), &ruleSourceStub{}, nil, sequentialIDs("user"), now)

		_, err := service.UpdateUser(context.Background(), Principal{UserID: "user-2"}, "user-1", input)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("rejects self promotion to administrator", func(t *testing.T) {
		service := NewUserService(newUserStoreStub(account), &ruleSourceStub{}, nil, sequentialIDs("user"), now)

		promoted := input
		promoted.IsAdmin = true
		_, err := service.UpdateUser(context.Background(), Principal{UserID: "user-1"}, "user-1", promoted)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("administrators change the admin flag", func(t *testing.T) {
		store := newUserStoreStub(account)
		service := NewUserService(store, &ruleSourceStub{}, nil, sequentialIDs("user"), now)

		promoted := input
		promoted.IsAdmin = true
		updated, err := service.UpdateUser(context.Background(), Principal{UserID: "admin-1", IsAdmin: true}, "user-1", promoted)
		if err != nil {
			t.Fatalf("UpdateUser returned error: %v", err)
		}
		if !updated.IsAdmin {
			t.Fatal("expected the account promoted")
		}
	})

	t.Run("rehashes a changed password", func(t *testing.T) {
		store := newUserStoreStub(account)
		service := NewUserService(store, &ruleSourceStub{}, nil, sequentialIDs("user"), now)

		changed := input
		changed.Password = "new password"
		updated, err := service.UpdateUser(context.Background(), Principal{UserID: "user-1"}, "user-1", changed)
		if err != nil {
			t.Fatalf("UpdateUser returned error: %v", err)
		}
		if updated.PasswordHash == "hash" || updated.PasswordHash == "new password" {
			t.Fatal("expected a fresh password hash")
		}
		if err := VerifyPassword(updated.PasswordHash, "new password"); err != nil {
			t.Fatalf("expected new password to verify: %v", err)
		}
	})
}

func TestUserServiceDeleteUser(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }
	account := persistence.User{ID: "user-1", Username: "pat"}

	t.Run("requires administrator privileges", func(t *testing.T) {
		service := NewUserService(newUserStoreStub(account), &ruleSourceStub{}, nil, sequentialIDs("user"), now)

		if err := service.DeleteUser(context.Background(), Principal{UserID: "user-1"}, "user-1"); !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("removes the account", func(t *testing.T) {
		store := newUserStoreStub(account)
		service := NewUserService(store, &ruleSourceStub{}, nil, sequentialIDs("user"), now)

		if err := service.DeleteUser(context.Background(), Principal{UserID: "admin-1", IsAdmin: true}, "user-1"); err != nil {
			t.Fatalf("DeleteUser returned error: %v", err)
		}
		if len(store.deleted) != 1 || store.deleted[0] != "user-1" {
			t.Fatalf("expected user-1 deleted, got %v", store.deleted)
		}
	})
}

func TestUserServiceListDirectory(t *testing.T) {
	now := func() time.Time { return time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC) }

	open := persistence.User{ID: "user-1", Username: "pat", DisplayName: "Pat Doe", Email: "pat@example.com", ShowEmail: true}
	private := persistence.User{ID: "user-2", Username: "sam", DisplayName: "Sam Roe", Email: "sam@example.com", ShowEmail: false}

	rules := &ruleSourceStub{rules: []persistence.AvailabilityRule{{ID: "rule-1"}}}
	service := NewUserService(newUserStoreStub(open, private), rules, nil, sequentialIDs("user"), now)

	entries, err := service.ListDirectory(context.Background())
	if err != nil {
		t.Fatalf("ListDirectory returned error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	byID := make(map[string]DirectoryEntry, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
	}
	if byID["user-1"].Email != "pat@example.com" {
		t.Fatalf("expected opted-in email visible, got %+v", byID["user-1"])
	}
	if byID["user-2"].Email != "" {
		t.Fatalf("expected opted-out email hidden, got %+v", byID["user-2"])
	}
	if !byID["user-1"].HasAvailability {
		t.Fatal("expected availability flag set when rules exist")
	}
}
