package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// AuthMethodLocal marks accounts that authenticate with a stored password
// hash.
const AuthMethodLocal = "local"

// UserStore captures the persistence interactions for account management.
type UserStore interface {
	CreateUser(ctx context.Context, user persistence.User) error
	UpdateUser(ctx context.Context, user persistence.User) error
	GetUser(ctx context.Context, id string) (persistence.User, error)
	GetUserByUsername(ctx context.Context, username string) (persistence.User, error)
	ListUsers(ctx context.Context) ([]persistence.User, error)
	CountAdmins(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id string) error
}

// FutureRuleApplier provisions batch template rows onto a new user.
type FutureRuleApplier interface {
	ApplyFutureRules(ctx context.Context, userID string) error
}

// DirectoryEntry is the public view of a bookable provider.
type DirectoryEntry struct {
	ID              string
	DisplayName     string
	Email           string
	Position        string
	Location        string
	HasAvailability bool
}

// UserService manages accounts and the public provider directory.
type UserService struct {
	users       UserStore
	rules       SlotRuleSource
	provisioner FutureRuleApplier
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for account management.
func NewUserService(users UserStore, rules SlotRuleSource, provisioner FutureRuleApplier, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, rules, provisioner, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies with an explicit base logger.
func NewUserServiceWithLogger(users UserStore, rules SlotRuleSource, provisioner FutureRuleApplier, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		rules:       rules,
		provisioner: provisioner,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateUser stores a new account and provisions applyToFuture batch rows
// onto it. Provisioning failures are logged, not returned.
func (s *UserService) CreateUser(ctx context.Context, principal Principal, input UserInput) (persistence.User, error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return persistence.User{}, ErrUnauthorized
	}
	return s.create(ctx, input)
}

// Setup creates the initial administrator account. It only works while no
// admin exists.
func (s *UserService) Setup(ctx context.Context, input UserInput) (persistence.User, error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("UserService is nil")
	}

	admins, err := s.users.CountAdmins(ctx)
	if err != nil {
		return persistence.User{}, mapRepoError(err)
	}
	if admins > 0 {
		return persistence.User{}, ErrAlreadyExists
	}

	input.IsAdmin = true
	return s.create(ctx, input)
}

// SetupRequired reports whether no administrator account exists yet.
func (s *UserService) SetupRequired(ctx context.Context) (bool, error) {
	if s == nil {
		return false, fmt.Errorf("UserService is nil")
	}
	admins, err := s.users.CountAdmins(ctx)
	if err != nil {
		return false, mapRepoError(err)
	}
	return admins == 0, nil
}

func (s *UserService) create(ctx context.Context, input UserInput) (persistence.User, error) {
	logger := serviceLogger(ctx, s.logger, "user", "create", "username", input.Username)

	vErr := &ValidationError{}
	validateUserCore(input, vErr)
	if strings.TrimSpace(input.Password) == "" {
		vErr.add("password", "password is required")
	}
	if vErr.HasErrors() {
		return persistence.User{}, vErr
	}

	hash, err := CreatePasswordHash(input.Password)
	if err != nil {
		return persistence.User{}, err
	}

	authMethod := input.AuthMethod
	if authMethod == "" {
		authMethod = AuthMethodLocal
	}

	createdAt := s.now()
	user := persistence.User{
		ID:           s.idGenerator(),
		Username:     strings.TrimSpace(input.Username),
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Email:        strings.TrimSpace(input.Email),
		AuthMethod:   authMethod,
		Position:     input.Position,
		Location:     input.Location,
		ShowEmail:    input.ShowEmail,
		IsAdmin:      input.IsAdmin,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return persistence.User{}, mapRepoError(err)
	}

	logger.InfoContext(ctx, "user created", "user_id", user.ID, "is_admin", user.IsAdmin)

	if s.provisioner != nil {
		if err := s.provisioner.ApplyFutureRules(ctx, user.ID); err != nil {
			logger.WarnContext(ctx, "future rule provisioning failed", "user_id", user.ID, "error", err)
		}
	}

	return user, nil
}

// UpdateUser applies account changes. Users may edit their own profile;
// only administrators may edit others or change the admin flag.
func (s *UserService) UpdateUser(ctx context.Context, principal Principal, userID string, input UserInput) (persistence.User, error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("UserService is nil")
	}
	if userID != principal.UserID && !principal.IsAdmin {
		return persistence.User{}, ErrUnauthorized
	}

	existing, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return persistence.User{}, mapRepoError(err)
	}

	vErr := &ValidationError{}
	validateUserCore(input, vErr)
	if vErr.HasErrors() {
		return persistence.User{}, vErr
	}

	if input.IsAdmin != existing.IsAdmin && !principal.IsAdmin {
		return persistence.User{}, ErrUnauthorized
	}

	updated := existing
	updated.Username = strings.TrimSpace(input.Username)
	updated.DisplayName = strings.TrimSpace(input.DisplayName)
	updated.Email = strings.TrimSpace(input.Email)
	updated.Position = input.Position
	updated.Location = input.Location
	updated.ShowEmail = input.ShowEmail
	if principal.IsAdmin {
		updated.IsAdmin = input.IsAdmin
	}
	if strings.TrimSpace(input.Password) != "" {
		hash, err := CreatePasswordHash(input.Password)
		if err != nil {
			return persistence.User{}, err
		}
		updated.PasswordHash = hash
	}
	updated.UpdatedAt = s.now()

	if err := s.users.UpdateUser(ctx, updated); err != nil {
		return persistence.User{}, mapRepoError(err)
	}
	return updated, nil
}

// DeleteUser removes an account; owned rules, time off, topics, and
// memberships go with it.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return ErrUnauthorized
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

// GetUser returns a single account.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (persistence.User, error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("UserService is nil")
	}
	if userID != principal.UserID && !principal.IsAdmin {
		return persistence.User{}, ErrUnauthorized
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return persistence.User{}, mapRepoError(err)
	}
	return user, nil
}

// ListUsers returns every account.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]persistence.User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.IsAdmin {
		return nil, ErrUnauthorized
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return users, nil
}

// ListDirectory returns the public provider directory. Email addresses only
// appear when the provider opted in, and HasAvailability reflects whether the
// provider has any rules at all.
func (s *UserService) ListDirectory(ctx context.Context) ([]DirectoryEntry, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, mapRepoError(err)
	}

	entries := make([]DirectoryEntry, 0, len(users))
	for _, user := range users {
		entry := DirectoryEntry{
			ID:          user.ID,
			DisplayName: user.DisplayName,
			Position:    user.Position,
			Location:    user.Location,
		}
		if user.ShowEmail {
			entry.Email = user.Email
		}
		if s.rules != nil {
			rules, err := s.rules.ListRulesForUser(ctx, user.ID)
			if err != nil {
				return nil, mapRepoError(err)
			}
			entry.HasAvailability = len(rules) > 0
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func validateUserCore(input UserInput, vErr *ValidationError) {
	if strings.TrimSpace(input.Username) == "" {
		vErr.add("username", "username is required")
	}
	if strings.TrimSpace(input.DisplayName) == "" {
		vErr.add("display_name", "display name is required")
	}
	if strings.TrimSpace(input.Email) != "" {
		if _, err := mail.ParseAddress(input.Email); err != nil {
			vErr.add("email", "email must be a valid address")
		}
	}
}
