package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/example/appointment-scheduler/internal/persistence"
)

// authClaims are the JWT claims carried by an issued token.
type authClaims struct {
	IsAdmin bool `json:"adm"`
	jwt.RegisteredClaims
}

// AuthService authenticates local users and issues signed bearer tokens.
type AuthService struct {
	users    UserStore
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewAuthService wires dependencies for authentication.
func NewAuthService(users UserStore, secret []byte, tokenTTL time.Duration, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(users, secret, tokenTTL, now, nil)
}

// NewAuthServiceWithLogger wires dependencies with an explicit base logger.
func NewAuthServiceWithLogger(users UserStore, secret []byte, tokenTTL time.Duration, now func() time.Time, logger *slog.Logger) *AuthService {
	if now == nil {
		now = time.Now
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{
		users:    users,
		secret:   secret,
		tokenTTL: tokenTTL,
		now:      now,
		logger:   defaultLogger(logger),
	}
}

// Authenticate verifies a username/password pair and issues a token. Unknown
// usernames and wrong passwords are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (AuthenticateResult, error) {
	if s == nil {
		return AuthenticateResult{}, fmt.Errorf("AuthService is nil")
	}

	logger := serviceLogger(ctx, s.logger, "auth", "authenticate", "username", params.Username)

	vErr := &ValidationError{}
	if params.Username == "" {
		vErr.add("username", "username is required")
	}
	if params.Password == "" {
		vErr.add("password", "password is required")
	}
	if vErr.HasErrors() {
		return AuthenticateResult{}, vErr
	}

	user, err := s.users.GetUserByUsername(ctx, params.Username)
	if err != nil {
		if isNotFound(err) {
			return AuthenticateResult{}, ErrInvalidCredentials
		}
		return AuthenticateResult{}, mapRepoError(err)
	}

	if user.AuthMethod != AuthMethodLocal || user.PasswordHash == "" {
		return AuthenticateResult{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(user.PasswordHash, params.Password); err != nil {
		logger.InfoContext(ctx, "login rejected")
		return AuthenticateResult{}, ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := authClaims{
		IsAdmin: user.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return AuthenticateResult{}, fmt.Errorf("sign token: %w", err)
	}

	logger.InfoContext(ctx, "login accepted", "user_id", user.ID)
	return AuthenticateResult{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    user.ID,
		IsAdmin:   user.IsAdmin,
	}, nil
}

// ValidateToken parses and verifies a bearer token, returning the principal
// it encodes.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("AuthService is nil")
	}

	claims := &authClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil || !parsed.Valid {
		return Principal{}, ErrUnauthorized
	}

	// Time claims are checked against the service clock, not the wall clock
	// the library would use.
	now := s.now()
	if !claims.VerifyExpiresAt(now, true) || !claims.VerifyNotBefore(now, false) {
		return Principal{}, ErrUnauthorized
	}
	if claims.Subject == "" {
		return Principal{}, ErrUnauthorized
	}

	return Principal{UserID: claims.Subject, IsAdmin: claims.IsAdmin}, nil
}

// CurrentUser loads the account behind a validated principal. A token whose
// user no longer exists is treated as unauthorized.
func (s *AuthService) CurrentUser(ctx context.Context, principal Principal) (persistence.User, error) {
	if s == nil {
		return persistence.User{}, fmt.Errorf("AuthService is nil")
	}

	user, err := s.users.GetUser(ctx, principal.UserID)
	if err != nil {
		if errors.Is(mapRepoError(err), ErrNotFound) {
			return persistence.User{}, ErrUnauthorized
		}
		return persistence.User{}, mapRepoError(err)
	}
	return user, nil
}
