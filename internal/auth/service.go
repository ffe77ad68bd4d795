package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// TokenType is the scheme clients send access tokens with.
const TokenType = "Bearer"

// Config holds the token settings of a Service.
type Config struct {
	Secret   string
	TokenTTL time.Duration
}

// Service registers accounts, issues access tokens and checks them.
type Service struct {
	users   UserRepository
	revoked RevocationRepository
	cfg     Config
	params  Params
	logger  Logger
	now     func() time.Time

	// dummyHash is verified against when a login names an unknown user so
	// that both paths cost one Argon2id evaluation.
	dummyOnce sync.Once
	dummyHash string
}

// NewService creates an auth service.
func NewService(users UserRepository, revoked RevocationRepository, cfg Config) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}

	return &Service{
		users:   users,
		revoked: revoked,
		cfg:     cfg,
		params:  DefaultParams,
		logger:  noopLogger{},
		now:     time.Now,
	}, nil
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// SetClock replaces the clock used for token issue and expiry checks.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetPasswordParams changes the Argon2id cost used for new hashes.
func (s *Service) SetPasswordParams(p Params) {
	s.params = p
}

// Register creates an account and signs the new user in.
// Returns a *ValidationError for a malformed username or password and
// ErrUsernameExists when the name is taken.
func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	if err := ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := HashPasswordWithParams(password, s.params)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &User{Username: username, PasswordHash: hash, CreatedAt: s.now()}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrUsernameExists) {
			return nil, err
		}
		return nil, fmt.Errorf("registering user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return s.issue(user)
}

// Login checks credentials and returns a new session.
// Unknown users and wrong passwords both yield ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			return nil, fmt.Errorf("looking up user: %w", err)
		}
		s.burnVerify(password)
		s.logger.Debug("login for unknown user", "username", username)
		return nil, ErrInvalidCredentials
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verifying password for user %d: %w", user.ID, err)
	}
	if !ok {
		s.logger.Debug("login with wrong password", "user_id", user.ID)
		return nil, ErrInvalidCredentials
	}

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)
	return s.issue(user)
}

// Authenticate validates an access token and checks it has not been
// revoked. Returns ErrTokenInvalid or ErrTokenRevoked on rejection.
func (s *Service) Authenticate(ctx context.Context, token string) (*Claims, error) {
	claims, err := ParseToken(token, s.cfg.Secret, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}

	revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes the token described by claims until it expires and purges
// revocations that have lapsed.
func (s *Service) Logout(ctx context.Context, claims *Claims) error {
	userID, err := claims.UserID()
	if err != nil {
		return err
	}

	expires := s.now().Add(s.cfg.TokenTTL)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}

	if err := s.revoked.Revoke(ctx, claims.ID, userID, expires); err != nil {
		return err
	}

	purged, err := s.revoked.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Warn("failed to purge expired revocations", "error", err)
	} else if purged > 0 {
		s.logger.Debug("purged expired revocations", "count", purged)
	}

	s.logger.Info("user logged out", "user_id", userID)
	return nil
}

// CurrentUser loads the account a token belongs to.
func (s *Service) CurrentUser(ctx context.Context, claims *Claims) (*User, error) {
	userID, err := claims.UserID()
	if err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}

// EnsureBootstrapUser creates an account on first start when no users
// exist. It reports whether an account was created.
func (s *Service) EnsureBootstrapUser(ctx context.Context, username, password string) (bool, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("checking user count: %w", err)
	}

	if count > 0 {
		s.logger.Debug("users exist, skipping bootstrap user")
		return false, nil
	}

	if _, err := s.Register(ctx, username, password); err != nil {
		return false, fmt.Errorf("creating bootstrap user: %w", err)
	}

	s.logger.Warn("bootstrap user created", "username", username, "action_required", "change this password")
	return true, nil
}

func (s *Service) issue(user *User) (*Session, error) {
	token, _, err := GenerateAccessToken(user, s.cfg.Secret, s.cfg.TokenTTL, s.now())
	if err != nil {
		return nil, err
	}

	return &Session{
		User:        user,
		AccessToken: token,
		TokenType:   TokenType,
		ExpiresIn:   int(s.cfg.TokenTTL.Seconds()),
	}, nil
}

func (s *Service) burnVerify(password string) {
	s.dummyOnce.Do(func() {
		h, err := HashPasswordWithParams("not-a-real-password", s.params)
		if err == nil {
			s.dummyHash = h
		}
	})
	if s.dummyHash != "" {
		_, _ = VerifyPassword(password, s.dummyHash) //nolint:errcheck // result discarded
	}
}
