// Package services contains the business logic of the authentication
// server. AuthService orchestrates credential verification, token
// issuance, and session rotation for the five user-facing flows.
package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/identra/apiserver/internal/events"
	"github.com/identra/apiserver/internal/store"
	"github.com/identra/apiserver/types"
)

// UserStore defines the persistence operations AuthService depends on.
type UserStore interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByLogin(ctx context.Context, login string) (types.User, error)
	Create(ctx context.Context, nu store.NewUser) (types.User, error)
	UpdatePassword(ctx context.Context, id, rawPassword string) error
	SessionStore
}

// PasswordVerifier checks a presented password against a stored hash.
type PasswordVerifier interface {
	Verify(rawPassword, hash string) bool
}

// RegisterParams are the pre-parsed inputs to Register.
type RegisterParams struct {
	FullName string
	Username string
	Email    string
	Password string
}

// LoginParams are the pre-parsed inputs to Login. At least one of
// Username and Email must be set.
type LoginParams struct {
	Username string
	Email    string
	Password string
}

// AuthService implements the register, login, logout, change-password,
// and current-user flows.
type AuthService struct {
	users     UserStore
	passwords PasswordVerifier
	sessions  *SessionRegistry
	events    events.Publisher
	logger    *slog.Logger
}

func NewAuthService(users UserStore, passwords PasswordVerifier, sessions *SessionRegistry, publisher events.Publisher, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &AuthService{
		users:     users,
		passwords: passwords,
		sessions:  sessions,
		events:    publisher,
		logger:    logger,
	}
}

// Register creates a user and establishes its first session. The
// returned user is re-fetched after creation so it reflects the
// persisted canonical values, with secrets stripped on serialization.
func (s *AuthService) Register(ctx context.Context, p RegisterParams) (types.User, TokenPair, error) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.Username = strings.TrimSpace(p.Username)
	p.Email = strings.TrimSpace(p.Email)
	if p.FullName == "" || p.Username == "" || p.Email == "" || p.Password == "" {
		return types.User{}, TokenPair{}, ErrBadRequest
	}

	for _, login := range []string{p.Email, p.Username} {
		if err := s.checkAvailable(ctx, login); err != nil {
			return types.User{}, TokenPair{}, err
		}
	}

	created, err := s.users.Create(ctx, store.NewUser{
		FullName: p.FullName,
		Username: p.Username,
		Email:    p.Email,
		Password: p.Password,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, TokenPair{}, ErrConflict
		}
		s.logger.Error("creating user", "error", err)
		return types.User{}, TokenPair{}, ErrInternal
	}

	user, err := s.users.GetByID(ctx, created.ID)
	if err != nil {
		s.logger.Error("fetching created user", "user_id", created.ID, "error", err)
		return types.User{}, TokenPair{}, ErrInternal
	}

	// The user row already exists at this point; a session failure
	// leaves a registered account with no active session. The caller
	// sees ErrInternal and may retry via login.
	pair, err := s.sessions.Establish(ctx, user.ID)
	if err != nil {
		s.logger.Error("establishing session", "user_id", user.ID, "error", err)
		return types.User{}, TokenPair{}, ErrInternal
	}

	s.publish(ctx, events.TypeUserRegistered, user.ID)
	return user, pair, nil
}

// Login verifies credentials and establishes a new session, rotating
// any previously stored refresh token.
func (s *AuthService) Login(ctx context.Context, p LoginParams) (types.User, TokenPair, error) {
	login := strings.TrimSpace(p.Username)
	if login == "" {
		login = strings.TrimSpace(p.Email)
	}
	if login == "" || p.Password == "" {
		return types.User{}, TokenPair{}, ErrBadRequest
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, TokenPair{}, ErrNotFound
		}
		s.logger.Error("looking up user", "error", err)
		return types.User{}, TokenPair{}, ErrInternal
	}

	if !s.passwords.Verify(p.Password, user.PasswordHash) {
		return types.User{}, TokenPair{}, ErrUnauthorized
	}

	pair, err := s.sessions.Establish(ctx, user.ID)
	if err != nil {
		s.logger.Error("establishing session", "user_id", user.ID, "error", err)
		return types.User{}, TokenPair{}, ErrInternal
	}

	s.publish(ctx, events.TypeUserLoggedIn, user.ID)
	return user, pair, nil
}

// Logout revokes the user's stored refresh token. It is idempotent:
// revoking an already-revoked or missing session still succeeds.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if err := s.sessions.Revoke(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		s.logger.Error("revoking session", "user_id", userID, "error", err)
		return ErrInternal
	}
	s.publish(ctx, events.TypeUserLoggedOut, userID)
	return nil
}

// ChangePassword verifies the old password and persists a hash of the
// new one. The stored refresh token is left untouched; existing
// sessions stay valid.
func (s *AuthService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return ErrBadRequest
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		s.logger.Error("looking up user", "user_id", userID, "error", err)
		return ErrInternal
	}

	if !s.passwords.Verify(oldPassword, user.PasswordHash) {
		return ErrBadRequest
	}

	if err := s.users.UpdatePassword(ctx, userID, newPassword); err != nil {
		s.logger.Error("updating password", "user_id", userID, "error", err)
		return ErrInternal
	}

	s.publish(ctx, events.TypePasswordChanged, userID)
	return nil
}

// CurrentUser returns the authenticated user's public view.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (types.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		s.logger.Error("looking up user", "user_id", userID, "error", err)
		return types.User{}, ErrInternal
	}
	return user, nil
}

func (s *AuthService) checkAvailable(ctx context.Context, login string) error {
	_, err := s.users.GetByLogin(ctx, login)
	if err == nil {
		return ErrConflict
	}
	if !errors.Is(err, store.ErrNotFound) {
		s.logger.Error("checking login availability", "error", err)
		return ErrInternal
	}
	return nil
}

func (s *AuthService) publish(ctx context.Context, eventType, userID string) {
	event := events.Event{Type: eventType, UserID: userID, At: time.Now()}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("publishing auth event", "type", eventType, "user_id", userID, "error", err)
	}
}
