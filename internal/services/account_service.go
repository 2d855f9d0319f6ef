package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/amqp"
	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/storage"
)

// DefaultSessionTTL is the rolling session lifetime.
const DefaultSessionTTL = 30 * 24 * time.Hour

// AccountStore is the persistence AccountService needs.
type AccountStore interface {
	storage.UserStore
	storage.SessionStore
}

// SessionToken is a signed cookie value and the instant it stops being valid.
type SessionToken struct {
	Value     string
	ExpiresAt time.Time
}

// AccountService handles registration, login sessions and profile changes.
type AccountService struct {
	store AccountStore
	codec *auth.SessionCodec
	ttl   time.Duration
	options
}

func NewAccountService(store AccountStore, codec *auth.SessionCodec, sessionTTL time.Duration, opts ...Option) *AccountService {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &AccountService{
		store:   store,
		codec:   codec,
		ttl:     sessionTTL,
		options: buildOptions(opts),
	}
}

// Register creates a user. The username is trimmed before validation.
func (s *AccountService) Register(ctx context.Context, username, password string) (core.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return core.User{}, &core.ValidationError{Msg: "Please provide username and password"}
	}
	if err := core.ValidateUsername(username); err != nil {
		return core.User{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u, err := s.store.CreateUser(ctx, username, hash, s.now())
	if err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "User registered", "user_id", u.ID, "username", u.Username)
	return u, nil
}

// Authenticate returns the user whose password matches, or ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (core.User, error) {
	u, err := s.store.UserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrInvalidCredentials
	}
	if err != nil {
		return core.User{}, err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return core.User{}, core.ErrInvalidCredentials
	}
	return u, nil
}

// StartSession stores a new session row for u and signs its cookie value.
func (s *AccountService) StartSession(ctx context.Context, u core.User) (SessionToken, error) {
	now := s.now()
	sess := core.Session{
		ID:           uuid.NewString(),
		UserID:       u.ID,
		ExpiresAt:    now.Add(s.ttl),
		LastActivity: now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return SessionToken{}, err
	}
	return s.sign(sess, now)
}

// ResolveSession maps a cookie value to its user. Past the session's
// half-life the expiry is pushed forward and a fresh token is returned in
// renewed; otherwise renewed is nil.
func (s *AccountService) ResolveSession(ctx context.Context, token string) (u core.User, renewed *SessionToken, err error) {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return core.User{}, nil, core.ErrUnauthenticated
	}

	sess, err := s.store.SessionByID(ctx, claims.SessionID)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, nil, core.ErrUnauthenticated
	}
	if err != nil {
		return core.User{}, nil, err
	}

	now := s.now()
	if sess.UserID != claims.UserID || !now.Before(sess.ExpiresAt) {
		if err := s.store.DeleteSession(ctx, sess.ID); err != nil {
			slog.WarnContext(ctx, "Failed to drop stale session", "error", err)
		}
		return core.User{}, nil, core.ErrUnauthenticated
	}

	u, err = s.store.UserByID(ctx, sess.UserID)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, nil, core.ErrUnauthenticated
	}
	if err != nil {
		return core.User{}, nil, err
	}

	if sess.ExpiresAt.Sub(now) < s.ttl/2 {
		sess.LastActivity = now
		sess.ExpiresAt = now.Add(s.ttl)
		if err := s.store.TouchSession(ctx, sess.ID, sess.LastActivity, sess.ExpiresAt); err != nil {
			return core.User{}, nil, err
		}
		tok, err := s.sign(sess, now)
		if err != nil {
			return core.User{}, nil, err
		}
		renewed = &tok
	}
	return u, renewed, nil
}

// EndSession deletes the session named by token. Invalid tokens are ignored.
func (s *AccountService) EndSession(ctx context.Context, token string) error {
	claims, err := s.codec.Decode(token)
	if err != nil {
		return nil
	}
	return s.store.DeleteSession(ctx, claims.SessionID)
}

// ChangeUsername renames the authenticated user.
func (s *AccountService) ChangeUsername(ctx context.Context, newUsername string) (core.User, error) {
	u, err := auth.RequireUser(ctx)
	if err != nil {
		return core.User{}, err
	}
	newUsername = strings.TrimSpace(newUsername)
	if err := core.ValidateUsername(newUsername); err != nil {
		return core.User{}, err
	}
	if newUsername == u.Username {
		return u, nil
	}
	if err := s.store.UpdateUsername(ctx, u.ID, newUsername); err != nil {
		return core.User{}, err
	}

	slog.InfoContext(ctx, "Username changed", "user_id", u.ID, "username", newUsername)
	u.Username = newUsername
	return u, nil
}

// ChangePassword replaces the authenticated user's password after checking
// the current one.
func (s *AccountService) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	u, err := s.currentUser(ctx)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, oldPassword) {
		return &core.ValidationError{Field: "old_password", Msg: "Old password is incorrect."}
	}
	if err := core.ValidateNewPassword(newPassword); err != nil {
		return err
	}

	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Password changed", "user_id", u.ID)
	return nil
}

// DeleteAccount removes the authenticated user with all of their expenses
// and sessions once password matches.
func (s *AccountService) DeleteAccount(ctx context.Context, password string) error {
	u, err := s.currentUser(ctx)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(u.PasswordHash, password) {
		return &core.ValidationError{Field: "password", Msg: "Incorrect password. Account not deleted."}
	}
	if err := s.store.DeleteUser(ctx, u.ID); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}

	s.invalidate(u.ID)
	s.publish(ctx, amqp.NewAccountDeleted(u.ID))
	slog.InfoContext(ctx, "Account deleted", "user_id", u.ID)
	return nil
}

// currentUser reloads the authenticated user so password checks see the
// stored hash rather than whatever the context carried.
func (s *AccountService) currentUser(ctx context.Context) (core.User, error) {
	u, err := auth.RequireUser(ctx)
	if err != nil {
		return core.User{}, err
	}
	fresh, err := s.store.UserByID(ctx, u.ID)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrUnauthenticated
	}
	return fresh, err
}

func (s *AccountService) sign(sess core.Session, now time.Time) (SessionToken, error) {
	v, err := s.codec.Encode(sess.ID, sess.UserID, now, sess.ExpiresAt)
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Value: v, ExpiresAt: sess.ExpiresAt}, nil
}
