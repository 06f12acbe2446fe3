// Package service contains the business logic layer: validation, permission
// rules, and orchestration between the repositories, the token/password
// utilities, and the change feed. Handlers parse HTTP and delegate here;
// repositories only move data. Nothing in this package knows about HTTP.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rafid/todohub/internal/apperror"
	"github.com/rafid/todohub/internal/auth"
	"github.com/rafid/todohub/internal/model"
	"github.com/rafid/todohub/internal/repository"
)

// AuthService is the identity collaborator: sign-up, sign-in, sign-out, and
// session resolution. It also implements the gate's SessionResolver and
// SessionRevoker.
type AuthService struct {
	users     repository.UserRepository
	sessions  repository.SessionRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	logger    *slog.Logger

	// bootstrapAdmin, when set, grants the admin flag to the account that
	// signs up with this email. Every later admin is promoted by an
	// existing one; this seeds the first.
	bootstrapAdmin string
}

// NewAuthService wires the identity operations.
func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:     users,
		sessions:  sessions,
		tokens:    tokens,
		passwords: passwords,
		logger:    logger,
	}
}

// BootstrapAdmin marks an email address to receive the admin flag at
// sign-up. Call before serving requests.
func (s *AuthService) BootstrapAdmin(email string) {
	s.bootstrapAdmin = strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers a new account. Email is normalized (trimmed, lowercased)
// and immutable afterwards. A duplicate email surfaces as ErrConflict so
// the handler can report "already registered" distinctly.
func (s *AuthService) SignUp(ctx context.Context, email, password, fullName string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, apperror.ValidationFailed("email", "a valid email address is required")
	}
	if len(password) < 8 {
		return nil, apperror.ValidationFailed("password", "password must be at least 8 characters")
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, apperror.ValidationFailed("password", err.Error())
	}

	user := &model.User{
		Email:        email,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		IsAdmin:      s.bootstrapAdmin != "" && email == s.bootstrapAdmin,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %s: %w", email, err)
	}

	s.logger.Info("user signed up",
		slog.String("userID", user.ID),
		slog.String("email", user.Email),
	)

	return user, nil
}

// SignInResult bundles the outcome of a successful sign-in: the profile,
// the signed token for the cookie, and the cookie lifetime.
type SignInResult struct {
	User  *model.User
	Token string
	TTL   time.Duration
}

// SignIn checks credentials and opens a session.
//
// Bad email and bad password both return the same ErrUnauthorized - the
// response must not reveal which half was wrong.
//
// LOGIN-TIME BLOCK RE-CHECK:
// The blocked flag is re-read AFTER the credential check and the session is
// only kept if the account is clear. If an admin blocked the account
// between page load and submit, the just-created session is destroyed
// immediately and ErrBlocked is returned - the caller never holds a usable
// token, closing the race between credential check and the first gated
// navigation.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*SignInResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized("invalid email or password")
		}
		return nil, fmt.Errorf("service/auth: looking up %s: %w", email, err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		return nil, apperror.Unauthorized("invalid email or password")
	}

	token, sessionID, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/auth: issuing token for %s: %w", user.ID, err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.tokens.TTL()),
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("service/auth: persisting session for %s: %w", user.ID, err)
	}

	// Re-fetch the blocked flag now that the session exists.
	fresh, err := s.users.GetUserByID(ctx, user.ID)
	if err != nil {
		// Same fail-open stance as the gate: the re-check could not
		// complete; the gate will catch a blocked account on the next
		// navigation.
		s.logger.Error("login block re-check failed",
			slog.String("userID", user.ID),
			slog.String("error", err.Error()),
		)
		fresh = user
	}
	if fresh.IsBlocked {
		if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
			s.logger.Error("destroying session of blocked user failed",
				slog.String("userID", user.ID),
				slog.String("error", err.Error()),
			)
		}
		s.logger.Info("blocked user denied at login", slog.String("userID", user.ID))
		return nil, apperror.Blocked()
	}

	s.logger.Info("user signed in",
		slog.String("userID", user.ID),
		slog.String("sessionID", sessionID),
	)

	return &SignInResult{User: fresh, Token: token, TTL: s.tokens.TTL()}, nil
}

// SignOut destroys the session the token refers to. Unknown or already
// revoked tokens are a no-op: sign-out is idempotent.
func (s *AuthService) SignOut(ctx context.Context, token string) error {
	_, sessionID, err := s.tokens.Validate(token)
	if err != nil {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("service/auth: deleting session %s: %w", sessionID, err)
	}
	return nil
}

// ResolveSession validates a token and confirms its session row is still
// live. This is the gate's SessionResolver: signature, expiry, AND
// non-revocation are all required before a request counts as signed in.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (string, error) {
	userID, sessionID, err := s.tokens.Validate(token)
	if err != nil {
		return "", apperror.Unauthorized("invalid session token")
	}

	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.Unauthorized("session revoked")
		}
		return "", fmt.Errorf("service/auth: loading session %s: %w", sessionID, err)
	}
	if time.Now().After(session.ExpiresAt) {
		// Expired rows are lazily collected on first touch.
		_ = s.sessions.DeleteSession(ctx, sessionID)
		return "", apperror.Unauthorized("session expired")
	}
	if session.UserID != userID {
		// A token whose subject disagrees with the stored row is forged or
		// corrupted either way.
		return "", apperror.Unauthorized("session mismatch")
	}

	return userID, nil
}

// RevokeAllSessions force-invalidates every session of the user. The gate
// calls this when it finds the caller blocked.
func (s *AuthService) RevokeAllSessions(ctx context.Context, userID string) error {
	if err := s.sessions.DeleteAllSessionsForUser(ctx, userID); err != nil {
		return fmt.Errorf("service/auth: revoking sessions for %s: %w", userID, err)
	}
	return nil
}

// GetUserByID exposes profile lookup for the gate and the /api/me handler.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.users.GetUserByID(ctx, id)
}
