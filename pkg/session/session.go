// Package session completes logins. Every completion is a logingate.LoginAttempt
// checked by the gate; only approved attempts receive a session token.
package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-2fa/pkg/account"
	"github.com/tendant/simple-2fa/pkg/client"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
	"github.com/tendant/simple-2fa/pkg/logingate"
	"github.com/tendant/simple-2fa/pkg/tokengenerator"
)

var (
	ErrLoginDenied          = apperrors.New(apperrors.ErrCodeLoginDenied, "login forbidden")
	ErrTokenInvalid         = apperrors.New(apperrors.ErrCodeTokenInvalid, "invalid or expired token")
	ErrAlreadyAuthenticated = apperrors.Forbidden("permission denied")
)

const DefaultExpiry = time.Hour

// LoginResult is what a successful login hands back to the caller.
type LoginResult struct {
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Manager struct {
	gate   *logingate.Gate
	tokens tokengenerator.TokenGenerator
	auth   *account.Authenticator
	repo   account.Repository
	expiry time.Duration
}

type Option func(*Manager)

func WithExpiry(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.expiry = d
		}
	}
}

func NewManager(gate *logingate.Gate, tokens tokengenerator.TokenGenerator, repo account.Repository, verifier account.PasswordVerifier, opts ...Option) *Manager {
	m := &Manager{
		gate:   gate,
		tokens: tokens,
		auth:   account.NewAuthenticator(repo, verifier),
		repo:   repo,
		expiry: DefaultExpiry,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AttemptLogin asks the gate about attempt and issues a token when it agrees.
func (m *Manager) AttemptLogin(ctx context.Context, attempt logingate.LoginAttempt) (LoginResult, error) {
	if !m.gate.Validate(attempt) {
		slog.Warn("Login attempt denied", "type", attempt.Type, "method", attempt.MethodName, "user_id", attempt.UserID)
		return LoginResult{}, ErrLoginDenied
	}

	token, expiresAt, err := m.tokens.GenerateToken(attempt.UserID, attempt.Type, m.expiry)
	if err != nil {
		return LoginResult{}, apperrors.InternalWrap(err, "failed to issue session token")
	}
	slog.Info("Login completed", "type", attempt.Type, "user_id", attempt.UserID)
	return LoginResult{UserID: attempt.UserID, Token: token, ExpiresAt: expiresAt}, nil
}

// PasswordLogin is an ordinary password login. The credentials are checked,
// but the gate refuses the attempt unless an override approves it, so a
// second factor cannot be skipped through this path.
func (m *Manager) PasswordLogin(ctx context.Context, identity account.Identity, credential account.Credential) (LoginResult, error) {
	if _, ok := client.AuthUserFromContext(ctx); ok {
		return LoginResult{}, ErrAlreadyAuthenticated
	}
	user, err := m.auth.Authenticate(ctx, identity, credential)
	if err != nil {
		return LoginResult{}, err
	}
	return m.AttemptLogin(ctx, logingate.LoginAttempt{
		Type:       logingate.TypePassword,
		MethodName: logingate.MethodLogin,
		UserID:     user.ID,
		Allowed:    true,
	})
}

// Resume exchanges a valid session token for a fresh one.
func (m *Manager) Resume(ctx context.Context, token string) (LoginResult, error) {
	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return LoginResult{}, ErrTokenInvalid
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return LoginResult{}, ErrTokenInvalid
	}
	if _, err := m.repo.GetUser(ctx, userID); err != nil {
		if errors.Is(err, account.ErrUserNotFound) {
			return LoginResult{}, ErrTokenInvalid
		}
		return LoginResult{}, apperrors.InternalWrap(err, "failed to load user")
	}
	return m.AttemptLogin(ctx, logingate.LoginAttempt{
		Type:       logingate.TypeResume,
		MethodName: logingate.MethodLogin,
		UserID:     userID,
		Allowed:    true,
	})
}
