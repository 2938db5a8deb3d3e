package account

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

// ErrInvalidCredentials is returned for an unknown user and for a wrong
// password alike, so callers cannot tell the two apart.
var ErrInvalidCredentials = apperrors.New(apperrors.ErrCodeInvalidCredentials, "invalid login credentials")

// PasswordVerifier checks a client credential against a stored user.
type PasswordVerifier interface {
	VerifyPassword(ctx context.Context, user User, credential Credential) error
}

// Authenticator resolves an identity and checks its password.
type Authenticator struct {
	repo     Repository
	verifier PasswordVerifier
}

func NewAuthenticator(repo Repository, verifier PasswordVerifier) *Authenticator {
	return &Authenticator{repo: repo, verifier: verifier}
}

// Authenticate validates the request shape, then looks the user up and
// verifies the password. Shape errors are reported before any lookup.
func (a *Authenticator) Authenticate(ctx context.Context, identity Identity, credential Credential) (User, error) {
	if err := identity.Validate(); err != nil {
		return User{}, err
	}
	if err := credential.Validate(); err != nil {
		return User{}, err
	}

	user, err := a.repo.FindUser(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			slog.Info("Login for unknown user", "identity", identity.String())
			// Pay the same hashing cost as a known user.
			_ = a.verifier.VerifyPassword(ctx, User{PasswordHash: dummyHash()}, credential)
			return User{}, ErrInvalidCredentials
		}
		slog.Error("Failed to look up user", "identity", identity.String(), "error", err)
		return User{}, apperrors.InternalWrap(err, "failed to look up user")
	}

	if err := a.verifier.VerifyPassword(ctx, user, credential); err != nil {
		slog.Info("Password verification failed", "user_id", user.ID)
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

var (
	dummyHashOnce  sync.Once
	dummyHashValue string
)

// dummyHash is a bcrypt hash no client digest matches.
func dummyHash() string {
	dummyHashOnce.Do(func() {
		hash, err := HashCredential(Digest("unknown user placeholder"))
		if err != nil {
			slog.Error("Failed to build placeholder hash", "error", err)
			return
		}
		dummyHashValue = hash
	})
	return dummyHashValue
}
