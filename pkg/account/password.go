package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// DigestAlgorithm is the only client digest the verifier understands.
const DigestAlgorithm = "sha-256"

// ErrPasswordMismatch is returned when the digest does not match the stored hash.
var ErrPasswordMismatch = errors.New("password mismatch")

// Digest turns a plaintext password into the credential a client sends:
// lowercase hex SHA-256.
func Digest(plaintext string) Credential {
	sum := sha256.Sum256([]byte(plaintext))
	return Credential{
		Digest:    hex.EncodeToString(sum[:]),
		Algorithm: DigestAlgorithm,
	}
}

// HashCredential produces the bcrypt hash stored for a user.
func HashCredential(credential Credential) (string, error) {
	if err := credential.Validate(); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(credential.Digest), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// BcryptVerifier checks a client digest against the user's bcrypt hash.
type BcryptVerifier struct{}

func NewBcryptVerifier() BcryptVerifier {
	return BcryptVerifier{}
}

func (BcryptVerifier) VerifyPassword(ctx context.Context, user User, credential Credential) error {
	if credential.Algorithm != DigestAlgorithm {
		slog.Warn("Unsupported password digest algorithm", "user_id", user.ID, "algorithm", credential.Algorithm)
		return ErrPasswordMismatch
	}
	if user.PasswordHash == "" {
		return ErrPasswordMismatch
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential.Digest)); err != nil {
		return ErrPasswordMismatch
	}
	return nil
}
