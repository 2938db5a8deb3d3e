package tokengenerator

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims carried by a session token. user_id duplicates the subject so the
// jwtauth based middleware can read it straight from the claim map.
type Claims struct {
	UserID    string `json:"user_id"`
	LoginType string `json:"login_type,omitempty"`
	jwt.RegisteredClaims
}

// TokenGenerator issues and checks session tokens.
type TokenGenerator interface {
	GenerateToken(userID uuid.UUID, loginType string, expiry time.Duration) (string, time.Time, error)
	ParseToken(tokenStr string) (*Claims, error)
}

// JwtTokenGenerator signs HS256 tokens with a shared secret.
type JwtTokenGenerator struct {
	Secret string
	Issuer string
	now    func() time.Time
}

func NewJwtTokenGenerator(secret, issuer string) *JwtTokenGenerator {
	return &JwtTokenGenerator{
		Secret: secret,
		Issuer: issuer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (g *JwtTokenGenerator) GenerateToken(userID uuid.UUID, loginType string, expiry time.Duration) (string, time.Time, error) {
	now := g.now()
	claims := Claims{
		UserID:    userID.String(),
		LoginType: loginType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-1 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   userID.String(),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed sign JWT Claim string!", "err", err)
		return "", time.Time{}, err
	}
	return ss, claims.ExpiresAt.Time, nil
}

func (g *JwtTokenGenerator) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(g.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.Issuer),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
