package client

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// AuthUser is the user a request is already authenticated as.
type AuthUser struct {
	UserId    string `json:"user_id,omitempty"`
	LoginType string `json:"login_type,omitempty"`
	// Parsed form of UserId
	UserUuid uuid.UUID `json:"-"`
}

func (i AuthUser) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user", i.UserId),
		slog.String("login_type", i.LoginType),
	)
}

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "simple-2fa context value " + k.name
}

var (
	AuthUserKey = &contextKey{"AuthUser"}
)

// WithAuthUser returns a copy of ctx carrying user.
func WithAuthUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, AuthUserKey, user)
}

// AuthUserFromContext returns the authenticated user, if any.
func AuthUserFromContext(ctx context.Context) (*AuthUser, bool) {
	user, ok := ctx.Value(AuthUserKey).(*AuthUser)
	if !ok || user == nil {
		return nil, false
	}
	return user, true
}
