package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository stores users and their per-user fields. The pending second
// factor code lives in those fields.
type Repository interface {
	FindUser(ctx context.Context, identity Identity) (User, error)
	GetUser(ctx context.Context, id uuid.UUID) (User, error)
	CreateUser(ctx context.Context, params CreateUserParams) (User, error)
	// SetFields overwrites the given fields in one write. Other fields are
	// kept. Last write wins.
	SetFields(ctx context.Context, id uuid.UUID, fields map[string]string) error
	// UnsetFields removes the named fields. Missing fields are ignored.
	UnsetFields(ctx context.Context, id uuid.UUID, names ...string) error
}
