package account

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

// InMemoryRepository keeps users in a map. Reads return copies.
type InMemoryRepository struct {
	mutex sync.RWMutex
	users map[uuid.UUID]User
	now   func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		users: make(map[uuid.UUID]User),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) FindUser(ctx context.Context, identity Identity) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return findIn(r.users, identity)
}

func (r *InMemoryRepository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *InMemoryRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if err := params.validate(); err != nil {
		return User{}, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := checkUnique(r.users, params); err != nil {
		return User{}, err
	}
	u := params.toUser(r.now())
	r.users[u.ID] = u
	return cloneUser(u), nil
}

func (r *InMemoryRepository) SetFields(ctx context.Context, id uuid.UUID, fields map[string]string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u = cloneUser(u)
	for name, value := range fields {
		u.Fields[name] = value
	}
	u.UpdatedAt = r.now()
	r.users[id] = u
	return nil
}

func (r *InMemoryRepository) UnsetFields(ctx context.Context, id uuid.UUID, names ...string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	u, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u = cloneUser(u)
	for _, name := range names {
		delete(u.Fields, name)
	}
	u.UpdatedAt = r.now()
	r.users[id] = u
	return nil
}

func findIn(users map[uuid.UUID]User, identity Identity) (User, error) {
	if identity.ID != "" {
		id, err := uuid.Parse(identity.ID)
		if err != nil {
			return User{}, ErrUserNotFound
		}
		if u, ok := users[id]; ok {
			return cloneUser(u), nil
		}
		return User{}, ErrUserNotFound
	}
	for _, u := range users {
		if u.matches(identity) {
			return cloneUser(u), nil
		}
	}
	return User{}, ErrUserNotFound
}

func checkUnique(users map[uuid.UUID]User, params CreateUserParams) error {
	for _, u := range users {
		if params.Username != "" && u.Username == params.Username {
			return apperrors.AlreadyExists("user", params.Username)
		}
		if params.Email != "" && strings.EqualFold(u.Email, params.Email) {
			return apperrors.AlreadyExists("user", params.Email)
		}
	}
	return nil
}
