package account

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileRepository keeps users in a single JSON file. Every write rewrites the
// file atomically and rolls the in-memory state back if that fails.
type FileRepository struct {
	path  string
	users map[uuid.UUID]User
	mutex sync.RWMutex
}

// NewFileRepository loads path, creating its directory if needed. A missing
// file starts an empty store.
func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &FileRepository{
		path:  path,
		users: make(map[uuid.UUID]User),
	}
	if err := repo.load(); err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}
	return repo, nil
}

func (r *FileRepository) FindUser(ctx context.Context, identity Identity) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return findIn(r.users, identity)
}

func (r *FileRepository) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return cloneUser(u), nil
}

func (r *FileRepository) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if err := params.validate(); err != nil {
		return User{}, err
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if err := checkUnique(r.users, params); err != nil {
		return User{}, err
	}
	u := params.toUser(time.Now().UTC())
	r.users[u.ID] = u

	if err := r.save(); err != nil {
		// Rollback
		delete(r.users, u.ID)
		return User{}, fmt.Errorf("failed to save: %w", err)
	}
	return cloneUser(u), nil
}

func (r *FileRepository) SetFields(ctx context.Context, id uuid.UUID, fields map[string]string) error {
	return r.update(id, func(u *User) {
		for name, value := range fields {
			u.Fields[name] = value
		}
	})
}

func (r *FileRepository) UnsetFields(ctx context.Context, id uuid.UUID, names ...string) error {
	return r.update(id, func(u *User) {
		for _, name := range names {
			delete(u.Fields, name)
		}
	})
}

func (r *FileRepository) update(id uuid.UUID, fn func(*User)) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	prev, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	u := cloneUser(prev)
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.users[id] = u

	if err := r.save(); err != nil {
		// Rollback
		r.users[id] = prev
		return fmt.Errorf("failed to save: %w", err)
	}
	return nil
}

// load reads users from the file
func (r *FileRepository) load() error {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}

	var users []User
	if err := json.Unmarshal(data, &users); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	for _, u := range users {
		if u.Fields == nil {
			u.Fields = map[string]string{}
		}
		r.users[u.ID] = u
	}
	return nil
}

// save writes users to the file atomically
func (r *FileRepository) save() error {
	users := make([]User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	tempFile := r.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, r.path); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}
