package account

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

var (
	// ErrUserNotFound is returned by repositories when no user matches.
	ErrUserNotFound = errors.New("user not found")

	ErrInvalidIdentity   = apperrors.ValidationFailed("user must have exactly one field")
	ErrInvalidCredential = apperrors.ValidationFailed("password must have a digest and an algorithm")
)

// Identity selects a user by exactly one of id, username or email.
type Identity struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`

	// set when decoded JSON named an unknown or empty field
	invalid bool
}

// UnmarshalJSON requires an object with exactly one known, non-empty string
// field. Anything else decodes to an Identity that fails Validate.
func (i *Identity) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Identity{invalid: len(raw) != 1}
	for key, value := range raw {
		var v string
		if err := json.Unmarshal(value, &v); err != nil || v == "" {
			i.invalid = true
			continue
		}
		switch key {
		case "id":
			i.ID = v
		case "username":
			i.Username = v
		case "email":
			i.Email = v
		default:
			i.invalid = true
		}
	}
	return nil
}

// IdentityFor builds an Identity from a single login string: anything with an
// '@' is treated as an email address, everything else as a username.
func IdentityFor(login string) Identity {
	if strings.Contains(login, "@") {
		return Identity{Email: login}
	}
	return Identity{Username: login}
}

// Validate checks that exactly one selector is set.
func (i Identity) Validate() error {
	if i.invalid {
		return ErrInvalidIdentity
	}
	set := 0
	for _, v := range []string{i.ID, i.Username, i.Email} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return ErrInvalidIdentity
	}
	return nil
}

func (i Identity) String() string {
	switch {
	case i.ID != "":
		return "id:" + i.ID
	case i.Username != "":
		return "username:" + i.Username
	case i.Email != "":
		return "email:" + i.Email
	}
	return "<empty>"
}

// Credential is a password digest computed by the client. The server never
// sees the plaintext.
type Credential struct {
	Digest    string `json:"digest"`
	Algorithm string `json:"algorithm"`
}

func (c Credential) Validate() error {
	if c.Digest == "" || c.Algorithm == "" {
		return ErrInvalidCredential
	}
	return nil
}

type Profile struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type User struct {
	ID               uuid.UUID         `json:"id"`
	Username         string            `json:"username,omitempty"`
	Email            string            `json:"email,omitempty"`
	PasswordHash     string            `json:"password_hash"`
	TwoFactorEnabled bool              `json:"two_factor_enabled"`
	Profile          Profile           `json:"profile"`
	Fields           map[string]string `json:"fields,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// Field returns the value stored under name and whether it was present.
func (u User) Field(name string) (string, bool) {
	v, ok := u.Fields[name]
	return v, ok
}

// CreateUserParams holds what is needed to create a user.
type CreateUserParams struct {
	Username         string
	Email            string
	PasswordHash     string
	TwoFactorEnabled bool
	Phone            string
}

func (p CreateUserParams) validate() error {
	if p.Username == "" && p.Email == "" {
		return apperrors.ValidationFailed("username or email is required")
	}
	if strings.Contains(p.Username, "@") {
		return apperrors.ValidationFailed("username must not contain '@'")
	}
	if p.PasswordHash == "" {
		return apperrors.ValidationFailed("password hash is required")
	}
	return nil
}

func (p CreateUserParams) toUser(now time.Time) User {
	return User{
		ID:               uuid.New(),
		Username:         p.Username,
		Email:            p.Email,
		PasswordHash:     p.PasswordHash,
		TwoFactorEnabled: p.TwoFactorEnabled,
		Profile:          Profile{Email: p.Email, Phone: p.Phone},
		Fields:           map[string]string{},
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// matches reports whether u is selected by identity. Emails compare case-insensitively.
func (u User) matches(identity Identity) bool {
	switch {
	case identity.ID != "":
		return u.ID.String() == strings.ToLower(identity.ID)
	case identity.Username != "":
		return u.Username == identity.Username
	case identity.Email != "":
		return u.Email != "" && strings.EqualFold(u.Email, identity.Email)
	}
	return false
}

func cloneUser(u User) User {
	fields := make(map[string]string, len(u.Fields))
	for k, v := range u.Fields {
		fields[k] = v
	}
	u.Fields = fields
	return u
}
