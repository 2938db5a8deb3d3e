package twofactor

import (
	"time"

	"github.com/tendant/simple-2fa/pkg/account"
)

const DefaultFieldName = "twoFactorCode"

// Settings are fixed when the Service is built.
type Settings struct {
	Enabled bool
	// Force requires a second factor even for users who have not turned it on.
	Force bool
	// FieldName is the user field holding the pending code.
	FieldName string
	// CodeTTL bounds how long a code stays valid. Zero means no expiry.
	CodeTTL time.Duration
}

// DefaultSettings leaves the second factor off until it is turned on.
func DefaultSettings() Settings {
	return Settings{FieldName: DefaultFieldName}
}

// Required reports whether user must pass a second factor.
func (s Settings) Required(user account.User) bool {
	return s.Enabled && (s.Force || user.TwoFactorEnabled)
}

func (s Settings) normalized() Settings {
	if s.FieldName == "" {
		s.FieldName = DefaultFieldName
	}
	if s.CodeTTL < 0 {
		s.CodeTTL = 0
	}
	return s
}

func (s Settings) issuedAtField() string {
	return s.FieldName + "IssuedAt"
}
