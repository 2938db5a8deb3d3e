// Package logingate decides whether a login attempt may complete.
//
// Ordinary password logins are refused so that a second factor cannot be
// skipped; the two-factor flow completes logins with attempt type TwoFactorLogin.
package logingate

import "github.com/google/uuid"

// Attempt types.
const (
	TypePassword       = "password"
	TypeResume         = "resume"
	TypeTwoFactorLogin = "2FALogin"
)

// Method names.
const (
	MethodLogin         = "login"
	MethodCreateUser    = "createUser"
	MethodResetPassword = "resetPassword"
	MethodVerifyEmail   = "verifyEmail"
)

// LoginAttempt describes a pending login. Allowed is the verdict carried by
// the caller that built the attempt, only consulted for two-factor logins.
type LoginAttempt struct {
	Type       string
	MethodName string
	UserID     uuid.UUID
	Allowed    bool
}

// AttemptValidator can approve attempts the built-in rules would deny.
type AttemptValidator interface {
	ValidateLoginAttempt(attempt LoginAttempt) bool
}

// AttemptValidatorFunc adapts a function to AttemptValidator.
type AttemptValidatorFunc func(attempt LoginAttempt) bool

func (f AttemptValidatorFunc) ValidateLoginAttempt(attempt LoginAttempt) bool {
	return f(attempt)
}

// DenyOverride never approves anything on its own.
var DenyOverride AttemptValidator = AttemptValidatorFunc(func(LoginAttempt) bool { return false })

type Gate struct {
	override AttemptValidator
}

type Option func(*Gate)

// WithOverride installs a hook consulted before the built-in rules.
func WithOverride(v AttemptValidator) Option {
	return func(g *Gate) {
		if v != nil {
			g.override = v
		}
	}
}

func New(opts ...Option) *Gate {
	g := &Gate{override: DenyOverride}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Validate returns true when the attempt may complete.
func (g *Gate) Validate(attempt LoginAttempt) bool {
	if g.override.ValidateLoginAttempt(attempt) {
		return true
	}
	if attempt.Type == TypeResume {
		return true
	}
	switch attempt.MethodName {
	case MethodCreateUser, MethodResetPassword, MethodVerifyEmail:
		return true
	}
	if attempt.Type == TypeTwoFactorLogin && attempt.MethodName == MethodLogin {
		return attempt.Allowed
	}
	return false
}
