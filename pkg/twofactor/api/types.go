package api

import (
	"time"

	"github.com/tendant/simple-2fa/pkg/account"
	"github.com/tendant/simple-2fa/pkg/twofactor"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type LoginRequest struct {
	User     account.Identity   `json:"user"`
	Password account.Credential `json:"password"`
	Method   string             `json:"method,omitempty"`
}

type SendCodeRequest struct {
	User     account.Identity   `json:"user"`
	Password account.Credential `json:"password"`
	Method   string             `json:"method"`
}

type VerifyRequest struct {
	User     account.Identity   `json:"user"`
	Password account.Credential `json:"password"`
	Code     string             `json:"code"`
}

type AbortRequest struct {
	User     account.Identity   `json:"user"`
	Password account.Credential `json:"password"`
}

// LoginResponse is one of a session, the methods a code can be sent over, or
// confirmation that a code was sent.
type LoginResponse struct {
	LoggedIn         bool                        `json:"logged_in,omitempty"`
	UserID           string                      `json:"user_id,omitempty"`
	Token            string                      `json:"token,omitempty"`
	ExpiresAt        *time.Time                  `json:"expires_at,omitempty"`
	AvailableMethods *twofactor.AvailableMethods `json:"available_methods,omitempty"`
	ChallengeIssued  bool                        `json:"challenge_issued,omitempty"`
}
