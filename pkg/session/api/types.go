package api

import (
	"time"

	"github.com/tendant/simple-2fa/pkg/account"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type PasswordLoginRequest struct {
	User     account.Identity   `json:"user"`
	Password account.Credential `json:"password"`
}

type ResumeRequest struct {
	Token string `json:"token"`
}

type LoginResponse struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
