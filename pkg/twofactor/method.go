package twofactor

import (
	"strings"

	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

// Method is a delivery channel for codes.
type Method string

const (
	MethodEmail Method = "email"
	MethodSMS   Method = "sms"
)

// ParseMethod accepts email, sms and phone (an alias for sms).
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "email":
		return MethodEmail, nil
	case "sms", "phone":
		return MethodSMS, nil
	}
	return "", apperrors.Newf(apperrors.ErrCodeValidationFailed, "unknown method: %s", s)
}

// AvailableMethods tells the client which channels the user can receive codes on.
type AvailableMethods struct {
	Email bool `json:"email"`
	Phone bool `json:"phone"`
}
