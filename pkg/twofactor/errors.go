package twofactor

import (
	apperrors "github.com/tendant/simple-2fa/pkg/errors"
)

var (
	ErrPermissionDenied = apperrors.Forbidden("permission denied")
	ErrInvalidCode      = apperrors.New(apperrors.ErrCode2FAInvalid, "invalid code")
	ErrCodeRequired     = apperrors.ValidationFailed("code is required")
	ErrVerifyRateLimit  = apperrors.RateLimitExceeded("")
)

// DeliveryError wraps a failure of the code channel.
func DeliveryError(err error) error {
	return apperrors.Wrap(err, apperrors.ErrCodeDeliveryFailed, "failed to deliver code")
}
