// Package errors provides structured error handling with error codes for simple-2fa.
//
// Every error that crosses a service boundary is an *Error carrying an ErrorCode.
// HTTP handlers turn the code into a status with MapErrorCodeToHTTPStatus and show
// only PublicMessage to the caller, so wrapped causes never leak.
//
// # Basic Usage
//
//	import "github.com/tendant/simple-2fa/pkg/errors"
//
//	err := errors.New(errors.ErrCodeInvalidCredentials, "invalid login credentials")
//	err := errors.Wrap(dbErr, errors.ErrCodeInternal, "failed to load user")
//
//	if errors.IsCode(err, errors.ErrCode2FAInvalid) {
//		// ask the user to re-enter the code
//	}
//
// # Matching sentinels
//
// (*Error).Is compares codes (and messages when the target has one), so package level
// sentinels such as twofactor.ErrInvalidCode work with the standard errors.Is.
package errors
