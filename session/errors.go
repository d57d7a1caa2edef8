package session

import (
	"fmt"

	"github.com/jrsteele09/go-session-client/backend"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
)

// Login failure codes used when the server did not supply one.
const (
	LoginCodeUnavailable = "unavailable"
	LoginCodeUnknown     = "unknown"
	// LoginCodeProfileUnavailable means the code was accepted but the profile could not be loaded.
	LoginCodeProfileUnavailable = "profile-unavailable"
)

// LoginError is returned by Store.Login. It matches apperrors.ErrLoginFailed with errors.Is.
type LoginError struct {
	// Code is the server's error code, e.g. "invalid-code", or one of the LoginCode constants.
	Code    string
	Message string
	Err     error
}

func (e *LoginError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("login failed (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("login failed (%s)", e.Code)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}

func (e *LoginError) Is(target error) bool {
	return target == apperrors.ErrLoginFailed
}

func loginErrorFrom(err error) *LoginError {
	var apiErr *backend.APIError
	if apperrors.As(err, &apiErr) {
		code := apiErr.Code
		if code == "" {
			code = LoginCodeUnknown
		}
		return &LoginError{Code: code, Message: apiErr.Message, Err: err}
	}
	return &LoginError{Code: LoginCodeUnavailable, Err: err}
}
