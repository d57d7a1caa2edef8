package errors

import (
	"errors"
	"fmt"
)

// Common error types for the session client
var (
	// Session errors
	ErrNoSession          = errors.New("no session")
	ErrInvalidSession     = errors.New("invalid session")
	ErrRenewalFailed      = errors.New("token renewal failed")
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrAlreadyInitialized = errors.New("session already initialized")

	// Token errors
	ErrMalformedToken = errors.New("malformed token")
	ErrMissingToken   = errors.New("missing token")

	// Request errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrLoginFailed  = errors.New("login failed")
	ErrBadEnvelope  = errors.New("unexpected response envelope")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
