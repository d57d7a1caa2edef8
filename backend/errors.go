package backend

import (
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
)

// Error codes the refresh endpoint uses to tell the session states apart.
const (
	CodeNoSession      = "no-session"
	CodeInvalidSession = "invalid-session"
	CodeSessionExpired = "session-expired"
	CodeSessionRevoked = "session-revoked"
)

var noSessionCodes = map[string]struct{}{
	CodeNoSession:      {},
	"missing-session":  {},
	"no-refresh-token": {},
}

var invalidSessionCodes = map[string]struct{}{
	CodeInvalidSession:      {},
	CodeSessionExpired:      {},
	CodeSessionRevoked:      {},
	"refresh-token-invalid": {},
	"refresh-token-expired": {},
}

// normalizeCode folds "INVALID_SESSION" and "invalid-session" to the same key.
func normalizeCode(code string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(code)), "_", "-")
}

func IsNoSessionCode(code string) bool {
	_, ok := noSessionCodes[normalizeCode(code)]
	return ok
}

func IsInvalidSessionCode(code string) bool {
	_, ok := invalidSessionCodes[normalizeCode(code)]
	return ok
}

// APIError is a failure reported by the backend, either through the envelope or the status code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, msg)
}

// Unwrap maps the error onto the session sentinels so callers can use errors.Is.
// Any 401 or 403 that does not say the session is missing counts as an invalid session.
func (e *APIError) Unwrap() error {
	switch {
	case IsNoSessionCode(e.Code):
		return apperrors.ErrNoSession
	case IsInvalidSessionCode(e.Code):
		return apperrors.ErrInvalidSession
	case e.StatusCode == http.StatusUnauthorized, e.StatusCode == http.StatusForbidden:
		return apperrors.ErrInvalidSession
	}
	return nil
}
