package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-session-client/backend"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/internal/utils"
	"github.com/pkg/errors"
)

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// RequestID is the X-Request-ID the final attempt was sent with.
	RequestID string
	// Replayed is set when the response belongs to the re-issued request after a renewal.
	Replayed bool
}

// Decode unmarshals the envelope's data into v. Bodies that are not envelopes are decoded whole.
func (r *Response) Decode(v any) error {
	env, err := backend.DecodeEnvelope(r.Body)
	if err != nil {
		return errors.Wrap(err, "[Response.Decode] envelope")
	}
	if len(env.Data) == 0 {
		if !env.Success && env.Error == nil {
			return errors.Wrap(json.Unmarshal(r.Body, v), "[Response.Decode] body")
		}
		return apperrors.Wrapf(apperrors.ErrBadEnvelope, "[Response.Decode] no data")
	}
	return errors.Wrap(json.Unmarshal(env.Data, v), "[Response.Decode] data")
}

// StatusError is returned alongside every non-2xx Response.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if e.Code != "" {
		return fmt.Sprintf("request failed with status %d (%s): %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, msg)
}

// Unwrap lets callers test a 401 with errors.Is(err, ErrUnauthorized).
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return apperrors.ErrUnauthorized
	}
	return nil
}

func statusErrorFrom(r *Response) *StatusError {
	statusErr := &StatusError{StatusCode: r.StatusCode}
	if env, err := backend.DecodeEnvelope(r.Body); err == nil {
		e := utils.Value(env.Error)
		statusErr.Code = e.Code
		statusErr.Message = e.Message
	}
	return statusErr
}
