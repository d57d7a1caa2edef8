package backend

import (
	"encoding/json"
	"strings"
)

// Envelope is the response shape shared by every backend endpoint.
//
//	{ "success": true,  "data":  { ... } }
//	{ "success": false, "error": { "code": "invalid-session", "message": "..." } }
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *EnvelopeError  `json:"error,omitempty"`
}

type EnvelopeError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// Tokens is the token block returned by login, refresh, and any endpoint that rotates the token
// as a side effect (e.g. creating a business promotes the caller to owner).
type Tokens struct {
	// AccessToken is the JWT sent as "Authorization: Bearer <accessToken>"
	AccessToken string `json:"accessToken"`
	// ExpiresIn is the lifetime in seconds. It is a hint; exp in the token is authoritative.
	ExpiresIn int `json:"expiresIn,omitempty"`
}

type TokenData struct {
	Tokens *Tokens `json:"tokens,omitempty"`
}

// LoginRequest is the body of the verification-code login call.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

// DecodeEnvelope parses body as an Envelope. Bodies that are not JSON objects return an error.
func DecodeEnvelope(body []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// RotatedTokens returns the token block carried by a successful envelope, or nil.
func RotatedTokens(body []byte) *Tokens {
	trimmed := strings.TrimSpace(string(body))
	if !strings.HasPrefix(trimmed, "{") {
		return nil
	}
	env, err := DecodeEnvelope(body)
	if err != nil || !env.Success || len(env.Data) == 0 {
		return nil
	}
	var data TokenData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil
	}
	if data.Tokens == nil || strings.TrimSpace(data.Tokens.AccessToken) == "" {
		return nil
	}
	return data.Tokens
}
