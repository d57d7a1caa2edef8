// Package credential holds the short-lived access token for the whole process.
//
// The Holder is a plain guarded cell. Setting it has no side effects; callers that change
// the credential are responsible for publishing the matching event. Nothing is persisted.
package credential

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

const bearerType = "Bearer"

// Holder is the single in-memory cell for the current access token.
type Holder struct {
	mu    sync.RWMutex
	token *oauth2.Token
}

func NewHolder() *Holder {
	return &Holder{}
}

// Set replaces the current token. A nil token, or one with an empty access token, clears the cell.
func (h *Holder) Set(token *oauth2.Token) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if token == nil || strings.TrimSpace(token.AccessToken) == "" {
		h.token = nil
		return
	}
	stored := *token
	if stored.TokenType == "" {
		stored.TokenType = bearerType
	}
	h.token = &stored
}

// Get returns a copy of the current token, or nil.
func (h *Holder) Get() *oauth2.Token {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.token == nil {
		return nil
	}
	t := *h.token
	return &t
}

// AccessToken returns the raw bearer value or "".
func (h *Holder) AccessToken() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.token == nil {
		return ""
	}
	return h.token.AccessToken
}

// Clear empties the cell.
func (h *Holder) Clear() {
	h.Set(nil)
}

// NewToken builds the stored form of an access token issued with the given lifetime.
// A zero lifetime leaves Expiry unset and expiry is then read from the token's claims.
func NewToken(accessToken string, expiresIn time.Duration, now time.Time) *oauth2.Token {
	t := &oauth2.Token{
		AccessToken: accessToken,
		TokenType:   bearerType,
	}
	if expiresIn > 0 {
		t.Expiry = now.Add(expiresIn)
	}
	return t
}
