// Package cookies reads and clears the session hint cookie.
//
// The server sets two cookies on login: an HttpOnly refresh cookie this client never sees, and a
// readable hint ("hasSession=1") that only says a refresh session probably exists. The hint lets
// the client skip refresh calls that are certain to fail. It is never an authorization signal.
package cookies

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
)

const hintValue = "1"

// NewJar returns the cookie jar shared by every request the client makes.
func NewJar() http.CookieJar {
	// cookiejar.New only errors on invalid options
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// Hint is the client-writable view of the session hint cookie.
type Hint struct {
	jar     http.CookieJar
	baseURL *url.URL
	name    string
}

func NewHint(jar http.CookieJar, baseURL *url.URL, name string) *Hint {
	return &Hint{jar: jar, baseURL: baseURL, name: name}
}

// Name returns the cookie name.
func (h *Hint) Name() string {
	return h.name
}

// HasSession reports whether the hint cookie is present with its expected value.
func (h *Hint) HasSession() bool {
	for _, c := range h.jar.Cookies(h.baseURL) {
		if c.Name == h.name {
			return c.Value == hintValue
		}
	}
	return false
}

// Set stores the hint. The server normally does this; Set exists for fakes and tests.
func (h *Hint) Set() {
	h.jar.SetCookies(h.baseURL, []*http.Cookie{{
		Name:  h.name,
		Value: hintValue,
		Path:  "/",
	}})
}

// Clear removes the hint. Protected cookies are left for the server's logout endpoint.
func (h *Hint) Clear() {
	h.jar.SetCookies(h.baseURL, []*http.Cookie{{
		Name:    h.name,
		Value:   "",
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Unix(0, 0),
	}})
}
