// Package backendfake is an in-process stand-in for the booking API's auth surface.
package backendfake

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-client/internal/config"
)

const (
	RefreshCookieName = "refresh_token"
	HintCookieName    = config.DefaultSessionHintCookie

	PathAppointments    = "/api/appointments"
	PathBusinesses      = "/api/businesses"
	PathAlwaysDenied    = "/api/always-401"
	PathEcho            = "/api/echo"
	PathSlow            = "/api/slow"
	RoleBusinessOwner   = "business_owner"
	defaultCustomerRole = "customer"
)

// RefreshMode selects how the refresh endpoint answers.
type RefreshMode int

const (
	RefreshOK RefreshMode = iota
	RefreshNoSession
	RefreshInvalidSession
	RefreshServerError
	RefreshUnauthorizedNoCode
	// RefreshUnauthorizedCoded answers 401 with a code that names no session state.
	RefreshUnauthorizedCoded
)

// Server is an httptest server implementing login, refresh, logout, profile, and a few
// protected resources. Tokens are HS256 JWTs; InvalidateIssuedTokens makes every token issued so
// far fail with 401, which is how tests push requests onto the renewal path.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	secret        []byte
	tokenTTL      time.Duration
	refreshMode   RefreshMode
	refreshGate   chan struct{}
	refreshEnter  chan struct{}
	slowGate      chan struct{}
	slowEnter     chan struct{}
	profileStatus int
	generation    int
	minGeneration int
	codes         map[string]string   // identifier -> verification code
	users         map[string]string   // identifier -> user ID
	roles         map[string][]string // user ID -> roles
	profiles      map[string]any      // user ID -> profile payload
	calls         map[string]int
	total         int
	lastHeaders   http.Header
}

func NewServer() *Server {
	s := &Server{
		secret:   []byte("backendfake-secret"),
		tokenTTL: 15 * time.Minute,
		codes:    make(map[string]string),
		users:    make(map[string]string),
		roles:    make(map[string][]string),
		profiles: make(map[string]any),
		calls:    make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+config.DefaultRefreshPath, s.handleRefresh)
	mux.HandleFunc("POST "+config.DefaultLogoutPath, s.handleLogout)
	mux.HandleFunc("POST "+config.DefaultLoginPath, s.handleLogin)
	mux.HandleFunc("GET "+config.DefaultProfilePath, s.requireBearer(s.handleProfile))
	mux.HandleFunc("GET "+PathAppointments, s.requireBearer(s.handleAppointments))
	mux.HandleFunc("POST "+PathBusinesses, s.requireBearer(s.handleCreateBusiness))
	mux.HandleFunc("GET "+PathAlwaysDenied, s.handleAlwaysDenied)
	mux.HandleFunc("GET "+PathEcho, s.handleEcho)
	mux.HandleFunc("GET "+PathSlow, s.handleSlow)

	s.Server = httptest.NewServer(s.count(mux))
	return s
}

// BaseURL returns the server URL parsed.
func (s *Server) BaseURL() *url.URL {
	u, _ := url.Parse(s.URL)
	return u
}

// AddUser registers a user that can log in with identifier and code.
func (s *Server) AddUser(userID, identifier, code string, roles ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(roles) == 0 {
		roles = []string{defaultCustomerRole}
	}
	s.codes[identifier] = code
	s.users[identifier] = userID
	s.roles[userID] = roles
}

// SetProfile overrides the profile payload served for userID.
func (s *Server) SetProfile(userID string, profile any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[userID] = profile
}

// SeedSession places the refresh and hint cookies for userID into jar, as if the user had
// logged in during an earlier page load.
func (s *Server) SeedSession(jar http.CookieJar, userID string) {
	s.mu.Lock()
	if _, ok := s.roles[userID]; !ok {
		s.roles[userID] = []string{defaultCustomerRole}
	}
	s.mu.Unlock()

	jar.SetCookies(s.BaseURL(), []*http.Cookie{
		{Name: RefreshCookieName, Value: userID, Path: "/", HttpOnly: true},
		{Name: HintCookieName, Value: "1", Path: "/"},
	})
}

func (s *Server) SetRefreshMode(mode RefreshMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshMode = mode
}

// HoldRefresh makes refresh calls block until release is called. entered receives once per
// refresh call that reached the handler.
func (s *Server) HoldRefresh() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	enter := make(chan struct{}, 64)
	s.refreshGate = gate
	s.refreshEnter = enter

	var once sync.Once
	return enter, func() {
		once.Do(func() {
			s.mu.Lock()
			s.refreshGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// HoldSlow makes requests to PathSlow block until release is called. The bearer token is only
// checked after release, so a request can carry a token that is revoked while it waits.
func (s *Server) HoldSlow() (entered <-chan struct{}, release func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	enter := make(chan struct{}, 64)
	s.slowGate = gate
	s.slowEnter = enter

	var once sync.Once
	return enter, func() {
		once.Do(func() {
			s.mu.Lock()
			s.slowGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// FailProfile makes the profile endpoint answer with status. Zero restores normal answers.
func (s *Server) FailProfile(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileStatus = status
}

// InvalidateIssuedTokens makes every token issued so far answer 401.
func (s *Server) InvalidateIssuedTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minGeneration = s.generation + 1
}

// IssueToken mints a valid token for userID outside of any endpoint.
func (s *Server) IssueToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(userID, s.roles[userID])
}

// Calls returns how many requests hit path.
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// TotalCalls returns how many requests the server received.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// LastHeaders returns the headers of the most recent request.
func (s *Server) LastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeaders.Clone()
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		s.total++
		s.lastHeaders = r.Header.Clone()
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate, enter, mode := s.refreshGate, s.refreshEnter, s.refreshMode
	s.mu.Unlock()

	if gate != nil {
		select {
		case enter <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	switch mode {
	case RefreshNoSession:
		writeFailure(w, http.StatusUnauthorized, "no-session")
		return
	case RefreshInvalidSession:
		writeFailure(w, http.StatusUnauthorized, "invalid-session")
		return
	case RefreshServerError:
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
		return
	case RefreshUnauthorizedNoCode:
		w.WriteHeader(http.StatusUnauthorized)
		return
	case RefreshUnauthorizedCoded:
		writeFailure(w, http.StatusUnauthorized, "UNAUTHORIZED")
		return
	}

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		writeFailure(w, http.StatusUnauthorized, "no-session")
		return
	}

	s.mu.Lock()
	token := s.issueLocked(cookie.Value, s.roles[cookie.Value])
	ttl := s.tokenTTL
	s.mu.Unlock()

	setSessionCookies(w, cookie.Value)
	writeTokens(w, token, ttl)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Identifier string `json:"identifier"`
		Code       string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFailure(w, http.StatusBadRequest, "bad-request")
		return
	}

	s.mu.Lock()
	code, known := s.codes[body.Identifier]
	userID := s.users[body.Identifier]
	if !known || code != body.Code {
		s.mu.Unlock()
		writeFailure(w, http.StatusUnauthorized, "invalid-code")
		return
	}
	token := s.issueLocked(userID, s.roles[userID])
	ttl := s.tokenTTL
	s.mu.Unlock()

	setSessionCookies(w, userID)
	writeTokens(w, token, ttl)
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	for _, name := range []string{RefreshCookieName, HintCookieName} {
		http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleProfile(w http.ResponseWriter, _ *http.Request, userID string) {
	s.mu.Lock()
	if status := s.profileStatus; status != 0 {
		s.mu.Unlock()
		writeFailure(w, status, "profile-unavailable")
		return
	}
	profile, ok := s.profiles[userID]
	roles := s.roles[userID]
	s.mu.Unlock()

	if !ok {
		profileRoles := make([]map[string]any, 0, len(roles))
		for i, role := range roles {
			profileRoles = append(profileRoles, map[string]any{"name": role, "level": (i + 1) * 10})
		}
		profile = map[string]any{"id": userID, "roles": profileRoles}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": profile})
}

func (s *Server) handleAppointments(w http.ResponseWriter, _ *http.Request, userID string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    map[string]any{"owner": userID, "items": []any{}},
	})
}

// handleCreateBusiness promotes the caller and rotates their token in the response.
func (s *Server) handleCreateBusiness(w http.ResponseWriter, _ *http.Request, userID string) {
	s.mu.Lock()
	roles := append([]string(nil), s.roles[userID]...)
	if !contains(roles, RoleBusinessOwner) {
		roles = append(roles, RoleBusinessOwner)
	}
	s.roles[userID] = roles
	token := s.issueLocked(userID, roles)
	ttl := s.tokenTTL
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"data": map[string]any{
			"business": map[string]any{"id": "biz-" + userID},
			"tokens":   map[string]any{"accessToken": token, "expiresIn": int(ttl.Seconds())},
		},
	})
}

func (s *Server) handleSlow(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate, enter := s.slowGate, s.slowEnter
	s.mu.Unlock()

	if gate != nil {
		select {
		case enter <- struct{}{}:
		default:
		}
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	s.requireBearer(s.handleAppointments)(w, r)
}

func (s *Server) handleAlwaysDenied(w http.ResponseWriter, _ *http.Request) {
	writeFailure(w, http.StatusUnauthorized, "token-expired")
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"authorization":  r.Header.Get("Authorization"),
			"acceptLanguage": r.Header.Get("Accept-Language"),
			"requestId":      r.Header.Get("X-Request-ID"),
		},
	})
}

func (s *Server) requireBearer(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeFailure(w, http.StatusUnauthorized, "missing-token")
			return
		}
		userID, err := s.verify(raw)
		if err != nil {
			writeFailure(w, http.StatusUnauthorized, "token-expired")
			return
		}
		next(w, r, userID)
	}
}

func (s *Server) verify(raw string) (string, error) {
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	mapClaims, _ := token.Claims.(jwt.MapClaims)
	gen, _ := mapClaims["gen"].(float64)
	sub, _ := mapClaims.GetSubject()

	s.mu.Lock()
	defer s.mu.Unlock()
	if int(gen) < s.minGeneration {
		return "", fmt.Errorf("token generation %d revoked", int(gen))
	}
	return sub, nil
}

func (s *Server) issueLocked(userID string, roles []string) string {
	s.generation++
	now := time.Now()
	raw, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID,
		"roles": roles,
		"gen":   s.generation,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}).SignedString(s.secret)
	return raw
}

func setSessionCookies(w http.ResponseWriter, userID string) {
	http.SetCookie(w, &http.Cookie{Name: RefreshCookieName, Value: userID, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: HintCookieName, Value: "1", Path: "/"})
}

func writeTokens(w http.ResponseWriter, token string, ttl time.Duration) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": map[string]any{
			"tokens": map[string]any{"accessToken": token, "expiresIn": int(ttl.Seconds())},
		},
	})
}

func writeFailure(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   map[string]any{"code": code},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
