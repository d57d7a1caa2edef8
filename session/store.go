// Package session owns the user-facing view of the session: whether someone is signed in, who
// they are, and the login, logout, and token adoption flows that change it.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-client/claims"
	"github.com/jrsteele09/go-session-client/credential"
	"github.com/jrsteele09/go-session-client/events"
	"github.com/jrsteele09/go-session-client/gateway"
	"github.com/jrsteele09/go-session-client/internal/config"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// AuthBackend is the part of backend.Client the store drives directly.
type AuthBackend interface {
	Login(ctx context.Context, identifier, code string) (*oauth2.Token, error)
	Logout(ctx context.Context, accessToken string) error
}

// API issues ordinary requests. See gateway.Gateway.
type API interface {
	Get(ctx context.Context, path string) (*gateway.Response, error)
}

type SessionHint interface {
	HasSession() bool
}

type SessionDestroyer interface {
	ClearAll()
}

type Store struct {
	backend     AuthBackend
	renewer     Renewer
	api         API
	holder      *credential.Holder
	bus         *events.Bus
	hint        SessionHint
	destroyer   SessionDestroyer
	autoRenew   *AutoRenewer
	profilePath string
	logger      zerolog.Logger
	nowFunc     func() time.Time

	mu          sync.RWMutex
	status      Status
	profile     *UserProfile
	unsubscribe []func()
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = now
	}
}

// WithAutoRenewer replaces the default scheduler built from the config.
func WithAutoRenewer(a *AutoRenewer) Option {
	return func(s *Store) {
		s.autoRenew = a
	}
}

// Deps are the collaborators a Store needs. All fields are required.
type Deps struct {
	Backend   AuthBackend
	Renewer   Renewer
	API       API
	Holder    *credential.Holder
	Bus       *events.Bus
	Hint      SessionHint
	Destroyer SessionDestroyer
}

// New creates a Store and subscribes it to the event bus. Call Close to unsubscribe.
func New(deps Deps, cfg config.Config, options ...Option) *Store {
	s := &Store{
		backend:     deps.Backend,
		renewer:     deps.Renewer,
		api:         deps.API,
		holder:      deps.Holder,
		bus:         deps.Bus,
		hint:        deps.Hint,
		destroyer:   deps.Destroyer,
		profilePath: cfg.GetProfilePath(),
		logger:      log.Logger,
		nowFunc:     time.Now,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.autoRenew == nil {
		s.autoRenew = NewAutoRenewer(deps.Renewer, cfg, WithAutoRenewLogger(s.logger))
	}

	s.unsubscribe = []func(){
		s.bus.OnTokenUpdated(s.onTokenUpdated),
		s.bus.OnSessionCleared(s.onSessionCleared),
	}
	return s
}

// Close unsubscribes from the bus and stops the auto-renew schedule.
func (s *Store) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	for _, fn := range unsubscribe {
		fn()
	}
	s.autoRenew.Close()
}

// Initialize settles the session state at start-up. It runs once; later calls return
// ErrAlreadyInitialized.
//
// Without a session hint no request is made. Otherwise one silent renewal is attempted and, if it
// produces a token, the profile is loaded.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.status != StatusUninitialized {
		s.mu.Unlock()
		return apperrors.ErrAlreadyInitialized
	}
	s.status = StatusInitializing
	s.mu.Unlock()

	if !s.hint.HasSession() {
		s.logger.Debug().Msg("no session hint, starting anonymous")
		s.setStatus(StatusAnonymous)
		return nil
	}

	token, err := s.renewer.Renew(ctx, true)
	if err != nil || token == "" {
		s.logger.Debug().Err(err).Msg("session could not be restored, starting anonymous")
		s.setStatus(StatusAnonymous)
		return nil
	}

	if err := s.loadProfile(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("profile unavailable, starting anonymous")
		s.autoRenew.Stop()
		s.setStatus(StatusAnonymous)
		return nil
	}
	return nil
}

// Login exchanges a verification code for a session. Failures are returned as *LoginError and
// leave the current state untouched. If the profile cannot be loaded after the code was accepted,
// the new token is dropped again, the schedule stopped, and the store is left anonymous.
func (s *Store) Login(ctx context.Context, identifier, code string) error {
	token, err := s.backend.Login(ctx, strings.TrimSpace(identifier), strings.TrimSpace(code))
	if err != nil {
		s.logger.Info().Err(err).Msg("login rejected")
		return loginErrorFrom(err)
	}
	if err := s.adopt(ctx, token); err != nil {
		s.logger.Warn().Err(err).Msg("profile unavailable after login, rolling back")
		s.holder.Clear()
		s.autoRenew.Stop()
		s.mu.Lock()
		if s.status == StatusAuthenticated {
			s.profile = nil
			s.status = StatusAnonymous
		}
		s.mu.Unlock()
		return &LoginError{Code: LoginCodeProfileUnavailable, Err: errors.Wrap(err, "[Store.Login] adopt")}
	}
	return nil
}

// Logout asks the server to end the session, then clears local state whatever the answer.
func (s *Store) Logout(ctx context.Context) {
	if err := s.backend.Logout(ctx, s.holder.AccessToken()); err != nil {
		s.logger.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
	}
	s.destroyer.ClearAll()
}

// AdoptToken installs a token obtained outside the renewal flow, typically one an endpoint
// issued after changing the user's roles. The profile is fetched exactly once.
func (s *Store) AdoptToken(ctx context.Context, accessToken string, expiresIn time.Duration) error {
	if strings.TrimSpace(accessToken) == "" {
		return apperrors.Wrapf(apperrors.ErrMissingToken, "[Store.AdoptToken]")
	}
	return errors.Wrap(s.adopt(ctx, credential.NewToken(accessToken, expiresIn, s.nowFunc())), "[Store.AdoptToken] adopt")
}

// RefreshProfile reloads the profile. With forceRoleReload a renewal runs first so the token
// carries the user's current roles.
func (s *Store) RefreshProfile(ctx context.Context, forceRoleReload bool) error {
	if forceRoleReload {
		token, err := s.renewer.Renew(ctx, false)
		if err != nil {
			return errors.Wrap(err, "[Store.RefreshProfile] Renew")
		}
		if token == "" {
			return apperrors.ErrNotAuthenticated
		}
	}
	if s.holder.AccessToken() == "" {
		return apperrors.ErrNotAuthenticated
	}
	return s.loadProfile(ctx)
}

// CurrentUser returns a copy of the signed-in user's profile, or nil.
func (s *Store) CurrentUser() *UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile.clone()
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) IsAuthenticated() bool {
	return s.Status() == StatusAuthenticated
}

func (s *Store) IsInitialized() bool {
	status := s.Status()
	return status == StatusAuthenticated || status == StatusAnonymous
}

// Claims decodes the current token for display. Never use it for authorization.
func (s *Store) Claims() (*claims.Claims, error) {
	return claims.Decode(s.holder.AccessToken())
}

// AutoRenewing reports whether a scheduled renewal is pending.
func (s *Store) AutoRenewing() bool {
	return s.autoRenew.Running()
}

func (s *Store) adopt(ctx context.Context, token *oauth2.Token) error {
	s.holder.Set(token)
	s.bus.PublishTokenUpdated(events.TokenUpdated{Token: token.AccessToken})
	return s.loadProfile(ctx)
}

func (s *Store) loadProfile(ctx context.Context) error {
	resp, err := s.api.Get(ctx, s.profilePath)
	if err != nil {
		return errors.Wrap(err, "[Store.loadProfile] Get")
	}

	var profile UserProfile
	if err := resp.Decode(&profile); err != nil {
		return errors.Wrap(err, "[Store.loadProfile] Decode")
	}
	profile.normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	// the session may have been cleared while the request was out
	if s.holder.AccessToken() == "" {
		return apperrors.ErrNotAuthenticated
	}
	s.profile = &profile
	s.status = StatusAuthenticated
	s.logger.Debug().Str("user_id", profile.ID).Msg("profile loaded")
	return nil
}

func (s *Store) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Store) onTokenUpdated(e events.TokenUpdated) {
	s.autoRenew.Restart(e.Token)
}

// onSessionCleared demotes an authenticated or initializing session. An uninitialized store stays
// uninitialized so Initialize still runs.
func (s *Store) onSessionCleared(events.SessionCleared) {
	s.autoRenew.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = nil
	if s.status == StatusAuthenticated || s.status == StatusInitializing {
		s.status = StatusAnonymous
	}
}
