// Package client assembles the session layer into one value an application creates at start-up.
package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-session-client/backend"
	"github.com/jrsteele09/go-session-client/cleanup"
	"github.com/jrsteele09/go-session-client/cookies"
	"github.com/jrsteele09/go-session-client/credential"
	"github.com/jrsteele09/go-session-client/events"
	"github.com/jrsteele09/go-session-client/gateway"
	"github.com/jrsteele09/go-session-client/internal/config"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/metrics"
	"github.com/jrsteele09/go-session-client/renewal"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Client owns the process-wide session state: one credential holder, one renewal coordinator,
// one cookie jar. Create one per backend and share it.
type Client struct {
	config      config.Config
	jar         http.CookieJar
	httpClient  *http.Client
	holder      *credential.Holder
	bus         *events.Bus
	hint        *cookies.Hint
	metrics     *metrics.Collector
	backend     *backend.Client
	cleaner     *cleanup.Cleaner
	coordinator *renewal.Coordinator
	gateway     *gateway.Gateway
	store       *session.Store
	logger      zerolog.Logger

	navigator  cleanup.Navigator
	registerer prometheus.Registerer
	transport  http.RoundTripper
}

type Option func(*Client)

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithNavigator sets where the user is sent after the session is destroyed.
func WithNavigator(n cleanup.Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

// WithRegisterer registers the session metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *Client) {
		c.registerer = reg
	}
}

// WithTransport sets the round tripper under every request.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = rt
	}
}

func New(cfg config.Config, options ...Option) (*Client, error) {
	baseURL, err := url.Parse(cfg.GetBaseURL())
	if err != nil {
		return nil, errors.Wrap(err, "[client.New] parse base URL")
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, errors.Errorf("[client.New] base URL %q must be absolute", cfg.GetBaseURL())
	}

	c := &Client{
		config: cfg,
		jar:    cookies.NewJar(),
		holder: credential.NewHolder(),
		bus:    events.NewBus(),
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.navigator == nil {
		c.navigator = cleanup.LogNavigator{Logger: c.logger}
	}

	c.httpClient = &http.Client{Jar: c.jar, Timeout: cfg.GetRequestTimeout(), Transport: c.transport}
	c.hint = cookies.NewHint(c.jar, baseURL, cfg.GetSessionHintCookie())
	c.metrics = metrics.New(c.registerer)
	c.backend = backend.New(c.httpClient, cfg, backend.WithLogger(c.component("backend")))
	c.cleaner = cleanup.New(c.holder, c.hint, c.bus, cfg.GetLoginURL(),
		cleanup.WithNavigator(c.navigator),
		cleanup.WithMetrics(c.metrics),
		cleanup.WithLogger(c.component("cleanup")),
	)
	c.coordinator = renewal.New(c.backend, c.holder, c.bus, c.cleaner,
		renewal.WithMetrics(c.metrics),
		renewal.WithLogger(c.component("renewal")),
	)
	c.gateway = gateway.New(c.httpClient, cfg, c.holder, c.coordinator, c.hint, c.cleaner, c.bus,
		gateway.WithMetrics(c.metrics),
		gateway.WithLogger(c.component("gateway")),
	)
	c.store = session.New(session.Deps{
		Backend:   c.backend,
		Renewer:   c.coordinator,
		API:       c.gateway,
		Holder:    c.holder,
		Bus:       c.bus,
		Hint:      c.hint,
		Destroyer: c.cleaner,
	}, cfg, session.WithLogger(c.component("session")))

	return c, nil
}

func (c *Client) component(name string) zerolog.Logger {
	return c.logger.With().Str("component", name).Logger()
}

func (c *Client) Session() *session.Store           { return c.store }
func (c *Client) Gateway() *gateway.Gateway         { return c.gateway }
func (c *Client) Events() *events.Bus               { return c.bus }
func (c *Client) Metrics() *metrics.Collector       { return c.metrics }
func (c *Client) Jar() http.CookieJar               { return c.jar }
func (c *Client) Coordinator() *renewal.Coordinator { return c.coordinator }

// Token returns the current access token, renewing it first when it is missing or about to
// expire. Without a session hint it returns ErrNotAuthenticated and makes no request.
// It makes Client an oauth2.TokenSource.
func (c *Client) Token() (*oauth2.Token, error) {
	if tok := c.holder.Get(); tok.Valid() {
		return tok, nil
	}
	if !c.hint.HasSession() {
		return nil, apperrors.ErrNotAuthenticated
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.config.GetRequestTimeout())
	defer cancel()
	access, err := c.coordinator.Renew(ctx, false)
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Token] Renew")
	}
	if access == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	if tok := c.holder.Get(); tok != nil {
		return tok, nil
	}
	return &oauth2.Token{AccessToken: access, TokenType: "Bearer"}, nil
}

var _ oauth2.TokenSource = (*Client)(nil)

// HTTPClient returns an *http.Client that sends the session's bearer token on every request, for
// code that cannot go through the Gateway. It renews ahead of expiry but does not react to 401.
func (c *Client) HTTPClient() *http.Client {
	return &http.Client{
		Jar:     c.jar,
		Timeout: c.config.GetRequestTimeout(),
		Transport: &oauth2.Transport{
			Source: c,
			Base:   c.transport,
		},
	}
}

// Close stops background renewal and detaches the session store from the event bus.
func (c *Client) Close() {
	c.store.Close()
}
