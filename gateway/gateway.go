// Package gateway is the single path every ordinary backend call takes.
//
// It attaches the bearer token, locale, and request ID, adopts tokens that endpoints rotate as a
// side effect, and turns a 401 into at most one renewal followed by at most one replay.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-session-client/backend"
	"github.com/jrsteele09/go-session-client/credential"
	"github.com/jrsteele09/go-session-client/events"
	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/metrics"
	"github.com/jrsteele09/go-session-client/renewal"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
)

const (
	HeaderRequestID = "X-Request-ID"

	contentTypeJSON = "application/json; charset=utf-8"
	maxBodyBytes    = 8 << 20
)

// Renewer obtains a fresh access token. An empty token with a nil error means there is no session.
type Renewer interface {
	Renew(ctx context.Context, silent bool) (string, error)
}

// SessionHint is the cheap local signal that a refresh session may exist.
type SessionHint interface {
	HasSession() bool
}

// SessionDestroyer runs the full cleanup.
type SessionDestroyer interface {
	ClearAll()
}

type Gateway struct {
	baseURL      string
	httpClient   *http.Client
	holder       *credential.Holder
	renewer      Renewer
	hint         SessionHint
	destroyer    SessionDestroyer
	bus          *events.Bus
	locale       language.Tag
	metrics      *metrics.Collector
	logger       zerolog.Logger
	nowFunc      func() time.Time
	newRequestID func() string
}

type Option func(*Gateway)

func WithMetrics(m *metrics.Collector) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(g *Gateway) {
		g.nowFunc = now
	}
}

// WithRequestIDFunc replaces the uuid generator used for X-Request-ID.
func WithRequestIDFunc(f func() string) Option {
	return func(g *Gateway) {
		g.newRequestID = f
	}
}

// New creates a Gateway. httpClient must share its cookie jar with the backend client.
func New(
	httpClient *http.Client,
	cfg config.Config,
	holder *credential.Holder,
	renewer Renewer,
	hint SessionHint,
	destroyer SessionDestroyer,
	bus *events.Bus,
	options ...Option,
) *Gateway {
	g := &Gateway{
		baseURL:      strings.TrimRight(cfg.GetBaseURL(), "/"),
		httpClient:   httpClient,
		holder:       holder,
		renewer:      renewer,
		hint:         hint,
		destroyer:    destroyer,
		bus:          bus,
		locale:       cfg.GetLocale(),
		logger:       log.Logger,
		nowFunc:      time.Now,
		newRequestID: func() string { return uuid.NewString() },
	}
	for _, opt := range options {
		opt(g)
	}
	return g
}

// call is one logical request. retried belongs to this call only, so one request's replay
// never blocks another's.
type call struct {
	method  string
	path    string
	payload []byte
	token   string
	retried bool
	// sentWith is the bearer token of the latest attempt
	sentWith string
}

// Do sends a request. body is JSON encoded unless it is nil, []byte, or an io.Reader.
//
// Non-2xx responses are returned together with a *StatusError. When a 401 leads to a renewal
// that fails, the error also wraps the renewal failure.
func (g *Gateway) Do(ctx context.Context, method, path string, body any) (*Response, error) {
	payload, err := encodeBody(body)
	if err != nil {
		return nil, errors.Wrap(err, "[Gateway.Do] encodeBody")
	}
	return g.send(ctx, &call{method: method, path: path, payload: payload})
}

func (g *Gateway) Get(ctx context.Context, path string) (*Response, error) {
	return g.Do(ctx, http.MethodGet, path, nil)
}

func (g *Gateway) Post(ctx context.Context, path string, body any) (*Response, error) {
	return g.Do(ctx, http.MethodPost, path, body)
}

func (g *Gateway) Put(ctx context.Context, path string, body any) (*Response, error) {
	return g.Do(ctx, http.MethodPut, path, body)
}

func (g *Gateway) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return g.Do(ctx, http.MethodPatch, path, body)
}

func (g *Gateway) Delete(ctx context.Context, path string) (*Response, error) {
	return g.Do(ctx, http.MethodDelete, path, nil)
}

func (g *Gateway) send(ctx context.Context, c *call) (*Response, error) {
	resp, err := g.roundTrip(ctx, c)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return g.unauthorized(ctx, c, resp)
	case resp.StatusCode >= http.StatusBadRequest:
		return resp, statusErrorFrom(resp)
	}

	g.adoptRotatedToken(resp)
	return resp, nil
}

func (g *Gateway) unauthorized(ctx context.Context, c *call, resp *Response) (*Response, error) {
	statusErr := statusErrorFrom(resp)
	logger := g.logger.With().Str("request_id", resp.RequestID).Str("method", c.method).Str("path", c.path).Logger()

	if c.retried {
		logger.Debug().Msg("replayed request still unauthorized")
		return resp, statusErr
	}

	// another call renewed while this one was out; replay with its token
	if current := g.holder.AccessToken(); current != "" && current != c.sentWith {
		logger.Debug().Msg("token changed since the request was sent, replaying")
		c.retried = true
		return g.replay(ctx, c, current)
	}

	if !g.hint.HasSession() {
		logger.Debug().Msg("unauthorized without a session hint, clearing session")
		g.destroyer.ClearAll()
		return resp, statusErr
	}

	c.retried = true
	token, err := g.renewer.Renew(renewal.WithCaller(ctx, resp.RequestID), false)
	if err != nil {
		return resp, fmt.Errorf("%w: %w", statusErr, err)
	}
	if token == "" {
		return resp, statusErr
	}

	logger.Debug().Msg("replaying request with renewed token")
	return g.replay(ctx, c, token)
}

func (g *Gateway) replay(ctx context.Context, c *call, token string) (*Response, error) {
	g.metrics.RequestReplayed()
	c.token = token
	replay, err := g.send(ctx, c)
	if replay != nil {
		replay.Replayed = true
	}
	return replay, err
}

func (g *Gateway) roundTrip(ctx context.Context, c *call) (*Response, error) {
	var body io.Reader
	if c.payload != nil {
		body = bytes.NewReader(c.payload)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, g.url(c.path), body)
	if err != nil {
		return nil, errors.Wrap(err, "[Gateway.roundTrip] NewRequest")
	}

	requestID := g.newRequestID()
	req.Header.Set(HeaderRequestID, requestID)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", g.locale.String())
	if c.payload != nil {
		req.Header.Set("Content-Type", contentTypeJSON)
	}
	token := c.token
	if token == "" {
		token = g.holder.AccessToken()
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	c.sentWith = token

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Debug().Err(err).Str("request_id", requestID).Str("path", c.path).Msg("request failed")
		return nil, errors.Wrapf(err, "[Gateway.roundTrip] %s %s", c.method, c.path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "[Gateway.roundTrip] read body")
	}

	g.logger.Debug().
		Str("request_id", requestID).
		Str("method", c.method).
		Str("path", c.path).
		Int("status", resp.StatusCode).
		Msg("request complete")

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       raw,
		RequestID:  requestID,
	}, nil
}

// adoptRotatedToken stores a token an endpoint issued as a side effect of its own work.
func (g *Gateway) adoptRotatedToken(resp *Response) {
	tokens := backend.RotatedTokens(resp.Body)
	if tokens == nil {
		return
	}
	token := credential.NewToken(tokens.AccessToken, time.Duration(tokens.ExpiresIn)*time.Second, g.nowFunc())
	g.holder.Set(token)
	g.metrics.TokenRotated()
	g.logger.Debug().Str("request_id", resp.RequestID).Msg("adopted rotated token")
	g.bus.PublishTokenUpdated(events.TokenUpdated{Token: token.AccessToken})
}

func (g *Gateway) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return g.baseURL + path
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case io.Reader:
		return io.ReadAll(b)
	}
	return json.Marshal(body)
}
