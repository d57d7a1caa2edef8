// Package backend speaks the auth endpoints of the booking API.
//
// These calls bypass the request gateway on purpose: a refresh or logout must never trigger
// another refresh. Cookies travel through the shared jar on the underlying http.Client.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jrsteele09/go-session-client/credential"
	"github.com/jrsteele09/go-session-client/internal/config"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/internal/utils"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"

	// maxBodyBytes bounds how much of an auth response is read
	maxBodyBytes = 1 << 20
)

// Client calls login, refresh, and logout.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	logoutClient *retryablehttp.Client
	config       config.Config
	logger       zerolog.Logger
	nowFunc      func() time.Time
}

type ClientOption func(*Client)

func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = now
	}
}

// New creates a Client. httpClient must carry the cookie jar and the request timeout.
func New(httpClient *http.Client, cfg config.Config, options ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.GetBaseURL(), "/"),
		httpClient: httpClient,
		config:     cfg,
		logger:     log.Logger,
		nowFunc:    time.Now,
	}
	for _, opt := range options {
		opt(c)
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.RetryMax = cfg.GetLogoutRetryMax()
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second
	rc.Logger = retryLogger{logger: c.logger.With().Str("component", "logout").Logger()}
	c.logoutClient = rc

	return c
}

// Refresh asks the server to mint a new access token from the protected refresh cookie.
// Failures are returned as *APIError when the server answered, and as transport errors otherwise.
func (c *Client) Refresh(ctx context.Context) (*oauth2.Token, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.config.GetRefreshPath(), nil, "")
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Refresh] newRequest")
	}
	return c.doTokenRequest(req, "[Client.Refresh]")
}

// Login exchanges an identifier and one-time verification code for an access token.
func (c *Client) Login(ctx context.Context, identifier, code string) (*oauth2.Token, error) {
	body, err := json.Marshal(LoginRequest{Identifier: identifier, Code: code})
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login] marshal")
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.config.GetLoginPath(), body, "")
	if err != nil {
		return nil, errors.Wrap(err, "[Client.Login] newRequest")
	}
	return c.doTokenRequest(req, "[Client.Login]")
}

// Logout invalidates the server-side session, which also clears the protected cookies.
// Transport failures and 5xx responses are retried; the caller treats any error as best-effort.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.url(c.config.GetLogoutPath()), nil)
	if err != nil {
		return errors.Wrap(err, "[Client.Logout] NewRequest")
	}
	c.setHeaders(req.Header, accessToken, false)

	resp, err := c.logoutClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "[Client.Logout] Do")
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode >= http.StatusBadRequest {
		return apiErrorFrom(resp.StatusCode, body)
	}
	return nil
}

func (c *Client) doTokenRequest(req *http.Request, op string) (*oauth2.Token, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, op+" Do")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, op+" read body")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apiErrorFrom(resp.StatusCode, body)
	}

	env, err := DecodeEnvelope(body)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrBadEnvelope, "%s decode: %v", op, err)
	}
	if !env.Success {
		return nil, apiErrorFrom(resp.StatusCode, body)
	}

	tokens := RotatedTokens(body)
	if tokens == nil {
		return nil, apperrors.Wrapf(apperrors.ErrBadEnvelope, "%s response carried no access token", op)
	}
	return credential.NewToken(tokens.AccessToken, time.Duration(tokens.ExpiresIn)*time.Second, c.nowFunc()), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body []byte, accessToken string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req.Header, accessToken, body != nil)
	return req, nil
}

func (c *Client) setHeaders(h http.Header, accessToken string, hasBody bool) {
	h.Set("Accept", "application/json")
	h.Set("Accept-Language", c.config.GetLocale().String())
	if hasBody {
		h.Set("Content-Type", contentTypeJSON)
	}
	if accessToken != "" {
		h.Set("Authorization", "Bearer "+accessToken)
	}
}

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// apiErrorFrom builds an APIError from a failure envelope, falling back to the status code
// when the body is not an envelope (e.g. a proxy's HTML error page).
func apiErrorFrom(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	if env, err := DecodeEnvelope(body); err == nil {
		e := utils.Value(env.Error)
		apiErr.Code = e.Code
		apiErr.Message = e.Message
	}
	return apiErr
}

// retryLogger adapts zerolog to retryablehttp.LeveledLogger.
type retryLogger struct {
	logger zerolog.Logger
}

var _ retryablehttp.LeveledLogger = retryLogger{}

func (l retryLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l retryLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn().Fields(keysAndValues).Msg(msg)
}
