// Package renewal turns any number of concurrent "I need a fresh token" requests into a single
// call to the refresh endpoint.
//
// The first caller performs the network call on its own goroutine. Callers arriving while it is
// in flight wait on the PendingQueue and receive the same outcome, in arrival order. The
// Coordinator never retries; retrying is the business of its callers.
package renewal

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-client/credential"
	"github.com/jrsteele09/go-session-client/events"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Outcome classifies how a renewal ended.
type Outcome int

const (
	OutcomeRenewed Outcome = iota
	// OutcomeNoSession means there was never a refresh session. Normal for anonymous visitors.
	OutcomeNoSession
	// OutcomeInvalidSession means the session was revoked or expired. The session is destroyed.
	OutcomeInvalidSession
	// OutcomeTransient covers network failures, timeouts, and 5xx. The hint cookie is kept.
	OutcomeTransient
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRenewed:
		return metrics.OutcomeSuccess
	case OutcomeNoSession:
		return metrics.OutcomeNoSession
	case OutcomeInvalidSession:
		return metrics.OutcomeInvalidSession
	}
	return metrics.OutcomeTransient
}

// Classify maps a refresh error onto an Outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeRenewed
	case apperrors.Is(err, apperrors.ErrNoSession):
		return OutcomeNoSession
	case apperrors.Is(err, apperrors.ErrInvalidSession):
		return OutcomeInvalidSession
	}
	return OutcomeTransient
}

type callerKey struct{}

// WithCaller tags ctx with an identifier for the caller, such as a request ID. Queued callers are
// logged with it when they are settled.
func WithCaller(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, callerKey{}, id)
}

func callerFrom(ctx context.Context) string {
	id, _ := ctx.Value(callerKey{}).(string)
	return id
}

// Refresher performs the refresh network call.
type Refresher interface {
	Refresh(ctx context.Context) (*oauth2.Token, error)
}

// SessionDestroyer runs the full cleanup after a fatal renewal failure.
type SessionDestroyer interface {
	ClearAll()
}

type Coordinator struct {
	refresher Refresher
	holder    *credential.Holder
	bus       *events.Bus
	destroyer SessionDestroyer
	metrics   *metrics.Collector
	logger    zerolog.Logger
	nowFunc   func() time.Time

	mu       sync.Mutex
	inFlight bool
	queue    PendingQueue
}

type Option func(*Coordinator)

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.nowFunc = now
	}
}

func New(refresher Refresher, holder *credential.Holder, bus *events.Bus, destroyer SessionDestroyer, options ...Option) *Coordinator {
	c := &Coordinator{
		refresher: refresher,
		holder:    holder,
		bus:       bus,
		destroyer: destroyer,
		logger:    log.Logger,
		nowFunc:   time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// InFlight reports whether a refresh call is currently outstanding.
func (c *Coordinator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Waiting returns how many callers are queued behind the renewal in flight.
func (c *Coordinator) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Len()
}

// Renew returns a fresh access token, joining the renewal in flight if there is one.
//
// A missing session yields ("", nil) whatever silent says. Invalid-session and transient
// failures yield ("", err) unless silent, in which case the error is only logged.
// A queued caller whose ctx ends stops waiting; the renewal itself carries on.
func (c *Coordinator) Renew(ctx context.Context, silent bool) (string, error) {
	c.mu.Lock()
	if c.inFlight {
		done := make(chan result, 1)
		caller, position := callerFrom(ctx), c.queue.Len()+1
		c.queue.Enqueue(
			func(token string) {
				c.logSettled(caller, position, nil)
				done <- result{token: token}
			},
			func(err error) {
				c.logSettled(caller, position, err)
				done <- result{err: err}
			},
		)
		c.mu.Unlock()
		c.metrics.RenewalJoined()

		select {
		case r := <-done:
			return surface(r, silent)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	c.inFlight = true
	c.mu.Unlock()

	r := c.renew(ctx)
	return surface(r, silent)
}

func (c *Coordinator) logSettled(caller string, position int, err error) {
	c.logger.Debug().
		Str("caller", caller).
		Int("position", position).
		Bool("renewed", err == nil).
		Msg("queued caller settled")
}

type result struct {
	token string
	err   error
}

// renew performs the single network call and settles every queued caller before returning.
func (c *Coordinator) renew(ctx context.Context) (r result) {
	defer func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.queue.Drain(r.token, r.err)
		c.inFlight = false
	}()

	c.logger.Debug().Msg("renewing access token")
	token, err := c.refresher.Refresh(ctx)
	if err == nil && token != nil && !token.Expiry.IsZero() && !token.Expiry.After(c.nowFunc()) {
		err = apperrors.Wrapf(apperrors.ErrRenewalFailed, "[Coordinator.renew] refreshed token already expired at %s", token.Expiry)
	}
	if err == nil && token == nil {
		err = apperrors.Wrapf(apperrors.ErrRenewalFailed, "[Coordinator.renew] %v", apperrors.ErrMissingToken)
	}

	outcome := Classify(err)
	c.metrics.RenewalFinished(outcome.String())

	switch outcome {
	case OutcomeRenewed:
		c.holder.Set(token)
		c.logger.Debug().Time("expiry", token.Expiry).Msg("access token renewed")
		c.bus.PublishTokenUpdated(events.TokenUpdated{Token: token.AccessToken})
		return result{token: token.AccessToken}

	case OutcomeNoSession:
		c.holder.Clear()
		c.logger.Debug().Msg("no refresh session")
		return result{err: apperrors.Wrapf(err, "[Coordinator.renew]")}

	case OutcomeInvalidSession:
		c.logger.Info().Err(err).Msg("refresh session rejected, clearing session")
		c.destroyer.ClearAll()
		return result{err: apperrors.Wrapf(err, "[Coordinator.renew]")}
	}

	c.holder.Clear()
	c.logger.Warn().Err(err).Msg("token renewal failed")
	if !apperrors.Is(err, apperrors.ErrRenewalFailed) {
		err = apperrors.Wrapf(apperrors.ErrRenewalFailed, "[Coordinator.renew] %v", err)
	}
	return result{err: err}
}

func surface(r result, silent bool) (string, error) {
	if r.err == nil {
		return r.token, nil
	}
	if silent || apperrors.Is(r.err, apperrors.ErrNoSession) {
		return "", nil
	}
	return "", r.err
}
