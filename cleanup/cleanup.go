// Package cleanup destroys the local session after an unrecoverable failure or a logout.
package cleanup

import (
	"github.com/jrsteele09/go-session-client/credential"
	"github.com/jrsteele09/go-session-client/events"
	"github.com/jrsteele09/go-session-client/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Navigator performs the hard navigation to the login surface.
type Navigator interface {
	Navigate(url string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string)

func (f NavigatorFunc) Navigate(url string) { f(url) }

// LogNavigator only records the navigation. It is the default for headless clients.
type LogNavigator struct {
	Logger zerolog.Logger
}

func (n LogNavigator) Navigate(url string) {
	n.Logger.Info().Str("url", url).Msg("navigating to login")
}

// HintClearer removes the client-writable session hint.
type HintClearer interface {
	Clear()
}

// Cleaner wipes the credential and the hint cookie, tells listeners, then navigates to login.
type Cleaner struct {
	holder    *credential.Holder
	hint      HintClearer
	bus       *events.Bus
	navigator Navigator
	loginURL  string
	metrics   *metrics.Collector
	logger    zerolog.Logger
}

type Option func(*Cleaner)

func WithNavigator(n Navigator) Option {
	return func(c *Cleaner) {
		c.navigator = n
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Cleaner) {
		c.metrics = m
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cleaner) {
		c.logger = logger
	}
}

func New(holder *credential.Holder, hint HintClearer, bus *events.Bus, loginURL string, options ...Option) *Cleaner {
	c := &Cleaner{
		holder:   holder,
		hint:     hint,
		bus:      bus,
		loginURL: loginURL,
		logger:   log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.navigator == nil {
		c.navigator = LogNavigator{Logger: c.logger}
	}
	return c
}

// ClearAll is idempotent and safe to call repeatedly. HttpOnly cookies are left for the
// server's logout endpoint to clear.
func (c *Cleaner) ClearAll() {
	c.holder.Clear()
	c.hint.Clear()
	c.metrics.SessionCleared()
	c.logger.Debug().Msg("session cleared")
	c.bus.PublishSessionCleared()
	c.navigator.Navigate(c.loginURL)
}
