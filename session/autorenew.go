package session

import (
	"context"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-client/claims"
	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Renewer obtains a fresh access token. See renewal.Coordinator.
type Renewer interface {
	Renew(ctx context.Context, silent bool) (string, error)
}

// AutoRenewer renews the access token on a schedule, ahead of its expiry, so that ordinary
// requests rarely meet a 401.
type AutoRenewer struct {
	renewer     Renewer
	lead        time.Duration
	minInterval time.Duration
	maxInterval time.Duration
	timeout     time.Duration
	logger      zerolog.Logger

	mu       sync.Mutex
	cron     *cron.Cron
	entry    cron.EntryID
	running  bool
	started  bool
	interval time.Duration
}

type AutoRenewOption func(*AutoRenewer)

func WithAutoRenewLogger(logger zerolog.Logger) AutoRenewOption {
	return func(a *AutoRenewer) {
		a.logger = logger
	}
}

func NewAutoRenewer(renewer Renewer, cfg config.Config, options ...AutoRenewOption) *AutoRenewer {
	a := &AutoRenewer{
		renewer:     renewer,
		lead:        cfg.GetRenewLead(),
		minInterval: cfg.GetRenewMinInterval(),
		maxInterval: cfg.GetRenewMaxInterval(),
		timeout:     cfg.GetRequestTimeout(),
		logger:      log.Logger,
	}
	for _, opt := range options {
		opt(a)
	}

	cl := cronLogger{logger: a.logger.With().Str("component", "autorenew").Logger()}
	a.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	return a
}

// Interval returns how long to wait before renewing token: its remaining lifetime minus the
// lead, clamped to the configured bounds. Tokens without a readable expiry use the upper bound.
func (a *AutoRenewer) Interval(token string) time.Duration {
	ttl, ok := claims.TimeToExpiry(token)
	if !ok {
		return a.maxInterval
	}
	return min(max(ttl-a.lead, a.minInterval), a.maxInterval)
}

// Restart replaces any pending schedule with one derived from token.
func (a *AutoRenewer) Restart(token string) {
	interval := a.Interval(token)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running {
		a.cron.Remove(a.entry)
	}
	a.entry = a.cron.Schedule(cron.Every(interval), cron.FuncJob(a.tick))
	a.running = true
	a.interval = interval
	if !a.started {
		a.cron.Start()
		a.started = true
	}
	a.logger.Debug().Dur("interval", interval).Msg("auto-renew scheduled")
}

// Stop cancels the pending schedule. A tick already running finishes.
func (a *AutoRenewer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.running {
		return
	}
	a.cron.Remove(a.entry)
	a.running = false
	a.interval = 0
	a.logger.Debug().Msg("auto-renew stopped")
}

func (a *AutoRenewer) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

// CurrentInterval returns the interval of the active schedule, or zero when stopped.
func (a *AutoRenewer) CurrentInterval() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.interval
}

// Close stops the schedule and waits for a running tick to finish.
func (a *AutoRenewer) Close() {
	a.Stop()

	a.mu.Lock()
	started := a.started
	a.started = false
	a.mu.Unlock()
	if started {
		<-a.cron.Stop().Done()
	}
}

func (a *AutoRenewer) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	token, err := a.renewer.Renew(ctx, true)
	if err != nil || token == "" {
		a.logger.Debug().Err(err).Msg("scheduled renewal produced no token")
	}
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
