package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/go-session-client/client"
	"github.com/jrsteele09/go-session-client/events"
	"github.com/jrsteele09/go-session-client/internal/config"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type options struct {
	identifier string
	code       string
	logout     bool
	once       bool
}

func main() {
	var opts options
	flag.StringVar(&opts.identifier, "identifier", "", "email or phone number to log in with")
	flag.StringVar(&opts.code, "code", "", "verification code for -identifier")
	flag.BoolVar(&opts.logout, "logout", false, "log out before exiting")
	flag.BoolVar(&opts.once, "once", false, "exit after printing the session instead of waiting for a signal")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatal().Err(err).Msg("session probe failed")
	}
	log.Info().Msg("session probe stopped")
}

func run(opts options) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic")
			debug.PrintStack()
			returnError = errors.New("panic recovered")
		}
	}()

	c := config.New()
	configureLogging(c.GetEnv())
	displayAppname(c.GetAppName())

	cl, err := client.New(c)
	if err != nil {
		return fmt.Errorf("client.New: %w", err)
	}
	defer cl.Close()

	cl.Events().OnTokenUpdated(func(events.TokenUpdated) {
		log.Info().Msg("access token updated")
	})
	cl.Events().OnSessionCleared(func(events.SessionCleared) {
		log.Warn().Msg("session cleared")
	})

	ctx, cancel := context.WithTimeout(context.Background(), c.GetRequestTimeout())
	defer cancel()
	if err := cl.Session().Initialize(ctx); err != nil {
		return fmt.Errorf("session.Initialize: %w", err)
	}

	if opts.identifier != "" {
		if err := cl.Session().Login(ctx, opts.identifier, opts.code); err != nil {
			return fmt.Errorf("session.Login: %w", err)
		}
	}
	printSession(cl.Session())

	if !opts.once {
		waitForStopSignal()
	}

	if opts.logout {
		logoutCtx, logoutCancel := context.WithTimeout(context.Background(), c.GetRequestTimeout())
		defer logoutCancel()
		cl.Session().Logout(logoutCtx)
	}
	return nil
}

func configureLogging(env string) {
	zerolog.TimeFieldFormat = time.RFC3339
	if strings.EqualFold(env, "DEV") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
		return
	}
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

func printSession(s *session.Store) {
	event := log.Info().Str("status", s.Status().String())
	if user := s.CurrentUser(); user != nil {
		roles := make([]string, 0, len(user.Roles))
		for _, r := range user.Roles {
			roles = append(roles, r.Name)
		}
		event = event.Str("user_id", user.ID).Strs("roles", roles).Int("level", user.EffectiveLevel)
	}
	if c, err := s.Claims(); err == nil {
		event = event.Time("expires_at", c.ExpiresAt)
	}
	event.Bool("auto_renew", s.AutoRenewing()).Msg("session")
}

func waitForStopSignal() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
