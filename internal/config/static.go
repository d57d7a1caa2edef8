package config

import (
	"time"

	"golang.org/x/text/language"
)

// Static is a Config built from literal values. Zero fields fall back to the package defaults,
// so tests only set what they care about.
type Static struct {
	AppName           string
	BaseURL           string
	Env               string
	Locale            language.Tag
	LoginURL          string
	RefreshPath       string
	LogoutPath        string
	LoginPath         string
	ProfilePath       string
	SessionHintCookie string
	RenewLead         time.Duration
	RenewMinInterval  time.Duration
	RenewMaxInterval  time.Duration
	RequestTimeout    time.Duration
	LogoutRetryMax    int
}

var _ Config = Static{}

func (s Static) GetAppName() string  { return orString(s.AppName, DefaultAppName) }
func (s Static) GetBaseURL() string  { return orString(s.BaseURL, DefaultBaseURL) }
func (s Static) GetEnv() string      { return orString(s.Env, "DEV") }
func (s Static) GetLoginURL() string { return orString(s.LoginURL, DefaultLoginURL) }

func (s Static) GetLocale() language.Tag {
	if s.Locale == (language.Tag{}) {
		return DefaultLocale
	}
	return s.Locale
}

func (s Static) GetRefreshPath() string { return orString(s.RefreshPath, DefaultRefreshPath) }
func (s Static) GetLogoutPath() string  { return orString(s.LogoutPath, DefaultLogoutPath) }
func (s Static) GetLoginPath() string   { return orString(s.LoginPath, DefaultLoginPath) }
func (s Static) GetProfilePath() string { return orString(s.ProfilePath, DefaultProfilePath) }

func (s Static) GetSessionHintCookie() string {
	return orString(s.SessionHintCookie, DefaultSessionHintCookie)
}

func (s Static) GetRenewLead() time.Duration { return orDuration(s.RenewLead, DefaultRenewLead) }

func (s Static) GetRenewMinInterval() time.Duration {
	return orDuration(s.RenewMinInterval, DefaultRenewMinInterval)
}

func (s Static) GetRenewMaxInterval() time.Duration {
	return orDuration(s.RenewMaxInterval, DefaultRenewMaxInterval)
}

func (s Static) GetRequestTimeout() time.Duration {
	return orDuration(s.RequestTimeout, DefaultRequestTimeout)
}

// GetLogoutRetryMax returns the configured value as-is; zero disables logout retries.
func (s Static) GetLogoutRetryMax() int { return s.LogoutRetryMax }

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
