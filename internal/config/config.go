package config

import (
	"time"

	"golang.org/x/text/language"
)

type Config interface {
	EnvConfig
	SessionConfig
	TransportConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetEnv() string
	GetLocale() language.Tag
	GetLoginURL() string
}

type SessionConfig interface {
	GetRefreshPath() string
	GetLogoutPath() string
	GetLoginPath() string
	GetProfilePath() string
	GetSessionHintCookie() string
	GetRenewLead() time.Duration
	GetRenewMinInterval() time.Duration
	GetRenewMaxInterval() time.Duration
}

type TransportConfig interface {
	GetRequestTimeout() time.Duration
	GetLogoutRetryMax() int
}

type mainConfig struct {
	EnvVars
	Session
	Transport
}

func New() Config {
	return mainConfig{}
}
