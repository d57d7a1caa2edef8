package config

import "time"

const (
	DefaultRequestTimeout = 15 * time.Second
	DefaultLogoutRetryMax = 2
)

type Transport struct{}

var _ TransportConfig = Transport{}

func (Transport) GetRequestTimeout() time.Duration {
	return GetDurationEnv("REQUEST_TIMEOUT", DefaultRequestTimeout)
}

func (Transport) GetLogoutRetryMax() int {
	return GetIntEnv("LOGOUT_RETRY_MAX", DefaultLogoutRetryMax)
}
