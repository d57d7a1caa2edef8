package config

import "time"

const (
	DefaultRefreshPath       = "/auth/refresh"
	DefaultLogoutPath        = "/auth/logout"
	DefaultLoginPath         = "/auth/verify-code"
	DefaultProfilePath       = "/users/me"
	DefaultSessionHintCookie = "hasSession"

	DefaultRenewLead        = time.Minute
	DefaultRenewMinInterval = 30 * time.Second
	DefaultRenewMaxInterval = 4 * time.Minute
)

type Session struct{}

var _ SessionConfig = Session{}

func (Session) GetRefreshPath() string {
	return GetEnv("REFRESH_PATH", DefaultRefreshPath)
}

func (Session) GetLogoutPath() string {
	return GetEnv("LOGOUT_PATH", DefaultLogoutPath)
}

func (Session) GetLoginPath() string {
	return GetEnv("LOGIN_PATH", DefaultLoginPath)
}

func (Session) GetProfilePath() string {
	return GetEnv("PROFILE_PATH", DefaultProfilePath)
}

// GetSessionHintCookie names the non-HttpOnly cookie the server sets next to the refresh cookie
func (Session) GetSessionHintCookie() string {
	return GetEnv("SESSION_HINT_COOKIE", DefaultSessionHintCookie)
}

// GetRenewLead is how long before expiry the background renewal fires
func (Session) GetRenewLead() time.Duration {
	return GetDurationEnv("RENEW_LEAD", DefaultRenewLead)
}

func (Session) GetRenewMinInterval() time.Duration {
	return GetDurationEnv("RENEW_MIN_INTERVAL", DefaultRenewMinInterval)
}

// GetRenewMaxInterval also serves as the interval when the token carries no exp claim
func (Session) GetRenewMaxInterval() time.Duration {
	return GetDurationEnv("RENEW_MAX_INTERVAL", DefaultRenewMaxInterval)
}
