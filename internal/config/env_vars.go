package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const (
	appNameVar  = "APP_NAME"
	baseURLVar  = "BASE_URL"
	localeVar   = "LOCALE"
	loginURLVar = "LOGIN_URL"
)

const (
	DefaultAppName  = "Booking Session"
	DefaultBaseURL  = "http://localhost:8080"
	DefaultLoginURL = "/login"
)

// DefaultLocale is used when LOCALE is unset or cannot be parsed.
var DefaultLocale = language.AmericanEnglish

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, DefaultAppName)
}

// GetBaseURL returns the API origin every request path is resolved against (e.g. "https://api.example.com")
func (EnvVars) GetBaseURL() string {
	return strings.TrimRight(GetEnv(baseURLVar, DefaultBaseURL), "/")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetLocale() language.Tag {
	tag, err := language.Parse(GetEnv(localeVar, DefaultLocale.String()))
	if err != nil {
		return DefaultLocale
	}
	return tag
}

// GetLoginURL is where the client navigates after the session has been destroyed
func (EnvVars) GetLoginURL() string {
	return GetEnv(loginURLVar, DefaultLoginURL)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetDurationEnv parses values such as "30s" or "5m". Invalid values fall back to the default.
func GetDurationEnv(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func GetIntEnv(envVar string, defaultValue int) int {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(value)
	if err != nil || i < 0 {
		return defaultValue
	}
	return i
}
