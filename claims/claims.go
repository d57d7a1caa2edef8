package claims

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/internal/utils"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Claims is the client-side view of an access token payload.
// It is read for display and scheduling only; the server remains the authority.
type Claims struct {
	SubjectID string    `json:"sub"`              // Users unique ID
	Roles     []string  `json:"roles,omitempty"`  // Roles assigned to the user when the token was minted
	Tenant    string    `json:"tenant,omitempty"` // Business the token was scoped to, if any
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"` // Zero when the token carries no exp claim
}

// HasRole reports whether the token was minted with the named role.
func (c *Claims) HasRole(role string) bool {
	if c == nil {
		return false
	}
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Decode reads the payload of a JWT access token without verifying its signature.
// Any malformed input yields an error wrapping ErrMalformedToken; Decode never panics.
func Decode(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, apperrors.ErrMissingToken
	}

	unverified, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedToken, "[claims.Decode] %v", err)
	}

	mapClaims, ok := unverified.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedToken, "[claims.Decode] error extracting claims")
	}

	sub, _ := mapClaims.GetSubject()
	tenant, _ := mapClaims["tenant"].(string)

	c := &Claims{
		SubjectID: sub,
		Tenant:    tenant,
		Roles:     rolesFrom(mapClaims),
	}

	// ParseUnverified skips claim validation, so a string "exp" surfaces here as an error
	if exp, err := mapClaims.GetExpirationTime(); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedToken, "[claims.Decode] exp: %v", err)
	} else if exp != nil {
		c.ExpiresAt = exp.Time
	}
	if iat, err := mapClaims.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}

	return c, nil
}

// IsExpired reports whether the token is expired, or will be within skew.
// Tokens that cannot be decoded or carry no exp are treated as expired.
func IsExpired(rawToken string, skew time.Duration) bool {
	c, err := Decode(rawToken)
	if err != nil || c.ExpiresAt.IsZero() {
		return true
	}
	return !NowTimeFunc().Add(skew).Before(c.ExpiresAt)
}

// TimeToExpiry returns the time left before the token expires. The bool is false when the
// token cannot be decoded or has no exp claim. The duration is negative for expired tokens.
func TimeToExpiry(rawToken string) (time.Duration, bool) {
	c, err := Decode(rawToken)
	if err != nil || c.ExpiresAt.IsZero() {
		return 0, false
	}
	return c.ExpiresAt.Sub(NowTimeFunc()), true
}

func rolesFrom(mapClaims jwtlib.MapClaims) []string {
	switch v := mapClaims["roles"].(type) {
	case []any:
		return utils.ToStringSlice(v)
	case string:
		if v == "" {
			return nil
		}
		return strings.Fields(strings.ReplaceAll(v, ",", " "))
	}
	if role, ok := mapClaims["role"].(string); ok && role != "" {
		return []string{role}
	}
	return nil
}
