package claims_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-session-client/claims"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signed(t *testing.T, c jwtlib.MapClaims) string {
	t.Helper()
	raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, c).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func withFixedNow(t *testing.T) {
	t.Helper()
	previous := claims.NowTimeFunc
	claims.NowTimeFunc = func() time.Time { return fixedNow }
	t.Cleanup(func() { claims.NowTimeFunc = previous })
}

func TestDecode(t *testing.T) {
	raw := signed(t, jwtlib.MapClaims{
		"sub":    "user-1",
		"roles":  []string{"customer", "business_owner"},
		"tenant": "biz-42",
		"iat":    fixedNow.Unix(),
		"exp":    fixedNow.Add(15 * time.Minute).Unix(),
	})

	c, err := claims.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", c.SubjectID)
	require.Equal(t, []string{"customer", "business_owner"}, c.Roles)
	require.Equal(t, "biz-42", c.Tenant)
	require.True(t, c.IssuedAt.Equal(fixedNow))
	require.True(t, c.ExpiresAt.Equal(fixedNow.Add(15*time.Minute)))
	require.True(t, c.HasRole("business_owner"))
	require.False(t, c.HasRole("admin"))
}

func TestDecode_ExpiredTokenStillDecodes(t *testing.T) {
	raw := signed(t, jwtlib.MapClaims{"sub": "user-1", "exp": fixedNow.Add(-time.Hour).Unix()})

	c, err := claims.Decode(raw)
	require.NoError(t, err)
	require.Equal(t, "user-1", c.SubjectID)
}

func TestDecode_RoleVariants(t *testing.T) {
	t.Run("comma separated string", func(t *testing.T) {
		c, err := claims.Decode(signed(t, jwtlib.MapClaims{"sub": "u", "roles": "staff,owner"}))
		require.NoError(t, err)
		require.Equal(t, []string{"staff", "owner"}, c.Roles)
	})

	t.Run("single role claim", func(t *testing.T) {
		c, err := claims.Decode(signed(t, jwtlib.MapClaims{"sub": "u", "role": "admin"}))
		require.NoError(t, err)
		require.Equal(t, []string{"admin"}, c.Roles)
	})

	t.Run("no roles", func(t *testing.T) {
		c, err := claims.Decode(signed(t, jwtlib.MapClaims{"sub": "u"}))
		require.NoError(t, err)
		require.Empty(t, c.Roles)
	})
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{name: "empty", raw: "", want: apperrors.ErrMissingToken},
		{name: "blank", raw: "   ", want: apperrors.ErrMissingToken},
		{name: "garbage", raw: "not-a-jwt", want: apperrors.ErrMalformedToken},
		{name: "bad base64", raw: "a.%%%.c", want: apperrors.ErrMalformedToken},
		{name: "two segments", raw: "eyJhbGciOiJIUzI1NiJ9.eyJzdWIiOiJ1In0", want: apperrors.ErrMalformedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NotPanics(t, func() {
				c, err := claims.Decode(tt.raw)
				require.Nil(t, c)
				require.ErrorIs(t, err, tt.want)
			})
		})
	}
}

func TestIsExpired(t *testing.T) {
	withFixedNow(t)

	valid := signed(t, jwtlib.MapClaims{"sub": "u", "exp": fixedNow.Add(10 * time.Minute).Unix()})
	expired := signed(t, jwtlib.MapClaims{"sub": "u", "exp": fixedNow.Add(-time.Second).Unix()})
	noExp := signed(t, jwtlib.MapClaims{"sub": "u"})

	require.False(t, claims.IsExpired(valid, 0))
	require.False(t, claims.IsExpired(valid, 9*time.Minute))
	require.True(t, claims.IsExpired(valid, 10*time.Minute))
	require.True(t, claims.IsExpired(expired, 0))
	require.True(t, claims.IsExpired(noExp, 0))
	require.True(t, claims.IsExpired("garbage", 0))
}

func TestTimeToExpiry(t *testing.T) {
	withFixedNow(t)

	d, ok := claims.TimeToExpiry(signed(t, jwtlib.MapClaims{"sub": "u", "exp": fixedNow.Add(5 * time.Minute).Unix()}))
	require.True(t, ok)
	require.Equal(t, 5*time.Minute, d)

	d, ok = claims.TimeToExpiry(signed(t, jwtlib.MapClaims{"sub": "u", "exp": fixedNow.Add(-time.Minute).Unix()}))
	require.True(t, ok)
	require.Equal(t, -time.Minute, d)

	_, ok = claims.TimeToExpiry(signed(t, jwtlib.MapClaims{"sub": "u"}))
	require.False(t, ok)

	_, ok = claims.TimeToExpiry("garbage")
	require.False(t, ok)
}
