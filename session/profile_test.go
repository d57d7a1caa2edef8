package session_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/go-session-client/session"
	"github.com/stretchr/testify/require"
)

func TestUserProfile(t *testing.T) {
	var p session.UserProfile
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "u1",
		"roles": [{"name": "customer", "level": 10}, {"name": "Staff", "level": 30}],
		"effectiveLevel": 40,
		"businessAssociations": [
			{"businessId": "b1", "role": "BUSINESS_OWNER"},
			{"businessId": "b2", "role": "staff"}
		]
	}`), &p))

	require.True(t, p.HasRole("staff"))
	require.False(t, p.HasRole("admin"))
	require.True(t, p.IsBusinessOwner("b1"))
	require.False(t, p.IsBusinessOwner("b2"))
	require.Equal(t, 40, p.EffectiveLevel)

	var nilProfile *session.UserProfile
	require.False(t, nilProfile.HasRole("staff"))
	require.False(t, nilProfile.IsBusinessOwner("b1"))
}

func TestStatus_String(t *testing.T) {
	require.Equal(t, "uninitialized", session.StatusUninitialized.String())
	require.Equal(t, "initializing", session.StatusInitializing.String())
	require.Equal(t, "authenticated", session.StatusAuthenticated.String())
	require.Equal(t, "anonymous", session.StatusAnonymous.String())
}
