package credential_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-client/credential"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestHolder_SetGet(t *testing.T) {
	h := credential.NewHolder()
	require.Nil(t, h.Get())
	require.Empty(t, h.AccessToken())

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h.Set(credential.NewToken("abc", 15*time.Minute, now))

	got := h.Get()
	require.NotNil(t, got)
	require.Equal(t, "abc", got.AccessToken)
	require.Equal(t, "Bearer", got.TokenType)
	require.Equal(t, now.Add(15*time.Minute), got.Expiry)
	require.Equal(t, "abc", h.AccessToken())
}

func TestHolder_ReturnsCopies(t *testing.T) {
	h := credential.NewHolder()
	h.Set(&oauth2.Token{AccessToken: "abc"})

	got := h.Get()
	got.AccessToken = "mutated"

	require.Equal(t, "abc", h.AccessToken())
}

func TestHolder_Clear(t *testing.T) {
	h := credential.NewHolder()

	t.Run("nil clears", func(t *testing.T) {
		h.Set(&oauth2.Token{AccessToken: "abc"})
		h.Set(nil)
		require.Nil(t, h.Get())
	})

	t.Run("blank access token clears", func(t *testing.T) {
		h.Set(&oauth2.Token{AccessToken: "abc"})
		h.Set(&oauth2.Token{AccessToken: "  "})
		require.Nil(t, h.Get())
	})

	t.Run("clear is repeatable", func(t *testing.T) {
		h.Clear()
		h.Clear()
		require.Empty(t, h.AccessToken())
	})
}

func TestHolder_ConcurrentLastWriterWins(t *testing.T) {
	h := credential.NewHolder()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.Set(&oauth2.Token{AccessToken: "racer"})
			_ = h.AccessToken()
		}()
	}
	wg.Wait()

	h.Set(&oauth2.Token{AccessToken: "last"})
	require.Equal(t, "last", h.AccessToken())
}
