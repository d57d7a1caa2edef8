package session_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-session-client/backend"
	"github.com/jrsteele09/go-session-client/backend/backendfake"
	"github.com/jrsteele09/go-session-client/cleanup"
	"github.com/jrsteele09/go-session-client/cookies"
	"github.com/jrsteele09/go-session-client/credential"
	"github.com/jrsteele09/go-session-client/events"
	"github.com/jrsteele09/go-session-client/gateway"
	"github.com/jrsteele09/go-session-client/internal/config"
	apperrors "github.com/jrsteele09/go-session-client/internal/errors"
	"github.com/jrsteele09/go-session-client/renewal"
	"github.com/jrsteele09/go-session-client/session"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type storeFixture struct {
	server      *backendfake.Server
	jar         http.CookieJar
	hint        *cookies.Hint
	holder      *credential.Holder
	bus         *events.Bus
	store       *session.Store
	navigations atomic.Int32
	cleared     atomic.Int32
}

func setupStore(t *testing.T) *storeFixture {
	t.Helper()
	srv := backendfake.NewServer()
	t.Cleanup(srv.Close)

	f := &storeFixture{
		server: srv,
		jar:    cookies.NewJar(),
		holder: credential.NewHolder(),
		bus:    events.NewBus(),
	}
	f.hint = cookies.NewHint(f.jar, srv.BaseURL(), config.DefaultSessionHintCookie)
	f.bus.OnSessionCleared(func(events.SessionCleared) { f.cleared.Add(1) })

	cfg := config.Static{BaseURL: srv.URL}
	httpClient := &http.Client{Jar: f.jar, Timeout: 5 * time.Second}
	nop := zerolog.Nop()

	client := backend.New(httpClient, cfg, backend.WithLogger(nop))
	cleaner := cleanup.New(f.holder, f.hint, f.bus, cfg.GetLoginURL(),
		cleanup.WithLogger(nop),
		cleanup.WithNavigator(cleanup.NavigatorFunc(func(string) { f.navigations.Add(1) })),
	)
	coord := renewal.New(client, f.holder, f.bus, cleaner, renewal.WithLogger(nop))
	gw := gateway.New(httpClient, cfg, f.holder, coord, f.hint, cleaner, f.bus, gateway.WithLogger(nop))

	f.store = session.New(session.Deps{
		Backend:   client,
		Renewer:   coord,
		API:       gw,
		Holder:    f.holder,
		Bus:       f.bus,
		Hint:      f.hint,
		Destroyer: cleaner,
	}, cfg, session.WithLogger(nop))
	t.Cleanup(f.store.Close)
	return f
}

func TestStore_Initialize(t *testing.T) {
	t.Run("no hint means no network calls", func(t *testing.T) {
		f := setupStore(t)
		require.Equal(t, session.StatusUninitialized, f.store.Status())

		require.NoError(t, f.store.Initialize(context.Background()))

		require.True(t, f.store.IsInitialized())
		require.False(t, f.store.IsAuthenticated())
		require.Equal(t, session.StatusAnonymous, f.store.Status())
		require.Zero(t, f.server.TotalCalls())
		require.False(t, f.store.AutoRenewing())
	})

	t.Run("hint with a live session", func(t *testing.T) {
		f := setupStore(t)
		f.server.SeedSession(f.jar, "user-1")

		require.NoError(t, f.store.Initialize(context.Background()))

		require.True(t, f.store.IsAuthenticated())
		require.Equal(t, 1, f.server.Calls(config.DefaultRefreshPath))
		require.Equal(t, 1, f.server.Calls(config.DefaultProfilePath))
		require.Equal(t, "user-1", f.store.CurrentUser().ID)
		require.True(t, f.store.AutoRenewing())

		c, err := f.store.Claims()
		require.NoError(t, err)
		require.Equal(t, "user-1", c.SubjectID)
	})

	t.Run("hint with a revoked session", func(t *testing.T) {
		f := setupStore(t)
		f.server.SeedSession(f.jar, "user-1")
		f.server.SetRefreshMode(backendfake.RefreshInvalidSession)

		require.NoError(t, f.store.Initialize(context.Background()))

		require.Equal(t, session.StatusAnonymous, f.store.Status())
		require.Nil(t, f.holder.Get())
		require.False(t, f.hint.HasSession())
		require.EqualValues(t, 1, f.cleared.Load())
		require.EqualValues(t, 1, f.navigations.Load())
		require.Zero(t, f.server.Calls(config.DefaultProfilePath))
	})

	t.Run("hint with the backend down", func(t *testing.T) {
		f := setupStore(t)
		f.server.SeedSession(f.jar, "user-1")
		f.server.SetRefreshMode(backendfake.RefreshServerError)

		require.NoError(t, f.store.Initialize(context.Background()))

		require.Equal(t, session.StatusAnonymous, f.store.Status())
		require.True(t, f.hint.HasSession())
		require.Zero(t, f.cleared.Load())
		require.Zero(t, f.navigations.Load())
	})

	t.Run("a cleanup before start-up does not skip initialization", func(t *testing.T) {
		f := setupStore(t)
		f.bus.PublishSessionCleared()
		require.Equal(t, session.StatusUninitialized, f.store.Status())

		f.server.SeedSession(f.jar, "user-1")
		require.NoError(t, f.store.Initialize(context.Background()))
		require.True(t, f.store.IsAuthenticated())
	})

	t.Run("runs once", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Initialize(context.Background()))
		require.ErrorIs(t, f.store.Initialize(context.Background()), apperrors.ErrAlreadyInitialized)
	})
}

func TestStore_Login(t *testing.T) {
	t.Run("valid code", func(t *testing.T) {
		f := setupStore(t)
		f.server.AddUser("user-7", "sam@example.com", "123456", "customer", "staff")
		require.NoError(t, f.store.Initialize(context.Background()))

		require.NoError(t, f.store.Login(context.Background(), " sam@example.com ", "123456"))

		require.True(t, f.store.IsAuthenticated())
		require.NotEmpty(t, f.holder.AccessToken())
		require.True(t, f.hint.HasSession())
		user := f.store.CurrentUser()
		require.Equal(t, "user-7", user.ID)
		require.True(t, user.HasRole("STAFF"))
		require.Equal(t, 20, user.EffectiveLevel)
		require.True(t, f.store.AutoRenewing())
		require.Zero(t, f.server.Calls(config.DefaultRefreshPath))
	})

	t.Run("wrong code", func(t *testing.T) {
		f := setupStore(t)
		f.server.AddUser("user-7", "sam@example.com", "123456")
		require.NoError(t, f.store.Initialize(context.Background()))

		err := f.store.Login(context.Background(), "sam@example.com", "000000")
		require.ErrorIs(t, err, apperrors.ErrLoginFailed)

		var loginErr *session.LoginError
		require.ErrorAs(t, err, &loginErr)
		require.Equal(t, "invalid-code", loginErr.Code)

		require.Equal(t, session.StatusAnonymous, f.store.Status())
		require.Nil(t, f.holder.Get())
		require.Zero(t, f.navigations.Load())
	})

	t.Run("profile unavailable after the code is accepted", func(t *testing.T) {
		f := setupStore(t)
		f.server.AddUser("user-7", "sam@example.com", "123456")
		require.NoError(t, f.store.Initialize(context.Background()))
		f.server.FailProfile(http.StatusInternalServerError)

		err := f.store.Login(context.Background(), "sam@example.com", "123456")
		require.ErrorIs(t, err, apperrors.ErrLoginFailed)

		var loginErr *session.LoginError
		require.ErrorAs(t, err, &loginErr)
		require.Equal(t, session.LoginCodeProfileUnavailable, loginErr.Code)

		require.Equal(t, session.StatusAnonymous, f.store.Status())
		require.Nil(t, f.holder.Get())
		require.Nil(t, f.store.CurrentUser())
		require.False(t, f.store.AutoRenewing())
		require.Equal(t, 1, f.server.Calls(config.DefaultProfilePath))
		require.Zero(t, f.navigations.Load())
	})

	t.Run("backend unreachable", func(t *testing.T) {
		f := setupStore(t)
		f.server.Close()

		err := f.store.Login(context.Background(), "sam@example.com", "123456")
		var loginErr *session.LoginError
		require.ErrorAs(t, err, &loginErr)
		require.Equal(t, session.LoginCodeUnavailable, loginErr.Code)
	})
}

func TestStore_Logout(t *testing.T) {
	f := setupStore(t)
	f.server.SeedSession(f.jar, "user-1")
	require.NoError(t, f.store.Initialize(context.Background()))
	require.True(t, f.store.IsAuthenticated())

	f.store.Logout(context.Background())

	require.Equal(t, 1, f.server.Calls(config.DefaultLogoutPath))
	require.False(t, f.store.IsAuthenticated())
	require.Nil(t, f.store.CurrentUser())
	require.Nil(t, f.holder.Get())
	require.False(t, f.hint.HasSession())
	require.False(t, f.store.AutoRenewing())
	require.EqualValues(t, 1, f.navigations.Load())

	t.Run("logout survives a dead backend", func(t *testing.T) {
		f := setupStore(t)
		f.server.SeedSession(f.jar, "user-1")
		require.NoError(t, f.store.Initialize(context.Background()))
		f.server.Close()

		f.store.Logout(context.Background())

		require.False(t, f.store.IsAuthenticated())
		require.Nil(t, f.holder.Get())
		require.EqualValues(t, 1, f.cleared.Load())
	})
}

func TestStore_AdoptToken(t *testing.T) {
	f := setupStore(t)
	require.NoError(t, f.store.Initialize(context.Background()))
	f.server.SeedSession(f.jar, "user-3")
	token := f.server.IssueToken("user-3")

	require.NoError(t, f.store.AdoptToken(context.Background(), token, 15*time.Minute))

	require.True(t, f.store.IsAuthenticated())
	require.Equal(t, token, f.holder.AccessToken())
	require.Equal(t, 1, f.server.Calls(config.DefaultProfilePath))
	require.Zero(t, f.server.Calls(config.DefaultRefreshPath))
	require.Equal(t, "user-3", f.store.CurrentUser().ID)

	t.Run("blank token", func(t *testing.T) {
		require.ErrorIs(t, f.store.AdoptToken(context.Background(), "  ", time.Minute), apperrors.ErrMissingToken)
		require.Equal(t, 1, f.server.Calls(config.DefaultProfilePath))
	})
}

func TestStore_RefreshProfile(t *testing.T) {
	t.Run("forced role reload renews first", func(t *testing.T) {
		f := setupStore(t)
		f.server.SeedSession(f.jar, "user-1")
		require.NoError(t, f.store.Initialize(context.Background()))
		f.server.SetProfile("user-1", map[string]any{
			"id":    "user-1",
			"roles": []map[string]any{{"name": "customer", "level": 10}, {"name": "business_owner", "level": 50}},
			"businessAssociations": []map[string]any{
				{"businessId": "biz-1", "role": "business_owner"},
			},
		})

		require.NoError(t, f.store.RefreshProfile(context.Background(), true))

		require.Equal(t, 2, f.server.Calls(config.DefaultRefreshPath))
		require.Equal(t, 2, f.server.Calls(config.DefaultProfilePath))
		user := f.store.CurrentUser()
		require.True(t, user.IsBusinessOwner("biz-1"))
		require.False(t, user.IsBusinessOwner("biz-2"))
		require.Equal(t, 50, user.EffectiveLevel)
	})

	t.Run("revoked session during forced reload", func(t *testing.T) {
		f := setupStore(t)
		f.server.SeedSession(f.jar, "user-1")
		require.NoError(t, f.store.Initialize(context.Background()))
		f.server.SetRefreshMode(backendfake.RefreshInvalidSession)

		err := f.store.RefreshProfile(context.Background(), true)
		require.ErrorIs(t, err, apperrors.ErrInvalidSession)

		require.Nil(t, f.holder.Get())
		require.False(t, f.store.IsAuthenticated())
		require.False(t, f.store.AutoRenewing())
		require.EqualValues(t, 1, f.cleared.Load())
		require.EqualValues(t, 1, f.navigations.Load())
	})

	t.Run("anonymous", func(t *testing.T) {
		f := setupStore(t)
		require.NoError(t, f.store.Initialize(context.Background()))
		require.ErrorIs(t, f.store.RefreshProfile(context.Background(), false), apperrors.ErrNotAuthenticated)
	})

	t.Run("current user is a copy", func(t *testing.T) {
		f := setupStore(t)
		f.server.SeedSession(f.jar, "user-1")
		require.NoError(t, f.store.Initialize(context.Background()))

		user := f.store.CurrentUser()
		user.Roles[0].Name = "admin"
		require.False(t, f.store.CurrentUser().HasRole("admin"))
	})
}
