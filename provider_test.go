package goAuthClient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goAuthClient/events"
	"github.com/MrEthical07/goAuthClient/internal/authtest"
	"github.com/MrEthical07/goAuthClient/state"
	"github.com/MrEthical07/goAuthClient/token"
)

type navRecorder struct {
	mu      sync.Mutex
	targets []string
	delay   time.Duration
}

func (n *navRecorder) Redirect(_ context.Context, target string) error {
	time.Sleep(n.delay)
	n.mu.Lock()
	defer n.mu.Unlock()
	n.targets = append(n.targets, target)
	return nil
}

func (n *navRecorder) Targets() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.targets...)
}

func newProvider(t *testing.T, srv *authtest.Server, configure func(*Builder)) (*Provider, *navRecorder) {
	t.Helper()
	nav := &navRecorder{}
	b := New().WithBaseURL(srv.URL).WithNavigator(nav).WithMonitor(false)
	if configure != nil {
		configure(b)
	}
	p, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, nav
}

func waitForTargets(t *testing.T, nav *navRecorder, n int) []string {
	t.Helper()
	require.Eventually(t, func() bool { return len(nav.Targets()) >= n }, 2*time.Second, 5*time.Millisecond)
	// Give a duplicate redirect the chance to show up.
	time.Sleep(20 * time.Millisecond)
	return nav.Targets()
}

func TestProviderLoginUpdatesState(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	p, _ := newProvider(t, srv, nil)

	var kinds []string
	unsubscribe := p.Subscribe(func(_, _ state.State, a state.Action) {
		kinds = append(kinds, a.Kind())
	})
	defer unsubscribe()

	user, err := p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	st := p.State()
	assert.True(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	assert.Empty(t, st.Error)
	require.NotNil(t, st.User)
	assert.Equal(t, authtest.DefaultIdentifier, st.User.Email)
	assert.Equal(t, []string{"AUTH_START", "AUTH_SUCCESS"}, kinds)

	tok, ok := p.GetAccessToken(context.Background())
	assert.True(t, ok)
	assert.NotEmpty(t, tok)
	assert.EqualValues(t, 1, p.MetricsSnapshot().Counters[MetricLoginSuccess])
}

func TestProviderLoginFailureRecordsError(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	p, nav := newProvider(t, srv, nil)

	_, err := p.Login(context.Background(), authtest.DefaultIdentifier, "nope")
	require.ErrorIs(t, err, ErrUnauthorized)

	st := p.State()
	assert.False(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	assert.Equal(t, "invalid credentials", st.Error)
	assert.Empty(t, nav.Targets())
	assert.EqualValues(t, 1, p.MetricsSnapshot().Counters[MetricLoginFailure])

	_, ok := p.GetAccessToken(context.Background())
	assert.False(t, ok)
}

func TestProviderLogoutResetsStateAndRedirects(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	p, nav := newProvider(t, srv, nil)

	_, err := p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.NoError(t, err)

	require.NoError(t, p.Logout(context.Background()))
	assert.Equal(t, state.Initial(), p.State())
	assert.EqualValues(t, 1, srv.Logouts())

	_, ok := p.GetAccessToken(context.Background())
	assert.False(t, ok)

	targets := waitForTargets(t, nav, 1)
	assert.Equal(t, []string{"/login?reason=logged_out"}, targets)
}

func TestProviderRefreshFailureEndsSessionOnce(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	p, nav := newProvider(t, srv, nil)

	_, err := p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.NoError(t, err)

	srv.RevokeAccess()
	srv.FailRefresh(true)
	release := srv.GateRefresh()

	const callers = 4
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := p.Client().Get(context.Background(), "/api/echo")
			errs <- err
		}()
	}
	require.Eventually(t, func() bool {
		return p.Client().Coordinator().Pending() == callers-1
	}, 2*time.Second, 5*time.Millisecond)
	release()

	for i := 0; i < callers; i++ {
		require.ErrorIs(t, <-errs, ErrRefreshRejected)
	}

	targets := waitForTargets(t, nav, 1)
	assert.Equal(t, []string{"/login?reason=session_expired"}, targets)
	assert.Equal(t, state.Initial(), p.State())

	snap := p.MetricsSnapshot()
	assert.EqualValues(t, 1, snap.Counters[MetricSessionExpired])
	assert.EqualValues(t, 1, snap.Counters[MetricRefreshFailure])
	assert.EqualValues(t, callers-1, snap.Counters[MetricRefreshJoined])
	assert.EqualValues(t, 1, snap.Counters[MetricLogoutEvent])
}

func TestProviderCheckAuthWithoutSession(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	p, nav := newProvider(t, srv, nil)

	_, err := p.CheckAuth(context.Background())
	require.ErrorIs(t, err, ErrAuthenticationRequired)
	assert.Equal(t, state.Initial(), p.State())

	targets := waitForTargets(t, nav, 1)
	assert.Equal(t, []string{"/login?reason=authentication_required"}, targets)
	assert.EqualValues(t, 0, srv.Refreshes())
}

func TestProviderCheckAuthFetcherErrorRedirects(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	p, nav := newProvider(t, srv, func(b *Builder) {
		b.WithUserFetcher(UserFetcherFunc(func(context.Context) (*User, error) {
			return nil, errors.New("profile service down")
		}))
	})

	_, err := p.CheckAuth(context.Background())
	require.Error(t, err)
	assert.False(t, p.State().IsLoading)

	targets := waitForTargets(t, nav, 1)
	assert.Equal(t, []string{"/login?reason=authentication_required"}, targets)
	assert.EqualValues(t, 1, p.MetricsSnapshot().Counters[MetricCheckAuthFailure])
}

func TestProviderCheckAuthRestoresSession(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()

	store := token.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), srv.Issue(authtest.DefaultIdentifier)))
	p, nav := newProvider(t, srv, func(b *Builder) { b.WithStore(store) })

	user, err := p.CheckAuth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.True(t, p.State().IsAuthenticated)
	assert.Empty(t, nav.Targets())
}

func TestProviderMountRunsOnceAndSkipsAuthRoutes(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()

	var calls int
	var mu sync.Mutex
	p, _ := newProvider(t, srv, func(b *Builder) {
		b.WithUserFetcher(UserFetcherFunc(func(context.Context) (*User, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			return &User{ID: "u-9"}, nil
		}))
	})

	require.NoError(t, p.Mount(context.Background(), "/login"))
	require.NoError(t, p.Mount(context.Background(), "/register/?next=/home"))
	assert.Zero(t, calls)

	require.NoError(t, p.Mount(context.Background(), "/dashboard"))
	require.NoError(t, p.Mount(context.Background(), "/settings"))
	assert.Equal(t, 1, calls)
	assert.True(t, p.State().IsAuthenticated)
}

func TestProviderConcurrentMountWaitsForCheck(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	p, _ := newProvider(t, srv, func(b *Builder) {
		b.WithUserFetcher(UserFetcherFunc(func(context.Context) (*User, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			return &User{ID: "u-9"}, nil
		}))
	})

	first := make(chan error, 1)
	go func() { first <- p.Mount(context.Background(), "/dashboard") }()
	<-started

	second := make(chan State, 1)
	go func() {
		_ = p.Mount(context.Background(), "/settings")
		second <- p.State()
	}()

	select {
	case <-second:
		t.Fatal("second mount returned before the first check finished")
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-first)
	st := <-second
	assert.True(t, st.IsAuthenticated)
	assert.False(t, st.IsLoading)
	assert.EqualValues(t, 1, calls.Load())
}

func TestProviderMountWaiterHonoursContext(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	p, _ := newProvider(t, srv, func(b *Builder) {
		b.WithUserFetcher(UserFetcherFunc(func(context.Context) (*User, error) {
			close(started)
			<-release
			return &User{ID: "u-9"}, nil
		}))
	})
	defer close(release)

	go func() { _ = p.Mount(context.Background(), "/dashboard") }()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, p.Mount(ctx, "/settings"), context.DeadlineExceeded)
}

func TestProviderAccessDeniedRedirects(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	p, nav := newProvider(t, srv, nil)

	_, err := p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.NoError(t, err)

	_, err = p.Client().Get(context.Background(), "/api/forbidden")
	require.ErrorIs(t, err, ErrAccessDenied)

	targets := waitForTargets(t, nav, 1)
	assert.Equal(t, []string{"/login?reason=access_denied"}, targets)
	assert.False(t, p.State().IsAuthenticated)
	assert.EqualValues(t, 0, srv.Refreshes())
}

func TestProviderProactiveRefresh(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()

	skew := 14 * time.Minute
	p, _ := newProvider(t, srv, func(b *Builder) {
		b.WithMonitor(true).WithClock(func() time.Time { return time.Now().Add(skew) })
		b.config.Session.MonitorInterval = 10 * time.Millisecond
	})

	_, err := p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return p.MetricsSnapshot().Counters[MetricProactiveRefresh] >= 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, srv.Refreshes(), int64(1))
	assert.True(t, p.State().IsAuthenticated)
}

func TestProviderReactiveRefreshClearsExpiringFlag(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	p, _ := newProvider(t, srv, nil)

	_, err := p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.NoError(t, err)
	sessionView{p: p}.SetTokenExpiring(true)
	require.True(t, p.State().TokenExpiringSoon)

	srv.RevokeAccess()
	resp, err := p.Client().Get(context.Background(), "/api/echo")
	require.NoError(t, err)
	_ = resp.Body.Close()

	assert.EqualValues(t, 1, srv.Refreshes())
	assert.False(t, p.State().TokenExpiringSoon)
	assert.True(t, p.State().IsAuthenticated)
}

func TestProviderFailedRefreshResetsExpiringFlagOnLogout(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	p, nav := newProvider(t, srv, nil)

	_, err := p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.NoError(t, err)
	sessionView{p: p}.SetTokenExpiring(true)

	srv.FailRefresh(true)
	require.Error(t, p.RefreshTokens(context.Background()))

	waitForTargets(t, nav, 1)
	assert.False(t, p.State().IsAuthenticated)
	assert.False(t, p.State().TokenExpiringSoon)
}

func TestProviderRedisBackend(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.Store.Backend = StoreRedis
	cfg.Session.DisableMonitor = true

	p, err := New().WithConfig(cfg).WithRedis(rdb).Build()
	require.NoError(t, err)
	defer p.Close()

	_, err = p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.NoError(t, err)

	access, err := mr.Get("gac:session:access")
	require.NoError(t, err)
	tok, ok := p.GetAccessToken(context.Background())
	require.True(t, ok)
	assert.Equal(t, tok, access)
}

func TestProviderCloseIsIdempotent(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()

	p, err := New().WithBaseURL(srv.URL).Build()
	require.NoError(t, err)

	sub := p.Events(1)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	_, ok := <-sub.C
	assert.False(t, ok)

	_, err = p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.ErrorIs(t, err, ErrProviderClosed)
}

func TestProviderEventsDropped(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	p, _ := newProvider(t, srv, nil)

	sub := p.Events(1)
	defer sub.Close()

	require.NoError(t, p.Logout(context.Background()))
	require.NoError(t, p.Logout(context.Background()))

	assert.GreaterOrEqual(t, p.EventsDropped(), uint64(1))
	ev := <-sub.C
	assert.Equal(t, events.ReasonLoggedOut, ev.Reason)
}

func TestProviderKeepsSessionExpiredBehindBurst(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	slow := &navRecorder{delay: 2 * time.Millisecond}
	p, _ := newProvider(t, srv, func(b *Builder) { b.WithNavigator(slow) })

	const burst = 40
	for i := 0; i < burst; i++ {
		p.bus.Publish(context.Background(), events.ReasonAccessDenied)
	}
	p.bus.Publish(context.Background(), events.ReasonSessionExpired)

	targets := waitForTargets(t, slow, burst+1)
	require.Len(t, targets, burst+1)
	assert.Equal(t, LoginRedirectURL("/login", events.ReasonSessionExpired), targets[burst])
	assert.Zero(t, p.EventsDropped())
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithBaseURL("http://127.0.0.1:1").WithMonitor(false)
	p, err := b.Build()
	require.NoError(t, err)
	defer p.Close()

	_, err = b.Build()
	require.Error(t, err)
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	_, err := New().Build()
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.API.BaseURL = "http://api.test"
	cfg.Store.Backend = StoreRedis
	_, err = New().WithConfig(cfg).Build()
	require.Error(t, err)
}

func TestLoginRedirectURL(t *testing.T) {
	assert.Equal(t, "/login?reason=session_expired", LoginRedirectURL("/login", events.ReasonSessionExpired))
	assert.Equal(t, "https://app.test/signin?next=%2Fhome&reason=access_denied",
		LoginRedirectURL("https://app.test/signin?next=/home", events.ReasonAccessDenied))
}
