package apiclient

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goAuthClient/internal/authtest"
	"github.com/MrEthical07/goAuthClient/token"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func capture(seen **http.Request) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		*seen = r
		return &http.Response{StatusCode: http.StatusNoContent, Body: http.NoBody, Request: r}, nil
	})
}

func TestInterceptorAttachesValidToken(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	pair := srv.Issue(authtest.DefaultIdentifier)

	store := token.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), pair))

	var seen *http.Request
	ic := &Interceptor{Base: capture(&seen), Store: store, UserAgent: "ua/1"}

	req, _ := http.NewRequest(http.MethodGet, "http://api.test/x", nil)
	_, err := ic.RoundTrip(req)
	require.NoError(t, err)

	assert.Equal(t, authtest.Bearer(pair.AccessToken), seen.Header.Get("Authorization"))
	assert.NotEmpty(t, seen.Header.Get(RequestIDHeader))
	assert.Equal(t, "ua/1", seen.Header.Get("User-Agent"))
	assert.Empty(t, req.Header.Get("Authorization"), "original request must not be mutated")
}

func TestInterceptorKeepsExplicitAuthorization(t *testing.T) {
	store := token.NewMemoryStore()
	var seen *http.Request
	ic := &Interceptor{Base: capture(&seen), Store: store}

	req, _ := http.NewRequest(http.MethodGet, "http://api.test/x", nil)
	req.Header.Set("Authorization", "Bearer replayed")
	_, err := ic.RoundTrip(req)
	require.NoError(t, err)
	assert.Equal(t, "Bearer replayed", seen.Header.Get("Authorization"))
}

func TestInterceptorDiscardsMalformedToken(t *testing.T) {
	store := token.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), token.Pair{AccessToken: "not-a-token", RefreshToken: "r"}))

	obs := &countingObserver{}
	var seen *http.Request
	ic := &Interceptor{Base: capture(&seen), Store: store, Observer: obs}

	req, _ := http.NewRequest(http.MethodGet, "http://api.test/x", nil)
	_, err := ic.RoundTrip(req)
	require.NoError(t, err)

	assert.Empty(t, seen.Header.Get("Authorization"))
	access, _ := store.AccessToken(context.Background())
	refresh, _ := store.RefreshToken(context.Background())
	assert.Empty(t, access)
	assert.Equal(t, "r", refresh)
	assert.Equal(t, 1, obs.discarded)
}

// refreshedDuringRead stores a new access token right after handing out the
// old one, like a refresh landing between the interceptor's read and clear.
type refreshedDuringRead struct {
	*token.MemoryStore
	fresh string
	once  sync.Once
}

func (s *refreshedDuringRead) AccessToken(ctx context.Context) (string, error) {
	tok, err := s.MemoryStore.AccessToken(ctx)
	s.once.Do(func() {
		_ = s.MemoryStore.Save(ctx, token.Pair{AccessToken: s.fresh})
	})
	return tok, err
}

func TestInterceptorKeepsTokenSavedAfterRead(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	fresh := srv.Issue(authtest.DefaultIdentifier)

	store := &refreshedDuringRead{MemoryStore: token.NewMemoryStore(), fresh: fresh.AccessToken}
	require.NoError(t, store.Save(context.Background(), token.Pair{AccessToken: "not-a-token", RefreshToken: fresh.RefreshToken}))

	obs := &countingObserver{}
	var seen *http.Request
	ic := &Interceptor{Base: capture(&seen), Store: store, Observer: obs}

	req, _ := http.NewRequest(http.MethodGet, "http://api.test/x", nil)
	_, err := ic.RoundTrip(req)
	require.NoError(t, err)

	access, _ := store.MemoryStore.AccessToken(context.Background())
	assert.Equal(t, fresh.AccessToken, access, "refreshed token must survive")
	assert.Equal(t, authtest.Bearer(fresh.AccessToken), seen.Header.Get("Authorization"))
	assert.Equal(t, 0, obs.discarded)
}

func TestInterceptorUsesValidatorClock(t *testing.T) {
	srv := authtest.NewServer()
	defer srv.Close()
	pair := srv.Issue(authtest.DefaultIdentifier)

	store := token.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), pair))

	future := time.Now().Add(48 * time.Hour)
	var seen *http.Request
	ic := &Interceptor{
		Base:      capture(&seen),
		Store:     store,
		Validator: token.Validator{Now: func() time.Time { return future }},
	}

	req, _ := http.NewRequest(http.MethodGet, "http://api.test/x", nil)
	_, err := ic.RoundTrip(req)
	require.NoError(t, err)
	assert.Empty(t, seen.Header.Get("Authorization"))
}

func TestInterceptorWithoutToken(t *testing.T) {
	var seen *http.Request
	ic := &Interceptor{Base: capture(&seen), Store: token.NewMemoryStore()}

	req, _ := http.NewRequest(http.MethodGet, "http://api.test/x", nil)
	_, err := ic.RoundTrip(req)
	require.NoError(t, err)
	assert.Empty(t, seen.Header.Get("Authorization"))
}
