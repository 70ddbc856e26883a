package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/internal/authtest"
	"github.com/MrEthical07/goAuthClient/token"
)

func newProvider(t *testing.T) (*goAuthClient.Provider, *authtest.Server) {
	t.Helper()
	api := authtest.NewServer()
	t.Cleanup(api.Close)

	p, err := goAuthClient.New().WithBaseURL(api.URL).WithMonitor(false).Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p, api
}

func page() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := "anonymous"
		if u, ok := UserFromContext(r.Context()); ok {
			name = u.Name
		}
		_, _ = w.Write([]byte(name))
	})
}

func serve(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestGuardRedirectsWithoutSession(t *testing.T) {
	p, api := newProvider(t)
	h := Guard(p)(page())

	rec := serve(h, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login?reason=authentication_required", rec.Header().Get("Location"))
	assert.Equal(t, int64(0), api.Refreshes(), "no refresh token, so no refresh call")
}

func TestGuardLetsAuthRoutesThrough(t *testing.T) {
	p, _ := newProvider(t)
	h := Guard(p)(page())

	rec := serve(h, "/register/?next=/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "anonymous", rec.Body.String())
}

func TestGuardAttachesUser(t *testing.T) {
	p, _ := newProvider(t)
	_, err := p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.NoError(t, err)

	h := Guard(p)(page())
	rec := serve(h, "/dashboard")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", rec.Body.String())
}

func TestGuardAfterLogout(t *testing.T) {
	p, _ := newProvider(t)
	_, err := p.Login(context.Background(), authtest.DefaultIdentifier, authtest.DefaultPassword)
	require.NoError(t, err)
	h := Guard(p)(page())
	require.Equal(t, http.StatusOK, serve(h, "/dashboard").Code)

	require.NoError(t, p.Logout(context.Background()))
	assert.Equal(t, http.StatusSeeOther, serve(h, "/dashboard").Code)
}

func TestGuardOverlappingFirstRequestsBothPass(t *testing.T) {
	api := authtest.NewServer()
	defer api.Close()

	store := token.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), api.Issue(authtest.DefaultIdentifier)))

	p, err := goAuthClient.New().
		WithBaseURL(api.URL).
		WithStore(store).
		WithMonitor(false).
		WithUserFetcher(goAuthClient.UserFetcherFunc(func(context.Context) (*goAuthClient.User, error) {
			time.Sleep(100 * time.Millisecond)
			return &goAuthClient.User{ID: "u-1", Name: "Alice"}, nil
		})).
		Build()
	require.NoError(t, err)
	defer p.Close()

	h := Guard(p)(page())
	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes[i] = serve(h, "/dashboard").Code
		}()
		time.Sleep(10 * time.Millisecond)
	}
	wg.Wait()

	assert.Equal(t, []int{http.StatusOK, http.StatusOK}, codes)
}

func TestGuardNilSession(t *testing.T) {
	rec := serve(Guard(nil)(page()), "/dashboard")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
