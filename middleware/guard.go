package middleware

import (
	"context"
	"net/http"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/events"
)

type userContextKey struct{}

// UserFromContext returns the user Guard attached to ctx.
func UserFromContext(ctx context.Context) (*goAuthClient.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*goAuthClient.User)
	return u, ok
}

// Session is the part of *goAuthClient.Provider that Guard needs.
type Session interface {
	Mount(ctx context.Context, route string) error
	IsAuthRoute(route string) bool
	State() goAuthClient.State
	LoginURL() string
}

// Guard returns middleware that requires an authenticated session on every
// route except the provider's auth routes.
func Guard(session Session) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			route := r.URL.Path
			// A failed mount has already reset the state; the check below
			// turns that into a redirect.
			_ = session.Mount(r.Context(), route)

			if session.IsAuthRoute(route) {
				next.ServeHTTP(w, r)
				return
			}

			st := session.State()
			if !st.IsAuthenticated || st.User == nil {
				target := goAuthClient.LoginRedirectURL(session.LoginURL(), events.ReasonAuthenticationRequired)
				http.Redirect(w, r, target, http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, st.User)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
