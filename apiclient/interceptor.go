package apiclient

import (
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/goAuthClient/token"
)

// RequestIDHeader carries a per-call identifier that stays stable across a
// replay.
const RequestIDHeader = "X-Request-ID"

// Interceptor is an http.RoundTripper that attaches the stored access token to
// outgoing requests. Requests that already carry an Authorization header pass
// through untouched.
type Interceptor struct {
	Base      http.RoundTripper
	Store     token.Store
	Validator token.Validator
	UserAgent string
	Logger    *zap.Logger
	Observer  Observer
}

// RoundTrip implements http.RoundTripper. It never mutates req.
func (i *Interceptor) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())

	if r.Header.Get("Authorization") == "" {
		i.attach(r)
	}
	if r.Header.Get(RequestIDHeader) == "" {
		r.Header.Set(RequestIDHeader, uuid.NewString())
	}
	if i.UserAgent != "" && r.Header.Get("User-Agent") == "" {
		r.Header.Set("User-Agent", i.UserAgent)
	}

	base := i.Base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(r)
}

func (i *Interceptor) attach(r *http.Request) {
	if i.Store == nil {
		return
	}
	ctx := r.Context()

	tok, err := i.Store.AccessToken(ctx)
	if err != nil {
		i.logger().Warn("access token read failed", zap.Error(err))
		return
	}
	if tok == "" {
		return
	}

	if i.Validator.Validate(tok) {
		r.Header.Set("Authorization", "Bearer "+tok)
		return
	}

	// Malformed or expired: drop it and let the server answer 401. A token
	// saved by a refresh since the read is left in place.
	cleared, err := i.Store.ClearAccessIf(ctx, tok)
	if err != nil {
		i.logger().Warn("discarding invalid access token failed", zap.Error(err))
	}
	if !cleared {
		if fresh, err := i.Store.AccessToken(ctx); err == nil && fresh != tok && i.Validator.Validate(fresh) {
			r.Header.Set("Authorization", "Bearer "+fresh)
			return
		}
	}
	if i.Observer != nil {
		i.Observer.TokenDiscarded()
	}
	i.logger().Debug("discarded invalid access token",
		zap.String("token", token.Fingerprint(tok)),
		zap.NamedError("reason", ErrTokenMalformed),
	)
}

func (i *Interceptor) logger() *zap.Logger {
	if i.Logger == nil {
		return zap.NewNop()
	}
	return i.Logger
}
