package goAuthClient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/MrEthical07/goAuthClient/apiclient"
	"github.com/MrEthical07/goAuthClient/events"
	"github.com/MrEthical07/goAuthClient/monitor"
	"github.com/MrEthical07/goAuthClient/state"
	"github.com/MrEthical07/goAuthClient/token"
)

// Provider owns one client session: credentials, the authenticated HTTP
// client, the session state, and the reaction to session termination.
//
// Provider is safe for concurrent use. Create it with [New] and release it
// with Close.
type Provider struct {
	cfg       Config
	store     token.Store
	bus       *events.Bus
	client    *apiclient.Client
	machine   *state.Machine
	monitor   *monitor.Monitor
	metrics   *Metrics
	users     UserFetcher
	navigator Navigator
	logger    *zap.Logger
	validator token.Validator

	sub      *events.Subscription
	cancel   context.CancelFunc
	loopDone chan struct{}

	mountMu   sync.Mutex
	mountDone chan struct{} // closed when the first mount's check ends

	closed    atomic.Bool
	closeOnce sync.Once
}

// Login authenticates with identifier and password and stores the resulting
// pair. On failure the state carries the error message and the error is
// returned.
func (p *Provider) Login(ctx context.Context, identifier, password string) (*User, error) {
	if p.closed.Load() {
		return nil, ErrProviderClosed
	}
	p.machine.Dispatch(state.AuthStart{})

	resp, err := p.client.Login(ctx, identifier, password)
	if err != nil {
		p.metrics.Inc(MetricLoginFailure)
		p.machine.Dispatch(state.AuthFailure{Message: failureMessage(err)})
		p.logger.Info("login failed", zap.Error(err))
		return nil, err
	}

	user := resp.User
	if user == nil {
		user, err = p.users.CurrentUser(ctx)
		if err != nil {
			p.metrics.Inc(MetricLoginFailure)
			p.machine.Dispatch(state.AuthFailure{Message: failureMessage(err)})
			return nil, err
		}
	}

	p.metrics.Inc(MetricLoginSuccess)
	p.machine.Dispatch(state.AuthSuccess{User: user})
	p.logger.Info("logged in", zap.String("user_id", user.ID))
	return user.Clone(), nil
}

// Logout ends the session. The server is notified on a best-effort basis;
// local credentials and state are always cleared and a logged_out event is
// published. The returned error only reports a failure to clear the store.
func (p *Provider) Logout(ctx context.Context) error {
	err := p.client.Logout(ctx)
	p.metrics.Inc(MetricLogout)
	p.machine.Dispatch(state.AuthLogout{})
	p.bus.Publish(ctx, events.ReasonLoggedOut)
	return err
}

// CheckAuth loads the current user. On failure the session is reset and the
// user is sent to the login page, unless the HTTP layer already broadcast the
// failure.
func (p *Provider) CheckAuth(ctx context.Context) (*User, error) {
	if p.closed.Load() {
		return nil, ErrProviderClosed
	}
	p.machine.Dispatch(state.SetLoading{Value: true})

	user, err := p.users.CurrentUser(ctx)
	if err == nil && user == nil {
		err = errors.New("current user endpoint returned no user")
	}
	if err != nil {
		p.metrics.Inc(MetricCheckAuthFailure)
		p.machine.Dispatch(state.AuthLogout{})
		p.logger.Info("session check failed", zap.Error(err))
		if !broadcast(err) {
			p.redirect(ctx, events.ReasonAuthenticationRequired)
		}
		return nil, err
	}

	p.metrics.Inc(MetricCheckAuthSuccess)
	p.machine.Dispatch(state.AuthSuccess{User: user})
	return user.Clone(), nil
}

// Mount checks the session the first time it is called on a non-auth route.
// Calls that arrive while that check runs wait for its outcome, or for ctx
// to end. Later calls, and calls on configured auth routes, do nothing.
func (p *Provider) Mount(ctx context.Context, route string) error {
	if p.IsAuthRoute(route) {
		return nil
	}

	p.mountMu.Lock()
	if done := p.mountDone; done != nil {
		p.mountMu.Unlock()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	done := make(chan struct{})
	p.mountDone = done
	p.mountMu.Unlock()
	defer close(done)

	_, err := p.CheckAuth(ctx)
	return err
}

// IsAuthRoute reports whether route is one of the configured auth routes.
// Query, fragment, and trailing slashes are ignored.
func (p *Provider) IsAuthRoute(route string) bool {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	route = strings.TrimRight(route, "/")
	for _, r := range p.cfg.Session.AuthRoutes {
		if strings.TrimRight(r, "/") == route {
			return true
		}
	}
	return false
}

// LoginURL returns the configured login page.
func (p *Provider) LoginURL() string {
	return p.cfg.Session.LoginURL
}

// RefreshTokens runs the single-flight refresh. A failed refresh has already
// ended the session when this returns; a successful one has cleared
// State.TokenExpiringSoon.
func (p *Provider) RefreshTokens(ctx context.Context) error {
	_, err := p.client.Refresh(ctx)
	return err
}

// GetAccessToken returns the stored access token when it is currently valid.
func (p *Provider) GetAccessToken(ctx context.Context) (string, bool) {
	tok, err := p.store.AccessToken(ctx)
	if err != nil || !p.validator.Validate(tok) {
		return "", false
	}
	return tok, true
}

// State returns a snapshot of the session state.
func (p *Provider) State() State {
	return p.machine.Current()
}

// Subscribe registers fn for state transitions and returns a function that
// removes it.
func (p *Provider) Subscribe(fn Listener) func() {
	return p.machine.Subscribe(fn)
}

// Events returns a new subscription to the logout bus. A buffer <= 0 uses
// Config.Events.SubscriberBuffer.
func (p *Provider) Events(buffer int) *events.Subscription {
	if buffer <= 0 {
		buffer = p.cfg.Events.SubscriberBuffer
	}
	return p.bus.Subscribe(buffer)
}

// Client returns the authenticated API client.
func (p *Provider) Client() *apiclient.Client {
	return p.client
}

// MetricsSnapshot copies the provider's counters.
func (p *Provider) MetricsSnapshot() MetricsSnapshot {
	return p.metrics.Snapshot()
}

// EventsDropped returns how many logout deliveries were skipped because a
// subscriber was full.
func (p *Provider) EventsDropped() uint64 {
	return p.bus.Dropped()
}

// Close stops background work and closes the logout bus. Credentials are kept.
func (p *Provider) Close() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)
		if p.monitor != nil {
			p.monitor.Stop()
		}
		p.cancel()
		p.bus.Close()
		<-p.loopDone
	})
	return nil
}

func (p *Provider) watch(ctx context.Context) {
	defer close(p.loopDone)
	for ev := range p.sub.C {
		p.handleLogout(ctx, ev)
	}
}

func (p *Provider) handleLogout(ctx context.Context, ev events.Event) {
	p.metrics.Inc(MetricLogoutEvent)
	// Logout resets the state itself; resetting again here could wipe a
	// login that happened in between.
	if ev.Reason != events.ReasonLoggedOut {
		p.machine.Dispatch(state.AuthLogout{})
	}
	p.logger.Info("session ended", zap.String("reason", string(ev.Reason)), zap.String("event_id", ev.ID))
	p.redirect(ctx, ev.Reason)
}

func (p *Provider) redirect(ctx context.Context, reason events.Reason) {
	if p.navigator == nil {
		return
	}
	target := LoginRedirectURL(p.cfg.Session.LoginURL, reason)
	if err := p.navigator.Redirect(ctx, target); err != nil {
		p.logger.Warn("redirect failed", zap.String("target", target), zap.Error(err))
		return
	}
	p.metrics.Inc(MetricRedirect)
}

func failureMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

// sessionView exposes the provider to the expiry monitor.
type sessionView struct {
	p *Provider
}

func (s sessionView) Authenticated() bool {
	return s.p.machine.Current().IsAuthenticated
}

func (s sessionView) Busy() bool {
	return s.p.client.Coordinator().InFlight() || s.p.machine.Current().IsLoading
}

func (s sessionView) AccessToken(ctx context.Context) (string, error) {
	return s.p.store.AccessToken(ctx)
}

func (s sessionView) RefreshTokens(ctx context.Context) error {
	return s.p.RefreshTokens(ctx)
}

func (s sessionView) SetTokenExpiring(expiring bool) {
	s.p.machine.Dispatch(state.SetTokenExpiring{Value: expiring})
}
