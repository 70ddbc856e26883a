package goAuthClient

import (
	"context"
	"net/url"

	"github.com/MrEthical07/goAuthClient/events"
	"github.com/MrEthical07/goAuthClient/state"
)

// User is the signed-in user's profile.
type User = state.User

// State is a snapshot of the session state.
type State = state.State

// Listener observes state transitions.
type Listener = state.Listener

// Reason explains why a session ended.
type Reason = events.Reason

// UserFetcher loads the current user. Any error ends the session.
type UserFetcher interface {
	CurrentUser(ctx context.Context) (*User, error)
}

// UserFetcherFunc adapts a function to UserFetcher.
type UserFetcherFunc func(ctx context.Context) (*User, error)

// CurrentUser calls f.
func (f UserFetcherFunc) CurrentUser(ctx context.Context) (*User, error) {
	return f(ctx)
}

// Navigator performs external navigation, typically to the login page.
type Navigator interface {
	Redirect(ctx context.Context, target string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, target string) error

// Redirect calls f.
func (f NavigatorFunc) Redirect(ctx context.Context, target string) error {
	return f(ctx, target)
}

// LoginRedirectURL appends reason to loginURL as the reason query parameter,
// keeping any existing query.
func LoginRedirectURL(loginURL string, reason Reason) string {
	u, err := url.Parse(loginURL)
	if err != nil {
		return loginURL + "?reason=" + url.QueryEscape(string(reason))
	}
	q := u.Query()
	q.Set("reason", string(reason))
	u.RawQuery = q.Encode()
	return u.String()
}
