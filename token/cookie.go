package token

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
)

// Default cookie names used by the session transport.
const (
	DefaultAccessCookie  = "accessToken"
	DefaultRefreshCookie = "refreshToken"
)

// CookieStore keeps credentials as cookies in an http.CookieJar scoped to the
// API base URL. Attach [CookieStore.Jar] to the API http.Client so cookies set
// by the server land in the same place the store reads from.
type CookieStore struct {
	mu            sync.Mutex
	jar           http.CookieJar
	base          *url.URL
	accessCookie  string
	refreshCookie string
}

// CookieOption customizes a CookieStore.
type CookieOption func(*CookieStore)

// WithCookieNames overrides the access and refresh cookie names.
func WithCookieNames(access, refresh string) CookieOption {
	return func(s *CookieStore) {
		if access != "" {
			s.accessCookie = access
		}
		if refresh != "" {
			s.refreshCookie = refresh
		}
	}
}

// WithJar uses an existing cookie jar instead of a fresh one.
func WithJar(jar http.CookieJar) CookieOption {
	return func(s *CookieStore) {
		if jar != nil {
			s.jar = jar
		}
	}
}

// NewCookieStore creates a store bound to baseURL.
func NewCookieStore(baseURL string, opts ...CookieOption) (*CookieStore, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.New("cookie store requires an absolute base URL")
	}

	s := &CookieStore{
		base:          &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"},
		accessCookie:  DefaultAccessCookie,
		refreshCookie: DefaultRefreshCookie,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		s.jar = jar
	}

	return s, nil
}

// Jar returns the cookie jar backing the store.
func (s *CookieStore) Jar() http.CookieJar {
	return s.jar
}

func (s *CookieStore) AccessToken(context.Context) (string, error) {
	return s.read(s.accessCookie), nil
}

func (s *CookieStore) RefreshToken(context.Context) (string, error) {
	return s.read(s.refreshCookie), nil
}

func (s *CookieStore) Save(_ context.Context, pair Pair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cookies := []*http.Cookie{s.cookie(s.accessCookie, pair.AccessToken)}
	if pair.RefreshToken != "" {
		cookies = append(cookies, s.cookie(s.refreshCookie, pair.RefreshToken))
	}
	s.jar.SetCookies(s.base, cookies)
	return nil
}

func (s *CookieStore) ClearAccess(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar.SetCookies(s.base, []*http.Cookie{s.expired(s.accessCookie)})
	return nil
}

func (s *CookieStore) ClearAccessIf(_ context.Context, expected string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readLocked(s.accessCookie) != expected {
		return false, nil
	}
	s.jar.SetCookies(s.base, []*http.Cookie{s.expired(s.accessCookie)})
	return true, nil
}

// Clear expires both cookies in the jar. A server that manages the same
// cookies as HttpOnly is still expected to expire them on logout; this only
// drops the local copies.
func (s *CookieStore) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar.SetCookies(s.base, []*http.Cookie{
		s.expired(s.accessCookie),
		s.expired(s.refreshCookie),
	})
	return nil
}

func (s *CookieStore) read(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readLocked(name)
}

func (s *CookieStore) readLocked(name string) string {
	for _, c := range s.jar.Cookies(s.base) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (s *CookieStore) cookie(name, value string) *http.Cookie {
	if value == "" {
		return s.expired(name)
	}
	return &http.Cookie{Name: name, Value: value, Path: "/"}
}

func (s *CookieStore) expired(name string) *http.Cookie {
	return &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1}
}
