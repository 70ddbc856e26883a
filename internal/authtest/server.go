package authtest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/MrEthical07/goAuthClient/state"
	"github.com/MrEthical07/goAuthClient/token"
)

// Default credentials accepted by a new server.
const (
	DefaultIdentifier = "alice@example.com"
	DefaultPassword   = "correct horse battery staple"
)

type claims struct {
	Kind  string `json:"typ"`
	Epoch int64  `json:"ep"`
	jwt.RegisteredClaims
}

type account struct {
	password string
	user     state.User
}

// Server is a fake auth API backed by httptest.
type Server struct {
	*httptest.Server

	AccessTTL  time.Duration
	RefreshTTL time.Duration
	// RetryAfter is the Retry-After value sent by /api/limited.
	RetryAfter string
	// CookieMode makes login and refresh deliver tokens via Set-Cookie only.
	CookieMode bool

	key []byte
	now func() time.Time

	mu       sync.Mutex
	accounts map[string]account
	refresh  map[string]string // refresh token -> identifier
	gate     chan struct{}

	epoch       atomic.Int64
	failRefresh atomic.Bool
	logins      atomic.Int64
	refreshes   atomic.Int64
	logouts     atomic.Int64
	calls       atomic.Int64
	rejected    atomic.Int64
}

// NewServer starts a fake API. Call Close when done.
func NewServer() *Server {
	s := &Server{
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 24 * time.Hour,
		RetryAfter: "7",
		key:        []byte(uuid.NewString()),
		now:        time.Now,
		accounts:   make(map[string]account),
		refresh:    make(map[string]string),
	}
	s.accounts[DefaultIdentifier] = account{
		password: DefaultPassword,
		user: state.User{
			ID:    "u-1",
			Email: DefaultIdentifier,
			Name:  "Alice",
			Role:  "admin",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/me", s.authenticated(s.handleMe))
	mux.HandleFunc("/api/echo", s.authenticated(s.handleEcho))
	mux.HandleFunc("/api/forbidden", s.authenticated(s.handleForbidden))
	mux.HandleFunc("/api/limited", s.handleLimited)
	mux.HandleFunc("/api/always401", s.handleAlways401)
	mux.HandleFunc("/api/slow", s.handleSlow)

	s.Server = httptest.NewServer(mux)
	return s
}

// AddUser registers another account.
func (s *Server) AddUser(identifier, password string, user state.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[identifier] = account{password: password, user: user}
}

// Issue mints a fresh pair for identifier without going through /auth/login.
func (s *Server) Issue(identifier string) token.Pair {
	return s.issue(identifier)
}

// Mint signs an access token with arbitrary timing, for tests that need a
// token the client considers expired or expiring.
func (s *Server) Mint(issuedAt, expiresAt time.Time) string {
	return s.sign(claims{
		Kind:  "access",
		Epoch: s.epoch.Load(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   DefaultIdentifier,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
}

// RevokeAccess makes every access token issued so far fail server-side while
// still looking valid to the client.
func (s *Server) RevokeAccess() {
	s.epoch.Add(1)
}

// FailRefresh makes subsequent refreshes answer 401.
func (s *Server) FailRefresh(fail bool) {
	s.failRefresh.Store(fail)
}

// GateRefresh blocks refresh handlers until the returned release func runs.
func (s *Server) GateRefresh() (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.gate = ch
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { close(ch) })
	}
}

// Logins returns the number of successful logins.
func (s *Server) Logins() int64 { return s.logins.Load() }

// Refreshes returns the number of refresh requests received.
func (s *Server) Refreshes() int64 { return s.refreshes.Load() }

// Logouts returns the number of logout requests received.
func (s *Server) Logouts() int64 { return s.logouts.Load() }

// Calls returns the number of /api requests that reached their handler.
func (s *Server) Calls() int64 { return s.calls.Load() }

// Rejected returns the number of requests refused for a bad access token.
func (s *Server) Rejected() int64 { return s.rejected.Load() }

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[req.Identifier]
	s.mu.Unlock()
	if !ok || acct.password != req.Password {
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials")
		return
	}

	s.logins.Add(1)
	pair := s.issue(req.Identifier)
	s.deliver(w, pair)

	user := acct.user
	writeJSON(w, http.StatusOK, map[string]any{
		"user":   user,
		"tokens": s.body(pair),
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshes.Add(1)

	s.mu.Lock()
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.RefreshToken == "" {
		if c, err := r.Cookie(token.DefaultRefreshCookie); err == nil {
			req.RefreshToken = c.Value
		}
	}

	if s.failRefresh.Load() {
		writeError(w, http.StatusUnauthorized, "refresh_invalid", "refresh token rejected")
		return
	}

	s.mu.Lock()
	identifier, ok := s.refresh[req.RefreshToken]
	if ok {
		delete(s.refresh, req.RefreshToken)
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusUnauthorized, "refresh_invalid", "refresh token rejected")
		return
	}

	pair := s.issue(identifier)
	s.deliver(w, pair)
	writeJSON(w, http.StatusOK, map[string]any{"tokens": s.body(pair)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logouts.Add(1)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, subject string) {
	s.mu.Lock()
	acct, ok := s.accounts[subject]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown user")
		return
	}
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleEcho(w http.ResponseWriter, r *http.Request, subject string) {
	s.calls.Add(1)
	body, _ := io.ReadAll(r.Body)
	writeJSON(w, http.StatusOK, map[string]string{
		"subject":       subject,
		"method":        r.Method,
		"authorization": r.Header.Get("Authorization"),
		"requestId":     r.Header.Get("X-Request-ID"),
		"userAgent":     r.Header.Get("User-Agent"),
		"body":          string(body),
	})
}

func (s *Server) handleForbidden(w http.ResponseWriter, r *http.Request, _ string) {
	s.calls.Add(1)
	writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
}

func (s *Server) handleLimited(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	w.Header().Set("Retry-After", s.RetryAfter)
	writeError(w, http.StatusTooManyRequests, "rate_limited", "slow down")
}

func (s *Server) handleAlways401(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	writeError(w, http.StatusUnauthorized, "unauthorized", "never authorized")
}

func (s *Server) handleSlow(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	delay := 5 * time.Second
	if v, err := time.ParseDuration(r.URL.Query().Get("delay")); err == nil {
		delay = v
	}
	select {
	case <-time.After(delay):
		w.WriteHeader(http.StatusNoContent)
	case <-r.Context().Done():
	}
}

type authedHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) authenticated(next authedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if raw == "" {
			if c, err := r.Cookie(token.DefaultAccessCookie); err == nil {
				raw = c.Value
			}
		}
		subject, err := s.verify(raw)
		if err != nil {
			s.rejected.Add(1)
			writeError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}
		next(w, r, subject)
	}
}

func (s *Server) verify(raw string) (string, error) {
	if raw == "" {
		return "", errors.New("missing token")
	}
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return "", err
	}
	if c.Kind != "access" {
		return "", errors.New("not an access token")
	}
	if c.Epoch != s.epoch.Load() {
		return "", errors.New("token revoked")
	}
	return c.Subject, nil
}

func (s *Server) issue(identifier string) token.Pair {
	now := s.now()
	access := s.sign(claims{
		Kind:  "access",
		Epoch: s.epoch.Load(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identifier,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.AccessTTL)),
		},
	})
	refresh := s.sign(claims{
		Kind: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identifier,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.RefreshTTL)),
		},
	})

	s.mu.Lock()
	s.refresh[refresh] = identifier
	s.mu.Unlock()
	return token.Pair{AccessToken: access, RefreshToken: refresh}
}

func (s *Server) sign(c claims) string {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.key)
	if err != nil {
		panic("authtest: sign token: " + err.Error())
	}
	return signed
}

func (s *Server) deliver(w http.ResponseWriter, pair token.Pair) {
	if !s.CookieMode {
		return
	}
	http.SetCookie(w, &http.Cookie{Name: token.DefaultAccessCookie, Value: pair.AccessToken, Path: "/", HttpOnly: true})
	http.SetCookie(w, &http.Cookie{Name: token.DefaultRefreshCookie, Value: pair.RefreshToken, Path: "/", HttpOnly: true})
}

func (s *Server) body(pair token.Pair) token.Pair {
	if s.CookieMode {
		return token.Pair{}
	}
	return pair
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

// Bearer formats an Authorization header value.
func Bearer(t string) string {
	return "Bearer " + t
}

// ParseRetryAfter is a helper for asserting on Retry-After values.
func ParseRetryAfter(v string) time.Duration {
	n, _ := strconv.Atoi(v)
	return time.Duration(n) * time.Second
}
