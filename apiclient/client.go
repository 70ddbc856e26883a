package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MrEthical07/goAuthClient/events"
	"github.com/MrEthical07/goAuthClient/refresh"
	"github.com/MrEthical07/goAuthClient/token"
)

const maxErrorBody = 64 << 10

// Config describes the remote API.
type Config struct {
	BaseURL         string
	RequestTimeout  time.Duration
	RefreshTimeout  time.Duration
	LoginPath       string
	RefreshPath     string
	LogoutPath      string
	CurrentUserPath string
	UserAgent       string
	// OpaqueRefreshTokens skips structural validation of the refresh token and
	// only checks that one is present.
	OpaqueRefreshTokens bool
}

// DefaultConfig returns the endpoint layout of the reference API.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:  30 * time.Second,
		RefreshTimeout:  10 * time.Second,
		LoginPath:       "/auth/login",
		RefreshPath:     "/auth/refresh",
		LogoutPath:      "/auth/logout",
		CurrentUserPath: "/auth/me",
		UserAgent:       "goAuthClient/1.0",
	}
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient uses base's transport and cookie jar for all calls.
func WithHTTPClient(base *http.Client) Option {
	return func(c *Client) {
		if base != nil {
			c.baseHTTP = base
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithObserver sets the signal observer.
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithValidator sets the clock used for token validation.
func WithValidator(v token.Validator) Option {
	return func(c *Client) {
		c.validator = v
	}
}

// WithCoordinator shares a refresh coordinator, for example with a monitor.
func WithCoordinator(coord *refresh.Coordinator) Option {
	return func(c *Client) {
		if coord != nil {
			c.coord = coord
		}
	}
}

// Client performs authenticated API calls. It owns its refresh coordinator.
type Client struct {
	cfg       Config
	baseURL   string
	baseHTTP  *http.Client
	http      *http.Client
	bare      *http.Client
	store     token.Store
	validator token.Validator
	coord     *refresh.Coordinator
	bus       *events.Bus
	logger    *zap.Logger
	observer  Observer
}

type jarProvider interface {
	Jar() http.CookieJar
}

// New creates a client for cfg using store for credentials and bus for
// session-termination broadcasts.
func New(cfg Config, store token.Store, bus *events.Bus, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("base URL required")
	}
	if store == nil {
		return nil, errors.New("token store required")
	}
	if bus == nil {
		return nil, errors.New("event bus required")
	}
	def := DefaultConfig()
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = def.RefreshTimeout
	}

	c := &Client{
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		baseHTTP: &http.Client{},
		store:    store,
		coord:    refresh.New(),
		bus:      bus,
		logger:   zap.NewNop(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(c)
	}

	jar := c.baseHTTP.Jar
	if jp, ok := store.(jarProvider); ok && jar == nil {
		jar = jp.Jar()
	}

	c.http = &http.Client{
		Transport: &Interceptor{
			Base:      c.baseHTTP.Transport,
			Store:     store,
			Validator: c.validator,
			UserAgent: cfg.UserAgent,
			Logger:    c.logger,
			Observer:  c.observer,
		},
		Jar:           jar,
		Timeout:       cfg.RequestTimeout,
		CheckRedirect: c.baseHTTP.CheckRedirect,
	}
	c.bare = &http.Client{
		Transport:     c.baseHTTP.Transport,
		Jar:           jar,
		Timeout:       cfg.RequestTimeout,
		CheckRedirect: c.baseHTTP.CheckRedirect,
	}

	return c, nil
}

// Coordinator returns the refresh coordinator owned by the client.
func (c *Client) Coordinator() *refresh.Coordinator {
	return c.coord
}

// Store returns the credential store.
func (c *Client) Store() token.Store {
	return c.store
}

// URL resolves path against the base URL. Absolute URLs are returned as is.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}

// Do sends req with credentials attached and handles authentication failures
// as described in the package documentation. On success the caller owns the
// response body. Non-nil errors are never accompanied by a response.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	first := req.Clone(ctx)
	if err := bufferBody(first); err != nil {
		return nil, err
	}
	if first.Header.Get(RequestIDHeader) == "" {
		first.Header.Set(RequestIDHeader, uuid.NewString())
	}

	attempt := first
	retried := false
	for {
		resp, err := c.http.Do(attempt)
		if err != nil {
			return nil, transportError(err)
		}

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			apiErr := readAPIError(resp)
			c.observer.Unauthorized()
			if retried {
				c.observer.DoubleUnauthorized()
				c.logger.Warn("call rejected after refresh",
					zap.String("method", first.Method),
					zap.String("path", first.URL.Path),
					zap.String("request_id", first.Header.Get(RequestIDHeader)),
				)
				return nil, apiErr.withKind(ErrDoubleUnauthorized)
			}
			retried = true

			tok, err := c.Refresh(ctx)
			if err != nil {
				return nil, err
			}
			attempt, err = replay(first, tok)
			if err != nil {
				return nil, err
			}

		case http.StatusForbidden:
			apiErr := readAPIError(resp)
			c.observer.AccessDenied()
			c.bus.Publish(ctx, events.ReasonAccessDenied)
			return nil, apiErr.withKind(ErrAccessDenied)

		case http.StatusTooManyRequests:
			apiErr := readAPIError(resp)
			c.observer.RateLimited()
			return nil, apiErr.withKind(ErrRateLimited)

		default:
			return resp, nil
		}
	}
}

// NewRequest builds a request for path with body encoded as JSON.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Get performs an authenticated GET.
func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.send(ctx, http.MethodGet, path, nil)
}

// Post performs an authenticated POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.send(ctx, http.MethodPost, path, body)
}

// Put performs an authenticated PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.send(ctx, http.MethodPut, path, body)
}

// Delete performs an authenticated DELETE.
func (c *Client) Delete(ctx context.Context, path string) (*http.Response, error) {
	return c.send(ctx, http.MethodDelete, path, nil)
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	req, err := c.NewRequest(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// DecodeJSON decodes a JSON response into target and closes the body.
// Responses with status >= 400 become an *APIError.
func DecodeJSON(resp *http.Response, target any) error {
	if resp.StatusCode >= 400 {
		return readAPIError(resp).withKind(ErrRequestFailed)
	}
	defer resp.Body.Close()

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("parse response: %w", err)
		}
	}
	return nil
}

func bufferBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.ContentLength = int64(len(data))
	return nil
}

func replay(first *http.Request, accessToken string) (*http.Request, error) {
	r := first.Clone(first.Context())
	if first.GetBody != nil {
		body, err := first.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		r.Body = body
	}
	if accessToken != "" {
		r.Header.Set("Authorization", "Bearer "+accessToken)
	} else {
		r.Header.Del("Authorization")
	}
	return r, nil
}

func transportError(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrNetworkTimeout, err)
	}
	return err
}

func readAPIError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
		if apiErr.Message == "" {
			apiErr.Message = body.Error
		}
	} else if text := strings.TrimSpace(string(data)); text != "" && len(text) < 256 {
		apiErr.Message = text
	}
	return apiErr
}

func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
