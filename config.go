package goAuthClient

import (
	"errors"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/MrEthical07/goAuthClient/apiclient"
	"github.com/MrEthical07/goAuthClient/monitor"
)

// Config defines a public type used by goAuthClient APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	API     APIConfig     `koanf:"api"`
	Session SessionConfig `koanf:"session"`
	Store   StoreConfig   `koanf:"store"`
	Events  EventsConfig  `koanf:"events"`
	Metrics MetricsConfig `koanf:"metrics"`
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig describes the remote auth API.
type APIConfig struct {
	BaseURL         string        `koanf:"base_url"`
	LoginPath       string        `koanf:"login_path"`
	RefreshPath     string        `koanf:"refresh_path"`
	LogoutPath      string        `koanf:"logout_path"`
	CurrentUserPath string        `koanf:"current_user_path"`
	RequestTimeout  time.Duration `koanf:"request_timeout"`
	RefreshTimeout  time.Duration `koanf:"refresh_timeout"`
	UserAgent       string        `koanf:"user_agent"`
	// OpaqueRefreshTokens accepts refresh tokens that are not JWT-shaped.
	OpaqueRefreshTokens bool `koanf:"opaque_refresh_tokens"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls session lifecycle behaviour.
type SessionConfig struct {
	// LoginURL is where the user is sent when the session ends. A
	// reason query parameter is appended.
	LoginURL string `koanf:"login_url"`
	// AuthRoutes are entry routes (login, register, ...) on which Mount does
	// not check the session.
	AuthRoutes      []string      `koanf:"auth_routes"`
	ExpiryThreshold time.Duration `koanf:"expiry_threshold"`
	MonitorInterval time.Duration `koanf:"monitor_interval"`
	DisableMonitor  bool          `koanf:"disable_monitor"`
}

/*
====================================
STORE CONFIG
====================================
*/

// StoreBackend selects where credentials live when no store is injected.
type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreCookie StoreBackend = "cookie"
	StoreRedis  StoreBackend = "redis"
)

// StoreConfig selects and tunes the credential store.
type StoreConfig struct {
	Backend     StoreBackend `koanf:"backend"`
	RedisPrefix string       `koanf:"redis_prefix"`
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig tunes the logout bus.
type EventsConfig struct {
	// SubscriberBuffer is the default channel capacity for subscriptions
	// handed out by Provider.Events. The provider's own subscription is
	// unbounded.
	SubscriberBuffer int `koanf:"subscriber_buffer"`
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by goAuthClient APIs.
type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

// DefaultConfig returns a configuration suitable for a single-process client
// talking to the reference API. BaseURL must still be set.
func DefaultConfig() Config {
	api := apiclient.DefaultConfig()
	return Config{
		API: APIConfig{
			LoginPath:       api.LoginPath,
			RefreshPath:     api.RefreshPath,
			LogoutPath:      api.LogoutPath,
			CurrentUserPath: api.CurrentUserPath,
			RequestTimeout:  api.RequestTimeout,
			RefreshTimeout:  api.RefreshTimeout,
			UserAgent:       api.UserAgent,
		},
		Session: SessionConfig{
			LoginURL:        "/login",
			AuthRoutes:      []string{"/login", "/register", "/forgot-password", "/reset-password"},
			ExpiryThreshold: monitor.DefaultThreshold,
			MonitorInterval: monitor.DefaultInterval,
		},
		Store: StoreConfig{
			Backend:     StoreMemory,
			RedisPrefix: "gac:session",
		},
		Events: EventsConfig{
			SubscriberBuffer: 16,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Session.AuthRoutes = slices.Clone(cfg.Session.AuthRoutes)
	return out
}

func (c APIConfig) client() apiclient.Config {
	return apiclient.Config{
		BaseURL:             c.BaseURL,
		RequestTimeout:      c.RequestTimeout,
		RefreshTimeout:      c.RefreshTimeout,
		LoginPath:           c.LoginPath,
		RefreshPath:         c.RefreshPath,
		LogoutPath:          c.LogoutPath,
		CurrentUserPath:     c.CurrentUserPath,
		UserAgent:           c.UserAgent,
		OpaqueRefreshTokens: c.OpaqueRefreshTokens,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// API
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API BaseURL is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("API BaseURL must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("API BaseURL scheme must be http or https")
	}
	for _, p := range []struct{ name, value string }{
		{"LoginPath", c.API.LoginPath},
		{"RefreshPath", c.API.RefreshPath},
		{"LogoutPath", c.API.LogoutPath},
		{"CurrentUserPath", c.API.CurrentUserPath},
	} {
		if strings.TrimSpace(p.value) == "" {
			return errors.New("API " + p.name + " is required")
		}
	}
	if c.API.RequestTimeout <= 0 {
		return errors.New("API RequestTimeout must be > 0")
	}
	if c.API.RefreshTimeout <= 0 {
		return errors.New("API RefreshTimeout must be > 0")
	}

	// Session
	if strings.TrimSpace(c.Session.LoginURL) == "" {
		return errors.New("Session LoginURL is required")
	}
	if c.Session.ExpiryThreshold <= 0 {
		return errors.New("Session ExpiryThreshold must be > 0")
	}
	if !c.Session.DisableMonitor && c.Session.MonitorInterval <= 0 {
		return errors.New("Session MonitorInterval must be > 0 when the monitor is enabled")
	}

	// Store
	switch c.Store.Backend {
	case StoreMemory, StoreCookie:
	case StoreRedis:
		if strings.TrimSpace(c.Store.RedisPrefix) == "" {
			return errors.New("Store RedisPrefix is required for the redis backend")
		}
	default:
		return errors.New("Store Backend must be memory, cookie or redis")
	}

	// Events
	if c.Events.SubscriberBuffer <= 0 {
		return errors.New("Events SubscriberBuffer must be > 0")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
