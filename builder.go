package goAuthClient

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MrEthical07/goAuthClient/apiclient"
	"github.com/MrEthical07/goAuthClient/events"
	"github.com/MrEthical07/goAuthClient/monitor"
	"github.com/MrEthical07/goAuthClient/state"
	"github.com/MrEthical07/goAuthClient/token"
)

// Builder defines a public type used by goAuthClient APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config Config
	store  token.Store
	redis  redis.UniversalClient

	httpClient *http.Client
	users      UserFetcher
	navigator  Navigator
	logger     *zap.Logger
	now        func() time.Time

	built bool
}

// New returns a builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets the API base URL.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.API.BaseURL = baseURL
	return b
}

// WithStore injects a credential store, overriding Config.Store.Backend.
func (b *Builder) WithStore(store token.Store) *Builder {
	b.store = store
	return b
}

// WithRedis supplies the client used by the redis store backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the base HTTP client. Its transport, jar, and redirect
// policy are reused; the provider installs its own interceptor on top.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithUserFetcher overrides how CheckAuth loads the current user. The default
// calls the configured current-user endpoint.
func (b *Builder) WithUserFetcher(users UserFetcher) *Builder {
	b.users = users
	return b
}

// WithNavigator sets the navigation sink used when the session ends.
func (b *Builder) WithNavigator(nav Navigator) *Builder {
	b.navigator = nav
	return b
}

// WithLogger sets the logger. The default discards everything.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides the clock used for token expiry decisions.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithMonitor toggles the proactive expiry monitor.
func (b *Builder) WithMonitor(enabled bool) *Builder {
	b.config.Session.DisableMonitor = !enabled
	return b
}

// Build validates the configuration and starts the provider's background
// work: the logout subscriber and, unless disabled, the expiry monitor.
// A builder can be used once.
func (b *Builder) Build() (*Provider, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validator := token.Validator{Now: b.now}

	store := b.store
	if store == nil {
		var err error
		store, err = b.newStore(cfg, validator)
		if err != nil {
			return nil, err
		}
	}

	bus := events.NewBus()
	metrics := NewMetrics(cfg.Metrics)
	machine := state.NewMachine()
	observer := sessionObserver{m: metrics, machine: machine}

	opts := []apiclient.Option{
		apiclient.WithLogger(logger.Named("apiclient")),
		apiclient.WithObserver(observer),
		apiclient.WithValidator(validator),
	}
	if b.httpClient != nil {
		opts = append(opts, apiclient.WithHTTPClient(b.httpClient))
	}
	client, err := apiclient.New(cfg.API.client(), store, bus, opts...)
	if err != nil {
		bus.Close()
		return nil, err
	}

	users := b.users
	if users == nil {
		users = client
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Provider{
		cfg:       cfg,
		store:     store,
		bus:       bus,
		client:    client,
		machine:   machine,
		metrics:   metrics,
		users:     users,
		navigator: b.navigator,
		logger:    logger,
		validator: validator,
		cancel:    cancel,
		loopDone:  make(chan struct{}),
	}

	p.sub = bus.SubscribeUnbounded()
	go p.watch(ctx)

	if !cfg.Session.DisableMonitor {
		m := monitor.New(sessionView{p: p})
		m.Interval = cfg.Session.MonitorInterval
		m.Threshold = cfg.Session.ExpiryThreshold
		m.Validator = validator
		m.Logger = logger.Named("monitor")
		m.OnCheck = observer.monitorChecked
		m.Start(ctx)
		p.monitor = m
	}

	b.built = true
	return p, nil
}

func (b *Builder) newStore(cfg Config, v token.Validator) (token.Store, error) {
	switch cfg.Store.Backend {
	case StoreCookie:
		return token.NewCookieStore(cfg.API.BaseURL)
	case StoreRedis:
		if b.redis == nil {
			return nil, errors.New("redis store backend requires a redis client")
		}
		return token.NewRedisStore(b.redis, cfg.Store.RedisPrefix).WithValidator(v), nil
	default:
		return token.NewMemoryStore(), nil
	}
}
