package monitor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/goAuthClient/token"
)

const (
	DefaultInterval  = 60 * time.Second
	DefaultThreshold = token.DefaultExpiryThreshold
)

// Session is the view of an auth session the monitor needs.
type Session interface {
	// Authenticated reports whether a user is signed in.
	Authenticated() bool
	// Busy reports whether a refresh is in flight or a login/auth check is
	// loading.
	Busy() bool
	AccessToken(ctx context.Context) (string, error)
	RefreshTokens(ctx context.Context) error
	SetTokenExpiring(expiring bool)
}

// Outcome describes what one check did.
type Outcome int

const (
	Skipped Outcome = iota
	Healthy
	Deferred
	Refreshed
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Healthy:
		return "healthy"
	case Deferred:
		return "deferred"
	case Refreshed:
		return "refreshed"
	case Failed:
		return "failed"
	default:
		return "skipped"
	}
}

// Monitor periodically checks a session. Configure fields before Start.
type Monitor struct {
	Session   Session
	Interval  time.Duration
	Threshold time.Duration
	Validator token.Validator
	Logger    *zap.Logger
	// OnCheck, when set, receives the outcome of every check.
	OnCheck func(Outcome)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a monitor with default interval and threshold.
func New(s Session) *Monitor {
	return &Monitor{
		Session:   s,
		Interval:  DefaultInterval,
		Threshold: DefaultThreshold,
	}
}

// Check evaluates the session once.
func (m *Monitor) Check(ctx context.Context) Outcome {
	out := m.check(ctx)
	if m.OnCheck != nil {
		m.OnCheck(out)
	}
	return out
}

func (m *Monitor) check(ctx context.Context) Outcome {
	s := m.Session
	if s == nil || !s.Authenticated() {
		return Skipped
	}

	tok, err := s.AccessToken(ctx)
	if err != nil {
		m.logger().Warn("monitor could not read access token", zap.Error(err))
		return Skipped
	}
	if !m.Validator.IsExpiringSoon(tok, m.threshold()) {
		return Healthy
	}

	s.SetTokenExpiring(true)
	if s.Busy() {
		return Deferred
	}

	if err := s.RefreshTokens(ctx); err != nil {
		m.logger().Info("proactive refresh failed", zap.Error(err))
		return Failed
	}
	m.logger().Debug("proactive refresh completed")
	return Refreshed
}

// Run checks the session every Interval until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Start runs the monitor in a goroutine. Calling Start on a running monitor
// is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go func() {
		defer close(done)
		m.Run(ctx)
	}()
}

// Stop halts a started monitor and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether Start has been called without a matching Stop.
func (m *Monitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

func (m *Monitor) interval() time.Duration {
	if m.Interval <= 0 {
		return DefaultInterval
	}
	return m.Interval
}

func (m *Monitor) threshold() time.Duration {
	if m.Threshold <= 0 {
		return DefaultThreshold
	}
	return m.Threshold
}

func (m *Monitor) logger() *zap.Logger {
	if m.Logger == nil {
		return zap.NewNop()
	}
	return m.Logger
}
