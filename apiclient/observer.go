package apiclient

import (
	"time"

	"github.com/MrEthical07/goAuthClient/events"
)

// Observer receives request-layer signals, typically for metrics.
type Observer interface {
	RefreshFinished(d time.Duration, err error)
	RefreshJoined()
	TokenDiscarded()
	Unauthorized()
	DoubleUnauthorized()
	AccessDenied()
	RateLimited()
	SessionTerminated(reason events.Reason)
}

// NopObserver ignores every signal.
type NopObserver struct{}

func (NopObserver) RefreshFinished(time.Duration, error) {}
func (NopObserver) RefreshJoined()                       {}
func (NopObserver) TokenDiscarded()                      {}
func (NopObserver) Unauthorized()                        {}
func (NopObserver) DoubleUnauthorized()                  {}
func (NopObserver) AccessDenied()                        {}
func (NopObserver) RateLimited()                         {}
func (NopObserver) SessionTerminated(events.Reason)      {}
