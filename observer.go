package goAuthClient

import (
	"time"

	"github.com/MrEthical07/goAuthClient/events"
	"github.com/MrEthical07/goAuthClient/monitor"
	"github.com/MrEthical07/goAuthClient/state"
)

// sessionObserver feeds request-layer signals into Metrics. A successful
// refresh, reactive or proactive, also clears the token-expiring flag.
type sessionObserver struct {
	m       *Metrics
	machine *state.Machine
}

func (o sessionObserver) RefreshFinished(d time.Duration, err error) {
	o.m.Observe(MetricRefreshLatency, d)
	if err != nil {
		o.m.Inc(MetricRefreshFailure)
		return
	}
	o.m.Inc(MetricRefreshSuccess)
	if o.machine != nil && o.machine.Current().TokenExpiringSoon {
		o.machine.Dispatch(state.SetTokenExpiring{Value: false})
	}
}

func (o sessionObserver) RefreshJoined()      { o.m.Inc(MetricRefreshJoined) }
func (o sessionObserver) TokenDiscarded()     { o.m.Inc(MetricTokenDiscarded) }
func (o sessionObserver) Unauthorized()       { o.m.Inc(MetricUnauthorized) }
func (o sessionObserver) DoubleUnauthorized() { o.m.Inc(MetricDoubleUnauthorized) }
func (o sessionObserver) AccessDenied()       { o.m.Inc(MetricAccessDenied) }
func (o sessionObserver) RateLimited()        { o.m.Inc(MetricRateLimited) }

func (o sessionObserver) SessionTerminated(reason events.Reason) {
	switch reason {
	case events.ReasonSessionExpired:
		o.m.Inc(MetricSessionExpired)
	case events.ReasonAuthenticationRequired:
		o.m.Inc(MetricAuthenticationRequired)
	}
}

func (o sessionObserver) monitorChecked(out monitor.Outcome) {
	switch out {
	case monitor.Refreshed:
		o.m.Inc(MetricProactiveRefresh)
	case monitor.Deferred:
		o.m.Inc(MetricProactiveRefreshDeferred)
	case monitor.Failed:
		o.m.Inc(MetricProactiveRefreshFailure)
	}
}
