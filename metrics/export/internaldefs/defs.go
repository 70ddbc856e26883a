package internaldefs

import (
	goAuthClient "github.com/MrEthical07/goAuthClient"
)

// CounterDef names one counter.
type CounterDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// HistogramDef names one histogram.
type HistogramDef struct {
	ID   goAuthClient.MetricID
	Name string
	Help string
}

// EventsDroppedName is the counter of logout deliveries skipped for full
// subscribers. It is read from the bus rather than the snapshot.
const (
	EventsDroppedName = "goauthclient_events_dropped_total"
	EventsDroppedHelp = "Logout event deliveries dropped because a subscriber was full."
)

// CounterDefs lists every snapshot counter in export order.
var CounterDefs = []CounterDef{
	{ID: goAuthClient.MetricLoginSuccess, Name: "goauthclient_login_success_total", Help: "Successful logins."},
	{ID: goAuthClient.MetricLoginFailure, Name: "goauthclient_login_failure_total", Help: "Failed logins."},
	{ID: goAuthClient.MetricLogout, Name: "goauthclient_logout_total", Help: "Explicit logouts."},
	{ID: goAuthClient.MetricRefreshSuccess, Name: "goauthclient_refresh_success_total", Help: "Refreshes that rotated the token pair."},
	{ID: goAuthClient.MetricRefreshFailure, Name: "goauthclient_refresh_failure_total", Help: "Refreshes that ended the session."},
	{ID: goAuthClient.MetricRefreshJoined, Name: "goauthclient_refresh_joined_total", Help: "Calls that waited on an in-flight refresh."},
	{ID: goAuthClient.MetricTokenDiscarded, Name: "goauthclient_token_discarded_total", Help: "Stored access tokens discarded as malformed or expired."},
	{ID: goAuthClient.MetricUnauthorized, Name: "goauthclient_unauthorized_total", Help: "401 responses."},
	{ID: goAuthClient.MetricDoubleUnauthorized, Name: "goauthclient_double_unauthorized_total", Help: "Replayed calls rejected with a second 401."},
	{ID: goAuthClient.MetricAccessDenied, Name: "goauthclient_access_denied_total", Help: "403 responses."},
	{ID: goAuthClient.MetricRateLimited, Name: "goauthclient_rate_limited_total", Help: "429 responses."},
	{ID: goAuthClient.MetricSessionExpired, Name: "goauthclient_session_expired_total", Help: "Sessions ended by a rejected refresh."},
	{ID: goAuthClient.MetricAuthenticationRequired, Name: "goauthclient_authentication_required_total", Help: "Sessions ended for lack of a usable refresh token."},
	{ID: goAuthClient.MetricLogoutEvent, Name: "goauthclient_logout_events_total", Help: "Logout events handled by the provider."},
	{ID: goAuthClient.MetricRedirect, Name: "goauthclient_redirects_total", Help: "Redirects to the login page."},
	{ID: goAuthClient.MetricCheckAuthSuccess, Name: "goauthclient_check_auth_success_total", Help: "Successful session checks."},
	{ID: goAuthClient.MetricCheckAuthFailure, Name: "goauthclient_check_auth_failure_total", Help: "Failed session checks."},
	{ID: goAuthClient.MetricProactiveRefresh, Name: "goauthclient_proactive_refresh_total", Help: "Refreshes started by the expiry monitor."},
	{ID: goAuthClient.MetricProactiveRefreshDeferred, Name: "goauthclient_proactive_refresh_deferred_total", Help: "Monitor checks deferred because the session was busy."},
	{ID: goAuthClient.MetricProactiveRefreshFailure, Name: "goauthclient_proactive_refresh_failure_total", Help: "Monitor-started refreshes that failed."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAuthClient.MetricRefreshLatency, Name: "goauthclient_refresh_latency_seconds", Help: "Refresh round-trip latency."},
}

// HistogramBounds are the upper bounds matching the in-process buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundValues are HistogramBounds as seconds, without +Inf.
var HistogramBoundValues = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix are instrument-name-safe forms of HistogramBounds.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding with zeros.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into cumulative counts.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
