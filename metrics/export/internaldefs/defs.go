package internaldefs

import "github.com/MrEthical07/moodjournal/internal/metrics"

// CounterDef names one client counter.
type CounterDef struct {
	ID   metrics.ID
	Name string
	Help string
}

// HistogramDef names one latency histogram.
type HistogramDef struct {
	ID   metrics.ID
	Name string
	Help string
}

// EventsDroppedName is the counter for session events lost to backpressure.
const (
	EventsDroppedName = "moodjournal_events_dropped_total"
	EventsDroppedHelp = "Dropped session events due to dispatcher backpressure."
)

var CounterDefs = []CounterDef{
	{ID: metrics.LoginSuccess, Name: "moodjournal_login_success_total", Help: "Successful logins."},
	{ID: metrics.LoginFailure, Name: "moodjournal_login_failure_total", Help: "Failed or rejected logins."},
	{ID: metrics.Logout, Name: "moodjournal_logout_total", Help: "Logout operations."},
	{ID: metrics.LogoutRemoteFailure, Name: "moodjournal_logout_remote_failure_total", Help: "Logouts whose network call failed."},
	{ID: metrics.RefreshSuccess, Name: "moodjournal_refresh_success_total", Help: "Refresh calls that renewed the session."},
	{ID: metrics.RefreshFailure, Name: "moodjournal_refresh_failure_total", Help: "Refresh calls that ended the session."},
	{ID: metrics.RefreshStarted, Name: "moodjournal_refresh_started_total", Help: "Shared refresh operations started by the pipeline."},
	{ID: metrics.RefreshWaiter, Name: "moodjournal_refresh_waiter_total", Help: "Requests that waited on a shared refresh."},
	{ID: metrics.RetryAfterRefresh, Name: "moodjournal_retry_after_refresh_total", Help: "Requests replayed after a successful refresh."},
	{ID: metrics.RetryUnauthorized, Name: "moodjournal_retry_unauthorized_total", Help: "Replayed requests rejected again with 401."},
	{ID: metrics.AuthErrorPropagated, Name: "moodjournal_auth_error_propagated_total", Help: "Original 401 responses surfaced after a failed refresh."},
	{ID: metrics.SessionCleared, Name: "moodjournal_session_cleared_total", Help: "Transitions into the unauthenticated state."},
}

var HistogramDefs = []HistogramDef{
	{ID: metrics.RefreshLatency, Name: "moodjournal_refresh_latency_seconds", Help: "Refresh call latency."},
}

// HistogramBounds are the upper bounds in seconds, matching the collector's
// millisecond buckets. The last bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// flatten buckets into gauges.
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

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
