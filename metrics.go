package moodjournal

import "github.com/MrEthical07/moodjournal/internal/metrics"

// MetricID identifies a client counter.
type MetricID = metrics.ID

// MetricsSnapshot is a point-in-time copy of all counters and histograms.
type MetricsSnapshot = metrics.Snapshot

const (
	MetricLoginSuccess        = metrics.LoginSuccess
	MetricLoginFailure        = metrics.LoginFailure
	MetricLogout              = metrics.Logout
	MetricLogoutRemoteFailure = metrics.LogoutRemoteFailure
	MetricRefreshSuccess      = metrics.RefreshSuccess
	MetricRefreshFailure      = metrics.RefreshFailure
	MetricRefreshStarted      = metrics.RefreshStarted
	MetricRefreshWaiter       = metrics.RefreshWaiter
	MetricRetryAfterRefresh   = metrics.RetryAfterRefresh
	MetricRetryUnauthorized   = metrics.RetryUnauthorized
	MetricAuthErrorPropagated = metrics.AuthErrorPropagated
	MetricSessionCleared      = metrics.SessionCleared
	MetricRefreshLatency      = metrics.RefreshLatency
)
