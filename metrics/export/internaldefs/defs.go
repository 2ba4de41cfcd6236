package internaldefs

import (
	"time"

	"github.com/MrEthical07/authsession"
)

// CounterDef names one exported counter.
type CounterDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

// HistogramDef names one exported histogram.
type HistogramDef struct {
	ID   authsession.MetricID
	Name string
	Help string
}

// CounterDefs lists every counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: authsession.MetricRefreshRequested, Name: "authsession_refresh_requested_total", Help: "Refresh and renew-after-rejection calls."},
	{ID: authsession.MetricRefreshJoined, Name: "authsession_refresh_joined_total", Help: "Callers that joined an in-flight refresh cycle."},
	{ID: authsession.MetricRefreshExchange, Name: "authsession_refresh_exchange_total", Help: "Refresh token exchanges sent to the server."},
	{ID: authsession.MetricRefreshSuccess, Name: "authsession_refresh_success_total", Help: "Refresh cycles that rotated the credential."},
	{ID: authsession.MetricRefreshFailure, Name: "authsession_refresh_failure_total", Help: "Refresh cycles that failed."},
	{ID: authsession.MetricRefreshNoSession, Name: "authsession_refresh_no_session_total", Help: "Refresh cycles that found no refresh token."},
	{ID: authsession.MetricRefreshExpired, Name: "authsession_refresh_expired_total", Help: "Refresh cycles stopped by the refresh lifetime ceiling."},
	{ID: authsession.MetricRefreshTimeout, Name: "authsession_refresh_timeout_total", Help: "Refresh exchanges that timed out."},
	{ID: authsession.MetricRefreshSkippedFresh, Name: "authsession_refresh_skipped_fresh_total", Help: "Rejections resolved with an already rotated credential."},
	{ID: authsession.MetricReplayAttempt, Name: "authsession_replay_attempt_total", Help: "Rejected requests replayed after refresh."},
	{ID: authsession.MetricReplaySuccess, Name: "authsession_replay_success_total", Help: "Replayed requests accepted by the server."},
	{ID: authsession.MetricReplayFailure, Name: "authsession_replay_failure_total", Help: "Replayed requests rejected again."},
	{ID: authsession.MetricRetryExhausted, Name: "authsession_retry_exhausted_total", Help: "Requests failed after their single replay."},
	{ID: authsession.MetricSchedulerArmed, Name: "authsession_scheduler_armed_total", Help: "Proactive renewal timers armed."},
	{ID: authsession.MetricSchedulerFired, Name: "authsession_scheduler_fired_total", Help: "Proactive renewal timers fired."},
	{ID: authsession.MetricSessionStarted, Name: "authsession_session_started_total", Help: "Sessions started from a login."},
	{ID: authsession.MetricSessionResumed, Name: "authsession_session_resumed_total", Help: "Sessions restored from persistence."},
	{ID: authsession.MetricSessionTerminated, Name: "authsession_session_terminated_total", Help: "Sessions terminated."},
}

// HistogramDefs lists every histogram.
var HistogramDefs = []HistogramDef{
	{ID: authsession.MetricRefreshLatency, Name: "authsession_refresh_latency_seconds", Help: "Refresh exchange latency histogram."},
}

// HistogramBounds are the Prometheus le labels for the eight buckets.
var HistogramBounds = []string{
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"+Inf",
}

// Session gauge names.
const (
	SessionLiveName  = "authsession_session_live"
	SessionLiveHelp  = "1 while a session is live, 0 otherwise."
	NextRenewalName  = "authsession_next_renewal_seconds"
	NextRenewalHelp  = "Seconds until the armed proactive renewal; absent when disarmed."
	AuditDroppedName = "authsession_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped by the dispatcher under backpressure."
)

// Source is the read side of an Engine that exporters sample.
type Source interface {
	MetricsSnapshot() authsession.MetricsSnapshot
	AuditDropped() uint64
	Live() bool
	NextRenewal() (time.Time, bool)
}

// SessionState is one sample of the session gauges.
type SessionState struct {
	Live bool
	// Armed reports whether RenewalIn is meaningful.
	Armed     bool
	RenewalIn time.Duration
}

// ReadSession samples src at now. An overdue renewal reads as zero.
func ReadSession(src Source, now time.Time) SessionState {
	st := SessionState{Live: src.Live()}
	if next, ok := src.NextRenewal(); ok {
		st.Armed = true
		if d := next.Sub(now); d > 0 {
			st.RenewalIn = d
		}
	}
	return st
}

// NormalizeBuckets copies raw into a fixed array, zero-filling missing buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
