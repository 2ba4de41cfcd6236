package authsession

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authsession/credential"
	internalaudit "github.com/MrEthical07/authsession/internal/audit"
	internalmetrics "github.com/MrEthical07/authsession/internal/metrics"
)

// Credential is the stored token pair plus the time it was issued.
type Credential = credential.Credential

// TokenPair is what a login or a refresh exchange returns.
type TokenPair = credential.TokenPair

// Exchanger trades a refresh token for a new token pair. It is the only network call the
// Engine makes on its own behalf.
type Exchanger interface {
	ExchangeRefreshToken(ctx context.Context, refreshToken string, headers http.Header) (TokenPair, error)
}

// ExchangerFunc adapts a function to [Exchanger].
type ExchangerFunc func(ctx context.Context, refreshToken string, headers http.Header) (TokenPair, error)

func (f ExchangerFunc) ExchangeRefreshToken(ctx context.Context, refreshToken string, headers http.Header) (TokenPair, error) {
	return f(ctx, refreshToken, headers)
}

// Issuer sends an outgoing request. An authorization rejection must be reported as an
// error wrapping *[AuthFailure]; every other error is passed through unchanged.
type Issuer interface {
	Issue(ctx context.Context, req *Request) (*Response, error)
}

// IssuerFunc adapts a function to [Issuer].
type IssuerFunc func(ctx context.Context, req *Request) (*Response, error)

func (f IssuerFunc) Issue(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Request is an outgoing call the Engine may authorize and replay once. A Request must not
// be issued from several goroutines at the same time.
type Request struct {
	ID     string
	Method string
	URL    string
	Header http.Header
	Body   []byte

	retried atomic.Bool
	// token is the access token attached by the last Authorize call.
	token string
}

// NewRequest creates a Request with a fresh ID.
func NewRequest(method, url string, body []byte) *Request {
	return &Request{
		ID:     uuid.NewString(),
		Method: method,
		URL:    url,
		Header: make(http.Header),
		Body:   body,
	}
}

// Retried reports whether the request has already been replayed after an
// authorization failure.
func (r *Request) Retried() bool {
	return r.retried.Load()
}

// markRetried flips the single-use retry flag and reports whether this call won.
func (r *Request) markRetried() bool {
	return r.retried.CompareAndSwap(false, true)
}

// BodyReader returns a fresh reader over Body.
func (r *Request) BodyReader() io.Reader {
	if r.Body == nil {
		return http.NoBody
	}
	return bytes.NewReader(r.Body)
}

// Response is the result of a successfully issued request.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// AuthFailure is the rejection an [Issuer] reports when the server refused the request's
// credentials.
type AuthFailure struct {
	StatusCode int
	Err        error
}

func (f *AuthFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("authorization rejected (status %d): %v", f.StatusCode, f.Err)
	}
	return fmt.Sprintf("authorization rejected (status %d)", f.StatusCode)
}

func (f *AuthFailure) Unwrap() error {
	return f.Err
}

// SessionEvent describes one termination of a live session.
type SessionEvent struct {
	Reason error
	At     time.Time
	Epoch  uint64
}

// SessionListener is notified once per terminated session. Listeners run synchronously on
// the terminating goroutine and must not block.
type SessionListener func(SessionEvent)

// AuditEvent is a structured audit record emitted by the engine. It never carries tokens.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink] that drops events when full.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// LogrusSink is an [AuditSink] that writes events as structured logrus entries.
type LogrusSink = internalaudit.LogrusSink

// NewLogrusSink creates a [LogrusSink]; a nil logger means logrus.StandardLogger().
func NewLogrusSink(log logrus.FieldLogger) *LogrusSink {
	return internalaudit.NewLogrusSink(log)
}

// MetricID identifies a counter or the refresh latency histogram.
type MetricID = internalmetrics.MetricID

const (
	// MetricRefreshRequested counts Refresh and RenewAfterRejection calls.
	MetricRefreshRequested = internalmetrics.MetricRefreshRequested
	// MetricRefreshJoined counts callers that joined a cycle another caller started.
	MetricRefreshJoined = internalmetrics.MetricRefreshJoined
	// MetricRefreshExchange counts network exchanges.
	MetricRefreshExchange = internalmetrics.MetricRefreshExchange
	MetricRefreshSuccess  = internalmetrics.MetricRefreshSuccess
	MetricRefreshFailure  = internalmetrics.MetricRefreshFailure
	// MetricRefreshNoSession counts cycles that found no refresh token.
	MetricRefreshNoSession = internalmetrics.MetricRefreshNoSession
	// MetricRefreshExpired counts cycles stopped by the refresh lifetime ceiling.
	MetricRefreshExpired = internalmetrics.MetricRefreshExpired
	MetricRefreshTimeout = internalmetrics.MetricRefreshTimeout
	// MetricRefreshSkippedFresh counts cycles resolved without an exchange because the
	// rejected token had already been replaced.
	MetricRefreshSkippedFresh = internalmetrics.MetricRefreshSkippedFresh
	MetricReplayAttempt       = internalmetrics.MetricReplayAttempt
	MetricReplaySuccess       = internalmetrics.MetricReplaySuccess
	MetricReplayFailure       = internalmetrics.MetricReplayFailure
	// MetricRetryExhausted counts second authorization failures on a replayed request.
	MetricRetryExhausted    = internalmetrics.MetricRetryExhausted
	MetricSchedulerArmed    = internalmetrics.MetricSchedulerArmed
	MetricSchedulerFired    = internalmetrics.MetricSchedulerFired
	MetricSessionStarted    = internalmetrics.MetricSessionStarted
	MetricSessionResumed    = internalmetrics.MetricSessionResumed
	MetricSessionTerminated = internalmetrics.MetricSessionTerminated
	// MetricRefreshLatency is the exchange latency histogram.
	MetricRefreshLatency = internalmetrics.MetricRefreshLatency
)

// Metrics holds atomic counters and the optional latency histogram.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] configured by cfg. When Enabled is false every
// operation is a no-op.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
