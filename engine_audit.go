package authsession

import (
	"context"
	"errors"
)

const (
	auditEventSessionStarted      = "session_started"
	auditEventSessionResumed      = "session_resumed"
	auditEventRefreshSuccess      = "refresh_success"
	auditEventRefreshFailure      = "refresh_failure"
	auditEventRequestReplayed     = "request_replayed"
	auditEventRequestReplayFailed = "request_replay_failed"
	auditEventSessionTerminated   = "session_terminated"
)

// AuditErrorCode is the stable error label carried in [AuditEvent].Error.
type AuditErrorCode string

const (
	auditErrNoSession        AuditErrorCode = "no_session"
	auditErrRefreshExpired   AuditErrorCode = "refresh_expired"
	auditErrUnauthenticated  AuditErrorCode = "unauthenticated"
	auditErrRefreshTransport AuditErrorCode = "refresh_transport"
	auditErrPersist          AuditErrorCode = "persist_failed"
	auditErrRequestRejected  AuditErrorCode = "request_rejected"
	auditErrSuperseded       AuditErrorCode = "superseded"
	auditErrEngineClosed     AuditErrorCode = "engine_closed"
	auditErrInternal         AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	epoch uint64,
	cycleID string,
	requestID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		Epoch:     epoch,
		CycleID:   cycleID,
		RequestID: requestID,
		Trigger:   triggerFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrNoSession):
		return auditErrNoSession
	case errors.Is(err, ErrRefreshTokenExpired):
		return auditErrRefreshExpired
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrRefreshTransport):
		return auditErrRefreshTransport
	case errors.Is(err, ErrCredentialPersist):
		return auditErrPersist
	case errors.Is(err, ErrRequestAuth):
		return auditErrRequestRejected
	case errors.Is(err, ErrSessionSuperseded):
		return auditErrSuperseded
	case errors.Is(err, ErrEngineClosed):
		return auditErrEngineClosed
	default:
		return auditErrInternal
	}
}
