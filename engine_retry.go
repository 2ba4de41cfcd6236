package authsession

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// HandleAuthFailure recovers req from an authorization rejection with at most one
// refresh-and-replay:
//
//  1. A request that was already replayed fails with originalErr.
//  2. The request is marked replayed.
//  3. Without a refresh token the session is terminated and [ErrNoSession] returned.
//  4. The shared refresh cycle is joined; concurrent rejections cause one exchange.
//  5. On success the request is re-authorized and issued once more. A second rejection is
//     terminal for the request and matches [ErrRequestAuth].
//  6. On refresh failure the refresh error is returned; the session is already gone.
func (e *Engine) HandleAuthFailure(ctx context.Context, req *Request, originalErr error) (*Response, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if e.issuer == nil {
		return nil, ErrNoIssuer
	}
	if req == nil {
		return nil, originalErr
	}
	if ctx == nil {
		ctx = context.Background()
	}

	log := e.logger.WithField("request_id", req.ID)

	if !req.markRetried() {
		e.metricInc(MetricRetryExhausted)
		return nil, requestAuthError(originalErr)
	}

	if c, ok := e.Credential(); !ok || c.RefreshToken == "" {
		e.Terminate(ErrNoSession)
		return nil, ErrNoSession
	}

	cred, err := e.RenewAfterRejection(WithTrigger(ctx, triggerReactive), req.token)
	if err != nil {
		log.WithError(err).Debug("authsession: renewal for rejected request failed")
		return nil, err
	}

	req.Header.Set("Authorization", bearerPrefix+cred.AccessToken)
	req.token = cred.AccessToken

	e.metricInc(MetricReplayAttempt)
	resp, err := e.issuer.Issue(ctx, req)

	var af *AuthFailure
	if errors.As(err, &af) {
		e.metricInc(MetricReplayFailure)
		e.metricInc(MetricRetryExhausted)
		e.emitAudit(ctx, auditEventRequestReplayFailed, false, e.epoch.Load(), "", req.ID, ErrRequestAuth, func() map[string]string {
			return map[string]string{"status": fmt.Sprint(af.StatusCode)}
		})
		log.WithFields(logrus.Fields{"status": af.StatusCode}).Warn("authsession: replayed request rejected again")
		return nil, requestAuthError(err)
	}
	if err == nil {
		e.metricInc(MetricReplaySuccess)
		e.emitAudit(ctx, auditEventRequestReplayed, true, e.epoch.Load(), "", req.ID, nil, nil)
	}
	return resp, err
}

// Do authorizes req, issues it, and on an authorization rejection hands it to
// [Engine.HandleAuthFailure].
func (e *Engine) Do(ctx context.Context, req *Request) (*Response, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}
	if e.issuer == nil {
		return nil, ErrNoIssuer
	}
	if req == nil {
		return nil, errNilRequest
	}
	if ctx == nil {
		ctx = context.Background()
	}

	e.Authorize(req)
	resp, err := e.issuer.Issue(ctx, req)

	var af *AuthFailure
	if errors.As(err, &af) {
		return e.HandleAuthFailure(ctx, req, err)
	}
	return resp, err
}

var errNilRequest = errors.New("authsession: nil request")

func requestAuthError(err error) error {
	if err == nil {
		return ErrRequestAuth
	}
	if errors.Is(err, ErrRequestAuth) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrRequestAuth, err)
}
