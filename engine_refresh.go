package authsession

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authsession/credential"
	"github.com/MrEthical07/authsession/internal/flight"
	"github.com/MrEthical07/authsession/internal/flows"
)

type refreshOutcome struct {
	cred Credential
	err  error
}

// Refresh renews the credential. Concurrent callers share one cycle and one exchange, and
// all of them observe the same credential or the same error. Any failure other than
// [ErrSessionSuperseded] terminates the session before the error is returned.
//
// Cancelling ctx only stops the caller from waiting; the exchange itself is bounded by
// Config.Exchange.Timeout and always runs to completion.
func (e *Engine) Refresh(ctx context.Context) (Credential, error) {
	return e.refresh(ctx, "")
}

// RenewAfterRejection is Refresh for a caller whose request was rejected while carrying
// rejectedAccessToken. If the session already holds a different access token, that token
// is returned without a new exchange.
func (e *Engine) RenewAfterRejection(ctx context.Context, rejectedAccessToken string) (Credential, error) {
	return e.refresh(ctx, rejectedAccessToken)
}

func (e *Engine) refresh(ctx context.Context, staleAccessToken string) (Credential, error) {
	if e == nil || e.flight == nil {
		return Credential{}, ErrEngineNotReady
	}
	if e.closed.Load() {
		return Credential{}, ErrEngineClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}
	e.metricInc(MetricRefreshRequested)

	trigger := triggerFromContext(ctx)
	out, err := e.flight.Do(ctx, func(cctx context.Context, c flight.Cycle) refreshOutcome {
		return e.runCycle(cctx, c, trigger, staleAccessToken)
	})
	if err != nil {
		return Credential{}, err
	}
	if out.Joined {
		e.metricInc(MetricRefreshJoined)
	}
	return out.Value.cred, out.Value.err
}

func (e *Engine) runCycle(ctx context.Context, c flight.Cycle, trigger, stale string) refreshOutcome {
	var epoch uint64
	log := e.logger.WithFields(logrus.Fields{
		"cycle":   c.ID,
		"trigger": trigger,
	})

	res := flows.RunRefresh(ctx, flows.RefreshDeps{
		Now:    e.now,
		Policy: e.policy,
		Current: func() (credential.Credential, bool) {
			e.sessionMu.Lock()
			defer e.sessionMu.Unlock()
			epoch = e.epoch.Load()
			if !e.live.Load() {
				return credential.Credential{}, false
			}
			return e.store.Get()
		},
		Exchange: e.exchanger.ExchangeRefreshToken,
		Headers:  e.config.Exchange.Headers,
		Timeout:  e.config.Exchange.Timeout,

		PersistTimeout: e.config.Persistence.WriteTimeout,
		Persist: func(pctx context.Context, next credential.Credential) error {
			e.sessionMu.Lock()
			defer e.sessionMu.Unlock()
			if e.epoch.Load() != epoch || !e.live.Load() {
				return ErrSessionSuperseded
			}
			return e.store.Set(pctx, next)
		},
		Superseded:       ErrSessionSuperseded,
		StaleAccessToken: stale,
	})
	log = log.WithField("epoch", epoch)

	if res.Exchanged {
		e.metricInc(MetricRefreshExchange)
		e.metricObserve(MetricRefreshLatency, res.Duration)
	}

	if res.Failure == flows.RefreshFailureNone {
		if !res.Exchanged {
			e.metricInc(MetricRefreshSkippedFresh)
			log.Debug("authsession: rejected token already replaced, reusing current credential")
			return refreshOutcome{cred: res.Credential}
		}
		e.metricInc(MetricRefreshSuccess)
		e.emitAudit(ctx, auditEventRefreshSuccess, true, epoch, c.ID, "", nil, func() map[string]string {
			return map[string]string{
				"trigger": trigger,
				"rotated": fmt.Sprint(res.Rotated),
			}
		})
		log.WithField("duration", res.Duration).Info("authsession: credential refreshed")
		e.armRenewal()
		return refreshOutcome{cred: res.Credential}
	}

	err := e.refreshError(res)
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshFailure, false, epoch, c.ID, "", err, func() map[string]string {
		return map[string]string{"trigger": trigger}
	})

	if errors.Is(err, ErrSessionSuperseded) {
		log.Info("authsession: refresh result discarded, session replaced")
		return refreshOutcome{err: err}
	}

	log.WithError(err).Warn("authsession: refresh failed, terminating session")
	e.terminate(epoch, true, err)
	return refreshOutcome{err: err}
}

// refreshError maps a flow failure to the exported error taxonomy.
func (e *Engine) refreshError(res flows.RefreshResult) error {
	switch res.Failure {
	case flows.RefreshFailureNoSession:
		e.metricInc(MetricRefreshNoSession)
		return ErrNoSession
	case flows.RefreshFailureExpired:
		e.metricInc(MetricRefreshExpired)
		return ErrRefreshTokenExpired
	case flows.RefreshFailureTimeout:
		e.metricInc(MetricRefreshTimeout)
		return fmt.Errorf("%w: exchange timed out: %w", ErrRefreshTransport, res.Err)
	case flows.RefreshFailureTransport, flows.RefreshFailureInvalidResponse:
		return fmt.Errorf("%w: %w", ErrRefreshTransport, res.Err)
	case flows.RefreshFailurePersist:
		return fmt.Errorf("%w: %v", ErrCredentialPersist, res.Err)
	case flows.RefreshFailureSuperseded:
		return ErrSessionSuperseded
	default:
		return fmt.Errorf("%w: unknown failure", ErrRefreshTransport)
	}
}
