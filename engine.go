package authsession

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authsession/credential"
	internalaudit "github.com/MrEthical07/authsession/internal/audit"
	"github.com/MrEthical07/authsession/internal/flight"
	"github.com/MrEthical07/authsession/internal/renewal"
)

// Engine owns one client session: the stored credential, the single refresh cycle, the
// renewal timer and the termination signal. All methods are safe for concurrent use.
type Engine struct {
	config    Config
	policy    credential.Policy
	store     *credential.Store
	exchanger Exchanger
	issuer    Issuer
	flight    *flight.Executor[refreshOutcome]
	scheduler *renewal.Scheduler
	audit     *internalaudit.Dispatcher
	metrics   *Metrics
	logger    logrus.FieldLogger
	now       func() time.Time
	resets    []func()

	// sessionMu orders session transitions (start, persist of a refreshed credential,
	// terminate) against each other. Reads never take it.
	sessionMu sync.Mutex
	epoch     atomic.Uint64
	live      atomic.Bool

	listenersMu  sync.Mutex
	listeners    map[uint64]SessionListener
	nextListener uint64

	closed atomic.Bool
}

// Start restores a persisted session. It reports false when nothing usable was stored: a
// partial record is purged, and a record past the refresh lifetime is cleared without a
// session event. A restored session is armed for proactive renewal.
func (e *Engine) Start(ctx context.Context) (bool, error) {
	if e == nil || e.store == nil {
		return false, ErrEngineNotReady
	}
	if e.closed.Load() {
		return false, ErrEngineClosed
	}

	e.sessionMu.Lock()
	c, ok, err := e.store.Load(ctx)
	if err != nil {
		e.sessionMu.Unlock()
		return false, fmt.Errorf("%w: %v", ErrCredentialPersist, err)
	}
	if !ok {
		e.sessionMu.Unlock()
		return false, nil
	}
	if e.policy.ExpiredRefresh(c, e.now()) {
		if err := e.store.Clear(ctx); err != nil {
			e.logger.WithError(err).Warn("authsession: clearing expired persisted session failed")
		}
		e.sessionMu.Unlock()
		e.logger.WithField("issued_at", c.IssuedAt).Info("authsession: persisted session past refresh lifetime")
		return false, nil
	}
	epoch := e.epoch.Add(1)
	e.live.Store(true)
	e.sessionMu.Unlock()

	e.metricInc(MetricSessionResumed)
	e.emitAudit(ctx, auditEventSessionResumed, true, epoch, "", "", nil, func() map[string]string {
		return map[string]string{"issued_at": c.IssuedAt.UTC().Format(time.RFC3339)}
	})
	e.logger.WithField("epoch", epoch).Info("authsession: session resumed")
	e.armRenewal()
	return true, nil
}

// StartSession stores the token pair returned by a login or registration and starts a new
// session epoch. A refresh still in flight for the previous session cannot overwrite it.
// On a persistence error the previous session, if any, is left untouched.
func (e *Engine) StartSession(ctx context.Context, pair TokenPair) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return credential.ErrPartialCredential
	}

	c := Credential{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IssuedAt:     e.now(),
	}

	e.sessionMu.Lock()
	if err := e.store.Set(ctx, c); err != nil {
		e.sessionMu.Unlock()
		return fmt.Errorf("%w: %v", ErrCredentialPersist, err)
	}
	epoch := e.epoch.Add(1)
	e.live.Store(true)
	e.sessionMu.Unlock()

	e.metricInc(MetricSessionStarted)
	e.emitAudit(ctx, auditEventSessionStarted, true, epoch, "", "", nil, nil)
	e.logger.WithField("epoch", epoch).Info("authsession: session started")
	e.armRenewal()
	return nil
}

// Credential returns the current credential without touching persistence.
func (e *Engine) Credential() (Credential, bool) {
	if e == nil || e.store == nil {
		return Credential{}, false
	}
	return e.store.Get()
}

// Live reports whether a session is active.
func (e *Engine) Live() bool {
	return e != nil && e.live.Load()
}

// NextRenewal returns when the proactive timer will refresh, if armed.
func (e *Engine) NextRenewal() (time.Time, bool) {
	if e == nil || e.scheduler == nil {
		return time.Time{}, false
	}
	return e.scheduler.Next()
}

// Close stops the renewal timer and drains the audit dispatcher. The persisted session is
// kept for the next [Engine.Start]. A refresh already in flight runs to completion.
func (e *Engine) Close() {
	if e == nil || !e.closed.CompareAndSwap(false, true) {
		return
	}
	if e.scheduler != nil {
		e.scheduler.Stop()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns how many audit events were dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine's metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// armRenewal must not be called with sessionMu held: Arm may terminate synchronously.
func (e *Engine) armRenewal() {
	if e.scheduler == nil || e.closed.Load() {
		return
	}
	e.scheduler.Arm()
	if _, ok := e.scheduler.Next(); ok {
		e.metricInc(MetricSchedulerArmed)
	}
}

func (e *Engine) proactiveRefresh(ctx context.Context) error {
	e.metricInc(MetricSchedulerFired)
	_, err := e.Refresh(WithTrigger(ctx, triggerProactive))
	if errors.Is(err, ErrEngineClosed) {
		return nil
	}
	return err
}
