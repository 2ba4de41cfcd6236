package authsession

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Terminate ends the current session: it disarms the renewal timer, clears the stored
// credential, runs the identity resets registered with [Builder.WithIdentityReset], and
// notifies subscribers. However many goroutines call it, subscribers are notified once
// per live session. It never panics; persistence errors are logged.
func (e *Engine) Terminate(reason error) {
	if e == nil || e.store == nil {
		return
	}
	e.terminate(0, false, reason)
}

// terminate with scoped set only acts when epoch is still the current session.
func (e *Engine) terminate(epoch uint64, scoped bool, reason error) {
	if reason == nil {
		reason = ErrUnauthenticated
	}

	e.sessionMu.Lock()
	current := e.epoch.Load()
	if scoped && current != epoch {
		e.sessionMu.Unlock()
		return
	}
	if e.scheduler != nil {
		e.scheduler.Disarm()
	}
	if err := e.store.Clear(context.Background()); err != nil {
		e.logger.WithError(err).Warn("authsession: clearing persisted credential failed")
	}
	won := e.live.CompareAndSwap(true, false)
	e.sessionMu.Unlock()

	if !won {
		return
	}

	for _, reset := range e.resets {
		e.safeCall(func() { reset() })
	}

	e.metricInc(MetricSessionTerminated)
	e.emitAudit(context.Background(), auditEventSessionTerminated, true, current, "", "", reason, nil)
	e.logger.WithFields(logrus.Fields{
		"epoch":  current,
		"reason": reason.Error(),
	}).Info("authsession: session terminated")

	event := SessionEvent{Reason: reason, At: e.now(), Epoch: current}
	for _, l := range e.snapshotListeners() {
		e.safeCall(func() { l(event) })
	}
}

// Subscribe registers l for session termination events. The returned function removes it.
func (e *Engine) Subscribe(l SessionListener) func() {
	if e == nil || l == nil {
		return func() {}
	}

	e.listenersMu.Lock()
	if e.listeners == nil {
		e.listeners = make(map[uint64]SessionListener)
	}
	id := e.nextListener
	e.nextListener++
	e.listeners[id] = l
	e.listenersMu.Unlock()

	return func() {
		e.listenersMu.Lock()
		delete(e.listeners, id)
		e.listenersMu.Unlock()
	}
}

func (e *Engine) snapshotListeners() []SessionListener {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()

	out := make([]SessionListener, 0, len(e.listeners))
	for _, l := range e.listeners {
		out = append(out, l)
	}
	return out
}

func (e *Engine) safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.WithField("panic", r).Error("authsession: termination hook panicked")
		}
	}()
	fn()
}
