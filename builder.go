package authsession

import (
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authsession/credential"
	internalaudit "github.com/MrEthical07/authsession/internal/audit"
	"github.com/MrEthical07/authsession/internal/flight"
	"github.com/MrEthical07/authsession/internal/renewal"
	"github.com/MrEthical07/authsession/jwt"
	"github.com/MrEthical07/authsession/persist"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config

	exchanger   Exchanger
	issuer      Issuer
	persistence credential.Persistence
	logger      logrus.FieldLogger
	auditSink   AuditSink
	resets      []func()
	now         func() time.Time
	afterFunc   renewal.AfterFunc

	built bool
}

// New returns a Builder with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithExchanger sets the refresh exchange. Required.
func (b *Builder) WithExchanger(x Exchanger) *Builder {
	b.exchanger = x
	return b
}

// WithIssuer sets the transport used by [Engine.Do] and replays.
func (b *Builder) WithIssuer(i Issuer) *Builder {
	b.issuer = i
	return b
}

// WithPersistence sets the durable key/value backend. Defaults to an in-memory backend.
func (b *Builder) WithPersistence(p credential.Persistence) *Builder {
	b.persistence = p
	return b
}

// WithLogger sets the structured logger. Defaults to logrus.StandardLogger().
func (b *Builder) WithLogger(l logrus.FieldLogger) *Builder {
	b.logger = l
	return b
}

// WithAuditSink sets the audit sink and enables auditing.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	if sink != nil {
		b.config.Audit.Enabled = true
	}
	return b
}

// WithIdentityReset registers fn to clear cached identity state (current user, tenant,
// caches keyed by the session) when a session terminates. Resets run in registration order
// before subscribers are notified.
func (b *Builder) WithIdentityReset(fn func()) *Builder {
	if fn != nil {
		b.resets = append(b.resets, fn)
	}
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock replaces the wall clock used for issuance times and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and returns a ready Engine. It performs no I/O; call
// [Engine.Start] to restore a persisted session.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.exchanger == nil {
		return nil, errors.New("exchanger required")
	}

	backend := b.persistence
	if backend == nil {
		backend = persist.NewMemory()
	}
	logger := b.logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	now := b.now
	if now == nil {
		now = func() time.Time { return time.Now().Round(0) }
	}

	engine := &Engine{
		config:    cfg,
		policy:    cfg.Lifetime.Policy(),
		store:     credential.NewStore(backend, credential.DefaultKeys(cfg.Persistence.KeyPrefix)),
		exchanger: b.exchanger,
		issuer:    b.issuer,
		flight:    flight.New[refreshOutcome](),
		audit: internalaudit.NewDispatcher(internalaudit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
			Keep:       []string{auditEventSessionStarted, auditEventSessionResumed, auditEventSessionTerminated},
			Now:        now,
		}, b.auditSink),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger,
		now:     now,
		resets:  append([]func(){}, b.resets...),
	}

	if cfg.Renewal.Enabled {
		rc := renewal.Config{
			Policy:        engine.policy,
			Now:           now,
			AfterFunc:     b.afterFunc,
			Current:       engine.store.Get,
			Refresh:       engine.proactiveRefresh,
			OnExpired:     func() { engine.Terminate(ErrRefreshTokenExpired) },
			MaxTimerSlice: cfg.Renewal.MaxTimerSlice,
			Logger:        logger,
		}
		if cfg.Renewal.UseTokenExpiry {
			lead := cfg.Lifetime.RenewalLead
			rc.Deadline = func(c credential.Credential) (time.Time, bool) {
				exp, ok := jwt.Expiry(c.AccessToken)
				if !ok {
					return time.Time{}, false
				}
				return exp.Add(-lead), true
			}
		}
		engine.scheduler = renewal.New(rc)
	}

	b.built = true

	return engine, nil
}
