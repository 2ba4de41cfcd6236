package authsession

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authsession/credential"
	"github.com/MrEthical07/authsession/internal/renewal"
)

// Config controls token lifetimes, renewal scheduling, the refresh exchange, persistence
// layout, audit and metrics. Build copies it; later mutation has no effect on an Engine.
type Config struct {
	Lifetime    LifetimeConfig
	Renewal     RenewalConfig
	Exchange    ExchangeConfig
	Persistence PersistenceConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
LIFETIME CONFIG
====================================
*/

// LifetimeConfig mirrors the server's token policy. The client cannot learn these values
// from opaque tokens, so they are configured.
type LifetimeConfig struct {
	Access  time.Duration
	Refresh time.Duration
	// RenewalLead is how long before access expiry the scheduler renews.
	RenewalLead time.Duration
}

// Policy converts the lifetimes into a credential.Policy.
func (l LifetimeConfig) Policy() credential.Policy {
	return credential.Policy{
		AccessLifetime:  l.Access,
		RefreshLifetime: l.Refresh,
		RenewalLeadTime: l.RenewalLead,
	}
}

/*
====================================
RENEWAL CONFIG
====================================
*/

// RenewalConfig controls the proactive scheduler.
type RenewalConfig struct {
	Enabled bool
	// MaxTimerSlice caps a single timer so the deadline is rechecked against the wall
	// clock, e.g. after the host wakes from sleep. Zero disables slicing.
	MaxTimerSlice time.Duration
	// UseTokenExpiry renews earlier when the access token is a JWT whose exp claim,
	// minus RenewalLead, comes before the policy deadline.
	UseTokenExpiry bool
}

/*
====================================
EXCHANGE CONFIG
====================================
*/

// ExchangeConfig controls the refresh exchange call.
type ExchangeConfig struct {
	// Timeout bounds one exchange. Exceeding it is a transport failure.
	Timeout time.Duration
	// Headers are sent with every exchange, e.g. a client identifier.
	Headers http.Header
}

/*
====================================
PERSISTENCE CONFIG
====================================
*/

// PersistenceConfig names the persisted keys.
type PersistenceConfig struct {
	KeyPrefix string
	// WriteTimeout bounds the store write after a successful exchange. It has its own
	// budget so a slow exchange cannot starve it.
	WriteTimeout time.Duration
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the documented defaults: 24h access, 7d refresh, renewal 15
// minutes before access expiry, 10s exchange timeout.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Lifetime: LifetimeConfig{
			Access:      credential.DefaultAccessLifetime,
			Refresh:     credential.DefaultRefreshLifetime,
			RenewalLead: credential.DefaultRenewalLeadTime,
		},
		Renewal: RenewalConfig{
			Enabled:       true,
			MaxTimerSlice: renewal.DefaultMaxTimerSlice,
		},
		Exchange: ExchangeConfig{
			Timeout: 10 * time.Second,
		},
		Persistence: PersistenceConfig{
			KeyPrefix:    credential.DefaultKeyPrefix,
			WriteTimeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Exchange.Headers = cfg.Exchange.Headers.Clone()
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := c.Lifetime.Policy().Validate(); err != nil {
		return err
	}

	if c.Renewal.MaxTimerSlice < 0 {
		return errors.New("Renewal MaxTimerSlice must be >= 0")
	}
	if c.Renewal.MaxTimerSlice > 0 && c.Renewal.MaxTimerSlice < time.Second {
		return errors.New("Renewal MaxTimerSlice must be >= 1s when set")
	}

	if c.Exchange.Timeout <= 0 {
		return errors.New("Exchange Timeout must be > 0")
	}
	for name := range c.Exchange.Headers {
		if strings.EqualFold(name, "Authorization") {
			return errors.New("Exchange Headers must not set Authorization")
		}
	}

	if strings.TrimSpace(c.Persistence.KeyPrefix) == "" {
		return errors.New("Persistence KeyPrefix must not be empty")
	}
	if c.Persistence.WriteTimeout <= 0 {
		return errors.New("Persistence WriteTimeout must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}
