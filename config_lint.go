package authsession

import (
	"fmt"
	"strings"
	"time"
)

// LintSeverity ranks a configuration warning.
type LintSeverity int

const (
	LintInfo LintSeverity = iota
	LintWarn
	LintHigh
)

func (s LintSeverity) String() string {
	switch s {
	case LintInfo:
		return "INFO"
	case LintWarn:
		return "WARN"
	case LintHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("LintSeverity(%d)", int(s))
	}
}

// LintWarning is one finding from [Config.Lint]. A config with warnings is still valid.
type LintWarning struct {
	Code     string
	Severity LintSeverity
	Message  string
}

// LintWarnings is the result of [Config.Lint].
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// BySeverity returns warnings at or above min.
func (ws LintWarnings) BySeverity(min LintSeverity) LintWarnings {
	var out LintWarnings
	for _, w := range ws {
		if w.Severity >= min {
			out = append(out, w)
		}
	}
	return out
}

// AsError returns an error listing every warning at or above min, or nil.
func (ws LintWarnings) AsError(min LintSeverity) error {
	hits := ws.BySeverity(min)
	if len(hits) == 0 {
		return nil
	}
	parts := make([]string, 0, len(hits))
	for _, w := range hits {
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", w.Severity, w.Code, w.Message))
	}
	return fmt.Errorf("config lint: %s", strings.Join(parts, "; "))
}

// Lint reports settings that are valid but likely to misbehave.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings
	add := func(code string, sev LintSeverity, msg string) {
		ws = append(ws, LintWarning{Code: code, Severity: sev, Message: msg})
	}

	lead := c.Lifetime.RenewalLead
	if c.Renewal.Enabled && lead > 0 && c.Exchange.Timeout >= lead {
		add("exchange_timeout_exceeds_lead", LintHigh,
			"a slow proactive exchange can finish after the access token expired")
	}
	if c.Renewal.Enabled && lead == 0 {
		add("renewal_lead_zero", LintWarn,
			"proactive renewal fires exactly at access expiry and races in-flight requests")
	}
	if c.Lifetime.Access > 0 && lead > c.Lifetime.Access/2 {
		add("renewal_lead_large", LintWarn,
			"renewal lead is more than half the access lifetime and refreshes often")
	}
	if c.Lifetime.Access > 0 && c.Lifetime.Access < time.Minute {
		add("access_lifetime_short", LintWarn,
			"access lifetime under one minute causes refresh churn")
	}
	if c.Lifetime.Refresh > 30*24*time.Hour {
		add("refresh_lifetime_long", LintInfo,
			"refresh lifetime exceeds 30 days")
	}
	if !c.Renewal.Enabled {
		add("renewal_disabled", LintWarn,
			"every renewal will be reactive and the first rejected request pays for it")
	}
	if c.Renewal.Enabled && c.Renewal.MaxTimerSlice == 0 {
		add("timer_slice_disabled", LintInfo,
			"renewal deadlines are not rechecked after host sleep")
	}
	if !c.Audit.Enabled {
		add("audit_disabled", LintInfo, "session lifecycle events are not audited")
	}

	return ws
}
