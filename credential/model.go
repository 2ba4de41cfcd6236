package credential

import (
	"errors"
	"time"
)

const (
	// DefaultAccessLifetime is the access token lifetime assumed by the renewal schedule.
	DefaultAccessLifetime = 24 * time.Hour
	// DefaultRefreshLifetime is the absolute refresh token ceiling.
	DefaultRefreshLifetime = 7 * 24 * time.Hour
	// DefaultRenewalLeadTime is how long before access expiry proactive renewal fires.
	DefaultRenewalLeadTime = 15 * time.Minute
)

// ErrPartialCredential is returned when only one of the two tokens is present.
var ErrPartialCredential = errors.New("partial credential")

// TokenPair is the result of a login, registration, or refresh exchange.
//
// An empty RefreshToken from an exchange means the server does not rotate refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Credential is the current session credential.
type Credential struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     time.Time
}

// Present reports whether both tokens are set.
func (c Credential) Present() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}

// Validate enforces presence pairing and a set issuance timestamp.
func (c Credential) Validate() error {
	if (c.AccessToken == "") != (c.RefreshToken == "") {
		return ErrPartialCredential
	}
	if c.AccessToken == "" {
		return errors.New("empty credential")
	}
	if c.IssuedAt.IsZero() {
		return errors.New("credential issuedAt is not set")
	}
	return nil
}

// Policy holds the fixed lifetimes used to judge a Credential.
type Policy struct {
	AccessLifetime  time.Duration
	RefreshLifetime time.Duration
	RenewalLeadTime time.Duration
}

// DefaultPolicy returns the 24h / 7d / 15m policy.
func DefaultPolicy() Policy {
	return Policy{
		AccessLifetime:  DefaultAccessLifetime,
		RefreshLifetime: DefaultRefreshLifetime,
		RenewalLeadTime: DefaultRenewalLeadTime,
	}
}

// Validate rejects lifetimes that cannot produce a sane schedule.
func (p Policy) Validate() error {
	if p.AccessLifetime <= 0 {
		return errors.New("AccessLifetime must be > 0")
	}
	if p.RefreshLifetime <= 0 {
		return errors.New("RefreshLifetime must be > 0")
	}
	if p.RenewalLeadTime < 0 {
		return errors.New("RenewalLeadTime must be >= 0")
	}
	if p.RenewalLeadTime >= p.AccessLifetime {
		return errors.New("RenewalLeadTime must be shorter than AccessLifetime")
	}
	if p.RefreshLifetime < p.AccessLifetime {
		return errors.New("RefreshLifetime must be >= AccessLifetime")
	}
	return nil
}

// RenewalAt is issuedAt + AccessLifetime - RenewalLeadTime.
func (p Policy) RenewalAt(c Credential) time.Time {
	return c.IssuedAt.Add(p.AccessLifetime - p.RenewalLeadTime)
}

// RefreshDeadline is the instant from which the refresh token is no longer usable.
func (p Policy) RefreshDeadline(c Credential) time.Time {
	return c.IssuedAt.Add(p.RefreshLifetime)
}

// ExpiredRefresh reports now - issuedAt >= RefreshLifetime.
func (p Policy) ExpiredRefresh(c Credential, now time.Time) bool {
	return !now.Before(p.RefreshDeadline(c))
}

// DueForRenewal reports now - issuedAt >= AccessLifetime - RenewalLeadTime.
func (p Policy) DueForRenewal(c Credential, now time.Time) bool {
	return !now.Before(p.RenewalAt(c))
}
