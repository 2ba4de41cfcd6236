package flows

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/authsession/credential"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureNoSession
	RefreshFailureExpired
	RefreshFailureTransport
	RefreshFailureTimeout
	RefreshFailureInvalidResponse
	RefreshFailurePersist
	RefreshFailureSuperseded
)

// ErrEmptyAccessToken is reported when an exchange succeeds without an access token.
var ErrEmptyAccessToken = errors.New("exchange returned empty access token")

// RefreshResult carries either the new credential or failure metadata.
type RefreshResult struct {
	Failure    RefreshFailureKind
	Err        error
	Credential credential.Credential
	// Exchanged is false when no network call was made.
	Exchanged bool
	// Rotated is false when the server kept the previous refresh token.
	Rotated  bool
	Duration time.Duration
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Now      func() time.Time
	Policy   credential.Policy
	Current  func() (credential.Credential, bool)
	Exchange func(ctx context.Context, refreshToken string, headers http.Header) (credential.TokenPair, error)
	Headers  http.Header
	Timeout  time.Duration
	// PersistTimeout bounds the store write that follows a successful exchange. It is
	// separate from Timeout; zero means no bound.
	PersistTimeout time.Duration
	// Persist stores the new credential; it returns an error matching Superseded when the
	// session the cycle started from is gone.
	Persist    func(ctx context.Context, c credential.Credential) error
	Superseded error
	// StaleAccessToken, when set, is the access token a caller saw rejected. If the store
	// already holds a different one, the flow returns it without an exchange.
	StaleAccessToken string
}

// RunRefresh validates preconditions, performs one exchange, and persists the result.
func RunRefresh(ctx context.Context, deps RefreshDeps) RefreshResult {
	current, ok := deps.Current()
	if !ok || current.RefreshToken == "" {
		return RefreshResult{Failure: RefreshFailureNoSession}
	}

	// the ceiling holds even when a newer access token is already stored
	if deps.Policy.ExpiredRefresh(current, deps.Now()) {
		return RefreshResult{Failure: RefreshFailureExpired, Credential: current}
	}

	if deps.StaleAccessToken != "" && current.AccessToken != "" && current.AccessToken != deps.StaleAccessToken {
		return RefreshResult{Credential: current}
	}

	exCtx := context.WithoutCancel(ctx)
	cancel := func() {}
	if deps.Timeout > 0 {
		exCtx, cancel = context.WithTimeout(exCtx, deps.Timeout)
	}
	defer cancel()

	start := time.Now()
	pair, err := deps.Exchange(exCtx, current.RefreshToken, deps.Headers.Clone())
	elapsed := time.Since(start)
	if err != nil {
		kind := RefreshFailureTransport
		if errors.Is(exCtx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
			kind = RefreshFailureTimeout
		}
		return RefreshResult{
			Failure:   kind,
			Err:       err,
			Exchanged: true,
			Duration:  elapsed,
		}
	}
	if pair.AccessToken == "" {
		return RefreshResult{
			Failure:   RefreshFailureInvalidResponse,
			Err:       ErrEmptyAccessToken,
			Exchanged: true,
			Duration:  elapsed,
		}
	}

	next := credential.Credential{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		IssuedAt:     deps.Now(),
	}
	rotated := true
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
		rotated = false
	}

	pCtx := context.WithoutCancel(ctx)
	pCancel := func() {}
	if deps.PersistTimeout > 0 {
		pCtx, pCancel = context.WithTimeout(pCtx, deps.PersistTimeout)
	}
	defer pCancel()

	if err := deps.Persist(pCtx, next); err != nil {
		kind := RefreshFailurePersist
		if deps.Superseded != nil && errors.Is(err, deps.Superseded) {
			kind = RefreshFailureSuperseded
		}
		return RefreshResult{
			Failure:   kind,
			Err:       err,
			Exchanged: true,
			Duration:  elapsed,
		}
	}

	return RefreshResult{
		Failure:    RefreshFailureNone,
		Credential: next,
		Exchanged:  true,
		Rotated:    rotated,
		Duration:   elapsed,
	}
}
