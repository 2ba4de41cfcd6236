package credential

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultKeyPrefix namespaces the three persisted values.
const DefaultKeyPrefix = "authsession:"

// ErrPersistence wraps failures reported by the Persistence backend.
var ErrPersistence = errors.New("credential persistence failed")

// Persistence is a durable string key/value store. Implementations must be safe for
// concurrent use.
type Persistence interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}

// BatchSetter is implemented by backends that can write several keys as one unit.
type BatchSetter interface {
	SetMany(ctx context.Context, values map[string]string) error
}

// Keys names the persisted values.
type Keys struct {
	AccessToken  string
	RefreshToken string
	IssuedAt     string
}

// DefaultKeys returns the fixed key layout under prefix.
func DefaultKeys(prefix string) Keys {
	return Keys{
		AccessToken:  prefix + "access_token",
		RefreshToken: prefix + "refresh_token",
		IssuedAt:     prefix + "issued_at",
	}
}

func (k Keys) all() []string {
	return []string{k.AccessToken, k.RefreshToken, k.IssuedAt}
}

// Store keeps the current Credential in memory for lock-free reads and writes it through
// to Persistence. Only the Engine's refresh executor and terminator call Set and Clear.
type Store struct {
	backend Persistence
	keys    Keys
	current atomic.Pointer[Credential]
	mu      sync.Mutex
}

// NewStore creates a Store over backend.
func NewStore(backend Persistence, keys Keys) *Store {
	return &Store{
		backend: backend,
		keys:    keys,
	}
}

// Get returns the current credential. It never touches persistence.
func (s *Store) Get() (Credential, bool) {
	c := s.current.Load()
	if c == nil {
		return Credential{}, false
	}
	return *c, true
}

// Set validates and persists c, then publishes it to readers.
func (s *Store) Set(ctx context.Context, c Credential) error {
	if err := c.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	values := map[string]string{
		s.keys.AccessToken:  c.AccessToken,
		s.keys.RefreshToken: c.RefreshToken,
		s.keys.IssuedAt:     strconv.FormatInt(c.IssuedAt.UnixMilli(), 10),
	}

	if batch, ok := s.backend.(BatchSetter); ok {
		if err := batch.SetMany(ctx, values); err != nil {
			return fmt.Errorf("%w: %v", ErrPersistence, err)
		}
	} else {
		for _, key := range s.keys.all() {
			if err := s.backend.Set(ctx, key, values[key]); err != nil {
				return fmt.Errorf("%w: %v", ErrPersistence, err)
			}
		}
	}

	next := c
	s.current.Store(&next)
	return nil
}

// Clear drops the in-memory credential and removes all three keys in one call. It is
// idempotent; readers observe the empty state even when persistence fails.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Store(nil)
	if err := s.backend.Remove(ctx, s.keys.all()...); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Load restores the credential from persistence. A partial or unreadable record is
// purged and reported as absent.
func (s *Store) Load(ctx context.Context) (Credential, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	access, okA, err := s.backend.Get(ctx, s.keys.AccessToken)
	if err != nil {
		return Credential{}, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	refresh, okR, err := s.backend.Get(ctx, s.keys.RefreshToken)
	if err != nil {
		return Credential{}, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	issued, okI, err := s.backend.Get(ctx, s.keys.IssuedAt)
	if err != nil {
		return Credential{}, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !okA && !okR && !okI {
		s.current.Store(nil)
		return Credential{}, false, nil
	}

	c := Credential{AccessToken: access, RefreshToken: refresh}
	if okI {
		if ms, perr := strconv.ParseInt(issued, 10, 64); perr == nil {
			c.IssuedAt = time.UnixMilli(ms)
		}
	}

	if c.Validate() != nil {
		s.current.Store(nil)
		if err := s.backend.Remove(ctx, s.keys.all()...); err != nil {
			return Credential{}, false, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return Credential{}, false, nil
	}

	s.current.Store(&c)
	return c, true, nil
}
