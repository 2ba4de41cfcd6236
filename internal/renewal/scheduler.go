package renewal

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/authsession/credential"
)

// DefaultMaxTimerSlice bounds a single timer so the deadline is rechecked against the wall
// clock after the host sleeps.
const DefaultMaxTimerSlice = 5 * time.Minute

// Timer is the subset of *time.Timer the scheduler needs.
type Timer interface {
	Stop() bool
}

// AfterFunc starts a timer that calls f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func systemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config wires a Scheduler to its environment. Current and Refresh are required.
type Config struct {
	Policy    credential.Policy
	Now       func() time.Time
	AfterFunc AfterFunc
	Current   func() (credential.Credential, bool)
	// Deadline optionally reports a renewal deadline derived from the token itself. It is
	// used only when it precedes the policy deadline.
	Deadline  func(credential.Credential) (time.Time, bool)
	Refresh   func(ctx context.Context) error
	OnExpired func()
	// MaxTimerSlice caps one timer; zero disables slicing.
	MaxTimerSlice time.Duration
	Logger        logrus.FieldLogger
}

// Scheduler arms one renewal timer at a time.
type Scheduler struct {
	cfg Config

	mu      sync.Mutex
	timer   Timer
	gen     uint64
	due     time.Time
	stopped bool
}

// New creates a Scheduler. It does not arm until Arm is called.
func New(cfg Config) *Scheduler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = systemAfterFunc
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.OnExpired == nil {
		cfg.OnExpired = func() {}
	}
	return &Scheduler{cfg: cfg}
}

// Delay returns how long to wait from now until due, never negative.
func Delay(due, now time.Time) time.Duration {
	d := due.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// Arm cancels any pending timer and schedules renewal from the current credential. With no
// credential it only disarms. An expired refresh token calls OnExpired instead of arming.
func (s *Scheduler) Arm() {
	c, ok := s.cfg.Current()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.cancelLocked()
	if !ok {
		s.mu.Unlock()
		return
	}

	now := s.cfg.Now()
	if s.cfg.Policy.ExpiredRefresh(c, now) {
		s.mu.Unlock()
		s.cfg.Logger.WithField("issued_at", c.IssuedAt).Info("renewal: refresh token past lifetime")
		s.cfg.OnExpired()
		return
	}

	due := s.cfg.Policy.RenewalAt(c)
	if s.cfg.Deadline != nil {
		if alt, ok := s.cfg.Deadline(c); ok && alt.Before(due) {
			due = alt
		}
	}
	s.due = due
	delay := s.scheduleLocked(now)
	s.mu.Unlock()

	s.cfg.Logger.WithFields(logrus.Fields{
		"due":   due,
		"delay": delay,
	}).Debug("renewal: armed")
}

// Disarm cancels the pending timer. A refresh already in flight is unaffected.
func (s *Scheduler) Disarm() {
	s.mu.Lock()
	s.cancelLocked()
	s.mu.Unlock()
}

// Stop disarms and makes every later Arm a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.cancelLocked()
	s.stopped = true
	s.mu.Unlock()
}

// Next returns the armed renewal deadline.
func (s *Scheduler) Next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer == nil {
		return time.Time{}, false
	}
	return s.due, true
}

func (s *Scheduler) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.due = time.Time{}
}

func (s *Scheduler) scheduleLocked(now time.Time) time.Duration {
	delay := Delay(s.due, now)
	if s.cfg.MaxTimerSlice > 0 && delay > s.cfg.MaxTimerSlice {
		delay = s.cfg.MaxTimerSlice
	}
	gen := s.gen
	s.timer = s.cfg.AfterFunc(delay, func() { s.fire(gen) })
	return delay
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.stopped || gen != s.gen {
		s.mu.Unlock()
		return
	}
	now := s.cfg.Now()
	if now.Before(s.due) {
		// slice elapsed
		s.scheduleLocked(now)
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.due = time.Time{}
	s.mu.Unlock()

	if err := s.cfg.Refresh(context.Background()); err != nil {
		s.cfg.Logger.WithError(err).Debug("renewal: proactive refresh failed")
		return
	}
	s.Arm()
}
