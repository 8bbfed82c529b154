// Package healing implements the per-integration auto-healing policy:
// consecutive-failure tracking, exponential backoff with jitter, and a
// circuit breaker with half-open re-entry after the cooldown expires.
//
// One Policy instance guards one named integration (e.g. "canvas",
// "gmail"). The policy only decides and records; it never performs the
// attempt itself and it never returns errors to its caller. State lives in
// memory for the process lifetime and starts healthy after a restart.
package healing

import (
	"math"
	"sync"
	"time"

	"github.com/vietanh/keeper/internal/resilience/backoff"
)

// SkipReason explains why an attempt was rejected.
type SkipReason string

const (
	SkipBackoff     SkipReason = "backoff"
	SkipCircuitOpen SkipReason = "circuit_open"
)

// Defaults and floors for Config fields.
const (
	MinBaseBackoff     = 1 * time.Second
	DefaultBaseBackoff = 30 * time.Second
	DefaultMaxBackoff  = 30 * time.Minute

	MinCircuitThreshold     = 2
	DefaultCircuitThreshold = 4

	MinCircuitOpen     = 10 * time.Second
	DefaultCircuitOpen = 10 * time.Minute

	DefaultJitterRatio = 0.35
)

// Config tunes a policy. Zero fields fall back to the defaults above and
// values below the documented floors are raised to them. Tests that need
// exact delays pin Rand to a constant instead of zeroing JitterRatio.
type Config struct {
	Integration             string
	BaseBackoff             time.Duration
	MaxBackoff              time.Duration
	CircuitFailureThreshold int
	CircuitOpen             time.Duration
	JitterRatio             float64
	Rand                    func() float64
}

func (c Config) normalized() Config {
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = DefaultBaseBackoff
	}
	if c.BaseBackoff < MinBaseBackoff {
		c.BaseBackoff = MinBaseBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = c.BaseBackoff
	}
	if c.CircuitFailureThreshold == 0 {
		c.CircuitFailureThreshold = DefaultCircuitThreshold
	}
	if c.CircuitFailureThreshold < MinCircuitThreshold {
		c.CircuitFailureThreshold = MinCircuitThreshold
	}
	if c.CircuitOpen <= 0 {
		c.CircuitOpen = DefaultCircuitOpen
	}
	if c.CircuitOpen < MinCircuitOpen {
		c.CircuitOpen = MinCircuitOpen
	}
	if c.JitterRatio < 0 {
		c.JitterRatio = 0
	}
	if c.JitterRatio > 1 {
		c.JitterRatio = 1
	}
	return c
}

// Decision is the outcome of CanAttempt. Reason is set only when Allowed is
// false.
type Decision struct {
	Allowed bool
	Reason  SkipReason
}

// SkipCounts tracks attempts rejected per reason, for diagnostics only.
type SkipCounts struct {
	Backoff     int `json:"backoff"`
	CircuitOpen int `json:"circuit_open"`
}

// State is a read-only snapshot of a policy. NextAttemptAt is the later of
// the still-active backoff/circuit windows, nil when attempts are allowed.
type State struct {
	Integration         string     `json:"integration"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	BackoffUntil        *time.Time `json:"backoff_until,omitempty"`
	CircuitOpenUntil    *time.Time `json:"circuit_open_until,omitempty"`
	LastBackoff         time.Duration `json:"last_backoff"`
	SkipCounts          SkipCounts `json:"skip_counts"`
	NextAttemptAt       *time.Time `json:"next_attempt_at,omitempty"`
}

// Policy is the auto-healing state machine for one integration. All state
// transitions happen through its methods; the mutex keeps the snapshot
// consistent even if a diagnostics reader races the periodic driver.
type Policy struct {
	mu  sync.Mutex
	cfg Config
	bo  backoff.Policy

	consecutiveFailures int
	lastSuccessAt       *time.Time
	lastFailureAt       *time.Time
	lastError           string
	backoffUntil        *time.Time
	circuitOpenUntil    *time.Time
	lastBackoff         time.Duration
	skips               SkipCounts
}

// New creates a policy from cfg with defaults applied.
func New(cfg Config) *Policy {
	cfg = cfg.normalized()
	jitter := cfg.JitterRatio
	if jitter == 0 && cfg.Rand == nil {
		jitter = DefaultJitterRatio
	}
	return &Policy{
		cfg: cfg,
		bo: backoff.Policy{
			Base:        cfg.BaseBackoff,
			Max:         cfg.MaxBackoff,
			JitterRatio: jitter,
			Rand:        cfg.Rand,
		},
	}
}

// Integration returns the failure-domain name this policy guards.
func (p *Policy) Integration() string {
	return p.cfg.Integration
}

// CanAttempt reports whether an attempt may run at now (zero value = wall
// clock). Expired windows are cleared lazily first; an expired circuit
// window is the half-open transition, dropping consecutive failures to half
// the threshold (rounded up) so one more failure re-trips the breaker while
// a success still heals it. Circuit-open is checked before backoff because
// it is the stronger rejection.
func (p *Policy) CanAttempt(now time.Time) Decision {
	now = orWallClock(now)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expire(now)

	if p.circuitOpenUntil != nil && now.Before(*p.circuitOpenUntil) {
		return Decision{Allowed: false, Reason: SkipCircuitOpen}
	}
	if p.backoffUntil != nil && now.Before(*p.backoffUntil) {
		return Decision{Allowed: false, Reason: SkipBackoff}
	}
	return Decision{Allowed: true}
}

// RecordSkip bumps the diagnostic counter for reason. It does not touch
// failure or backoff state; callers invoke it instead of attempting when
// CanAttempt disallows.
func (p *Policy) RecordSkip(reason SkipReason) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch reason {
	case SkipBackoff:
		p.skips.Backoff++
	case SkipCircuitOpen:
		p.skips.CircuitOpen++
	}
}

// RecordSuccess clears failure, backoff and circuit state atomically and
// stamps the success.
func (p *Policy) RecordSuccess(now time.Time) {
	now = orWallClock(now)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.consecutiveFailures = 0
	p.backoffUntil = nil
	p.circuitOpenUntil = nil
	p.lastError = ""
	p.lastBackoff = 0
	t := now
	p.lastSuccessAt = &t
}

// RecordFailure counts the failure, schedules the next backoff window and
// trips the circuit once the threshold is reached.
func (p *Policy) RecordFailure(err error, now time.Time) {
	now = orWallClock(now)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.consecutiveFailures++
	t := now
	p.lastFailureAt = &t
	if err != nil {
		p.lastError = err.Error()
	}

	d := p.bo.Delay(p.consecutiveFailures)
	p.lastBackoff = d
	until := now.Add(d)
	p.backoffUntil = &until

	if p.consecutiveFailures >= p.cfg.CircuitFailureThreshold {
		open := now.Add(p.bo.Jitter(p.cfg.CircuitOpen))
		p.circuitOpenUntil = &open
	}
}

// State returns a snapshot after the same lazy-expiry pass CanAttempt does.
func (p *Policy) State(now time.Time) State {
	now = orWallClock(now)
	p.mu.Lock()
	defer p.mu.Unlock()

	p.expire(now)

	s := State{
		Integration:         p.cfg.Integration,
		ConsecutiveFailures: p.consecutiveFailures,
		LastError:           p.lastError,
		LastBackoff:         p.lastBackoff,
		SkipCounts:          p.skips,
	}
	s.LastSuccessAt = copyTime(p.lastSuccessAt)
	s.LastFailureAt = copyTime(p.lastFailureAt)
	s.BackoffUntil = copyTime(p.backoffUntil)
	s.CircuitOpenUntil = copyTime(p.circuitOpenUntil)

	next := s.BackoffUntil
	if s.CircuitOpenUntil != nil && (next == nil || s.CircuitOpenUntil.After(*next)) {
		next = s.CircuitOpenUntil
	}
	s.NextAttemptAt = next
	return s
}

// expire clears elapsed windows. Caller holds the mutex.
func (p *Policy) expire(now time.Time) {
	if p.backoffUntil != nil && !now.Before(*p.backoffUntil) {
		p.backoffUntil = nil
	}
	if p.circuitOpenUntil != nil && !now.Before(*p.circuitOpenUntil) {
		p.circuitOpenUntil = nil
		// Half-open: keep enough failure history that a single new failure
		// reaches the threshold again.
		half := int(math.Ceil(float64(p.cfg.CircuitFailureThreshold) / 2))
		if p.consecutiveFailures > half {
			p.consecutiveFailures = half
		}
	}
}

func orWallClock(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
