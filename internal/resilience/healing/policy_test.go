package healing

import (
	"errors"
	"testing"
	"time"
)

// noJitter pins the random source so computed delays are exact.
func noJitter() float64 { return 0 }

func testPolicy(cfg Config) *Policy {
	if cfg.Rand == nil {
		cfg.Rand = noJitter
	}
	return New(cfg)
}

// =============================================================================
// Backoff Tests
// =============================================================================

func TestRecordFailure_BackoffCurve(t *testing.T) {
	p := testPolicy(Config{
		Integration: "canvas",
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  8 * time.Second,
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second, // capped
	}

	for i, want := range expected {
		p.RecordFailure(errors.New("boom"), now)
		s := p.State(now)
		if s.LastBackoff != want {
			t.Errorf("failure %d: LastBackoff = %v, want %v", i+1, s.LastBackoff, want)
		}
		if s.BackoffUntil == nil || !s.BackoffUntil.Equal(now.Add(want)) {
			t.Errorf("failure %d: BackoffUntil = %v, want %v", i+1, s.BackoffUntil, now.Add(want))
		}
	}
}

func TestCanAttempt_BackoffWindow(t *testing.T) {
	p := testPolicy(Config{Integration: "gmail", BaseBackoff: 1 * time.Second})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p.RecordFailure(errors.New("timeout"), now)

	d := p.CanAttempt(now.Add(500 * time.Millisecond))
	if d.Allowed || d.Reason != SkipBackoff {
		t.Errorf("inside window: got %+v, want backoff rejection", d)
	}

	d = p.CanAttempt(now.Add(1 * time.Second))
	if !d.Allowed {
		t.Errorf("at window end: got %+v, want allowed", d)
	}
}

// =============================================================================
// Circuit Breaker Tests
// =============================================================================

func TestCircuit_TripsAtThreshold(t *testing.T) {
	p := testPolicy(Config{
		Integration:             "canvas",
		BaseBackoff:             1 * time.Second,
		CircuitFailureThreshold: 3,
		CircuitOpen:             1 * time.Minute,
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p.RecordFailure(errors.New("down"), now)
	p.RecordFailure(errors.New("down"), now)
	if s := p.State(now); s.CircuitOpenUntil != nil {
		t.Fatal("circuit open before threshold")
	}

	p.RecordFailure(errors.New("down"), now)
	s := p.State(now)
	if s.CircuitOpenUntil == nil || !s.CircuitOpenUntil.Equal(now.Add(1*time.Minute)) {
		t.Fatalf("CircuitOpenUntil = %v, want %v", s.CircuitOpenUntil, now.Add(1*time.Minute))
	}

	// Circuit-open wins over backoff as the reported reason.
	d := p.CanAttempt(now.Add(10 * time.Second))
	if d.Allowed || d.Reason != SkipCircuitOpen {
		t.Errorf("got %+v, want circuit_open rejection", d)
	}
}

func TestCircuit_HalfOpenScenario(t *testing.T) {
	// Integration "canvas" fails 4 times with threshold 4: the 4th failure
	// opens the circuit; just before the window ends attempts are still
	// rejected, just after they are allowed and the failure count is halved.
	p := testPolicy(Config{
		Integration:             "canvas",
		BaseBackoff:             1 * time.Second,
		CircuitFailureThreshold: 4,
		CircuitOpen:             10 * time.Second,
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		p.RecordFailure(errors.New("outage"), now)
	}

	opensUntil := now.Add(10 * time.Second)

	d := p.CanAttempt(opensUntil.Add(-1 * time.Millisecond))
	if d.Allowed || d.Reason != SkipCircuitOpen {
		t.Fatalf("1ms before close: got %+v, want circuit_open", d)
	}

	d = p.CanAttempt(opensUntil.Add(1 * time.Millisecond))
	if !d.Allowed {
		t.Fatalf("1ms after close: got %+v, want allowed", d)
	}

	s := p.State(opensUntil.Add(1 * time.Millisecond))
	if s.ConsecutiveFailures != 2 {
		t.Errorf("half-open ConsecutiveFailures = %d, want 2", s.ConsecutiveFailures)
	}

	// From the halved count, two more failures reach the threshold again.
	later := opensUntil.Add(20 * time.Second)
	p.RecordFailure(errors.New("still down"), later)
	p.RecordFailure(errors.New("still down"), later)
	if s := p.State(later); s.CircuitOpenUntil == nil {
		t.Error("expected breaker to re-trip after half-open failures")
	}
}

func TestRecordSuccess_ResetsEverything(t *testing.T) {
	p := testPolicy(Config{
		Integration:             "wearable",
		BaseBackoff:             1 * time.Second,
		CircuitFailureThreshold: 2,
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p.RecordFailure(errors.New("blip"), now)
	p.RecordFailure(errors.New("blip"), now)

	p.RecordSuccess(now.Add(1 * time.Second))

	s := p.State(now.Add(1 * time.Second))
	if s.ConsecutiveFailures != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", s.ConsecutiveFailures)
	}
	if s.BackoffUntil != nil || s.CircuitOpenUntil != nil {
		t.Error("expected backoff and circuit windows cleared")
	}
	if s.LastError != "" {
		t.Errorf("LastError = %q, want empty", s.LastError)
	}
	if s.LastSuccessAt == nil {
		t.Error("LastSuccessAt not set")
	}
	if d := p.CanAttempt(now.Add(1 * time.Second)); !d.Allowed {
		t.Errorf("after success: got %+v, want allowed", d)
	}
}

// =============================================================================
// Skip Counter / State Tests
// =============================================================================

func TestRecordSkip_CountsOnly(t *testing.T) {
	p := testPolicy(Config{Integration: "github", BaseBackoff: 1 * time.Second})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	p.RecordFailure(errors.New("blip"), now)
	before := p.State(now)

	p.RecordSkip(SkipBackoff)
	p.RecordSkip(SkipBackoff)
	p.RecordSkip(SkipCircuitOpen)

	s := p.State(now)
	if s.SkipCounts.Backoff != 2 || s.SkipCounts.CircuitOpen != 1 {
		t.Errorf("SkipCounts = %+v, want {2 1}", s.SkipCounts)
	}
	if s.ConsecutiveFailures != before.ConsecutiveFailures {
		t.Error("RecordSkip must not touch failure state")
	}
	if s.BackoffUntil == nil || !s.BackoffUntil.Equal(*before.BackoffUntil) {
		t.Error("RecordSkip must not touch backoff state")
	}
}

func TestState_NextAttemptAt(t *testing.T) {
	p := testPolicy(Config{
		Integration:             "video",
		BaseBackoff:             1 * time.Second,
		CircuitFailureThreshold: 2,
		CircuitOpen:             1 * time.Minute,
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	if s := p.State(now); s.NextAttemptAt != nil {
		t.Errorf("fresh policy NextAttemptAt = %v, want nil", s.NextAttemptAt)
	}

	p.RecordFailure(errors.New("down"), now)
	p.RecordFailure(errors.New("down"), now)

	// Circuit window (1m) outlasts the backoff window (2s).
	s := p.State(now)
	if s.NextAttemptAt == nil || !s.NextAttemptAt.Equal(now.Add(1*time.Minute)) {
		t.Errorf("NextAttemptAt = %v, want %v", s.NextAttemptAt, now.Add(1*time.Minute))
	}
}

func TestConfig_FloorsAndDefaults(t *testing.T) {
	cfg := Config{
		Integration:             "x",
		BaseBackoff:             10 * time.Millisecond, // below floor
		CircuitFailureThreshold: 1,                     // below floor
		CircuitOpen:             1 * time.Second,       // below floor
	}.normalized()

	if cfg.BaseBackoff != MinBaseBackoff {
		t.Errorf("BaseBackoff = %v, want floor %v", cfg.BaseBackoff, MinBaseBackoff)
	}
	if cfg.CircuitFailureThreshold != MinCircuitThreshold {
		t.Errorf("CircuitFailureThreshold = %d, want floor %d", cfg.CircuitFailureThreshold, MinCircuitThreshold)
	}
	if cfg.CircuitOpen != MinCircuitOpen {
		t.Errorf("CircuitOpen = %v, want floor %v", cfg.CircuitOpen, MinCircuitOpen)
	}

	defaults := Config{}.normalized()
	if defaults.BaseBackoff != DefaultBaseBackoff || defaults.MaxBackoff != DefaultMaxBackoff {
		t.Errorf("default backoff = %v/%v", defaults.BaseBackoff, defaults.MaxBackoff)
	}
	if defaults.CircuitFailureThreshold != DefaultCircuitThreshold {
		t.Errorf("default threshold = %d", defaults.CircuitFailureThreshold)
	}
}
