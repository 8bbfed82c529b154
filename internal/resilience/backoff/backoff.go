// Package backoff provides the exponential backoff-with-jitter primitive
// shared by the healing policy and the sync queue. The two callers keep
// separately tuned instances because they cover different failure domains.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy computes exponential backoff delays.
//
// Delay for the n-th consecutive failure is min(Max, Base*2^(n-1)), plus a
// random addition of up to JitterRatio of the computed delay. Max <= 0
// leaves the curve uncapped.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	JitterRatio float64

	// Rand yields values in [0, 1). Defaults to math/rand; tests inject a
	// fixed source for exact assertions.
	Rand func() float64
}

// Delay returns the backoff after the given number of consecutive failures
// (1-indexed; values below 1 are treated as 1).
func (p Policy) Delay(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	d := float64(p.Base) * math.Pow(2, float64(failures-1))
	if p.Max > 0 && d > float64(p.Max) {
		d = float64(p.Max)
	}
	return p.Jitter(time.Duration(d))
}

// Jitter adds the randomized fraction to an arbitrary duration.
func (p Policy) Jitter(d time.Duration) time.Duration {
	if p.JitterRatio <= 0 {
		return d
	}
	r := p.Rand
	if r == nil {
		r = rand.Float64
	}
	return d + time.Duration(math.Floor(float64(d)*p.JitterRatio*r()))
}
