// Package clock provides an injected time source so that core
// components never call time.Now or time.AfterFunc directly. Tests use
// a Scaled clock to compress wall-clock delays (spec.md §8 S5); the
// running binary uses Real.
package clock

import "time"

// Clock is the seam every timer/schedule component must go through
// instead of calling the runtime clock directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
	// AfterFunc schedules f to run after d (scaled, if the clock is
	// scaled) and returns a Timer that can be stopped.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the subset of *time.Timer components need.
type Timer interface {
	// Stop prevents the timer from firing, if it hasn't already. It
	// returns true if the stop was effective.
	Stop() bool
}

// Real is a Clock backed by the operating system clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// AfterFunc delegates to time.AfterFunc.
func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Scaled is a Clock that compresses wall-clock delays by Factor while
// keeping Now() anchored to a caller-supplied origin plus elapsed real
// time times Factor. A Factor of 60 makes one real second equal one
// simulated minute, matching spec.md §8 S5 ("time source at scale
// 60x").
type Scaled struct {
	Factor   float64
	Origin   time.Time
	realBase time.Time
}

// NewScaled returns a Scaled clock anchored at origin, with elapsed
// real time measured from the moment of construction.
func NewScaled(origin time.Time, factor float64) *Scaled {
	if factor <= 0 {
		factor = 1
	}
	return &Scaled{Factor: factor, Origin: origin, realBase: time.Now()}
}

// Now returns Origin plus (real elapsed time since construction) * Factor.
func (s *Scaled) Now() time.Time {
	return s.Origin.Add(time.Duration(float64(time.Since(s.realBase)) * s.Factor))
}

// AfterFunc schedules f to run after d/Factor of real time.
func (s *Scaled) AfterFunc(d time.Duration, f func()) Timer {
	real := time.Duration(float64(d) / s.Factor)
	return time.AfterFunc(real, f)
}
