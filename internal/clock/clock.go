// Package clock injects "now" so evaluation logic stays deterministic
// under test.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System is the wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a clock pinned to a single instant.
type Fixed struct {
	T time.Time
}

// Now implements Clock.
func (f Fixed) Now() time.Time {
	return f.T
}

// At returns a Fixed clock at t.
func At(t time.Time) Fixed {
	return Fixed{T: t}
}
