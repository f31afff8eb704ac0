package util

import "time"

// Clock is the time source for expiry predicates, decaying price curves, and
// permit deadlines. Tests substitute a frozen clock.
type Clock interface {
	Now() time.Time
}

// RealClock reads the wall clock
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
