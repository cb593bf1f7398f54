// Package clock provides time sources for production and testing
package clock

import "time"

// Clock reports the current time
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock
type SystemClock struct{}

// Now returns the current time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Fixed always reports the same instant
type Fixed time.Time

// Now returns the fixed instant
func (f Fixed) Now() time.Time {
	return time.Time(f)
}

// At returns a Fixed clock for a unix timestamp in seconds
func At(unix int64) Fixed {
	return Fixed(time.Unix(unix, 0))
}
