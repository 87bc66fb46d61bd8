package guard

import "time"

// Clock supplies the current time to guards.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

func orSystem(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}
