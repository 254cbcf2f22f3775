package clock

import "time"

// Clock is the single time source for trip creation, joins, activity entries and idempotency expiry.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

func (f Func) Now() time.Time { return f() }
