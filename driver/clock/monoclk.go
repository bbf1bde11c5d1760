package clock

import (
	"time"

	"example.com/lsl-timesync/base/timebase"
)

// MonotonicClock counts seconds since its creation using the monotonic
// reading of the system clock, so steps of the wall clock do not affect it.
type MonotonicClock struct {
	base time.Time
}

var _ timebase.LocalClock = (*MonotonicClock)(nil)

var defaultClock = NewMonotonicClock()

func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{base: time.Now()}
}

// Default returns the clock shared by all components of this process.
func Default() *MonotonicClock {
	return defaultClock
}

func (c *MonotonicClock) Now() float64 {
	return time.Since(c.base).Seconds()
}

// OffsetClock reports the time of Clock shifted by Offset seconds.
type OffsetClock struct {
	Clock  timebase.LocalClock
	Offset float64
}

var _ timebase.LocalClock = (*OffsetClock)(nil)

func (c *OffsetClock) Now() float64 {
	return c.Clock.Now() + c.Offset
}
