package timebase

// LocalClock reports the time of the local clock domain in seconds. Values
// are only meaningful relative to each other; the epoch is arbitrary but
// fixed for the lifetime of a clock.
type LocalClock interface {
	Now() float64
}
