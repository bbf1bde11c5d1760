package timemath

import (
	"math"
	"time"
)

func Duration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// Jitter scales d by a factor f in [0, 1).
func Jitter(d time.Duration, f float64) time.Duration {
	if f < 0 || f >= 1 {
		panic("invalid jitter factor")
	}
	return time.Duration(float64(d) * f)
}

func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
