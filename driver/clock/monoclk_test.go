package clock_test

import (
	"testing"
	"time"

	"example.com/lsl-timesync/driver/clock"
)

func TestMonotonicClock(t *testing.T) {
	c := clock.NewMonotonicClock()
	t0 := c.Now()
	time.Sleep(10 * time.Millisecond)
	t1 := c.Now()
	if t1 < t0+0.009 {
		t.Errorf("Now() advanced by %v after 10ms; want at least 0.009", t1-t0)
	}
}

func TestDefault(t *testing.T) {
	if clock.Default() != clock.Default() {
		t.Errorf("Default() returned different clocks")
	}
}

func TestOffsetClock(t *testing.T) {
	base := clock.NewMonotonicClock()
	c := &clock.OffsetClock{Clock: base, Offset: 0.050}
	x, y := base.Now(), c.Now()
	d := y - x - 0.050
	if d < 0 || d > 0.005 {
		t.Errorf("OffsetClock.Now() - base.Now() = %v; want about 0.050", y-x)
	}
}
