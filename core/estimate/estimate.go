package estimate

import (
	"cmp"
	"slices"

	"example.com/lsl-timesync/base/floats"
	"example.com/lsl-timesync/net/tprobe"
)

// Observation is the clock offset derived from a single request/reply round
// trip. Offset is remote minus local time, ErrorBound is half the round trip
// delay net of the time spent at the remote side.
type Observation struct {
	PacketNum  int
	Offset     float64
	ErrorBound float64
	RemoteTime float64
}

// Estimate is a published time correction. Correction must be added to a
// remote timestamp to map it into the local clock domain.
type Estimate struct {
	Correction  float64
	RemoteTime  float64
	Uncertainty float64
}

type Summary struct {
	N                int
	MinErrorBound    float64
	MedianErrorBound float64
}

// NewObservation computes an observation from local transmit time t0, remote
// receive time t1, remote transmit time t2 and local receive time t3.
func NewObservation(packetNum int, t0, t1, t2, t3 float64) Observation {
	return Observation{
		PacketNum:  packetNum,
		Offset:     tprobe.ClockOffset(t0, t1, t2, t3),
		ErrorBound: tprobe.RoundTripDelay(t0, t1, t2, t3) / 2,
		RemoteTime: t2,
	}
}

func compare(a, b Observation) int {
	return cmp.Or(
		cmp.Compare(a.ErrorBound, b.ErrorBound),
		cmp.Compare(a.PacketNum, b.PacketNum),
	)
}

// Aggregate selects the observation with the smallest error bound. Ties go to
// the lowest packet number. It reports false if obs is empty.
func Aggregate(obs []Observation) (Observation, bool) {
	if len(obs) == 0 {
		return Observation{}, false
	}
	return slices.MinFunc(obs, compare), true
}

func Offset(obs []Observation) (float64, bool) {
	o, ok := Aggregate(obs)
	return o.Offset, ok
}

func FromObservation(o Observation) Estimate {
	return Estimate{
		Correction:  -o.Offset,
		RemoteTime:  o.RemoteTime,
		Uncertainty: o.ErrorBound,
	}
}

func Summarize(obs []Observation) Summary {
	if len(obs) == 0 {
		return Summary{}
	}
	ebs := make([]float64, len(obs))
	for i, o := range obs {
		ebs[i] = o.ErrorBound
	}
	best, _ := Aggregate(obs)
	return Summary{
		N:                len(obs),
		MinErrorBound:    best.ErrorBound,
		MedianErrorBound: floats.Median(ebs),
	}
}
