package tprobe

import (
	"errors"

	"example.com/lsl-timesync/base/timemath"
)

var (
	errUnexpectedRequest = errors.New("unexpected request structure")
	errUnexpectedReply   = errors.New("unexpected reply structure")
)

func ValidateRequest(req *Request) error {
	if !timemath.Finite(req.T0) {
		return errUnexpectedRequest
	}
	return nil
}

// ValidateReply checks that resp answers req.
func ValidateReply(req *Request, resp *Reply) error {
	if resp.WaveID != req.WaveID || resp.PacketNum != req.PacketNum {
		return errUnexpectedReply
	}
	if resp.T0 != req.T0 {
		return errUnexpectedReply
	}
	return nil
}

func ValidateReplyTimestamps(t0, t1, t2, t3 float64) error {
	if !timemath.Finite(t1) || !timemath.Finite(t2) {
		return errUnexpectedReply
	}
	if t3 < t0 {
		panic("unexpected local clock behavior")
	}
	if t2 < t1 {
		return errUnexpectedReply
	}
	if RoundTripDelay(t0, t1, t2, t3) < 0 {
		return errUnexpectedReply
	}
	return nil
}
