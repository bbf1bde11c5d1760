package receiver

import (
	"errors"
)

var (
	ErrTimeout        = errors.New("time correction timed out")
	ErrConnectionLost = errors.New("connection lost")
	ErrClosed         = errors.New("time receiver closed")

	errWrite                  = errors.New("failed to write packet")
	errProbeTimeout           = errors.New("time probe timed out")
	errUnexpectedPacketSource = errors.New("failed to read packet: unexpected source")
	errNoEndpoint             = errors.New("no time endpoint")
)
