package config

import (
	"errors"
	"time"
)

// DSCP is the Differentiated Services Codepoint value to be used by senders of
// time synchronization packets. Valid values must be in range [0, 63].
const DSCP = 63

const (
	DefaultProbeCount     = 8
	DefaultProbeInterval  = 64 * time.Millisecond
	DefaultProbeTimeout   = 128 * time.Millisecond
	DefaultUpdateInterval = 2 * time.Second
	DefaultInitialTimeout = 2 * time.Second
)

var (
	errInvalidProbeCount     = errors.New("invalid probe count")
	errInvalidProbeInterval  = errors.New("invalid probe interval")
	errInvalidProbeTimeout   = errors.New("invalid probe timeout")
	errInvalidUpdateInterval = errors.New("invalid update interval")
	errInvalidDSCP           = errors.New("invalid DSCP value")
)

// Config holds the parameters of time offset estimation.
type Config struct {
	// ProbeCount is the number of packets per wave.
	ProbeCount int
	// ProbeInterval bounds the randomized delay between two packets of a wave.
	ProbeInterval time.Duration
	// ProbeTimeout is the time to wait for the reply to a single packet.
	ProbeTimeout time.Duration
	// UpdateInterval is the pause between two waves.
	UpdateInterval time.Duration
	DSCP           uint8
}

func Default() Config {
	return Config{
		ProbeCount:     DefaultProbeCount,
		ProbeInterval:  DefaultProbeInterval,
		ProbeTimeout:   DefaultProbeTimeout,
		UpdateInterval: DefaultUpdateInterval,
		DSCP:           DSCP,
	}
}

func (c Config) Validate() error {
	if c.ProbeCount <= 0 {
		return errInvalidProbeCount
	}
	if c.ProbeInterval < 0 {
		return errInvalidProbeInterval
	}
	if c.ProbeTimeout <= 0 {
		return errInvalidProbeTimeout
	}
	if c.UpdateInterval <= 0 {
		return errInvalidUpdateInterval
	}
	if c.DSCP > 63 {
		return errInvalidDSCP
	}
	return nil
}

// MaxWaveDuration bounds the time a single wave can take.
func (c Config) MaxWaveDuration() time.Duration {
	return time.Duration(c.ProbeCount) * (c.ProbeInterval + c.ProbeTimeout)
}
