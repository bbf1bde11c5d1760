//go:build !linux && !darwin

package udp

import (
	"net"
)

func SetDSCP(conn *net.UDPConn, dscp uint8) error {
	if _, err := TrafficClass(dscp); err != nil {
		return err
	}
	return errUnsupportedOperation
}
