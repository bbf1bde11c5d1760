package udp

import (
	"errors"
	"net"
)

var (
	errUnsupportedOperation = errors.New("unsupported operation")
	errInvalidDSCP          = errors.New("invalid DSCP value")
)

func isIPv4(conn *net.UDPConn) bool {
	a, ok := conn.LocalAddr().(*net.UDPAddr)
	return ok && a.IP.To4() != nil
}

// TrafficClass returns the IP traffic class octet carrying DSCP value dscp.
func TrafficClass(dscp uint8) (int, error) {
	if dscp > 63 {
		return 0, errInvalidDSCP
	}
	return int(dscp) << 2, nil
}
