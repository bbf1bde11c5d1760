//go:build linux || darwin

package udp

import (
	"net"

	"golang.org/x/sys/unix"
)

func SetDSCP(conn *net.UDPConn, dscp uint8) error {
	tc, err := TrafficClass(dscp)
	if err != nil {
		return err
	}
	sconn, err := conn.SyscallConn()
	if err != nil {
		return err
	}
	var res struct {
		err error
	}
	err = sconn.Control(func(fd uintptr) {
		if isIPv4(conn) {
			res.err = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_TOS, tc)
		} else {
			res.err = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_TCLASS, tc)
		}
	})
	if err != nil {
		return err
	}
	return res.err
}
