package udp_test

import (
	"net"
	"runtime"
	"testing"

	"example.com/lsl-timesync/net/udp"
)

func TestTrafficClass(t *testing.T) {
	tests := []struct {
		dscp    uint8
		want    int
		wantErr bool
	}{
		{dscp: 0, want: 0},
		{dscp: 46, want: 0xb8},
		{dscp: 63, want: 0xfc},
		{dscp: 64, wantErr: true},
	}
	for _, tt := range tests {
		got, err := udp.TrafficClass(tt.dscp)
		if (err != nil) != tt.wantErr {
			t.Errorf("TrafficClass(%d) error = %v; wantErr %v", tt.dscp, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("TrafficClass(%d) = %#x; want %#x", tt.dscp, got, tt.want)
		}
	}
}

func TestSetDSCP(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("DSCP not supported on " + runtime.GOOS)
	}
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer conn.Close()
	if err := udp.SetDSCP(conn, 63); err != nil {
		t.Errorf("SetDSCP(63) = %v; want nil", err)
	}
	if err := udp.SetDSCP(conn, 64); err == nil {
		t.Errorf("SetDSCP(64) succeeded; want error")
	}
}
