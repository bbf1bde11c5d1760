package main

import (
	"context"
	"math"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"example.com/lsl-timesync/core/config"
	"example.com/lsl-timesync/core/receiver"
	"example.com/lsl-timesync/core/responder"

	"example.com/lsl-timesync/driver/clock"

	"example.com/lsl-timesync/net/tprobe"
)

func writeConfig(t *testing.T, s string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.toml")
	err := os.WriteFile(p, []byte(s), 0o600)
	if err != nil {
		t.Fatalf("failed to write configuration: %v", err)
	}
	return p
}

func TestLoadConfig(t *testing.T) {
	log = zaptest.NewLogger(t)
	p := writeConfig(t, `
remote_address = "127.0.0.1"
probe_count = 4
probe_interval = "10ms"
update_interval = "1s"
dscp = 0
`)
	cfg := loadConfig(p)
	c := timeConfig(cfg)
	want := config.Config{
		ProbeCount:     4,
		ProbeInterval:  10 * time.Millisecond,
		ProbeTimeout:   config.DefaultProbeTimeout,
		UpdateInterval: time.Second,
		DSCP:           0,
	}
	if c != want {
		t.Errorf("timeConfig() = %+v; want %+v", c, want)
	}

	addr := resolveAddr("remote_address", cfg.RemoteAddr, true)
	if addr.Port != tprobe.DefaultPort || !addr.IP.Equal(net.IPv4(127, 0, 0, 1)) {
		t.Errorf("resolveAddr(%q) = %v", cfg.RemoteAddr, addr)
	}
	if resolveAddr("local_address", "", false) != nil {
		t.Error("resolveAddr of an empty optional address is not nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	log = zaptest.NewLogger(t)
	c := timeConfig(svcConfig{})
	if c != config.Default() {
		t.Errorf("timeConfig(svcConfig{}) = %+v; want %+v", c, config.Default())
	}
}

func TestReceiverAgainstResponder(t *testing.T) {
	log = zaptest.NewLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const offset = -0.25
	remoteClk := &clock.OffsetClock{Clock: clock.Default(), Offset: offset}
	rsp, err := responder.Start(ctx, log, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, 0, remoteClk)
	if err != nil {
		t.Fatalf("responder.Start failed: %v", err)
	}
	defer rsp.Close()

	cfg := config.Default()
	cfg.ProbeInterval = 5 * time.Millisecond
	cfg.UpdateInterval = 100 * time.Millisecond
	conn := receiver.NewStaticConnection(rsp.Addr(), cfg)
	r, err := receiver.New(log, clock.Default(), conn, receiver.Options{})
	if err != nil {
		t.Fatalf("receiver.New failed: %v", err)
	}
	defer r.Close()

	c, err := r.Offset(5 * time.Second)
	if err != nil {
		t.Fatalf("Offset failed: %v", err)
	}
	if math.Abs(c+offset) > 0.005 {
		t.Errorf("Offset() = %v; want ~%v", c, -offset)
	}
}
