package responder_test

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"example.com/lsl-timesync/core/responder"

	"example.com/lsl-timesync/driver/clock"

	"example.com/lsl-timesync/net/tprobe"
)

func startResponder(t *testing.T, ctx context.Context) *responder.Responder {
	t.Helper()
	clk := &clock.OffsetClock{Clock: clock.Default(), Offset: 100}
	r, err := responder.Start(ctx, zaptest.NewLogger(t),
		&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, 0, clk)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return r
}

func dial(t *testing.T, r *responder.Responder) *net.UDPConn {
	t.Helper()
	conn, err := net.DialUDP("udp", nil, r.Addr())
	if err != nil {
		t.Fatalf("DialUDP failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func exchange(t *testing.T, conn *net.UDPConn, req *tprobe.Request) tprobe.Reply {
	t.Helper()
	var buf []byte
	tprobe.EncodeRequest(&buf, req)
	_, err := conn.Write(buf)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf = make([]byte, 64)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	var resp tprobe.Reply
	err = tprobe.DecodeReply(&resp, buf[:n])
	if err != nil {
		t.Fatalf("DecodeReply failed: %v", err)
	}
	return resp
}

func TestResponderReply(t *testing.T) {
	r := startResponder(t, context.Background())
	defer r.Close()
	conn := dial(t, r)

	req := tprobe.Request{WaveID: 7, PacketNum: 3, T0: 1.5}
	resp := exchange(t, conn, &req)
	if err := tprobe.ValidateReply(&req, &resp); err != nil {
		t.Fatalf("ValidateReply failed: %v", err)
	}
	if resp.T1 < 100 || resp.T2 < resp.T1 {
		t.Errorf("unexpected remote timestamps: T1 = %v, T2 = %v", resp.T1, resp.T2)
	}
}

func TestResponderIgnoresMalformed(t *testing.T) {
	r := startResponder(t, context.Background())
	defer r.Close()
	conn := dial(t, r)

	_, err := conn.Write([]byte("not a time probe"))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	var reply []byte
	tprobe.EncodeReply(&reply, &tprobe.Reply{WaveID: 1})
	_, err = conn.Write(reply)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	req := tprobe.Request{WaveID: 9, PacketNum: 0, T0: 2}
	resp := exchange(t, conn, &req)
	if resp.WaveID != 9 {
		t.Errorf("reply wave = %v; want 9", resp.WaveID)
	}
}

func TestResponderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := startResponder(t, ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return after cancellation")
	}
}
