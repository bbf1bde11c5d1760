package receiver

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"example.com/lsl-timesync/base/timebase"

	"example.com/lsl-timesync/core/config"

	"example.com/lsl-timesync/driver/clock"

	"example.com/lsl-timesync/net/tprobe"
)

const remoteOffset = 0.050

// replyFunc returns the datagrams a peer sends in response to req. Returning
// nothing drops the request.
type replyFunc func(req *tprobe.Request, rxt, txt float64) []tprobe.Reply

func answer(req *tprobe.Request, rxt, txt float64) []tprobe.Reply {
	return []tprobe.Reply{tprobe.NewReply(req, rxt, txt)}
}

func drop(*tprobe.Request, float64, float64) []tprobe.Reply {
	return nil
}

// testPeer is a scripted time endpoint on loopback whose clock runs
// remoteOffset seconds ahead of the local clock.
type testPeer struct {
	conn *net.UDPConn
	clk  timebase.LocalClock
	wg   sync.WaitGroup

	mu    sync.Mutex
	reply replyFunc
	reqs  []tprobe.Request
}

func newTestPeer(t *testing.T, reply replyFunc) *testPeer {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP failed: %v", err)
	}
	p := &testPeer{
		conn:  conn,
		clk:   &clock.OffsetClock{Clock: clock.Default(), Offset: remoteOffset},
		reply: reply,
	}
	p.wg.Add(1)
	go p.serve()
	t.Cleanup(p.close)
	return p
}

func (p *testPeer) addr() *net.UDPAddr {
	return p.conn.LocalAddr().(*net.UDPAddr)
}

func (p *testPeer) setReply(reply replyFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reply = reply
}

func (p *testPeer) requests() []tprobe.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]tprobe.Request(nil), p.reqs...)
}

func (p *testPeer) close() {
	_ = p.conn.Close()
	p.wg.Wait()
}

func (p *testPeer) serve() {
	defer p.wg.Done()
	buf := make([]byte, recvBufLen)
	for {
		buf = buf[:cap(buf)]
		n, srcAddr, err := p.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		rxt := p.clk.Now()
		var req tprobe.Request
		if tprobe.DecodeRequest(&req, buf[:n]) != nil {
			continue
		}
		p.mu.Lock()
		p.reqs = append(p.reqs, req)
		reply := p.reply
		p.mu.Unlock()
		for _, resp := range reply(&req, rxt, p.clk.Now()) {
			var out []byte
			tprobe.EncodeReply(&out, &resp)
			_, _ = p.conn.WriteToUDPAddrPort(out, srcAddr)
		}
	}
}

func testConfig() config.Config {
	return config.Config{
		ProbeCount:     8,
		ProbeInterval:  2 * time.Millisecond,
		ProbeTimeout:   50 * time.Millisecond,
		UpdateInterval: 20 * time.Millisecond,
		DSCP:           0,
	}
}
