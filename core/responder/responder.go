// Package responder answers time probes on behalf of a data source.
package responder

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"

	"github.com/libp2p/go-reuseport"

	"go.uber.org/zap"

	"example.com/lsl-timesync/base/timebase"
	"example.com/lsl-timesync/base/zaplog"

	"example.com/lsl-timesync/net/tprobe"
	"example.com/lsl-timesync/net/udp"
)

const (
	numGoroutine = 8
	recvBufLen   = 2048
)

// Responder serves time probe requests on one UDP port. With port reuse
// available it reads from several sockets bound to the same port in
// parallel.
type Responder struct {
	log   *zap.Logger
	clk   timebase.LocalClock
	mtrcs *responderMetrics
	addr  *net.UDPAddr
	conns []*net.UDPConn
	stop  func() bool
	wg    sync.WaitGroup
	once  sync.Once
}

func listen(localAddr *net.UDPAddr, n int) ([]*net.UDPConn, error) {
	if n == 1 {
		conn, err := net.ListenUDP("udp", localAddr)
		if err != nil {
			return nil, err
		}
		return []*net.UDPConn{conn}, nil
	}
	conns := make([]*net.UDPConn, 0, n)
	closeAll := func() {
		for _, c := range conns {
			_ = c.Close()
		}
	}
	host := localAddr.IP.String()
	if localAddr.IP == nil {
		host = ""
	}
	port := localAddr.Port
	for range n {
		c, err := reuseport.ListenPacket("udp", net.JoinHostPort(host, strconv.Itoa(port)))
		if err != nil {
			closeAll()
			return nil, err
		}
		conn := c.(*net.UDPConn)
		conns = append(conns, conn)
		if port == 0 {
			// Bind the remaining sockets to the port chosen for the first one.
			port = conn.LocalAddr().(*net.UDPAddr).Port
		}
	}
	return conns, nil
}

// Start opens the responder sockets on localAddr and serves requests until
// ctx is done or Close is called. Receive and transmit times are read from
// clk. A nil log selects the process-wide logger.
func Start(ctx context.Context, log *zap.Logger, localAddr *net.UDPAddr, dscp uint8,
	clk timebase.LocalClock) (*Responder, error) {
	if log == nil {
		log = zaplog.Logger()
	}
	n := numGoroutine
	if !reuseport.Available() {
		n = 1
	}
	conns, err := listen(localAddr, n)
	if err != nil {
		return nil, err
	}

	r := &Responder{
		log:   log,
		clk:   clk,
		mtrcs: rspMetrics.Load(),
		addr:  conns[0].LocalAddr().(*net.UDPAddr),
		conns: conns,
	}
	r.stop = context.AfterFunc(ctx, func() { r.closeConns() })

	log.Info("time responder listening",
		zap.Stringer("local host", r.addr), zap.Int("sockets", len(conns)))

	for _, conn := range conns {
		err = udp.SetDSCP(conn, dscp)
		if err != nil {
			log.Info("failed to set DSCP", zap.Error(err))
		}
		r.wg.Add(1)
		go r.serve(conn)
	}
	return r, nil
}

// Addr returns the local address the responder is bound to.
func (r *Responder) Addr() *net.UDPAddr {
	return r.addr
}

func (r *Responder) closeConns() {
	r.once.Do(func() {
		for _, conn := range r.conns {
			_ = conn.Close()
		}
	})
}

// Close stops serving and waits for all socket readers to return.
func (r *Responder) Close() error {
	r.stop()
	r.closeConns()
	r.wg.Wait()
	return nil
}

func (r *Responder) serve(conn *net.UDPConn) {
	defer r.wg.Done()

	buf := make([]byte, recvBufLen)
	for {
		buf = buf[:cap(buf)]
		n, srcAddr, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Error("failed to read packet", zap.Error(err))
			continue
		}
		rxt := r.clk.Now()
		buf = buf[:n]
		r.mtrcs.pktsReceived.Inc()

		var req tprobe.Request
		err = tprobe.DecodeRequest(&req, buf)
		if err != nil {
			r.log.Info("failed to decode packet payload", zap.Error(err))
			continue
		}
		err = tprobe.ValidateRequest(&req)
		if err != nil {
			r.log.Info("failed to validate packet payload", zap.Error(err))
			continue
		}

		r.mtrcs.reqsAccepted.Inc()
		r.log.Debug("received request",
			zap.Float64("at", rxt),
			zap.Stringer("from", srcAddr),
			zap.Object("data", tprobe.RequestMarshaler{Req: &req}),
		)

		resp := tprobe.NewReply(&req, rxt, r.clk.Now())
		tprobe.EncodeReply(&buf, &resp)

		n, err = conn.WriteToUDPAddrPort(buf, srcAddr)
		if err != nil || n != len(buf) {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			r.log.Error("failed to write packet", zap.Error(err))
			continue
		}
		r.mtrcs.reqsServed.Inc()
	}
}
