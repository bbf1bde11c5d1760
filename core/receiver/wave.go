package receiver

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"net/netip"
	"os"
	"time"

	"go.uber.org/zap"

	"example.com/lsl-timesync/base/timebase"
	"example.com/lsl-timesync/base/timemath"

	"example.com/lsl-timesync/core/config"
	"example.com/lsl-timesync/core/estimate"

	"example.com/lsl-timesync/net/tprobe"
	"example.com/lsl-timesync/net/udp"
)

const (
	maxNumRetries = 1
	recvBufLen    = 2048
)

// prober runs waves of time probes over a socket it exclusively owns.
type prober struct {
	log   *zap.Logger
	clk   timebase.LocalClock
	cfg   config.Config
	rng   *rand.Rand
	mtrcs *receiverMetrics
	conn  *net.UDPConn
	raddr *net.UDPAddr
	buf   []byte
}

func newProber(log *zap.Logger, clk timebase.LocalClock, cfg config.Config,
	rng *rand.Rand, mtrcs *receiverMetrics, raddr *net.UDPAddr) (*prober, error) {
	if raddr == nil {
		return nil, errNoEndpoint
	}
	network := "udp6"
	laddr := &net.UDPAddr{Zone: raddr.Zone}
	if ip4 := raddr.IP.To4(); ip4 != nil {
		network = "udp4"
		raddr = &net.UDPAddr{IP: ip4, Port: raddr.Port}
		laddr.Zone = ""
	}
	conn, err := net.ListenUDP(network, laddr)
	if err != nil {
		return nil, err
	}
	err = udp.SetDSCP(conn, cfg.DSCP)
	if err != nil {
		log.Info("failed to set DSCP", zap.Error(err))
	}
	return &prober{
		log:   log,
		clk:   clk,
		cfg:   cfg,
		rng:   rng,
		mtrcs: mtrcs,
		conn:  conn,
		raddr: raddr,
		buf:   make([]byte, recvBufLen),
	}, nil
}

func (p *prober) close() {
	_ = p.conn.Close()
}

func compareAddrs(x, y netip.AddrPort) int {
	c := x.Addr().Unmap().Compare(y.Addr().Unmap())
	if c != 0 {
		return c
	}
	return int(x.Port()) - int(y.Port())
}

// sleep waits for d or until ctx is done and reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// runWave sends cfg.ProbeCount probes tagged with waveID, one at a time, and
// returns an observation for every probe answered in time. It returns early
// with the observations collected so far once ctx is done.
func (p *prober) runWave(ctx context.Context, waveID uint32) []estimate.Observation {
	obs := make([]estimate.Observation, 0, p.cfg.ProbeCount)

	stop := context.AfterFunc(ctx, func() {
		_ = p.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	for i := range p.cfg.ProbeCount {
		if i != 0 {
			d := timemath.Jitter(p.cfg.ProbeInterval, p.rng.Float64())
			if !sleep(ctx, d) {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}
		o, err := p.probe(ctx, waveID, i)
		if err != nil {
			if errors.Is(err, errProbeTimeout) {
				p.mtrcs.probeTimeouts.Inc()
				p.log.Debug("time probe timed out",
					zap.Uint32("wave", waveID), zap.Int("packet", i))
			} else if ctx.Err() == nil {
				p.log.Info("failed to probe time",
					zap.Stringer("to", p.raddr), zap.Uint32("wave", waveID),
					zap.Int("packet", i), zap.Error(err))
			}
			continue
		}
		obs = append(obs, o)
	}
	return obs
}

func (p *prober) probe(ctx context.Context, waveID uint32, packetNum int) (
	estimate.Observation, error) {
	req := tprobe.Request{
		WaveID:    waveID,
		PacketNum: uint32(packetNum),
	}
	req.T0 = p.clk.Now()
	tprobe.EncodeRequest(&p.buf, &req)

	n, err := p.conn.WriteToUDP(p.buf, p.raddr)
	if err != nil {
		return estimate.Observation{}, err
	}
	if n != len(p.buf) {
		return estimate.Observation{}, errWrite
	}
	p.mtrcs.reqsSent.Inc()

	deadline := time.Now().Add(p.cfg.ProbeTimeout)
	err = p.conn.SetReadDeadline(deadline)
	if err != nil {
		return estimate.Observation{}, err
	}
	if err = ctx.Err(); err != nil {
		return estimate.Observation{}, err
	}

	raddr := p.raddr.AddrPort()
	numRetries := 0
	for {
		p.buf = p.buf[:cap(p.buf)]
		n, srcAddr, err := p.conn.ReadFromUDPAddrPort(p.buf)
		if err != nil {
			if ctx.Err() != nil {
				return estimate.Observation{}, ctx.Err()
			}
			if errors.Is(err, os.ErrDeadlineExceeded) {
				return estimate.Observation{}, errProbeTimeout
			}
			if numRetries != maxNumRetries && time.Now().Before(deadline) {
				p.log.Info("failed to read packet", zap.Error(err))
				numRetries++
				continue
			}
			return estimate.Observation{}, err
		}
		t3 := p.clk.Now()
		p.buf = p.buf[:n]
		p.mtrcs.pktsReceived.Inc()

		if compareAddrs(srcAddr, raddr) != 0 {
			p.mtrcs.respsDiscarded.Inc()
			p.log.Debug("discarded packet",
				zap.Stringer("from", srcAddr), zap.Error(errUnexpectedPacketSource))
			continue
		}

		var resp tprobe.Reply
		err = tprobe.DecodeReply(&resp, p.buf)
		if err != nil {
			p.mtrcs.respsDiscarded.Inc()
			p.log.Debug("failed to decode packet payload", zap.Error(err))
			continue
		}

		err = tprobe.ValidateReply(&req, &resp)
		if err != nil {
			p.mtrcs.respsDiscarded.Inc()
			p.log.Debug("discarded stale reply",
				zap.Uint32("wave", waveID),
				zap.Object("data", tprobe.ReplyMarshaler{Resp: &resp}))
			continue
		}

		err = tprobe.ValidateReplyTimestamps(req.T0, resp.T1, resp.T2, t3)
		if err != nil {
			p.mtrcs.respsDiscarded.Inc()
			p.log.Debug("discarded reply with inconsistent timestamps",
				zap.Object("data", tprobe.ReplyMarshaler{Resp: &resp}),
				zap.Float64("t3", t3))
			continue
		}

		o := estimate.NewObservation(packetNum, req.T0, resp.T1, resp.T2, t3)
		p.mtrcs.respsAccepted.Inc()
		p.log.Debug("evaluated reply",
			zap.Stringer("from", srcAddr),
			zap.Uint32("wave", waveID),
			zap.Int("packet", packetNum),
			zap.Float64("offset", o.Offset),
			zap.Float64("error bound", o.ErrorBound),
		)
		return o, nil
	}
}
