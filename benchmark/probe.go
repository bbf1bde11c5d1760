package benchmark

import (
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"go.uber.org/zap"

	"example.com/lsl-timesync/base/timebase"

	"example.com/lsl-timesync/net/tprobe"
)

const readTimeout = time.Second

var errUnrelatedPacket = errors.New("unrelated packet received")

func probeOnce(clk timebase.LocalClock, conn *net.UDPConn, buf *[]byte,
	req *tprobe.Request) (float64, error) {
	req.T0 = clk.Now()
	tprobe.EncodeRequest(buf, req)
	_, err := conn.Write(*buf)
	if err != nil {
		return 0, err
	}
	err = conn.SetReadDeadline(time.Now().Add(readTimeout))
	if err != nil {
		return 0, err
	}
	*buf = (*buf)[:cap(*buf)]
	n, err := conn.Read(*buf)
	if err != nil {
		return 0, err
	}
	t3 := clk.Now()

	var resp tprobe.Reply
	err = tprobe.DecodeReply(&resp, (*buf)[:n])
	if err != nil {
		return 0, err
	}
	if tprobe.ValidateReply(req, &resp) != nil {
		return 0, errUnrelatedPacket
	}
	err = tprobe.ValidateReplyTimestamps(req.T0, resp.T1, resp.T2, t3)
	if err != nil {
		return 0, err
	}
	return tprobe.RoundTripDelay(req.T0, resp.T1, resp.T2, t3), nil
}

// RunProbeBenchmark sends numRequest time probes from each of numGoroutine
// clients to remoteAddr and returns the combined histogram of round trip
// delays in microseconds. A client stops at its first failed exchange.
func RunProbeBenchmark(log *zap.Logger, clk timebase.LocalClock,
	localAddr, remoteAddr *net.UDPAddr, numGoroutine, numRequest int) *hdrhistogram.Histogram {
	var mu sync.Mutex
	total := hdrhistogram.New(1, 50000, 5)
	sg := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(numGoroutine)
	for i := range numGoroutine {
		go func() {
			defer wg.Done()
			hg := hdrhistogram.New(1, 50000, 5)

			conn, err := net.DialUDP("udp", localAddr, remoteAddr)
			if err != nil {
				log.Info("failed to dial UDP connection", zap.Error(err))
				return
			}
			defer conn.Close()

			buf := make([]byte, 2048)
			<-sg
			for j := range numRequest {
				req := tprobe.Request{WaveID: uint32(i), PacketNum: uint32(j)}
				rtd, err := probeOnce(clk, conn, &buf, &req)
				if err != nil {
					log.Info("failed to probe time", zap.Stringer("to", remoteAddr),
						zap.Object("data", tprobe.RequestMarshaler{Req: &req}), zap.Error(err))
					break
				}
				err = hg.RecordValue(int64(rtd * 1e6))
				if err != nil {
					log.Info("failed to record histogram value", zap.Error(err))
					break
				}
			}
			mu.Lock()
			defer mu.Unlock()
			total.Merge(hg)
		}()
	}
	t0 := time.Now()
	close(sg)
	wg.Wait()
	log.Info("benchmark completed",
		zap.Int64("requests", total.TotalCount()),
		zap.Duration("elapsed", time.Since(t0)))
	return total
}

// PrintPercentiles writes the percentile distribution of h to stdout.
func PrintPercentiles(h *hdrhistogram.Histogram) {
	_, _ = h.PercentilesPrint(os.Stdout, 1, 1.0)
}
