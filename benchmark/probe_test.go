package benchmark_test

import (
	"context"
	"net"
	"testing"

	"go.uber.org/zap/zaptest"

	"example.com/lsl-timesync/benchmark"

	"example.com/lsl-timesync/core/responder"

	"example.com/lsl-timesync/driver/clock"
)

func TestRunProbeBenchmark(t *testing.T) {
	log := zaptest.NewLogger(t)
	r, err := responder.Start(context.Background(), log,
		&net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)}, 0, clock.Default())
	if err != nil {
		t.Fatalf("responder.Start failed: %v", err)
	}
	defer r.Close()

	h := benchmark.RunProbeBenchmark(log, clock.Default(), nil, r.Addr(), 2, 50)
	if n := h.TotalCount(); n != 100 {
		t.Errorf("TotalCount() = %d; want 100", n)
	}
	if h.Min() < 0 {
		t.Errorf("Min() = %d; want >= 0", h.Min())
	}
}
