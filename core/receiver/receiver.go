// Package receiver estimates the offset between the local clock and the clock
// of a remote data source.
//
// A Receiver runs waves of time probes against the time endpoint of its
// connection in a background goroutine and publishes the offset of the probe
// with the tightest round trip of each wave. Foreground callers read the
// published value through Offset and Estimate, which block only until the
// first estimate is available.
package receiver

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/google/uuid"

	"go.uber.org/zap"

	"example.com/lsl-timesync/base/timebase"
	"example.com/lsl-timesync/base/zaplog"

	"example.com/lsl-timesync/core/config"
	"example.com/lsl-timesync/core/estimate"
)

const (
	histoMinValue = 1          // µs
	histoMaxValue = 10_000_000 // µs
	histoSigFigs  = 3
)

// Options holds optional parameters of a Receiver.
type Options struct {
	// Seed seeds the generator for wave ids and inter-packet delays. Zero
	// selects a random seed.
	Seed uint64
}

// Stats summarizes the waves a Receiver has run.
type Stats struct {
	Waves              uint64
	EmptyWaves         uint64
	LastWaveID         uint32
	LastObservations   int
	LastMinErrorBound  float64
	LastMedianErrBound float64
}

// Receiver estimates the time correction for one connection.
type Receiver struct {
	id    uuid.UUID
	log   *zap.Logger
	clk   timebase.LocalClock
	conn  Connection
	cfg   config.Config
	mtrcs *receiverMetrics

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed chan struct{}
	once   sync.Once
	resetc chan struct{}

	mu      sync.Mutex
	est     estimate.Estimate
	valid   bool
	ready   chan struct{}
	gen     uint64
	stopped bool
	stats   Stats
	histo   *hdrhistogram.Histogram
}

// New creates a Receiver for conn and starts estimating immediately. The
// receiver runs until Close is called or conn is lost. A nil log selects the
// process-wide logger.
func New(log *zap.Logger, clk timebase.LocalClock, conn Connection, opts Options) (*Receiver, error) {
	if log == nil {
		log = zaplog.Logger()
	}
	cfg := conn.Config()
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	id := uuid.New()
	log = log.With(zap.Stringer("receiver", id))

	ctx, cancel := context.WithCancel(context.Background())
	r := &Receiver{
		id:     id,
		log:    log,
		clk:    clk,
		conn:   conn,
		cfg:    cfg,
		mtrcs:  rcvMetrics.Load(),
		cancel: cancel,
		closed: make(chan struct{}),
		resetc: make(chan struct{}, 1),
		ready:  make(chan struct{}),
		histo:  hdrhistogram.New(histoMinValue, histoMaxValue, histoSigFigs),
	}

	r.wg.Add(2)
	go func() {
		defer r.wg.Done()
		select {
		case <-conn.Lost():
			log.Info("connection lost, stopping time estimation")
			cancel()
		case <-ctx.Done():
		}
	}()
	go r.run(ctx, rng)
	return r, nil
}

// Close stops the background estimation and waits for it to terminate. No
// estimate is published after Close returns.
func (r *Receiver) Close() error {
	r.once.Do(func() {
		r.mu.Lock()
		r.stopped = true
		r.mu.Unlock()
		close(r.closed)
		r.cancel()
	})
	r.wg.Wait()
	return nil
}

// Offset returns the current time correction: the number of seconds to add
// to a remote timestamp to map it into the local clock domain. If no estimate
// has been published yet, Offset waits up to timeout for the first one. A
// non-positive timeout does not wait.
func (r *Receiver) Offset(timeout time.Duration) (float64, error) {
	e, err := r.Estimate(timeout)
	return e.Correction, err
}

// Estimate is like Offset but also reports the remote time of the selected
// probe and the uncertainty of the correction.
func (r *Receiver) Estimate(timeout time.Duration) (estimate.Estimate, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	e, err := r.WaitEstimate(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		err = ErrTimeout
	}
	return e, err
}

// WaitEstimate returns the published estimate, waiting for the first one
// until ctx is done, the connection is lost or the receiver is closed.
func (r *Receiver) WaitEstimate(ctx context.Context) (estimate.Estimate, error) {
	for {
		r.mu.Lock()
		if r.valid {
			e := r.est
			r.mu.Unlock()
			return e, nil
		}
		ready := r.ready
		r.mu.Unlock()

		if IsLost(r.conn) {
			return estimate.Estimate{}, ErrConnectionLost
		}
		select {
		case <-r.closed:
			return estimate.Estimate{}, ErrClosed
		default:
		}

		select {
		case <-ready:
		case <-r.conn.Lost():
			return estimate.Estimate{}, ErrConnectionLost
		case <-r.closed:
			return estimate.Estimate{}, ErrClosed
		case <-ctx.Done():
			return estimate.Estimate{}, ctx.Err()
		}
	}
}

// Reset discards the published estimate and starts a new wave right away.
// Callers block again until that wave has completed.
func (r *Receiver) Reset() {
	r.mu.Lock()
	r.gen++
	if r.valid {
		r.valid = false
		r.ready = make(chan struct{})
	}
	r.mu.Unlock()
	select {
	case r.resetc <- struct{}{}:
	default:
	}
}

// ID identifies the receiver in logs.
func (r *Receiver) ID() uuid.UUID {
	return r.id
}

// Stats returns a snapshot of the wave statistics.
func (r *Receiver) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// RoundTrips returns a copy of the histogram of accepted round trip delays in
// microseconds.
func (r *Receiver) RoundTrips() *hdrhistogram.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	return hdrhistogram.Import(r.histo.Export())
}

func (r *Receiver) generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gen
}

func nextWaveID(rng *rand.Rand, prev uint32) uint32 {
	for {
		id := rng.Uint32()
		if id != prev {
			return id
		}
	}
}

func (r *Receiver) run(ctx context.Context, rng *rand.Rand) {
	defer r.wg.Done()

	var p *prober
	defer func() {
		if p != nil {
			p.close()
		}
	}()

	var waveID uint32
	for {
		if p == nil {
			var err error
			p, err = newProber(r.log, r.clk, r.cfg, rng, r.mtrcs, r.conn.TimeEndpoint())
			if err != nil {
				r.log.Error("failed to open time probe socket", zap.Error(err))
				p = nil
			}
		}
		if p != nil {
			gen := r.generation()
			waveID = nextWaveID(rng, waveID)
			obs := p.runWave(ctx, waveID)
			if ctx.Err() != nil {
				return
			}
			r.complete(ctx, gen, waveID, obs)
		}

		t := time.NewTimer(r.cfg.UpdateInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-r.resetc:
			t.Stop()
		case <-t.C:
		}
	}
}

func (r *Receiver) complete(ctx context.Context, gen uint64, waveID uint32,
	obs []estimate.Observation) {
	sum := estimate.Summarize(obs)
	best, ok := estimate.Aggregate(obs)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.Waves++
	r.stats.LastWaveID = waveID
	r.stats.LastObservations = sum.N
	r.stats.LastMinErrorBound = sum.MinErrorBound
	r.stats.LastMedianErrBound = sum.MedianErrorBound
	for _, o := range obs {
		_ = r.histo.RecordValue(int64(2 * o.ErrorBound * 1e6))
	}

	if !ok {
		r.stats.EmptyWaves++
		r.mtrcs.wavesEmpty.Inc()
		r.log.Info("time probe wave without observations", zap.Uint32("wave", waveID))
		return
	}
	if r.stopped || ctx.Err() != nil || gen != r.gen {
		return
	}

	e := estimate.FromObservation(best)
	r.est = e
	if !r.valid {
		r.valid = true
		close(r.ready)
	}
	r.mtrcs.wavesCompleted.Inc()
	r.mtrcs.correction.Set(e.Correction)
	r.mtrcs.uncertainty.Set(e.Uncertainty)
	r.log.Debug("published time correction",
		zap.Uint32("wave", waveID),
		zap.Int("observations", sum.N),
		zap.Float64("correction", e.Correction),
		zap.Float64("uncertainty", e.Uncertainty),
		zap.Float64("median error bound", sum.MedianErrorBound),
	)
}
