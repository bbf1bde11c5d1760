// LSL time synchronization service

package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"golang.org/x/sync/errgroup"

	"example.com/lsl-timesync/base/timemath"
	"example.com/lsl-timesync/base/zaplog"

	"example.com/lsl-timesync/benchmark"

	"example.com/lsl-timesync/core/config"
	"example.com/lsl-timesync/core/receiver"
	"example.com/lsl-timesync/core/responder"

	"example.com/lsl-timesync/driver/clock"

	"example.com/lsl-timesync/net/tprobe"
)

const (
	benchmarkNumGoroutine = 1
	benchmarkNumRequest   = 100_000

	shutdownTimeout = 5 * time.Second
)

type svcConfig struct {
	LocalAddr      string `toml:"local_address,omitempty"`
	RemoteAddr     string `toml:"remote_address,omitempty"`
	MetricsAddr    string `toml:"metrics_address,omitempty"`
	ProbeCount     int    `toml:"probe_count,omitempty"`
	ProbeInterval  string `toml:"probe_interval,omitempty"`
	ProbeTimeout   string `toml:"probe_timeout,omitempty"`
	UpdateInterval string `toml:"update_interval,omitempty"`
	InitialTimeout string `toml:"initial_timeout,omitempty"`
	DSCP           *uint8 `toml:"dscp,omitempty"`
}

var (
	log *zap.Logger
)

func initLogger(verbose bool) {
	c := zap.NewDevelopmentConfig()
	c.DisableStacktrace = true
	c.EncoderConfig.EncodeCaller = func(
		caller zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		p := caller.TrimmedPath()
		if len(p) > 30 {
			p = "..." + p[len(p)-27:]
		}
		enc.AppendString(fmt.Sprintf("%30s", p))
	}
	if !verbose {
		c.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	var err error
	log, err = c.Build()
	if err != nil {
		panic(err)
	}
	zaplog.SetLogger(log)
}

func runMonitor(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	stop := context.AfterFunc(ctx, func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	defer stop()
	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("failed to serve metrics: %w", err)
}

func loadConfig(configFile string) svcConfig {
	raw, err := os.ReadFile(configFile)
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}
	var cfg svcConfig
	err = toml.NewDecoder(bytes.NewReader(raw)).DisallowUnknownFields().Decode(&cfg)
	if err != nil {
		log.Fatal("failed to decode configuration", zap.Error(err))
	}
	return cfg
}

func parseDuration(name, s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		log.Fatal("failed to parse duration", zap.String(name, s), zap.Error(err))
	}
	return d
}

func timeConfig(cfg svcConfig) config.Config {
	c := config.Default()
	if cfg.ProbeCount != 0 {
		c.ProbeCount = cfg.ProbeCount
	}
	c.ProbeInterval = parseDuration("probe_interval", cfg.ProbeInterval, c.ProbeInterval)
	c.ProbeTimeout = parseDuration("probe_timeout", cfg.ProbeTimeout, c.ProbeTimeout)
	c.UpdateInterval = parseDuration("update_interval", cfg.UpdateInterval, c.UpdateInterval)
	if cfg.DSCP != nil {
		c.DSCP = *cfg.DSCP
	}
	err := c.Validate()
	if err != nil {
		log.Fatal("unexpected configuration", zap.Error(err))
	}
	return c
}

func resolveAddr(name, s string, required bool) *net.UDPAddr {
	if s == "" {
		if required {
			log.Fatal("missing address", zap.String("option", name))
		}
		return nil
	}
	host, port, err := net.SplitHostPort(s)
	if err != nil {
		host, port = s, strconv.Itoa(tprobe.DefaultPort)
	}
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, port))
	if err != nil {
		log.Fatal("failed to resolve address", zap.String(name, s), zap.Error(err))
	}
	return addr
}

func runResponder(ctx context.Context, configFile string) {
	cfg := loadConfig(configFile)
	localAddr := resolveAddr("local_address", cfg.LocalAddr, false)
	if localAddr == nil {
		localAddr = &net.UDPAddr{Port: tprobe.DefaultPort}
	}
	tcfg := timeConfig(cfg)

	r, err := responder.Start(ctx, log, localAddr, tcfg.DSCP, clock.Default())
	if err != nil {
		log.Fatal("failed to start time responder", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runMonitor(ctx, cfg.MetricsAddr)
	})
	g.Go(func() error {
		<-ctx.Done()
		return r.Close()
	})
	err = g.Wait()
	if err != nil {
		log.Fatal("time responder failed", zap.Error(err))
	}
}

func reportOffsets(ctx context.Context, r *receiver.Receiver, initialTimeout,
	interval time.Duration) error {
	e, err := r.Estimate(initialTimeout)
	if err != nil {
		return fmt.Errorf("failed to get initial time correction: %w", err)
	}
	for {
		s := r.Stats()
		log.Info("time correction",
			zap.Float64("correction", e.Correction),
			zap.Duration("uncertainty", timemath.Duration(e.Uncertainty)),
			zap.Uint64("waves", s.Waves),
			zap.Int("observations", s.LastObservations),
		)
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		e, err = r.WaitEstimate(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func runProbe(ctx context.Context, configFile string) {
	cfg := loadConfig(configFile)
	remoteAddr := resolveAddr("remote_address", cfg.RemoteAddr, true)
	tcfg := timeConfig(cfg)
	initialTimeout := parseDuration("initial_timeout", cfg.InitialTimeout,
		max(config.DefaultInitialTimeout, tcfg.MaxWaveDuration()))

	conn := receiver.NewStaticConnection(remoteAddr, tcfg)
	r, err := receiver.New(log, clock.Default(), conn, receiver.Options{})
	if err != nil {
		log.Fatal("failed to create time receiver", zap.Error(err))
	}
	defer r.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runMonitor(ctx, cfg.MetricsAddr)
	})
	g.Go(func() error {
		err := reportOffsets(ctx, r, initialTimeout, tcfg.UpdateInterval)
		conn.MarkLost()
		return err
	})
	err = g.Wait()
	if err != nil {
		log.Error("time receiver failed", zap.Stringer("to", remoteAddr), zap.Error(err))
		r.Close()
		os.Exit(1)
	}
}

func runBenchmark(configFile string) {
	cfg := loadConfig(configFile)
	localAddr := resolveAddr("local_address", cfg.LocalAddr, false)
	remoteAddr := resolveAddr("remote_address", cfg.RemoteAddr, true)
	h := benchmark.RunProbeBenchmark(log, clock.Default(), localAddr, remoteAddr,
		benchmarkNumGoroutine, benchmarkNumRequest)
	benchmark.PrintPercentiles(h)
}

func exitWithUsage() {
	fmt.Println("usage: timesync respond|probe|benchmark -config <file> [-verbose]")
	os.Exit(1)
}

func main() {
	var (
		verbose    bool
		configFile string
	)

	respondFlags := flag.NewFlagSet("respond", flag.ExitOnError)
	probeFlags := flag.NewFlagSet("probe", flag.ExitOnError)
	benchmarkFlags := flag.NewFlagSet("benchmark", flag.ExitOnError)

	for _, fs := range []*flag.FlagSet{respondFlags, probeFlags, benchmarkFlags} {
		fs.BoolVar(&verbose, "verbose", false, "Verbose logging")
		fs.StringVar(&configFile, "config", "", "Config file")
	}

	if len(os.Args) < 2 {
		exitWithUsage()
	}

	var fs *flag.FlagSet
	switch os.Args[1] {
	case respondFlags.Name():
		fs = respondFlags
	case probeFlags.Name():
		fs = probeFlags
	case benchmarkFlags.Name():
		fs = benchmarkFlags
	default:
		exitWithUsage()
	}
	err := fs.Parse(os.Args[2:])
	if err != nil || fs.NArg() != 0 || configFile == "" {
		exitWithUsage()
	}
	initLogger(verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch fs {
	case respondFlags:
		runResponder(ctx, configFile)
	case probeFlags:
		runProbe(ctx, configFile)
	case benchmarkFlags:
		runBenchmark(configFile)
	}
}
