package receiver

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/lsl-timesync/base/metrics"
)

type receiverMetrics struct {
	reqsSent       prometheus.Counter
	pktsReceived   prometheus.Counter
	respsAccepted  prometheus.Counter
	respsDiscarded prometheus.Counter
	probeTimeouts  prometheus.Counter
	wavesCompleted prometheus.Counter
	wavesEmpty     prometheus.Counter
	correction     prometheus.Gauge
	uncertainty    prometheus.Gauge
}

var rcvMetrics atomic.Pointer[receiverMetrics]

func init() {
	rcvMetrics.Store(newReceiverMetrics())
}

func newReceiverMetrics() *receiverMetrics {
	return &receiverMetrics{
		reqsSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ReceiverReqsSentN,
			Help: metrics.ReceiverReqsSentH,
		}),
		pktsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ReceiverPktsReceivedN,
			Help: metrics.ReceiverPktsReceivedH,
		}),
		respsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ReceiverRespsAcceptedN,
			Help: metrics.ReceiverRespsAcceptedH,
		}),
		respsDiscarded: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ReceiverRespsDiscardedN,
			Help: metrics.ReceiverRespsDiscardedH,
		}),
		probeTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ReceiverProbeTimeoutsN,
			Help: metrics.ReceiverProbeTimeoutsH,
		}),
		wavesCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ReceiverWavesCompletedN,
			Help: metrics.ReceiverWavesCompletedH,
		}),
		wavesEmpty: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ReceiverWavesEmptyN,
			Help: metrics.ReceiverWavesEmptyH,
		}),
		correction: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.ReceiverCorrectionN,
			Help: metrics.ReceiverCorrectionH,
		}),
		uncertainty: promauto.NewGauge(prometheus.GaugeOpts{
			Name: metrics.ReceiverUncertaintyN,
			Help: metrics.ReceiverUncertaintyH,
		}),
	}
}
