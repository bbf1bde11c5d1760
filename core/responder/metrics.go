package responder

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"example.com/lsl-timesync/base/metrics"
)

type responderMetrics struct {
	pktsReceived prometheus.Counter
	reqsAccepted prometheus.Counter
	reqsServed   prometheus.Counter
}

var rspMetrics atomic.Pointer[responderMetrics]

func init() {
	rspMetrics.Store(newResponderMetrics())
}

func newResponderMetrics() *responderMetrics {
	return &responderMetrics{
		pktsReceived: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ResponderPktsReceivedN,
			Help: metrics.ResponderPktsReceivedH,
		}),
		reqsAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ResponderReqsAcceptedN,
			Help: metrics.ResponderReqsAcceptedH,
		}),
		reqsServed: promauto.NewCounter(prometheus.CounterOpts{
			Name: metrics.ResponderReqsServedN,
			Help: metrics.ResponderReqsServedH,
		}),
	}
}
