// Package metrics holds the prometheus collectors of the playback core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const nsPool = "reel_pool"
const nsFeed = "reel_feed"
const nsHTTP = "reel_http"

var (
	DecodersLive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: nsPool,
		Subsystem: "decoders",
		Name:      "live",
		Help:      "Number of decoder instances currently held by the pool",
	})
	DecodersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: nsPool,
		Subsystem: "decoders",
		Name:      "created_total",
		Help:      "Total number of decoder instances created",
	})
	DecodersReleased = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: nsPool,
		Subsystem: "decoders",
		Name:      "released_total",
		Help:      "Total number of decoder instances released",
	})
	DecodersEvicted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: nsPool,
		Subsystem: "decoders",
		Name:      "evicted_total",
		Help:      "Decoder instances released to make room or because they left the prefetch window",
	})
	PrefetchRefused = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: nsPool,
		Subsystem: "prefetch",
		Name:      "refused_total",
		Help:      "Speculative acquisitions refused, by reason",
	}, []string{"reason"})
	SlotFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: nsPool,
		Subsystem: "slots",
		Name:      "failures_total",
		Help:      "Slot failures by error kind",
	}, []string{"kind"})
	PoolDegraded = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: nsPool,
		Name:      "degraded",
		Help:      "1 while the pool refuses speculative decoders",
	})

	PositionSettles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: nsFeed,
		Name:      "settles_total",
		Help:      "Number of settled position changes",
	})
	PrepareDurations = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: nsFeed,
		Subsystem: "prepare",
		Name:      "seconds",
		Help:      "Time from acquisition to a prepared decoder",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	})
	Interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: nsFeed,
		Name:      "interactions_total",
		Help:      "Interactions forwarded to collaborators, by kind",
	}, []string{"kind"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: nsHTTP,
		Name:      "requests_total",
		Help:      "Control API requests by path and status code",
	}, []string{"path", "code"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
