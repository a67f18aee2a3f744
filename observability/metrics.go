package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketplaceMetrics records request activity on the marketplace engine,
// segmented by operation and outcome.
type MarketplaceMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	marketplaceOnce sync.Once
	marketplaceReg  *MarketplaceMetrics
)

// Marketplace returns the lazily-initialised marketplace metrics registry.
func Marketplace() *MarketplaceMetrics {
	marketplaceOnce.Do(func() {
		marketplaceReg = &MarketplaceMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "marketplace",
				Name:      "requests_total",
				Help:      "Total marketplace requests segmented by operation and outcome.",
			}, []string{"op", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nftmarket",
				Subsystem: "marketplace",
				Name:      "errors_total",
				Help:      "Total marketplace request failures segmented by operation.",
			}, []string{"op"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "nftmarket",
				Subsystem: "marketplace",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for marketplace request handling.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"op"}),
		}
		prometheus.MustRegister(marketplaceReg.requests, marketplaceReg.errors, marketplaceReg.latency)
	})
	return marketplaceReg
}

// Observe records one completed request.
func (m *MarketplaceMetrics) Observe(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
		m.errors.WithLabelValues(op).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}
