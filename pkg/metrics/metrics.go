package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"link-crawler/pkg/utils"
)

const namespace = "linkcrawler"

// Metrics holds the crawler's Prometheus collectors.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	DownloadsInFlight   prometheus.Gauge
	ExtractionsInFlight prometheus.Gauge
	DownloadsTotal      *prometheus.CounterVec   // result: "ok" or an error category
	ExtractionsTotal    *prometheus.CounterVec   // result: "ok" or "error"
	CrawlNodesTotal     prometheus.Counter       // crawl tree nodes visited, including repeats
	MemoHitsTotal       *prometheus.CounterVec   // table: "pages" or "links"
	PermitWaitSeconds   *prometheus.HistogramVec // permit: "download", "host", "extract", "task"
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DownloadsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "downloads_in_flight",
			Help:      "Number of page downloads currently running.",
		}),
		ExtractionsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "extractions_in_flight",
			Help:      "Number of link extractions currently running.",
		}),
		DownloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "downloads_total",
			Help:      "Total number of page downloads by result.",
		}, []string{"result"}),
		ExtractionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total number of link extractions by result.",
		}, []string{"result"}),
		CrawlNodesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crawl_nodes_total",
			Help:      "Total number of crawl tree nodes visited.",
		}),
		MemoHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memo_hits_total",
			Help:      "Lookups answered from the per-URL memo tables.",
		}, []string{"table"}),
		PermitWaitSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "permit_wait_seconds",
			Help:      "Time spent waiting for a permit.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}, []string{"permit"}),
	}
}

// DownloadStarted marks a download as running and returns the func that ends it with err.
func (m *Metrics) DownloadStarted() func(err error) {
	if m == nil {
		return func(error) {}
	}
	m.DownloadsInFlight.Inc()
	return func(err error) {
		m.DownloadsInFlight.Dec()
		result := "ok"
		if err != nil {
			result = utils.CategorizeError(err)
		}
		m.DownloadsTotal.WithLabelValues(result).Inc()
	}
}

// ExtractionStarted marks an extraction as running and returns the func that ends it.
func (m *Metrics) ExtractionStarted() func(err error) {
	if m == nil {
		return func(error) {}
	}
	m.ExtractionsInFlight.Inc()
	return func(err error) {
		m.ExtractionsInFlight.Dec()
		result := "ok"
		if err != nil {
			result = "error"
		}
		m.ExtractionsTotal.WithLabelValues(result).Inc()
	}
}

// NodeVisited counts one crawl tree node.
func (m *Metrics) NodeVisited() {
	if m == nil {
		return
	}
	m.CrawlNodesTotal.Inc()
}

// MemoHit counts a lookup answered by an existing memo entry.
func (m *Metrics) MemoHit(table string) {
	if m == nil {
		return
	}
	m.MemoHitsTotal.WithLabelValues(table).Inc()
}

// PermitWaited records how long a permit acquisition took, starting at start.
func (m *Metrics) PermitWaited(permit string, start time.Time) {
	if m == nil {
		return
	}
	m.PermitWaitSeconds.WithLabelValues(permit).Observe(time.Since(start).Seconds())
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
