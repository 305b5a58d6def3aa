// Package metrics exposes Prometheus collectors for the monitoring engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Scrape results.
const (
	ScrapeOK         = "ok"
	ScrapeFailed     = "fetch_failed"
	ScrapeNoData     = "no_data"
	ScrapeUnresolved = "unresolved_stop"
)

// Push kinds.
const (
	PushArrival    = "arrival"
	PushCompletion = "completion"
)

// Collector records monitoring engine metrics.
type Collector struct {
	scrapes       *prometheus.CounterVec
	scrapeLatency prometheus.Histogram
	delivered     prometheus.Counter
	suppressed    prometheus.Counter
	pushes        *prometheus.CounterVec
	jobs          *prometheus.GaugeVec
	registrations *prometheus.CounterVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scrapes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busnotify_scrapes_total",
			Help: "Approach page scrapes by result.",
		}, []string{"result"}),
		scrapeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "busnotify_scrape_latency_seconds",
			Help:    "Approach page fetch latency.",
			Buckets: prometheus.DefBuckets,
		}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busnotify_arrivals_delivered_total",
			Help: "Arrival readings that passed deduplication.",
		}),
		suppressed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "busnotify_arrivals_suppressed_total",
			Help: "Arrival readings identical to the last delivered one.",
		}),
		pushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busnotify_pushes_total",
			Help: "Outbound push messages by kind and result.",
		}, []string{"kind", "result"}),
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "busnotify_jobs",
			Help: "Monitoring jobs by state.",
		}, []string{"state"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "busnotify_registrations_total",
			Help: "Monitoring registrations by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		c.scrapes,
		c.scrapeLatency,
		c.delivered,
		c.suppressed,
		c.pushes,
		c.jobs,
		c.registrations,
	)
	return c
}

// RecordScrape counts a scrape result and its latency.
func (c *Collector) RecordScrape(result string, d time.Duration) {
	c.scrapes.WithLabelValues(result).Inc()
	c.scrapeLatency.Observe(d.Seconds())
}

// RecordDelivered counts a reading that will be pushed.
func (c *Collector) RecordDelivered() { c.delivered.Inc() }

// RecordSuppressed counts a duplicate reading.
func (c *Collector) RecordSuppressed() { c.suppressed.Inc() }

// RecordPush counts a push attempt.
func (c *Collector) RecordPush(kind string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.pushes.WithLabelValues(kind, result).Inc()
}

// RecordRegistration counts a registration attempt.
func (c *Collector) RecordRegistration(result string) {
	c.registrations.WithLabelValues(result).Inc()
}

// SetJobs sets the number of jobs in a state.
func (c *Collector) SetJobs(state string, n int) {
	c.jobs.WithLabelValues(state).Set(float64(n))
}

// Handler serves the metrics registered in g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
