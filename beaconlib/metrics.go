package beaconlib

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "beacon"

const (
	metricResultSuccess = "success"
	metricResultFailure = "failure"
	metricResultSkipped = "skipped"
)

// MetricsRegistry holds all collectors of beacon. It is exposed with
// MetricsHandler.
var MetricsRegistry = prometheus.NewRegistry()

var (
	metricProviderLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "provider_lookups_total",
		Help:      "Number of geolocation lookups by provider and result.",
	}, []string{"provider", "result"})

	metricProviderLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "provider_lookup_seconds",
		Help:      "Latency of geolocation lookups.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"provider"})

	metricVisitsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "visits_recorded_total",
		Help:      "Number of visits processed by recorder by result.",
	}, []string{"result"})

	metricLocationUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "location_updates_total",
		Help:      "Number of client location updates by result.",
	}, []string{"result"})

	metricSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "realtime_subscribers",
		Help:      "Number of admins subscribed to realtime events.",
	})

	metricEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "realtime_events_dropped_total",
		Help:      "Number of realtime events dropped because of full queues.",
	})
)

// MetricsHandler returns HTTP handler with prometheus exposition format.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(MetricsRegistry, promhttp.HandlerOpts{})
}

func init() {
	MetricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metricProviderLookups,
		metricProviderLatency,
		metricVisitsRecorded,
		metricLocationUpdates,
		metricSubscribers,
		metricEventsDropped,
	)
}
