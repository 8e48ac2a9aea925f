package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "seisdb_acquire"

// Metrics holds the Prometheus counters, histograms, and gauges for an acquisition run.
type Metrics struct {
	RunActive prometheus.Gauge

	// Remote service metrics.
	Requests        *prometheus.CounterVec   // labels: service={station,dataselect,availability,fedcatalog,traveltime}, outcome={success,nodata,error}
	RequestDuration *prometheus.HistogramVec // labels: service
	TravelTimeCache *prometheus.CounterVec   // labels: result={hit,miss}

	// Work item metrics.
	EventsProcessed   prometheus.Counter
	TargetsProcessed  prometheus.Counter
	WaveformsArchived prometheus.Counter
	WaveformsSkipped  *prometheus.CounterVec // labels: reason={existing,nodata,rejected}
	StationXMLWritten prometheus.Counter
	BytesWritten      prometheus.Counter
	ItemFailures      *prometheus.CounterVec // labels: stage
}

func newMetrics() *Metrics {
	return &Metrics{
		RunActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_active",
			Help:      "1 while an acquisition run is in progress, 0 otherwise.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Remote web service requests by service and outcome.",
		}, []string{"service", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Remote web service request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"service"}),
		TravelTimeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traveltime_cache_total",
			Help:      "Travel time cache lookups by result.",
		}, []string{"result"}),
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_processed_total",
			Help:      "Catalog events processed by the waveform downloaders.",
		}),
		TargetsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "availability_targets_processed_total",
			Help:      "Network/station targets processed by the availability tool.",
		}),
		WaveformsArchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waveforms_archived_total",
			Help:      "Waveform files written to the archive.",
		}),
		WaveformsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "waveforms_skipped_total",
			Help:      "Waveform requests skipped by reason.",
		}, []string{"reason"}),
		StationXMLWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stationxml_written_total",
			Help:      "StationXML files written to the archive.",
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_written_total",
			Help:      "Bytes written to the archive.",
		}),
		ItemFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_failures_total",
			Help:      "Per-item failures that were logged and skipped, by stage.",
		}, []string{"stage"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.RunActive,
		m.Requests,
		m.RequestDuration,
		m.TravelTimeCache,
		m.EventsProcessed,
		m.TargetsProcessed,
		m.WaveformsArchived,
		m.WaveformsSkipped,
		m.StationXMLWritten,
		m.BytesWritten,
		m.ItemFailures,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
