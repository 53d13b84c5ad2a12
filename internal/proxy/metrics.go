package proxy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/die-net/warden/internal/cache"
	"github.com/die-net/warden/internal/origin"
)

const namespace = "warden"

// Request results, used as the "result" label.
const (
	resultOK           = "ok"
	resultUnauthorized = "unauthorized"
	resultForbidden    = "forbidden"
	resultBadRequest   = "bad_request"
	resultDropped      = "dropped"
	resultEmpty        = "empty"
	resultReadError    = "read_error"
	resultWriteError   = "write_error"
)

type metrics struct {
	accepted      prometheus.Counter
	acceptErrors  prometheus.Counter
	requests      *prometheus.CounterVec
	lookups       *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	coalesced     prometheus.Counter
	evictions     prometheus.Counter
}

func newMetrics(r prometheus.Registerer) *metrics {
	if r == nil {
		r = prometheus.NewRegistry() // This registry will be discarded.
	}
	f := promauto.With(r)

	return &metrics{
		accepted: f.NewCounter(prometheus.CounterOpts{
			Name:      "connections_accepted_total",
			Namespace: namespace,
			Help:      "Number of accepted client connections",
		}),
		acceptErrors: f.NewCounter(prometheus.CounterOpts{
			Name:      "accept_errors_total",
			Namespace: namespace,
			Help:      "Number of errors accepting client connections",
		}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "requests_total",
			Namespace: namespace,
			Help:      "Number of handled connections by result",
		}, []string{"result"}),
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "cache_lookups_total",
			Namespace: namespace,
			Help:      "Number of cache lookups by outcome",
		}, []string{"outcome"}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name:      "origin_fetches_total",
			Namespace: namespace,
			Help:      "Number of origin fetches by status",
		}, []string{"status"}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:      "origin_fetch_duration_seconds",
			Namespace: namespace,
			Help:      "Duration of origin fetches",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		coalesced: f.NewCounter(prometheus.CounterOpts{
			Name:      "origin_fetches_coalesced_total",
			Namespace: namespace,
			Help:      "Number of requests that shared another request's origin fetch",
		}),
		evictions: f.NewCounter(prometheus.CounterOpts{
			Name:      "cache_evictions_total",
			Namespace: namespace,
			Help:      "Number of cache entries evicted to make room",
		}),
	}
}

// registerStoreGauge exports the number of entries in s.
func registerStoreGauge(r prometheus.Registerer, s *cache.Store) {
	if r == nil {
		return
	}
	promauto.With(r).NewGaugeFunc(prometheus.GaugeOpts{
		Name:      "cache_entries",
		Namespace: namespace,
		Help:      "Number of cached URLs",
	}, func() float64 {
		return float64(s.Len())
	})
}

func (m *metrics) request(result string) {
	m.requests.WithLabelValues(result).Inc()
}

func (m *metrics) lookup(o cache.Outcome) {
	m.lookups.WithLabelValues(o.String()).Inc()
}

func (m *metrics) fetch(s origin.Status, seconds float64) {
	m.fetches.WithLabelValues(s.String()).Inc()
	m.fetchDuration.Observe(seconds)
}
