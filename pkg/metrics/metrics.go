// Package metrics exposes scope tree activity as Prometheus metrics.
//
//	collector := metrics.New("opular")
//	prometheus.MustRegister(collector)
//	registry, _ := opular.NewRegistry(opular.WithObserver(collector))
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-opular/scope"
)

// Digest result label values.
const (
	ResultOK          = "ok"
	ResultTTLExceeded = "ttl_exceeded"
	ResultError       = "error"
)

// Collector records scope lifecycle and digest metrics. It implements both
// scope.Observer and prometheus.Collector.
type Collector struct {
	scopesCreated   prometheus.Counter
	scopesDestroyed prometheus.Counter
	scopesLive      prometheus.Gauge
	digests         *prometheus.CounterVec
	digestRounds    prometheus.Histogram
	digestDuration  prometheus.Histogram
	watchErrors     prometheus.Counter
}

var (
	_ scope.Observer       = (*Collector)(nil)
	_ prometheus.Collector = (*Collector)(nil)
)

// New creates a collector whose metric names start with namespace.
func New(namespace string) *Collector {
	return &Collector{
		scopesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scopes_created_total",
			Help:      "Total number of scopes created.",
		}),
		scopesDestroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scopes_destroyed_total",
			Help:      "Total number of scopes destroyed.",
		}),
		scopesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "scopes_live",
			Help:      "Scopes created and not yet destroyed.",
		}),
		digests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "digests_total",
			Help:      "Total number of digests by result.",
		}, []string{"result"}),
		digestRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "digest_rounds",
			Help:      "Dirty-checking rounds per completed digest.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		digestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "digest_duration_seconds",
			Help:      "Duration of completed digests.",
			Buckets:   prometheus.ExponentialBuckets(0.00005, 4, 8),
		}),
		watchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_errors_total",
			Help:      "Watch expression and listener errors recovered during digests.",
		}),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.collectors() {
		m.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, m := range c.collectors() {
		m.Collect(ch)
	}
}

func (c *Collector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		c.scopesCreated,
		c.scopesDestroyed,
		c.scopesLive,
		c.digests,
		c.digestRounds,
		c.digestDuration,
		c.watchErrors,
	}
}

// ScopeCreated implements scope.Observer.
func (c *Collector) ScopeCreated(*scope.Scope) {
	c.scopesCreated.Inc()
	c.scopesLive.Inc()
}

// ScopeDestroyed implements scope.Observer.
func (c *Collector) ScopeDestroyed(*scope.Scope) {
	c.scopesDestroyed.Inc()
	c.scopesLive.Dec()
}

// DigestCompleted implements scope.Observer.
func (c *Collector) DigestCompleted(_ *scope.Scope, rounds int, elapsed time.Duration) {
	c.digests.WithLabelValues(ResultOK).Inc()
	c.digestRounds.Observe(float64(rounds))
	c.digestDuration.Observe(elapsed.Seconds())
}

// DigestFailed implements scope.Observer.
func (c *Collector) DigestFailed(_ *scope.Scope, err error) {
	result := ResultError
	if errors.Is(err, scope.ErrDigestTTLExceeded) {
		result = ResultTTLExceeded
	}
	c.digests.WithLabelValues(result).Inc()
}

// WatchFailed implements scope.Observer.
func (c *Collector) WatchFailed(*scope.Scope, error) {
	c.watchErrors.Inc()
}
