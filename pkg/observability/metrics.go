package observability

import (
	stderrors "errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures DispatchMetrics.
type MetricsConfig struct {
	Namespace        string    // Prometheus namespace (default: polyglot)
	Subsystem        string    // Prometheus subsystem (default: dispatch)
	HistogramBuckets []float64 // Latency buckets in milliseconds

	ConstLabels prometheus.Labels

	// Registry receives the collectors. Nil registers with the default
	// Prometheus registry.
	Registry *prometheus.Registry
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:        "polyglot",
		Subsystem:        "dispatch",
		HistogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}
}

// Outcome labels.
const (
	StatusOK    = "ok"
	StatusNull  = "null"
	StatusError = "error"
)

// DispatchMetrics records request dispatch, provider invocation and
// registry activity. A nil *DispatchMetrics records nothing.
type DispatchMetrics struct {
	requestDuration  *prometheus.HistogramVec
	requestTotal     *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerTotal    *prometheus.CounterVec
	registryBuilds   *prometheus.CounterVec
	skipped          *prometheus.CounterVec
	bufferSyncs      *prometheus.CounterVec
	remoteDuration   *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// NewDispatchMetrics creates and registers the dispatch collectors.
func NewDispatchMetrics(config MetricsConfig) (*DispatchMetrics, error) {
	defaults := DefaultMetricsConfig()
	if config.Namespace == "" {
		config.Namespace = defaults.Namespace
	}
	if config.Subsystem == "" {
		config.Subsystem = defaults.Subsystem
	}
	if config.HistogramBuckets == nil {
		config.HistogramBuckets = defaults.HistogramBuckets
	}

	var registerer prometheus.Registerer = prometheus.DefaultRegisterer
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if config.Registry != nil {
		registerer, gatherer = config.Registry, config.Registry
	}

	histogram := func(name, help string, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			Buckets:     config.HistogramBuckets,
			ConstLabels: config.ConstLabels,
		}, labels)
	}
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        name,
			Help:        help,
			ConstLabels: config.ConstLabels,
		}, labels)
	}

	m := &DispatchMetrics{gatherer: gatherer}
	var err error
	if m.requestDuration, err = register(registerer, histogram("request_duration_milliseconds",
		"Duration of dispatched requests in milliseconds", "endpoint", "mode", "status")); err != nil {
		return nil, err
	}
	if m.requestTotal, err = register(registerer, counter("request_total",
		"Total number of dispatched requests", "endpoint", "mode", "status")); err != nil {
		return nil, err
	}
	if m.providerDuration, err = register(registerer, histogram("provider_duration_milliseconds",
		"Duration of provider invocations in milliseconds", "endpoint", "language", "tier", "status")); err != nil {
		return nil, err
	}
	if m.providerTotal, err = register(registerer, counter("provider_invocations_total",
		"Total number of provider invocations", "endpoint", "language", "tier", "status")); err != nil {
		return nil, err
	}
	if m.registryBuilds, err = register(registerer, counter("registry_builds_total",
		"Total number of capability registry builds", "endpoint", "status")); err != nil {
		return nil, err
	}
	if m.skipped, err = register(registerer, counter("registrations_skipped_total",
		"Registrations ignored while building a capability registry", "endpoint", "reason")); err != nil {
		return nil, err
	}
	if m.bufferSyncs, err = register(registerer, counter("buffer_syncs_total",
		"Total number of buffer synchronizations forwarded", "endpoint", "status")); err != nil {
		return nil, err
	}
	if m.remoteDuration, err = register(registerer, histogram("remote_call_duration_milliseconds",
		"Duration of calls to out-of-process providers in milliseconds", "method", "status")); err != nil {
		return nil, err
	}

	return m, nil
}

// register registers c, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](registerer prometheus.Registerer, c C) (C, error) {
	if err := registerer.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if stderrors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// RecordRequest records one dispatched request. mode is "single" or
// "broadcast".
func (m *DispatchMetrics) RecordRequest(endpoint, mode, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.WithLabelValues(endpoint, mode, status).Observe(ms(duration))
	m.requestTotal.WithLabelValues(endpoint, mode, status).Inc()
}

// RecordProvider records one provider invocation.
func (m *DispatchMetrics) RecordProvider(endpoint, language, tier, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.providerDuration.WithLabelValues(endpoint, language, tier, status).Observe(ms(duration))
	m.providerTotal.WithLabelValues(endpoint, language, tier, status).Inc()
}

// RecordRegistryBuild records one capability registry build.
func (m *DispatchMetrics) RecordRegistryBuild(endpoint, status string) {
	if m == nil {
		return
	}
	m.registryBuilds.WithLabelValues(endpoint, status).Inc()
}

// RecordSkippedRegistration records a registration ignored during a build.
func (m *DispatchMetrics) RecordSkippedRegistration(endpoint, reason string) {
	if m == nil {
		return
	}
	m.skipped.WithLabelValues(endpoint, reason).Inc()
}

// RecordBufferSync records a forwarded buffer synchronization.
func (m *DispatchMetrics) RecordBufferSync(endpoint, status string) {
	if m == nil {
		return
	}
	m.bufferSyncs.WithLabelValues(endpoint, status).Inc()
}

// RecordRemoteCall records one call to an out-of-process provider.
func (m *DispatchMetrics) RecordRemoteCall(method, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.remoteDuration.WithLabelValues(method, status).Observe(ms(duration))
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (m *DispatchMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
