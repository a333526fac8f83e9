package harbor

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsMiddleware records container activity as Prometheus metrics.
type MetricsMiddleware struct {
	resolutions      *prometheus.CounterVec
	created          *prometheus.CounterVec
	creationFailures *prometheus.CounterVec
	creationDuration *prometheus.HistogramVec
}

// NewMetricsMiddleware creates the metrics middleware and registers its
// collectors with registerer. An empty namespace defaults to "harbor".
func NewMetricsMiddleware(registerer prometheus.Registerer, namespace string) (*MetricsMiddleware, error) {
	if namespace == "" {
		namespace = defaultMetricsPrefix
	}

	m := &MetricsMiddleware{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Programmatic bean resolutions by outcome.",
		}, []string{"outcome"}),
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instances_created_total",
			Help:      "Bean instances created by scope.",
		}, []string{"scope"}),
		creationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "creation_failures_total",
			Help:      "Failed bean instance creations by scope.",
		}, []string{"scope"}),
		creationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "creation_duration_seconds",
			Help:      "Bean instance creation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"scope"}),
	}

	for _, c := range []prometheus.Collector{m.resolutions, m.created, m.creationFailures, m.creationDuration} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// BeforeResolve implements Middleware.
func (m *MetricsMiddleware) BeforeResolve(context.Context, *Type, []Annotation) error {
	return nil
}

// AfterResolve implements Middleware.
func (m *MetricsMiddleware) AfterResolve(_ context.Context, _ *Type, _ *Bean, err error) error {
	m.resolutions.WithLabelValues(resolutionOutcome(err)).Inc()

	return nil
}

// BeforeCreate implements Middleware.
func (m *MetricsMiddleware) BeforeCreate(context.Context, *Bean) error {
	return nil
}

// AfterCreate implements Middleware.
func (m *MetricsMiddleware) AfterCreate(_ context.Context, bean *Bean, _ any, err error, elapsed time.Duration) error {
	scope := string(bean.scope)
	if err != nil {
		m.creationFailures.WithLabelValues(scope).Inc()

		return nil
	}

	m.created.WithLabelValues(scope).Inc()
	m.creationDuration.WithLabelValues(scope).Observe(elapsed.Seconds())

	return nil
}

func resolutionOutcome(err error) string {
	if err == nil {
		return "resolved"
	}

	switch codeOf(err) {
	case CodeUnsatisfied:
		return "unsatisfied"
	case CodeAmbiguous:
		return "ambiguous"
	default:
		return "error"
	}
}
