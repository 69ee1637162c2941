// Package metrics provides a Prometheus-backed metrics collector that
// is carried on the request context.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records application metrics. Implementations are safe for
// concurrent use.
type Collector interface {
	RegisterCounter(ctx context.Context, name string, labels ...string) (prometheus.Collector, error)
	AddCounter(ctx context.Context, name string, value float64, labelValues ...string) error
	RegisterGauge(ctx context.Context, name string, labels ...string) (prometheus.Collector, error)
	SetGauge(ctx context.Context, name string, value float64, labelValues ...string) error
	RegisterHistogram(ctx context.Context, name string, labels ...string) (prometheus.Collector, error)
	ObserveHistogram(ctx context.Context, name string, value float64, labelValues ...string) error
	MeasureFunctionExecutionTime(ctx context.Context, name string) (func(), error)
	UnregisterCounter(ctx context.Context, name string, labels ...string) error
	UnregisterGauge(ctx context.Context, name string, labels ...string) error
	UnregisterHistogram(ctx context.Context, name string, labels ...string) error
	MetricsHandler() http.Handler
}

type contextKey struct {
	namespace string
}

// WithMetrics returns a context carrying a collector for the given
// namespace. An existing collector for the same namespace is reused.
func WithMetrics(ctx context.Context, namespace string) context.Context {
	if c, ok := ctx.Value(contextKey{namespace}).(Collector); ok && c != nil {
		return ctx
	}
	return context.WithValue(ctx, contextKey{namespace}, newPrometheusCollector(namespace))
}

// FromContext returns the collector carried by the context, creating a
// detached one when the context carries none.
func FromContext(ctx context.Context, namespace string) Collector {
	if c, ok := ctx.Value(contextKey{namespace}).(Collector); ok && c != nil {
		return c
	}
	return newPrometheusCollector(namespace)
}

type prometheusCollector struct {
	namespace  string
	registry   *prometheus.Registry
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

func newPrometheusCollector(namespace string) *prometheusCollector {
	return &prometheusCollector{
		namespace:  namespace,
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (c *prometheusCollector) fullName(name string) string {
	return fmt.Sprintf("%s_%s", c.namespace, name)
}

func (c *prometheusCollector) RegisterCounter(_ context.Context, name string, labels ...string) (prometheus.Collector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullName := c.fullName(name)
	if _, exists := c.counters[fullName]; exists {
		return nil, fmt.Errorf("counter '%s' already registered", fullName)
	}
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: fullName,
		Help: fmt.Sprintf("Counter for %s", fullName),
	}, labels)
	if err := c.registry.Register(counter); err != nil {
		return nil, fmt.Errorf("failed to register counter '%s': %w", fullName, err)
	}
	c.counters[fullName] = counter
	return counter, nil
}

func (c *prometheusCollector) AddCounter(_ context.Context, name string, value float64, labelValues ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullName := c.fullName(name)
	counter, ok := c.counters[fullName]
	if !ok {
		return fmt.Errorf("counter '%s' not found", fullName)
	}
	counter.WithLabelValues(labelValues...).Add(value)
	return nil
}

func (c *prometheusCollector) RegisterGauge(_ context.Context, name string, labels ...string) (prometheus.Collector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullName := c.fullName(name)
	if _, exists := c.gauges[fullName]; exists {
		return nil, fmt.Errorf("gauge '%s' already registered", fullName)
	}
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: fullName,
		Help: fmt.Sprintf("Gauge for %s", fullName),
	}, labels)
	if err := c.registry.Register(gauge); err != nil {
		return nil, fmt.Errorf("failed to register gauge '%s': %w", fullName, err)
	}
	c.gauges[fullName] = gauge
	return gauge, nil
}

func (c *prometheusCollector) SetGauge(_ context.Context, name string, value float64, labelValues ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullName := c.fullName(name)
	gauge, ok := c.gauges[fullName]
	if !ok {
		return fmt.Errorf("gauge '%s' not found", fullName)
	}
	gauge.WithLabelValues(labelValues...).Set(value)
	return nil
}

func (c *prometheusCollector) RegisterHistogram(_ context.Context, name string, labels ...string) (prometheus.Collector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registerHistogramLocked(name, labels...)
}

func (c *prometheusCollector) registerHistogramLocked(name string, labels ...string) (prometheus.Collector, error) {
	fullName := c.fullName(name)
	if _, exists := c.histograms[fullName]; exists {
		return nil, fmt.Errorf("histogram '%s' already registered", fullName)
	}
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    fullName,
		Help:    fmt.Sprintf("Histogram for %s", fullName),
		Buckets: prometheus.DefBuckets,
	}, labels)
	if err := c.registry.Register(histogram); err != nil {
		return nil, fmt.Errorf("failed to register histogram '%s': %w", fullName, err)
	}
	c.histograms[fullName] = histogram
	return histogram, nil
}

func (c *prometheusCollector) ObserveHistogram(_ context.Context, name string, value float64, labelValues ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullName := c.fullName(name)
	histogram, ok := c.histograms[fullName]
	if !ok {
		return fmt.Errorf("histogram '%s' not found", fullName)
	}
	histogram.WithLabelValues(labelValues...).Observe(value)
	return nil
}

// MeasureFunctionExecutionTime starts a timer for the named function
// and returns the stop function that records the elapsed seconds.
func (c *prometheusCollector) MeasureFunctionExecutionTime(_ context.Context, name string) (func(), error) {
	c.mu.Lock()
	fullName := c.fullName("function_duration_seconds")
	histogram, ok := c.histograms[fullName]
	if !ok {
		registered, err := c.registerHistogramLocked("function_duration_seconds", "function")
		if err != nil {
			c.mu.Unlock()
			return nil, err
		}
		histogram = registered.(*prometheus.HistogramVec)
	}
	c.mu.Unlock()

	start := time.Now()
	return func() {
		histogram.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}, nil
}

func (c *prometheusCollector) UnregisterCounter(_ context.Context, name string, _ ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullName := c.fullName(name)
	if counter, ok := c.counters[fullName]; ok {
		c.registry.Unregister(counter)
		delete(c.counters, fullName)
	}
	return nil
}

func (c *prometheusCollector) UnregisterGauge(_ context.Context, name string, _ ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullName := c.fullName(name)
	if gauge, ok := c.gauges[fullName]; ok {
		c.registry.Unregister(gauge)
		delete(c.gauges, fullName)
	}
	return nil
}

func (c *prometheusCollector) UnregisterHistogram(_ context.Context, name string, _ ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fullName := c.fullName(name)
	if histogram, ok := c.histograms[fullName]; ok {
		c.registry.Unregister(histogram)
		delete(c.histograms, fullName)
	}
	return nil
}

// MetricsHandler serves the collector's registry in the Prometheus
// exposition format.
func (c *prometheusCollector) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
