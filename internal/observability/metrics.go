package observability

import (
	"bytes"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

const namespace = "app"

// Series names accepted by Increment, Set and Observe. The exposed family
// name carries the "app_" namespace prefix.
const (
	RequestsTotal         = "requests_total"
	RequestLatencySeconds = "request_latency_seconds"
	GPUAvailable          = "gpu_available"
	GPUMemoryUsedBytes    = "gpu_memory_used_bytes"
	GPUMemoryTotalBytes   = "gpu_memory_total_bytes"
	GPUUtilizationPercent = "gpu_utilization_percent"
	GPUComputationsTotal  = "gpu_computations_total"
	GPUProbeFailuresTotal = "gpu_probe_failures_total"
	GPUProbeDuration      = "gpu_probe_duration_seconds"
	ComputeFailuresTotal  = "compute_failures_total"
)

// Metrics is the process-wide metrics registry. It uses a custom registry
// to avoid polluting the global default. All methods are safe for
// concurrent use.
type Metrics struct {
	Registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal  *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec

	// GPU telemetry
	GPUAvailable          *prometheus.GaugeVec
	GPUMemoryUsedBytes    *prometheus.GaugeVec
	GPUMemoryTotalBytes   *prometheus.GaugeVec
	GPUUtilizationPercent *prometheus.GaugeVec
	GPUProbeFailures      *prometheus.CounterVec
	GPUProbeDuration      *prometheus.HistogramVec

	// Compute metrics
	GPUComputations *prometheus.CounterVec
	ComputeFailures *prometheus.CounterVec

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all series registered on
// a custom registry, together with the Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      RequestsTotal,
			Help:      "Total request count.",
		}, []string{"method", "endpoint", "status"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      RequestLatencySeconds,
			Help:      "Request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),

		GPUAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      GPUAvailable,
			Help:      "Number of GPUs available.",
		}, nil),
		GPUMemoryUsedBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      GPUMemoryUsedBytes,
			Help:      "GPU memory used in bytes.",
		}, []string{"gpu_index"}),
		GPUMemoryTotalBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      GPUMemoryTotalBytes,
			Help:      "GPU memory capacity in bytes.",
		}, []string{"gpu_index"}),
		GPUUtilizationPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      GPUUtilizationPercent,
			Help:      "GPU utilization in percent.",
		}, []string{"gpu_index"}),
		GPUProbeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      GPUProbeFailuresTotal,
			Help:      "Total number of failed GPU probe invocations by reason.",
		}, []string{"reason"}),
		GPUProbeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      GPUProbeDuration,
			Help:      "Duration of GPU probe invocations in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, nil),

		GPUComputations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      GPUComputationsTotal,
			Help:      "Total GPU computations performed.",
		}, nil),
		ComputeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      ComputeFailuresTotal,
			Help:      "Total number of failed computations.",
		}, nil),
	}

	m.counters = map[string]*prometheus.CounterVec{
		RequestsTotal:         m.RequestsTotal,
		GPUProbeFailuresTotal: m.GPUProbeFailures,
		GPUComputationsTotal:  m.GPUComputations,
		ComputeFailuresTotal:  m.ComputeFailures,
	}
	m.gauges = map[string]*prometheus.GaugeVec{
		GPUAvailable:          m.GPUAvailable,
		GPUMemoryUsedBytes:    m.GPUMemoryUsedBytes,
		GPUMemoryTotalBytes:   m.GPUMemoryTotalBytes,
		GPUUtilizationPercent: m.GPUUtilizationPercent,
	}
	m.histograms = map[string]*prometheus.HistogramVec{
		RequestLatencySeconds: m.RequestLatency,
		GPUProbeDuration:      m.GPUProbeDuration,
	}

	// Label-less series are exposed from the start rather than on first write.
	m.GPUAvailable.WithLabelValues().Set(0)
	m.GPUComputations.WithLabelValues()
	m.ComputeFailures.WithLabelValues()

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestLatency,
		m.GPUAvailable,
		m.GPUMemoryUsedBytes,
		m.GPUMemoryTotalBytes,
		m.GPUUtilizationPercent,
		m.GPUProbeFailures,
		m.GPUProbeDuration,
		m.GPUComputations,
		m.ComputeFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Increment adds one to the counter series identified by name and labels,
// creating the labeled series on first use.
func (m *Metrics) Increment(name string, labels prometheus.Labels) error {
	vec, ok := m.counters[name]
	if !ok {
		return fmt.Errorf("observability: unknown counter %q", name)
	}
	c, err := vec.GetMetricWith(labels)
	if err != nil {
		return fmt.Errorf("observability: counter %q: %w", name, err)
	}
	c.Inc()
	return nil
}

// Set stores value in the gauge series identified by name and labels.
func (m *Metrics) Set(name string, labels prometheus.Labels, value float64) error {
	vec, ok := m.gauges[name]
	if !ok {
		return fmt.Errorf("observability: unknown gauge %q", name)
	}
	g, err := vec.GetMetricWith(labels)
	if err != nil {
		return fmt.Errorf("observability: gauge %q: %w", name, err)
	}
	g.Set(value)
	return nil
}

// Observe records value in the histogram series identified by name and labels.
func (m *Metrics) Observe(name string, labels prometheus.Labels, value float64) error {
	vec, ok := m.histograms[name]
	if !ok {
		return fmt.Errorf("observability: unknown histogram %q", name)
	}
	h, err := vec.GetMetricWith(labels)
	if err != nil {
		return fmt.Errorf("observability: histogram %q: %w", name, err)
	}
	h.Observe(value)
	return nil
}

// DeleteGPU removes all per-GPU series for the given device index.
func (m *Metrics) DeleteGPU(index string) {
	labels := prometheus.Labels{"gpu_index": index}
	m.GPUMemoryUsedBytes.Delete(labels)
	m.GPUMemoryTotalBytes.Delete(labels)
	m.GPUUtilizationPercent.Delete(labels)
}

// Render gathers every registered series and encodes them in the text
// exposition format.
func (m *Metrics) Render() ([]byte, error) {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("observability: gather: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, textFormat)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return nil, fmt.Errorf("observability: encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

var textFormat = expfmt.NewFormat(expfmt.TypeTextPlain)

// ContentType is the Content-Type of the payload produced by Render.
func ContentType() string {
	return string(textFormat)
}
