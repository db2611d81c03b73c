package executor

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for script runs.
// All metrics use the plume_executor_ namespace.
type Metrics struct {
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	StepsUsed   prometheus.Histogram
	InputBytes  prometheus.Histogram
	OutputBytes prometheus.Histogram
	ActiveRuns  prometheus.Gauge
}

// NewMetrics creates and registers executor metrics on the given registry.
// Returns nil if reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plume",
			Subsystem: "executor",
			Name:      "runs_total",
			Help:      "Total script runs by guest, failing phase and error kind.",
		}, []string{"guest", "phase", "kind"}),

		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plume",
			Subsystem: "executor",
			Name:      "run_duration_seconds",
			Help:      "Script run duration in seconds by final state.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"guest", "state"}),

		StepsUsed: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plume",
			Subsystem: "executor",
			Name:      "steps_used",
			Help:      "Interpreter steps consumed per run.",
			Buckets:   prometheus.ExponentialBuckets(10, 10, 8),
		}),

		InputBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plume",
			Subsystem: "executor",
			Name:      "input_bytes",
			Help:      "Size of the wire input per run.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		}),

		OutputBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plume",
			Subsystem: "executor",
			Name:      "output_bytes",
			Help:      "Size of the wire output per completed run.",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		}),

		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plume",
			Subsystem: "executor",
			Name:      "active_runs",
			Help:      "Number of runs currently in progress.",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.StepsUsed,
		m.InputBytes,
		m.OutputBytes,
		m.ActiveRuns,
	)

	return m
}

func (m *Metrics) runStarted(inputLen int) {
	if m == nil {
		return
	}
	m.ActiveRuns.Inc()
	m.InputBytes.Observe(float64(inputLen))
}

func (m *Metrics) runFinished(guest string, r *Result) {
	if m == nil {
		return
	}
	m.ActiveRuns.Dec()

	phase, kind := "none", "none"
	if r.Error != nil {
		phase, kind = string(r.Phase()), string(r.Kind())
	}
	m.RunsTotal.WithLabelValues(guest, phase, kind).Inc()
	m.RunDuration.WithLabelValues(guest, r.State.String()).Observe(r.Duration.Seconds())
	m.StepsUsed.Observe(float64(r.Steps))
	if r.State == StateCompleted {
		m.OutputBytes.Observe(float64(len(r.Output)))
	}
}
