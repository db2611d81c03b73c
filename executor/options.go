package executor

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/mminer/plume/wire"
)

// DefaultMaxOutputBytes caps how much print output a run keeps.
const DefaultMaxOutputBytes = 64 << 10

// Option configures a single run.
type Option func(*runConfig)

type runConfig struct {
	timeout        time.Duration
	maxDepth       int
	maxOutputBytes int
}

func (e *Executor) runConfig(opts []Option) runConfig {
	cfg := runConfig{
		timeout:        e.cfg.timeout,
		maxDepth:       e.cfg.maxDepth,
		maxOutputBytes: e.cfg.maxOutputBytes,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithTimeout sets the maximum wall-clock time of the run. The deadline is
// checked at the same point as the step budget; 0 disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *runConfig) {
		c.timeout = d
	}
}

// WithMaxDepth caps container nesting of the input and the output.
func WithMaxDepth(n int) Option {
	return func(c *runConfig) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithMaxOutput caps captured print output in bytes. Output past the cap
// is dropped; 0 discards all of it.
func WithMaxOutput(n int) Option {
	return func(c *runConfig) {
		c.maxOutputBytes = max(n, 0)
	}
}

// ExecutorOption configures the Executor at creation time.
type ExecutorOption func(*executorConfig)

type executorConfig struct {
	timeout        time.Duration
	maxDepth       int
	maxOutputBytes int
	precompile     []string // Scripts to compile at startup
	logger         *zap.Logger
	metrics        *Metrics
	tracerProvider trace.TracerProvider
}

func defaultExecutorConfig() executorConfig {
	return executorConfig{
		timeout:        0,
		maxDepth:       wire.DefaultMaxDepth,
		maxOutputBytes: DefaultMaxOutputBytes,
	}
}

// WithDefaultTimeout sets the timeout for runs that do not pass WithTimeout.
// Runs have no wall-clock limit unless one is set; the step quota bounds them.
func WithDefaultTimeout(d time.Duration) ExecutorOption {
	return func(c *executorConfig) {
		c.timeout = d
	}
}

// WithDefaultMaxDepth sets the nesting cap for runs that do not pass
// WithMaxDepth.
func WithDefaultMaxDepth(n int) ExecutorOption {
	return func(c *executorConfig) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}

// WithDefaultMaxOutput sets the print capture cap for runs that do not
// pass WithMaxOutput.
func WithDefaultMaxOutput(n int) ExecutorOption {
	return func(c *executorConfig) {
		c.maxOutputBytes = max(n, 0)
	}
}

// WithPrecompile compiles the given scripts at Executor creation time.
// This moves the compilation cost to startup rather than first execution.
// The guest must implement Precompiler.
func WithPrecompile(scripts ...string) ExecutorOption {
	return func(c *executorConfig) {
		c.precompile = append(c.precompile, scripts...)
	}
}

// WithLogger sets the logger for this executor. Defaults to Logger().
func WithLogger(l *zap.Logger) ExecutorOption {
	return func(c *executorConfig) {
		c.logger = l
	}
}

// WithMetrics records every run in m. A nil m disables metrics.
func WithMetrics(m *Metrics) ExecutorOption {
	return func(c *executorConfig) {
		c.metrics = m
	}
}

// WithTracerProvider sets where run spans go. Defaults to the global
// OpenTelemetry provider, which is a no-op unless the host installs one.
func WithTracerProvider(tp trace.TracerProvider) ExecutorOption {
	return func(c *executorConfig) {
		c.tracerProvider = tp
	}
}
