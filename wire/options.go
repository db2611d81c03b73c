package wire

// DefaultMaxDepth caps container nesting when no option overrides it.
const DefaultMaxDepth = 100

// Option configures Decode and Encode.
type Option func(*config)

type config struct {
	maxDepth int
}

func newConfig(opts []Option) config {
	cfg := config{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithMaxDepth caps how many containers may nest inside one another.
// A flat array has depth 1. Values below 1 fall back to DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDepth = n
		}
	}
}
