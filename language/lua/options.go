package lua

import glua "github.com/yuin/gopher-lua"

// DefaultCacheSize is how many compiled chunks a guest keeps.
const DefaultCacheSize = 256

// Option configures a Lua guest.
type Option func(*config)

type config struct {
	cacheSize       int
	callStackSize   int
	registrySize    int
	registryMaxSize int
}

func defaultConfig() config {
	return config{
		cacheSize:     DefaultCacheSize,
		callStackSize: glua.CallStackSize,
		registrySize:  glua.RegistrySize,
	}
}

// WithCacheSize sets how many compiled chunks are kept. 0 disables the
// cache.
func WithCacheSize(n int) Option {
	return func(c *config) {
		c.cacheSize = max(n, 0)
	}
}

// WithCallStackSize caps Lua call depth. Deep recursion past it fails the
// run with a script error.
func WithCallStackSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.callStackSize = n
		}
	}
}

// WithRegistrySize sets the initial data stack size and the size it may
// grow to. A limit below initial forbids growth.
func WithRegistrySize(initial, limit int) Option {
	return func(c *config) {
		if initial > 0 {
			c.registrySize = initial
		}
		c.registryMaxSize = limit
	}
}
