package lua

import (
	"strings"
	"sync"
	"sync/atomic"

	glua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/mminer/plume/errors"
	"github.com/mminer/plume/executor"
	"github.com/mminer/plume/wire"
)

// chunkName is how scripts are named in error messages.
const chunkName = "script"

// Lua implements executor.Guest on gopher-lua.
//
// Compiled chunks are cached by the BLAKE3 hash of their source and
// shared between runs; each run still gets its own state.
type Lua struct {
	cfg config

	mu       sync.RWMutex
	compiled map[[32]byte]*glua.FunctionProto
	hits     atomic.Uint64
	misses   atomic.Uint64
}

// New returns a Lua guest.
func New(opts ...Option) *Lua {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Lua{
		cfg:      cfg,
		compiled: make(map[[32]byte]*glua.FunctionProto),
	}
}

// Name returns "lua".
func (g *Lua) Name() string {
	return "lua"
}

// NewRuntime returns a fresh state with the restricted environment.
func (g *Lua) NewRuntime(cfg executor.RuntimeConfig) (executor.Runtime, error) {
	L := glua.NewState(glua.Options{
		SkipOpenLibs:        true,
		CallStackSize:       g.cfg.callStackSize,
		RegistrySize:        g.cfg.registrySize,
		RegistryMaxSize:     g.cfg.registryMaxSize,
		MinimizeStackMemory: true,
	})

	rt := &runtime{
		guest:    g,
		L:        L,
		maxDepth: cfg.MaxDepth,
		ret:      glua.LNil,
	}
	if rt.maxDepth <= 0 {
		rt.maxDepth = wire.DefaultMaxDepth
	}
	rt.out.limit = cfg.MaxOutputBytes

	if err := buildEnvironment(L, &rt.out); err != nil {
		L.Close()
		return nil, err
	}
	return rt, nil
}

// Precompile compiles script into the cache.
func (g *Lua) Precompile(script string) error {
	_, err := g.getCompiled(script)
	return err
}

// CacheStats reports compiled-chunk cache hits and misses.
func (g *Lua) CacheStats() (hits, misses uint64) {
	return g.hits.Load(), g.misses.Load()
}

// Close drops every cached chunk.
func (g *Lua) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.compiled)
	return nil
}

// getCompiled returns a cached chunk, compiling if necessary.
func (g *Lua) getCompiled(script string) (*glua.FunctionProto, error) {
	if g.cfg.cacheSize <= 0 {
		g.misses.Add(1)
		return compile(script)
	}

	key := blake3.Sum256([]byte(script))

	g.mu.RLock()
	if proto, ok := g.compiled[key]; ok {
		g.mu.RUnlock()
		g.hits.Add(1)
		return proto, nil
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if proto, ok := g.compiled[key]; ok {
		g.hits.Add(1)
		return proto, nil
	}
	g.misses.Add(1)

	proto, err := compile(script)
	if err != nil {
		return nil, err
	}

	if len(g.compiled) >= g.cfg.cacheSize {
		// Evict an arbitrary entry; map order is unspecified.
		for k := range g.compiled {
			delete(g.compiled, k)
			break
		}
	}
	g.compiled[key] = proto
	Logger().Debug("compiled script",
		zap.Int("source_bytes", len(script)),
		zap.Int("cached", len(g.compiled)))
	return proto, nil
}

func compile(script string) (*glua.FunctionProto, error) {
	chunk, err := parse.Parse(strings.NewReader(script), chunkName)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindSyntax).
			Cause(err).
			Detail("%s", firstLine(err.Error())).
			Build()
	}
	proto, err := glua.Compile(chunk, chunkName)
	if err != nil {
		return nil, errors.New(errors.PhaseLoad, errors.KindSyntax).
			Cause(err).
			Detail("%s", firstLine(err.Error())).
			Build()
	}
	return proto, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
