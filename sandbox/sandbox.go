// Package sandbox is the one-call entry point: run a Lua script against
// a wire-encoded input and get the wire-encoded result back.
//
// All calls share one Lua guest, so compiled scripts are cached across
// calls, but every call runs in a fresh interpreter state.
package sandbox

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mminer/plume/executor"
	"github.com/mminer/plume/internal/format"
	"github.com/mminer/plume/language/lua"
	"github.com/mminer/plume/wire"
)

const (
	// DefaultBinding is the global the input is bound to when no name is given.
	DefaultBinding = "tbl"
	// DefaultQuota is the step budget used when Config.Quota is zero.
	DefaultQuota uint64 = 1000
)

// EmptyMap is the wire encoding of an empty map, the input used when none
// is supplied.
var EmptyMap = []byte{0x80}

// Result is the outcome of one run.
type Result = executor.Result

// Config controls a single run.
type Config struct {
	Binding        string
	Quota          uint64
	MaxDepth       int
	Timeout        time.Duration
	MaxOutputBytes int
}

func DefaultConfig() Config {
	return Config{
		Binding:        DefaultBinding,
		Quota:          DefaultQuota,
		MaxDepth:       wire.DefaultMaxDepth,
		MaxOutputBytes: executor.DefaultMaxOutputBytes,
	}
}

func (c Config) options() []executor.Option {
	var opts []executor.Option
	if c.MaxDepth > 0 {
		opts = append(opts, executor.WithMaxDepth(c.MaxDepth))
	}
	if c.Timeout > 0 {
		opts = append(opts, executor.WithTimeout(c.Timeout))
	}
	if c.MaxOutputBytes > 0 {
		opts = append(opts, executor.WithMaxOutput(c.MaxOutputBytes))
	}
	return opts
}

var (
	sharedOnce sync.Once
	shared     *executor.Executor
	sharedErr  error
)

// Executor returns the process-wide executor behind Run and RunScript.
func Executor() (*executor.Executor, error) {
	sharedOnce.Do(func() {
		shared, sharedErr = executor.New(lua.New())
	})
	return shared, sharedErr
}

// Run executes script with input bound to cfg.Binding. An empty input is
// treated as an empty map and a zero quota as DefaultQuota.
func Run(ctx context.Context, script string, input []byte, cfg Config) Result {
	exec, err := Executor()
	if err != nil {
		return Result{State: executor.StateFailed, Error: err}
	}

	if len(input) == 0 {
		input = EmptyMap
	}
	binding := cfg.Binding
	if binding == "" {
		binding = DefaultBinding
	}
	quota := cfg.Quota
	if quota == 0 {
		quota = DefaultQuota
	}

	return exec.Run(ctx, script, binding, input, quota, cfg.options()...)
}

// RunScript runs script with input bound to binding and at most quota
// steps, and returns the encoded first return value. Unlike Run, a zero
// quota is taken literally and fails on the first step.
func RunScript(script, binding string, input []byte, quota uint64) ([]byte, error) {
	exec, err := Executor()
	if err != nil {
		return nil, err
	}
	result := exec.Run(context.Background(), script, binding, input, quota)
	if result.Error != nil {
		return nil, result.Error
	}
	return result.Output, nil
}

// Call packs input, runs script and unpacks its result into host values
// (see format.Unpack). A nil input binds an empty map.
func Call(ctx context.Context, script string, input any, cfg Config) (any, error) {
	var data []byte
	if input != nil {
		var err error
		if data, err = format.Pack(input); err != nil {
			return nil, fmt.Errorf("pack input: %w", err)
		}
	}

	result := Run(ctx, script, data, cfg)
	if result.Error != nil {
		return nil, result.Error
	}
	return format.Unpack(result.Output)
}
