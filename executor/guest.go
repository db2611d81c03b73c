package executor

import (
	"context"

	"github.com/mminer/plume/wire"
)

// Guest defines a scripting language the executor can run untrusted code in.
// Implement this interface to add support for another interpreter.
type Guest interface {
	// Name returns a unique identifier for this guest (e.g. "lua").
	Name() string

	// NewRuntime returns a fresh, isolated interpreter instance. The
	// executor creates one per run and closes it when the run ends.
	NewRuntime(cfg RuntimeConfig) (Runtime, error)
}

// Precompiler is implemented by guests that can compile a script ahead of
// its first run.
type Precompiler interface {
	Precompile(script string) error
}

// RuntimeConfig carries the per-run limits a runtime must honor.
type RuntimeConfig struct {
	// MaxDepth caps container nesting in both directions.
	MaxDepth int
	// MaxOutputBytes caps captured print output. 0 disables capture.
	MaxOutputBytes int
}

// Runtime is one interpreter instance with the capability-restricted
// environment already in place. It is not safe for concurrent use.
//
// Every method that can fail returns an *errors.Error carrying the phase
// and kind of the failure.
type Runtime interface {
	// Compile parses script as the main chunk.
	Compile(script string) error

	// BindGlobal converts v and stores it under name in the script's
	// global namespace.
	BindGlobal(name string, v wire.Value) error

	// InstallStepHook arms the step budget. ctx is observed at the same
	// preemption point as the budget.
	InstallStepHook(ctx context.Context, quota uint64)

	// RemoveStepHook disarms the step budget and reports how many steps
	// were used. It is safe to call when no hook is installed.
	RemoveStepHook() uint64

	// Invoke calls the compiled chunk with no arguments and returns the
	// number of values it returned.
	Invoke() (int, error)

	// ReturnValue converts the first value returned by Invoke. It is nil
	// when the chunk returned nothing.
	ReturnValue() (wire.Value, error)

	// Printed returns what the script printed.
	Printed() string

	Close()
}
