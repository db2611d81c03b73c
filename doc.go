// Package plume runs untrusted Lua scripts in a capability-restricted,
// step-bounded sandbox and exchanges values with them in msgpack.
//
// # Overview
//
// A host hands plume a script, one input value in wire format and a step
// quota. The script sees the input as a global, can use only the base
// library, string, table and math, and returns one value, which comes
// back in wire format. Every run gets a fresh interpreter.
//
// # Basic Usage
//
//	out, err := sandbox.RunScript(`return tbl.n + 1`, "tbl", input, 1000)
//	if err != nil {
//	    // errors.PhaseOf(err) is load, decode, runtime or encode
//	}
//
// For more control, build an executor directly:
//
//	exec, _ := executor.New(lua.New(), executor.WithLogger(logger))
//	defer exec.Close()
//
//	result := exec.Run(ctx, script, "tbl", input, 1000)
//	fmt.Println(result.State, result.Steps)
//
// See the [wire], [executor], [language/lua] and [sandbox] packages for
// detailed API documentation.
package plume
