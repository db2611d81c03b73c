// Package executor runs untrusted scripts against wire-encoded input.
//
// # Overview
//
// An [Executor] drives one [Guest] through a fixed lifecycle for every
// run: the script is compiled, the input is decoded and bound to a
// global, the script runs under a step quota, and its first return value
// is encoded back to wire bytes. Every run gets a fresh [Runtime], so no
// state survives between runs.
//
// # Basic Usage
//
//	exec, err := executor.New(lua.New())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer exec.Close()
//
//	result := exec.Run(ctx, `return tbl.n + 1`, "tbl", input, 1000)
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
//	fmt.Printf("% x\n", result.Output)
//
// # Failures
//
// A failed run reports a typed error from the errors package. Its phase
// says where the run stopped (load, decode, runtime, encode) and its kind
// says why. Result.State holds the lifecycle state the run ended in.
//
// # Observability
//
// Runs are logged through zap, traced with OpenTelemetry spans and, when
// [WithMetrics] is given, counted in Prometheus metrics.
//
// # Guest Interface
//
// To add another scripting language, implement [Guest] and [Runtime].
// See [github.com/mminer/plume/language/lua] for an example.
package executor
