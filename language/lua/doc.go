// Package lua provides the Lua guest for plume.
//
// Each run gets a fresh gopher-lua state holding only the base, table,
// string and math libraries, filtered down to an allowlist of globals.
// Nothing reachable from a script touches the file system, the network,
// the process or the host's Go state. print writes to a capped buffer that
// the host reads back after the run.
//
// Steps are counted per executed VM instruction. When the quota is spent
// the script is aborted, and a pcall in the script cannot catch the abort
// for good: the next instruction raises again.
//
// Values cross the boundary as wire values. A table whose keys are exactly
// 1..n becomes an array; any other table becomes a map in next order. An
// empty table is an empty array.
package lua
