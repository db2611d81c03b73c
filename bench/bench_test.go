// Package bench provides benchmarks for the wire codec and script runs.
//
// Run with: go test -v -run=Test ./bench/
// Benchmarks: go test -bench=. -benchmem ./bench/
package bench

import (
	"bytes"
	"context"
	"fmt"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/mminer/plume/executor"
	"github.com/mminer/plume/language/lua"
	"github.com/mminer/plume/wire"
)

// =============================================================================
// FIXTURES
// =============================================================================

// record builds a map shaped like a typical script input: a few scalars
// and a list of n small maps.
func record(n int) wire.Value {
	items := make([]wire.Value, n)
	for i := range items {
		items[i] = wire.Map(
			wire.KV(wire.String("id"), wire.Int(int64(i))),
			wire.KV(wire.String("score"), wire.Float(float64(i)/3)),
			wire.KV(wire.String("name"), wire.String(fmt.Sprintf("item-%d", i))),
		)
	}
	return wire.Map(
		wire.KV(wire.String("version"), wire.Int(3)),
		wire.KV(wire.String("active"), wire.Bool(true)),
		wire.KV(wire.String("items"), wire.Array(items...)),
	)
}

func mustEncode(tb testing.TB, v wire.Value) []byte {
	tb.Helper()
	data, err := wire.Encode(v)
	if err != nil {
		tb.Fatal(err)
	}
	return data
}

// --- Codec benchmarks ---

func benchmarkDecode(b *testing.B, n int) {
	data := mustEncode(b, record(n))
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := wire.Decode(data); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode_Small(b *testing.B) { benchmarkDecode(b, 4) }
func BenchmarkDecode_Large(b *testing.B) { benchmarkDecode(b, 1000) }

func benchmarkEncode(b *testing.B, n int) {
	v := record(n)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := wire.Encode(v); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncode_Small(b *testing.B) { benchmarkEncode(b, 4) }
func BenchmarkEncode_Large(b *testing.B) { benchmarkEncode(b, 1000) }

func BenchmarkEncodeTo_ReusedBuffer(b *testing.B) {
	v := record(1000)
	buf := wire.NewBuffer(64 << 10)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := wire.EncodeTo(buf, v, wire.DefaultMaxDepth); err != nil {
			b.Fatal(err)
		}
	}
}

// --- msgpack library, same payload ---

func BenchmarkMsgpack_DecodeInterface_Large(b *testing.B) {
	data := mustEncode(b, record(1000))
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var v any
		if err := msgpack.Unmarshal(data, &v); err != nil {
			b.Fatal(err)
		}
	}
}

// --- Run benchmarks: Cold Start (new guest each time, nothing cached) ---

func BenchmarkRun_ColdStart(b *testing.B) {
	input := mustEncode(b, wire.Int(41))
	for i := 0; i < b.N; i++ {
		exec, _ := executor.New(lua.New())
		exec.Run(context.Background(), "return tbl + 1", "tbl", input, 1000)
		exec.Close()
	}
}

// --- Run benchmarks: Warm Start (compiled chunk cached) ---

func BenchmarkRun_WarmStart(b *testing.B) {
	exec, _ := executor.New(lua.New())
	defer exec.Close()
	input := mustEncode(b, wire.Int(41))

	// First run to compile
	exec.Run(context.Background(), "return tbl + 1", "tbl", input, 1000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exec.Run(context.Background(), "return tbl + 1", "tbl", input, 1000)
	}
}

func BenchmarkRun_NoCache(b *testing.B) {
	exec, _ := executor.New(lua.New(lua.WithCacheSize(0)))
	defer exec.Close()
	input := mustEncode(b, wire.Int(41))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exec.Run(context.Background(), "return tbl + 1", "tbl", input, 1000)
	}
}

func BenchmarkRun_LargeInput(b *testing.B) {
	exec, _ := executor.New(lua.New())
	defer exec.Close()
	input := mustEncode(b, record(1000))
	script := `local s = 0 for _, it in ipairs(tbl.items) do s = s + it.id end return s`

	b.SetBytes(int64(len(input)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := exec.Run(context.Background(), script, "tbl", input, 1<<20)
		if r.Error != nil {
			b.Fatal(r.Error)
		}
	}
}

func BenchmarkRun_QuotaExhausted(b *testing.B) {
	exec, _ := executor.New(lua.New())
	defer exec.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		exec.Run(context.Background(), "while true do end", "tbl", []byte{0x80}, 100000)
	}
}

// =============================================================================
// COMPARISON TEST - Human readable output
// =============================================================================

func TestCodecComparison(t *testing.T) {
	data := mustEncode(t, record(1000))

	measure := func(runs int, fn func()) time.Duration {
		start := time.Now()
		for i := 0; i < runs; i++ {
			fn()
		}
		return time.Since(start) / time.Duration(runs)
	}

	runs := 20
	ours := measure(runs, func() { wire.Decode(data) })
	theirs := measure(runs, func() {
		var v any
		msgpack.Unmarshal(data, &v)
	})

	v, err := wire.Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	reencoded := mustEncode(t, v)
	if !bytes.Equal(reencoded, data) {
		t.Fatal("re-encoding a decoded value changed its bytes")
	}

	fmt.Println()
	fmt.Printf("Platform: %s/%s, CPUs: %d, payload: %d bytes\n",
		runtime.GOOS, runtime.GOARCH, runtime.NumCPU(), len(data))
	fmt.Println("┌────────────────────────┬───────────┐")
	fmt.Println("│ Decoder                │ Per run   │")
	fmt.Println("├────────────────────────┼───────────┤")
	fmt.Printf("│ %-22s │ %9s │\n", "wire.Decode", formatDuration(ours))
	fmt.Printf("│ %-22s │ %9s │\n", "msgpack.Unmarshal(any)", formatDuration(theirs))
	fmt.Println("└────────────────────────┴───────────┘")
	fmt.Println()

	t.Log("Codec comparison complete - see stdout for results")
}

func formatDuration(d time.Duration) string {
	if d >= time.Millisecond {
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	}
	return fmt.Sprintf("%dµs", d.Microseconds())
}

// =============================================================================
// CACHE BENEFIT
// =============================================================================

func TestCacheBenefit(t *testing.T) {
	// A long script makes compilation cost visible.
	var sb strings.Builder
	sb.WriteString("local s = tbl\n")
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&sb, "s = s + %d\n", i)
	}
	sb.WriteString("return s")
	script := sb.String()

	guest := lua.New()
	exec, err := executor.New(guest)
	if err != nil {
		t.Fatal(err)
	}
	defer exec.Close()
	input := mustEncode(t, wire.Int(1))

	var times []time.Duration
	for i := 0; i < 5; i++ {
		start := time.Now()
		r := exec.Run(context.Background(), script, "tbl", input, 100000)
		if r.Error != nil {
			t.Fatal(r.Error)
		}
		times = append(times, time.Since(start))
	}

	hits, misses := guest.CacheStats()
	if hits != 4 || misses != 1 {
		t.Errorf("expected 4 hits and 1 miss, got %d and %d", hits, misses)
	}

	fmt.Println()
	fmt.Println("=== Compiled Script Cache ===")
	for i, d := range times {
		label := "cached"
		if i == 0 {
			label = "compile"
		}
		fmt.Printf("Run %d (%s): %v\n", i+1, label, d)
	}
	fmt.Println()
}

// =============================================================================
// MEMORY
// =============================================================================

func TestMemoryUsage(t *testing.T) {
	var m runtime.MemStats

	runtime.GC()
	runtime.ReadMemStats(&m)
	before := m.Alloc

	exec, _ := executor.New(lua.New())
	input := mustEncode(t, record(1000))

	for i := 0; i < 50; i++ {
		exec.Run(context.Background(), "return #tbl.items", "tbl", input, 1000)
	}

	runtime.ReadMemStats(&m)
	after := m.Alloc

	exec.Close()

	runtime.GC()
	runtime.ReadMemStats(&m)
	afterGC := m.Alloc

	t.Logf("Memory before: %d KB", before/1024)
	t.Logf("Memory after 50 runs: %d KB", after/1024)
	t.Logf("Memory after GC: %d KB", afterGC/1024)
}
