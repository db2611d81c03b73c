package lua

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	glua "github.com/yuin/gopher-lua"

	"github.com/mminer/plume/errors"
	"github.com/mminer/plume/wire"
)

func TestTableShape(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   wire.Value
	}{
		{"sequence", `return {1, 2, 3}`, wire.Array(wire.Int(1), wire.Int(2), wire.Int(3))},
		{"empty table", `return {}`, wire.Array()},
		{"explicit keys in order", `return {[1] = "a", [2] = "b"}`, wire.Array(wire.String("a"), wire.String("b"))},
		{"keys set out of order", `local t = {} t[2] = "b" t[1] = "a" return t`, wire.Array(wire.String("a"), wire.String("b"))},
		{"string key", `return {a = 1}`, wire.Map(wire.KV(wire.String("a"), wire.Int(1)))},
		{"gap", `return {[1] = 1, [3] = 3}`, wire.Map(wire.KV(wire.Int(1), wire.Int(1)), wire.KV(wire.Int(3), wire.Int(3)))},
		{"hole from nil", `return {1, nil, 3}`, wire.Map(wire.KV(wire.Int(1), wire.Int(1)), wire.KV(wire.Int(3), wire.Int(3)))},
		{"zero key", `return {[0] = "z"}`, wire.Map(wire.KV(wire.Int(0), wire.String("z")))},
		{"fractional key", `return {[1.5] = true}`, wire.Map(wire.KV(wire.Float(1.5), wire.Bool(true)))},
		{"nested", `return {{}, {x = false}}`, wire.Array(wire.Array(), wire.Map(wire.KV(wire.String("x"), wire.Bool(false))))},
	}

	g := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := runScript(t, g, tt.script, wire.Nil(), 10_000)
			require.NoError(t, err)
			assert.True(t, wire.Equal(tt.want, res.out), "expected %v, got %v", tt.want, res.out)
		})
	}
}

func TestMixedTableIsMap(t *testing.T) {
	res, err := runScript(t, New(), `return {10, 20, name = "n"}`, wire.Nil(), 1000)
	require.NoError(t, err)
	require.Equal(t, wire.KindMap, res.out.Kind())
	assert.Equal(t, 3, res.out.Len())
}

func TestNumberEncoding(t *testing.T) {
	tests := []struct {
		script string
		want   wire.Value
	}{
		{`return 0`, wire.Int(0)},
		{`return -1`, wire.Int(-1)},
		{`return 1.5`, wire.Float(1.5)},
		{`return 2^53`, wire.Int(1 << 53)},
		{`return 2^63`, wire.Uint(1 << 63)},
		{`return -2^63`, wire.Int(math.MinInt64)},
		{`return 2^64`, wire.Float(math.Pow(2, 64))},
		{`return -2^64`, wire.Float(-math.Pow(2, 64))},
		{`return math.huge`, wire.Float(math.MaxFloat64)},
		{`return 1/0`, wire.Float(math.Inf(1))},
		{`return 0/0`, wire.Float(math.NaN())},
	}

	g := New()
	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			res, err := runScript(t, g, tt.script, wire.Nil(), 1000)
			require.NoError(t, err)
			assert.True(t, wire.Equal(tt.want, res.out), "expected %v, got %v", tt.want, res.out)
			assert.Equal(t, tt.want.Kind(), res.out.Kind())
		})
	}
}

func TestUnsupportedReturnTypes(t *testing.T) {
	g := New()
	for _, script := range []string{
		`return print`,
		`return function() end`,
		`return {f = tostring}`,
		`return {[print] = 1}`,
	} {
		_, err := runScript(t, g, script, wire.Nil(), 1000)
		assert.True(t, errors.Is(err, errors.EncodeUnsupported), "%s: got %v", script, err)
	}
}

func TestSelfReferenceHitsDepthLimit(t *testing.T) {
	_, err := runScript(t, New(), `local t = {} t.self = t return t`, wire.Nil(), 1000)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.EncodeDepthExceeded), "got %v", err)
}

func TestFromLuaDepth(t *testing.T) {
	L := glua.NewState(glua.Options{SkipOpenLibs: true})
	defer L.Close()

	inner := L.NewTable()
	outer := L.NewTable()
	outer.RawSetInt(1, inner)

	_, err := fromLua(outer, 0, 2)
	assert.NoError(t, err)

	_, err = fromLua(outer, 0, 1)
	assert.True(t, errors.Is(err, errors.EncodeDepthExceeded))
}

func TestInputConversion(t *testing.T) {
	input := wire.Map(
		wire.KV(wire.String("list"), wire.Array(wire.Int(1), wire.String("two"), wire.Bool(true))),
		wire.KV(wire.Int(5), wire.Float(0.25)),
		wire.KV(wire.String("big"), wire.Uint(math.MaxUint64)),
		wire.KV(wire.String("bin"), wire.Bytes([]byte{0x00, 0xff})),
	)
	res, err := runScript(t, New(), `
return {
  n = #tbl.list,
  second = tbl.list[2],
  third = type(tbl.list[3]),
  five = tbl[5],
  big = tbl.big > 2^63,
  binlen = #tbl.bin,
}
`, input, 10_000)
	require.NoError(t, err)

	fields := map[string]wire.Value{}
	for _, p := range res.out.Pairs() {
		fields[p.Key.Str()] = p.Val
	}
	assert.Equal(t, int64(3), fields["n"].Int())
	assert.Equal(t, "two", fields["second"].Str())
	assert.Equal(t, "boolean", fields["third"].Str())
	assert.Equal(t, 0.25, fields["five"].Float())
	assert.True(t, fields["big"].Bool())
	assert.Equal(t, int64(2), fields["binlen"].Int())
}

func TestInputRoundTripsThroughScript(t *testing.T) {
	input := wire.Array(
		wire.Int(-5),
		wire.String("s"),
		wire.Array(wire.Nil()),
		wire.Map(wire.KV(wire.String("k"), wire.Array())),
	)
	res, err := runScript(t, New(), `return tbl`, input, 1000)
	require.NoError(t, err)

	// A nil element leaves a hole, so the inner array comes back empty.
	want := wire.Array(
		wire.Int(-5),
		wire.String("s"),
		wire.Array(),
		wire.Map(wire.KV(wire.String("k"), wire.Array())),
	)
	assert.True(t, wire.Equal(want, res.out), "got %v", res.out)
}

func TestUnbindableMapKeys(t *testing.T) {
	g := New()
	for name, input := range map[string]wire.Value{
		"nil key": wire.Map(wire.KV(wire.Nil(), wire.Int(1))),
		"NaN key": wire.Map(wire.KV(wire.Float(math.NaN()), wire.Int(1))),
	} {
		_, err := runScript(t, g, `return 1`, input, 1000)
		require.Error(t, err, name)
		assert.Equal(t, errors.PhaseDecode, errors.PhaseOf(err), name)
		assert.Equal(t, errors.KindInvalidInput, errors.KindOf(err), name)
	}
}
