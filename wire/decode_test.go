package wire

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mminer/plume/errors"
)

func TestDecodeScalars(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  Value
	}{
		{"positive fixint", []byte{0x2a}, Int(42)},
		{"negative fixint", []byte{0xff}, Int(-1)},
		{"negative fixint low", []byte{0xe0}, Int(-32)},
		{"nil", []byte{0xc0}, Nil()},
		{"false", []byte{0xc2}, Bool(false)},
		{"true", []byte{0xc3}, Bool(true)},
		{"uint8", []byte{0xcc, 0xc8}, Int(200)},
		{"uint16", []byte{0xcd, 0x01, 0x2c}, Int(300)},
		{"uint32", []byte{0xce, 0x00, 0x01, 0x00, 0x00}, Int(65536)},
		{"uint64 fits int64", []byte{0xcf, 0, 0, 0, 1, 0, 0, 0, 0}, Int(1 << 32)},
		{"uint64 above int64", []byte{0xcf, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, Uint(math.MaxUint64)},
		{"int8", []byte{0xd0, 0x80}, Int(-128)},
		{"int16", []byte{0xd1, 0xfe, 0x0c}, Int(-500)},
		{"int32", []byte{0xd2, 0xff, 0xfe, 0x79, 0x60}, Int(-100000)},
		{"int64", []byte{0xd3, 0x80, 0, 0, 0, 0, 0, 0, 0}, Int(math.MinInt64)},
		{"float32", []byte{0xca, 0x3f, 0xc0, 0x00, 0x00}, Float(1.5)},
		{"float64", []byte{0xcb, 0x40, 0x09, 0x21, 0xfb, 0x54, 0x44, 0x2d, 0x18}, Float(math.Pi)},
		{"fixstr", []byte{0xa3, 'a', 'b', 'c'}, String("abc")},
		{"empty fixstr", []byte{0xa0}, String("")},
		{"str8", append([]byte{0xd9, 0x03}, "xyz"...), String("xyz")},
		{"str16", append([]byte{0xda, 0x00, 0x02}, "hi"...), String("hi")},
		{"str32", append([]byte{0xdb, 0, 0, 0, 0x01}, 'q'), String("q")},
		{"bin8", []byte{0xc4, 0x02, 0x00, 0xff}, Bytes([]byte{0x00, 0xff})},
		{"bin16", []byte{0xc5, 0x00, 0x01, 0x07}, Bytes([]byte{0x07})},
		{"bin32", []byte{0xc6, 0, 0, 0, 0}, Bytes([]byte{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.input)
			require.NoError(t, err)
			assert.True(t, Equal(tt.want, got), "expected %v, got %v", tt.want, got)
			assert.Equal(t, tt.want.Kind(), got.Kind())
		})
	}
}

func TestDecodeContainers(t *testing.T) {
	// {"a": [1, 2], "b": {}}
	input := []byte{0x82, 0xa1, 'a', 0x92, 0x01, 0x02, 0xa1, 'b', 0x80}
	got, err := Decode(input)
	require.NoError(t, err)

	want := Map(
		KV(String("a"), Array(Int(1), Int(2))),
		KV(String("b"), Map()),
	)
	assert.True(t, Equal(want, got), "got %v", got)
	assert.Equal(t, 2, got.Depth())
}

func TestDecodeMapKeepsOrderAndDuplicates(t *testing.T) {
	input := []byte{0x83, 0x02, 0xa1, 'x', 0x01, 0xa1, 'y', 0x02, 0xa1, 'z'}
	got, err := Decode(input)
	require.NoError(t, err)

	pairs := got.Pairs()
	require.Len(t, pairs, 3)
	assert.Equal(t, int64(2), pairs[0].Key.Int())
	assert.Equal(t, int64(1), pairs[1].Key.Int())
	assert.Equal(t, "z", pairs[2].Val.Str())
}

func TestDecodeWideContainerHeaders(t *testing.T) {
	input := []byte{0xdc, 0x00, 0x02, 0xc3, 0xc2}
	got, err := Decode(input)
	require.NoError(t, err)
	assert.True(t, Equal(Array(Bool(true), Bool(false)), got))

	input = []byte{0xdf, 0, 0, 0, 1, 0x01, 0x02}
	got, err = Decode(input)
	require.NoError(t, err)
	assert.True(t, Equal(Map(KV(Int(1), Int(2))), got))
}

func TestDecodeCopiesByteStrings(t *testing.T) {
	input := []byte{0xa2, 'o', 'k'}
	got, err := Decode(input)
	require.NoError(t, err)

	input[1] = 'n'
	assert.Equal(t, "ok", got.Str())
}

func nestedArrays(depth int) []byte {
	b := bytes.Repeat([]byte{0x91}, depth)
	return append(b, 0xc0)
}

func TestDecodeDepthLimit(t *testing.T) {
	got, err := Decode(nestedArrays(DefaultMaxDepth))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxDepth, got.Depth())

	_, err = Decode(nestedArrays(DefaultMaxDepth + 1))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.DecodeDepthExceeded))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, DefaultMaxDepth, e.Offset)
}

func TestDecodeDepthOption(t *testing.T) {
	_, err := Decode(nestedArrays(3), WithMaxDepth(3))
	require.NoError(t, err)

	_, err = Decode(nestedArrays(4), WithMaxDepth(3))
	assert.True(t, errors.Is(err, errors.DecodeDepthExceeded))

	// Maps count the same way.
	_, err = Decode([]byte{0x81, 0x01, 0x81, 0x01, 0xc0}, WithMaxDepth(1))
	assert.True(t, errors.Is(err, errors.DecodeDepthExceeded))
}

func TestDecodeEveryPrefixIsTruncated(t *testing.T) {
	v := Map(
		KV(String("name"), String("a string long enough to need str8 encoding here")),
		KV(String("nums"), Array(Int(1), Int(-200), Int(70000), Uint(math.MaxUint64), Float(2.5))),
		KV(Int(7), Map(KV(Bool(true), Nil()))),
	)
	full, err := Encode(v)
	require.NoError(t, err)

	for i := 0; i < len(full); i++ {
		_, err := Decode(full[:i])
		require.Error(t, err, "prefix of %d bytes", i)
		assert.True(t, errors.Is(err, errors.DecodeTruncated), "prefix of %d bytes: %v", i, err)
	}

	got, err := Decode(full)
	require.NoError(t, err)
	assert.True(t, Equal(v, got))
}

func TestDecodeHostileCount(t *testing.T) {
	// array32 claiming four billion elements with nothing behind it.
	_, err := Decode([]byte{0xdd, 0xff, 0xff, 0xff, 0xff})
	assert.True(t, errors.Is(err, errors.DecodeTruncated))

	_, err = Decode([]byte{0xdf, 0xff, 0xff, 0xff, 0xff, 0x01})
	assert.True(t, errors.Is(err, errors.DecodeTruncated))

	_, err = Decode([]byte{0xdb, 0xff, 0xff, 0xff, 0xff, 'a'})
	assert.True(t, errors.Is(err, errors.DecodeTruncated))
}

func TestDecodeUnsupportedTags(t *testing.T) {
	tests := []struct {
		name   string
		input  []byte
		offset int
	}{
		{"never used", []byte{0xc1}, 0},
		{"fixext1", []byte{0xd4, 0x01, 0x00}, 0},
		{"fixext16", append([]byte{0xd8, 0x01}, make([]byte, 16)...), 0},
		{"ext8", []byte{0xc7, 0x01, 0x05, 0x00}, 0},
		{"ext16", []byte{0xc8, 0x00, 0x01, 0x05, 0x00}, 0},
		{"ext32", []byte{0xc9, 0, 0, 0, 1, 0x05, 0x00}, 0},
		{"nested ext", []byte{0x92, 0x01, 0xd5, 0x01, 0x00, 0x00}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.DecodeUnsupported), "got %v", err)

			var e *errors.Error
			require.True(t, errors.As(err, &e))
			assert.Equal(t, tt.offset, e.Offset)
		})
	}
}

func TestDecodeTrailingData(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.DecodeTrailingData))

	var e *errors.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, 1, e.Offset)
}

func TestDecodePrefix(t *testing.T) {
	v, rest, err := DecodePrefix([]byte{0x92, 0x01, 0x02, 0xc3, 0x05})
	require.NoError(t, err)
	assert.True(t, Equal(Array(Int(1), Int(2)), v))
	assert.Equal(t, []byte{0xc3, 0x05}, rest)

	v, rest, err = DecodePrefix(rest)
	require.NoError(t, err)
	assert.True(t, v.Bool())
	assert.Equal(t, []byte{0x05}, rest)
}

func TestDecodeEmptyInput(t *testing.T) {
	_, err := Decode(nil)
	assert.True(t, errors.Is(err, errors.DecodeTruncated))
}
