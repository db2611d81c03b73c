package wire

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindUint
	KindFloat
	KindBytes
	KindArray
	KindMap
)

var kindNames = [...]string{
	KindNil:   "nil",
	KindBool:  "bool",
	KindInt:   "int",
	KindUint:  "uint",
	KindFloat: "float",
	KindBytes: "bytes",
	KindArray: "array",
	KindMap:   "map",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is one wire value. The zero Value is nil.
//
// Uint is only produced by the decoder for integers above math.MaxInt64;
// every other non-negative integer decodes as Int.
type Value struct {
	kind  Kind
	n     uint64 // bool, int, uint and float bits
	bytes []byte
	items []Value
	pairs []Pair
}

// Pair is one key/value entry of a map.
type Pair struct {
	Key Value
	Val Value
}

// KV builds a Pair.
func KV(key, val Value) Pair { return Pair{Key: key, Val: val} }

func Nil() Value { return Value{} }

func Bool(b bool) Value {
	v := Value{kind: KindBool}
	if b {
		v.n = 1
	}
	return v
}

func Int(i int64) Value     { return Value{kind: KindInt, n: uint64(i)} }
func Uint(u uint64) Value   { return Value{kind: KindUint, n: u} }
func Float(f float64) Value { return Value{kind: KindFloat, n: math.Float64bits(f)} }

// Bytes wraps b without copying.
func Bytes(b []byte) Value { return Value{kind: KindBytes, bytes: b} }

func String(s string) Value { return Value{kind: KindBytes, bytes: []byte(s)} }

func Array(items ...Value) Value { return Value{kind: KindArray, items: items} }

func Map(pairs ...Pair) Value { return Value{kind: KindMap, pairs: pairs} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsNil() bool    { return v.kind == KindNil }
func (v Value) Bool() bool     { return v.n != 0 }
func (v Value) Int() int64     { return int64(v.n) }
func (v Value) Uint() uint64   { return v.n }
func (v Value) Float() float64 { return math.Float64frombits(v.n) }
func (v Value) Bytes() []byte  { return v.bytes }
func (v Value) Str() string    { return string(v.bytes) }
func (v Value) Items() []Value { return v.items }
func (v Value) Pairs() []Pair  { return v.pairs }

// Len returns the element count of an array, the pair count of a map or
// the byte length of a byte string. It is 0 for every other kind.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindMap:
		return len(v.pairs)
	case KindBytes:
		return len(v.bytes)
	}
	return 0
}

// Depth returns the container nesting of v: 0 for scalars, 1 for a flat
// array or map, and so on.
func (v Value) Depth() int {
	deepest := 0
	switch v.kind {
	case KindArray:
		for _, item := range v.items {
			deepest = max(deepest, item.Depth())
		}
	case KindMap:
		for _, p := range v.pairs {
			deepest = max(deepest, p.Key.Depth(), p.Val.Depth())
		}
	default:
		return 0
	}
	return deepest + 1
}

// Equal reports whether a and b hold the same value. Int and Uint compare
// numerically; NaN equals NaN so that decoded floats round-trip.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		switch {
		case a.kind == KindInt && b.kind == KindUint:
			return a.Int() >= 0 && uint64(a.Int()) == b.n
		case a.kind == KindUint && b.kind == KindInt:
			return b.Int() >= 0 && uint64(b.Int()) == a.n
		}
		return false
	}

	switch a.kind {
	case KindNil:
		return true
	case KindBool, KindInt, KindUint:
		return a.n == b.n
	case KindFloat:
		fa, fb := a.Float(), b.Float()
		return fa == fb || (math.IsNaN(fa) && math.IsNaN(fb))
	case KindBytes:
		return bytes.Equal(a.bytes, b.bytes)
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.pairs) != len(b.pairs) {
			return false
		}
		for i := range a.pairs {
			if !Equal(a.pairs[i].Key, b.pairs[i].Key) || !Equal(a.pairs[i].Val, b.pairs[i].Val) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v in a compact, JSON-like notation for diagnostics.
// Byte strings are quoted with Go escaping.
func (v Value) String() string {
	var b strings.Builder
	v.format(&b)
	return b.String()
}

func (v Value) format(b *strings.Builder) {
	switch v.kind {
	case KindNil:
		b.WriteString("nil")
	case KindBool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	case KindInt:
		b.WriteString(strconv.FormatInt(v.Int(), 10))
	case KindUint:
		b.WriteString(strconv.FormatUint(v.n, 10))
	case KindFloat:
		b.WriteString(strconv.FormatFloat(v.Float(), 'g', -1, 64))
	case KindBytes:
		b.WriteString(strconv.Quote(string(v.bytes)))
	case KindArray:
		b.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				b.WriteString(", ")
			}
			item.format(b)
		}
		b.WriteByte(']')
	case KindMap:
		b.WriteByte('{')
		for i, p := range v.pairs {
			if i > 0 {
				b.WriteString(", ")
			}
			p.Key.format(b)
			b.WriteString(": ")
			p.Val.format(b)
		}
		b.WriteByte('}')
	}
}
