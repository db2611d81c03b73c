package wire

import (
	"math"

	"github.com/mminer/plume/errors"
)

// Decode decodes exactly one value from data. Bytes left over after the
// value are an error.
func Decode(data []byte, opts ...Option) (Value, error) {
	v, rest, err := DecodePrefix(data, opts...)
	if err != nil {
		return Value{}, err
	}
	if len(rest) > 0 {
		return Value{}, errors.New(errors.PhaseDecode, errors.KindTrailingData).
			Offset(len(data)-len(rest)).
			Detail("%d bytes after the value", len(rest)).
			Build()
	}
	return v, nil
}

// DecodePrefix decodes one value from the front of data and returns the
// bytes that follow it.
func DecodePrefix(data []byte, opts ...Option) (Value, []byte, error) {
	cfg := newConfig(opts)
	d := decoder{c: NewCursor(data), maxDepth: cfg.maxDepth}
	v, err := d.value(0)
	if err != nil {
		return Value{}, nil, err
	}
	return v, data[d.c.Pos():], nil
}

type decoder struct {
	c        *Cursor
	maxDepth int
}

// value decodes one value. depth is the number of containers enclosing it.
func (d *decoder) value(depth int) (Value, error) {
	start := d.c.Pos()
	tag := d.c.Uint8()
	if d.c.Failed() {
		return Value{}, d.truncated(start)
	}

	switch {
	case tag <= posFixintMax:
		return Int(int64(tag)), nil
	case tag >= negFixintMin:
		return Int(int64(int8(tag))), nil
	case isFixstr(tag):
		return d.bytes(start, int(tag&^fixstrMask))
	case isFixarray(tag):
		return d.array(start, depth, int(tag&^fixcountMask))
	case isFixmap(tag):
		return d.mapping(start, depth, int(tag&^fixcountMask))
	}

	switch tag {
	case nilTag:
		return Nil(), nil
	case falseTag:
		return Bool(false), nil
	case trueTag:
		return Bool(true), nil

	case uint8Tag:
		return d.scalar(start, Int(int64(d.c.Uint8())))
	case uint16Tag:
		return d.scalar(start, Int(int64(d.c.Uint16())))
	case uint32Tag:
		return d.scalar(start, Int(int64(d.c.Uint32())))
	case uint64Tag:
		u := d.c.Uint64()
		if u > math.MaxInt64 {
			return d.scalar(start, Uint(u))
		}
		return d.scalar(start, Int(int64(u)))

	case int8Tag:
		return d.scalar(start, Int(int64(int8(d.c.Uint8()))))
	case int16Tag:
		return d.scalar(start, Int(int64(int16(d.c.Uint16()))))
	case int32Tag:
		return d.scalar(start, Int(int64(int32(d.c.Uint32()))))
	case int64Tag:
		return d.scalar(start, Int(int64(d.c.Uint64())))

	case float32Tag:
		return d.scalar(start, Float(float64(math.Float32frombits(d.c.Uint32()))))
	case float64Tag:
		return d.scalar(start, Float(math.Float64frombits(d.c.Uint64())))

	case str8Tag, bin8Tag:
		return d.bytes(start, int(d.c.Uint8()))
	case str16Tag, bin16Tag:
		return d.bytes(start, int(d.c.Uint16()))
	case str32Tag, bin32Tag:
		return d.bytes(start, d.length32())

	case array16Tag:
		return d.array(start, depth, int(d.c.Uint16()))
	case array32Tag:
		return d.array(start, depth, d.length32())
	case map16Tag:
		return d.mapping(start, depth, int(d.c.Uint16()))
	case map32Tag:
		return d.mapping(start, depth, d.length32())
	}

	return Value{}, errors.New(errors.PhaseDecode, errors.KindUnsupportedType).
		Offset(start).
		Detail("tag 0x%02x (%s)", tag, TagName(tag)).
		Build()
}

// length32 reads a 32-bit length. Lengths that do not fit in an int come
// back negative, which every consumer treats as truncation.
func (d *decoder) length32() int {
	n := d.c.Uint32()
	if uint64(n) > uint64(math.MaxInt) {
		return -1
	}
	return int(n)
}

func (d *decoder) scalar(start int, v Value) (Value, error) {
	if d.c.Failed() {
		return Value{}, d.truncated(start)
	}
	return v, nil
}

func (d *decoder) bytes(start, n int) (Value, error) {
	p := d.c.Next(n)
	if d.c.Failed() {
		return Value{}, d.truncated(start)
	}
	b := make([]byte, len(p))
	copy(b, p)
	return Bytes(b), nil
}

func (d *decoder) array(start, depth, n int) (Value, error) {
	if err := d.enter(start, depth, n); err != nil {
		return Value{}, err
	}
	// Every element takes at least one byte, so a count larger than the
	// input cannot be honest. Cap the allocation and let decoding fail.
	items := make([]Value, 0, min(n, d.c.Remaining()))
	for i := 0; i < n; i++ {
		item, err := d.value(depth + 1)
		if err != nil {
			return Value{}, err
		}
		items = append(items, item)
	}
	return Array(items...), nil
}

func (d *decoder) mapping(start, depth, n int) (Value, error) {
	if err := d.enter(start, depth, n); err != nil {
		return Value{}, err
	}
	pairs := make([]Pair, 0, min(n, d.c.Remaining()/2))
	for i := 0; i < n; i++ {
		key, err := d.value(depth + 1)
		if err != nil {
			return Value{}, err
		}
		val, err := d.value(depth + 1)
		if err != nil {
			return Value{}, err
		}
		pairs = append(pairs, KV(key, val))
	}
	return Map(pairs...), nil
}

// enter checks a container header before any of its elements are read.
func (d *decoder) enter(start, depth, n int) error {
	if d.c.Failed() || n < 0 {
		return d.truncated(start)
	}
	if depth >= d.maxDepth {
		return errors.New(errors.PhaseDecode, errors.KindDepthExceeded).
			Offset(start).
			Detail("containers nested deeper than %d", d.maxDepth).
			Build()
	}
	return nil
}

func (d *decoder) truncated(start int) error {
	return errors.New(errors.PhaseDecode, errors.KindTruncated).
		Offset(start).
		Detail("value needs more than the %d bytes left", len(d.c.data)-start).
		Build()
}
