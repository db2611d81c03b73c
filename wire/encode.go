package wire

import (
	"math"

	"github.com/mminer/plume/errors"
)

// Encode encodes v into a new byte slice.
func Encode(v Value, opts ...Option) ([]byte, error) {
	cfg := newConfig(opts)
	buf := NewBuffer(0)
	if err := EncodeTo(buf, v, cfg.maxDepth); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeTo appends the encoding of v to buf. remainingDepth is the number
// of container levels v may still open; a container met at 0 fails
// without recursing. On error buf holds a partial encoding.
func EncodeTo(buf *Buffer, v Value, remainingDepth int) error {
	switch v.kind {
	case KindNil:
		buf.AppendByte(nilTag)
	case KindBool:
		if v.Bool() {
			buf.AppendByte(trueTag)
		} else {
			buf.AppendByte(falseTag)
		}
	case KindInt:
		appendInt(buf, v.Int())
	case KindUint:
		appendUint(buf, v.Uint())
	case KindFloat:
		buf.AppendByte(float64Tag)
		buf.AppendUint64(v.n)
	case KindBytes:
		if err := appendStrHeader(buf, len(v.bytes)); err != nil {
			return err
		}
		buf.Append(v.bytes)
	case KindArray:
		if remainingDepth <= 0 {
			return depthExceeded()
		}
		if err := appendCountHeader(buf, fixarrayTag, array16Tag, array32Tag, len(v.items)); err != nil {
			return err
		}
		for _, item := range v.items {
			if err := EncodeTo(buf, item, remainingDepth-1); err != nil {
				return err
			}
		}
	case KindMap:
		if remainingDepth <= 0 {
			return depthExceeded()
		}
		if err := appendCountHeader(buf, fixmapTag, map16Tag, map32Tag, len(v.pairs)); err != nil {
			return err
		}
		for _, p := range v.pairs {
			if err := EncodeTo(buf, p.Key, remainingDepth-1); err != nil {
				return err
			}
			if err := EncodeTo(buf, p.Val, remainingDepth-1); err != nil {
				return err
			}
		}
	default:
		return errors.New(errors.PhaseEncode, errors.KindUnsupportedType).
			Detail("value kind %s", v.kind).
			Build()
	}
	return nil
}

// appendUint writes u in 1, 2, 3, 5 or 9 bytes.
func appendUint(buf *Buffer, u uint64) {
	switch {
	case u <= uint64(posFixintMax):
		buf.AppendByte(byte(u))
	case u <= math.MaxUint8:
		buf.AppendByte(uint8Tag)
		buf.AppendByte(byte(u))
	case u <= math.MaxUint16:
		buf.AppendByte(uint16Tag)
		buf.AppendUint16(uint16(u))
	case u <= math.MaxUint32:
		buf.AppendByte(uint32Tag)
		buf.AppendUint32(uint32(u))
	default:
		buf.AppendByte(uint64Tag)
		buf.AppendUint64(u)
	}
}

// appendInt writes i in 1, 2, 3, 5 or 9 bytes. Non-negative values use the
// unsigned family.
func appendInt(buf *Buffer, i int64) {
	switch {
	case i >= 0:
		appendUint(buf, uint64(i))
	case i >= negFixintLow:
		buf.AppendByte(byte(int8(i)))
	case i >= math.MinInt8:
		buf.AppendByte(int8Tag)
		buf.AppendByte(byte(int8(i)))
	case i >= math.MinInt16:
		buf.AppendByte(int16Tag)
		buf.AppendUint16(uint16(int16(i)))
	case i >= math.MinInt32:
		buf.AppendByte(int32Tag)
		buf.AppendUint32(uint32(int32(i)))
	default:
		buf.AppendByte(int64Tag)
		buf.AppendUint64(uint64(i))
	}
}

func appendStrHeader(buf *Buffer, n int) error {
	switch {
	case n <= fixstrMaxLen:
		buf.AppendByte(fixstrTag | byte(n))
	case n <= math.MaxUint8:
		buf.AppendByte(str8Tag)
		buf.AppendByte(byte(n))
	case n <= math.MaxUint16:
		buf.AppendByte(str16Tag)
		buf.AppendUint16(uint16(n))
	case uint64(n) <= math.MaxUint32:
		buf.AppendByte(str32Tag)
		buf.AppendUint32(uint32(n))
	default:
		return tooLong("byte string", n)
	}
	return nil
}

func appendCountHeader(buf *Buffer, fixTag, tag16, tag32 byte, n int) error {
	switch {
	case n <= fixcountMaxLen:
		buf.AppendByte(fixTag | byte(n))
	case n <= math.MaxUint16:
		buf.AppendByte(tag16)
		buf.AppendUint16(uint16(n))
	case uint64(n) <= math.MaxUint32:
		buf.AppendByte(tag32)
		buf.AppendUint32(uint32(n))
	default:
		return tooLong("container", n)
	}
	return nil
}

func depthExceeded() error {
	return errors.New(errors.PhaseEncode, errors.KindDepthExceeded).
		Detail("containers nested too deep").
		Build()
}

func tooLong(what string, n int) error {
	return errors.New(errors.PhaseEncode, errors.KindUnsupportedType).
		Detail("%s of length %d exceeds the 32-bit length limit", what, n).
		Build()
}
