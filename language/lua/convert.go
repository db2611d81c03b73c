package lua

import (
	"math"

	glua "github.com/yuin/gopher-lua"

	"github.com/mminer/plume/errors"
	"github.com/mminer/plume/wire"
)

const (
	two63 = 1 << 63
	two64 = 1 << 64
)

// toLua converts a decoded wire value into a Lua value owned by L.
func toLua(L *glua.LState, v wire.Value) (glua.LValue, error) {
	switch v.Kind() {
	case wire.KindNil:
		return glua.LNil, nil
	case wire.KindBool:
		return glua.LBool(v.Bool()), nil
	case wire.KindInt:
		return glua.LNumber(v.Int()), nil
	case wire.KindUint:
		return glua.LNumber(v.Uint()), nil
	case wire.KindFloat:
		return glua.LNumber(v.Float()), nil
	case wire.KindBytes:
		return glua.LString(v.Bytes()), nil
	case wire.KindArray:
		items := v.Items()
		tb := L.CreateTable(len(items), 0)
		for i, item := range items {
			lv, err := toLua(L, item)
			if err != nil {
				return nil, err
			}
			// nil elements leave holes, as assignment would.
			tb.RawSetInt(i+1, lv)
		}
		return tb, nil
	case wire.KindMap:
		pairs := v.Pairs()
		tb := L.CreateTable(0, len(pairs))
		for _, p := range pairs {
			key, err := toLua(L, p.Key)
			if err != nil {
				return nil, err
			}
			if err := checkKey(key); err != nil {
				return nil, err
			}
			val, err := toLua(L, p.Val)
			if err != nil {
				return nil, err
			}
			tb.RawSet(key, val)
		}
		return tb, nil
	}
	return nil, errors.New(errors.PhaseDecode, errors.KindUnsupportedType).
		Detail("wire kind %s", v.Kind()).
		Build()
}

// checkKey rejects keys a Lua table cannot hold.
func checkKey(key glua.LValue) error {
	if key == glua.LNil {
		return errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Detail("map key is nil").
			Build()
	}
	if n, ok := key.(glua.LNumber); ok && math.IsNaN(float64(n)) {
		return errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Detail("map key is NaN").
			Build()
	}
	return nil
}

// fromLua converts a Lua value into a wire value. depth is the number of
// tables enclosing lv; a table met at maxDepth fails, which also stops
// self-referencing tables.
func fromLua(lv glua.LValue, depth, maxDepth int) (wire.Value, error) {
	switch v := lv.(type) {
	case *glua.LNilType:
		return wire.Nil(), nil
	case glua.LBool:
		return wire.Bool(bool(v)), nil
	case glua.LNumber:
		return fromNumber(float64(v)), nil
	case glua.LString:
		return wire.String(string(v)), nil
	case *glua.LTable:
		if depth >= maxDepth {
			return wire.Value{}, errors.New(errors.PhaseEncode, errors.KindDepthExceeded).
				Detail("tables nested deeper than %d", maxDepth).
				Build()
		}
		return fromTable(v, depth, maxDepth)
	}
	return wire.Value{}, errors.New(errors.PhaseEncode, errors.KindUnsupportedType).
		Detail("cannot encode a Lua %s", lv.Type()).
		Build()
}

// fromNumber encodes integral numbers as integers and everything else,
// including values outside the 64-bit range, as floats.
func fromNumber(f float64) wire.Value {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return wire.Float(f)
	}
	switch {
	case f >= 0 && f < two63:
		return wire.Int(int64(f))
	case f >= 0 && f < two64:
		return wire.Uint(uint64(f))
	case f < 0 && f >= -two63:
		return wire.Int(int64(f))
	}
	return wire.Float(f)
}

// fromTable applies the array rule: keys exactly 1..n give an array,
// anything else a map in next order.
func fromTable(tb *glua.LTable, depth, maxDepth int) (wire.Value, error) {
	var keys, vals []glua.LValue
	isArray := true
	for k, v := tb.Next(glua.LNil); k != glua.LNil; k, v = tb.Next(k) {
		keys = append(keys, k)
		vals = append(vals, v)
		if isArray {
			n, ok := k.(glua.LNumber)
			isArray = ok && float64(n) == math.Trunc(float64(n))
		}
	}

	// Table keys are unique, so n integral keys all within 1..n are
	// exactly 1..n.
	if isArray {
		count := float64(len(keys))
		for _, k := range keys {
			if n := float64(k.(glua.LNumber)); n < 1 || n > count {
				isArray = false
				break
			}
		}
	}

	if isArray {
		items := make([]wire.Value, len(keys))
		for i, k := range keys {
			item, err := fromLua(vals[i], depth+1, maxDepth)
			if err != nil {
				return wire.Value{}, err
			}
			items[int(k.(glua.LNumber))-1] = item
		}
		return wire.Array(items...), nil
	}

	pairs := make([]wire.Pair, 0, len(keys))
	for i, k := range keys {
		key, err := fromLua(k, depth+1, maxDepth)
		if err != nil {
			return wire.Value{}, err
		}
		val, err := fromLua(vals[i], depth+1, maxDepth)
		if err != nil {
			return wire.Value{}, err
		}
		pairs = append(pairs, wire.KV(key, val))
	}
	return wire.Map(pairs...), nil
}
