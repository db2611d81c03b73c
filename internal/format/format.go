// Package format converts host payloads between JSON, YAML, CBOR and the
// wire format scripts exchange with the sandbox.
//
// The wire side is produced and consumed with a general-purpose msgpack
// library, the way a host application would pack script input, and is
// checked with the sandbox's own decoder so the two never disagree about
// what is valid.
package format

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"

	"github.com/mminer/plume/wire"
)

// Format names a host payload encoding.
type Format string

const (
	JSON    Format = "json"
	YAML    Format = "yaml"
	CBOR    Format = "cbor"
	MsgPack Format = "msgpack" // raw wire bytes
	Hex     Format = "hex"     // wire bytes as hex text
)

// Formats lists every supported format.
var Formats = []Format{JSON, YAML, CBOR, MsgPack, Hex}

// Parse returns the format with the given name.
func Parse(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case JSON, YAML, CBOR, MsgPack, Hex:
		return f, nil
	case "yml":
		return YAML, nil
	case "mp", "wire":
		return MsgPack, nil
	}
	return "", fmt.Errorf("unknown format %q (want one of %s)", name, joinFormats())
}

func joinFormats() string {
	names := make([]string, len(Formats))
	for i, f := range Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("format: CBOR encoder initialization failed: " + err.Error())
	}
	cborDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("format: CBOR decoder initialization failed: " + err.Error())
	}
}

// Pack encodes a host value in the wire format. Integers take their
// narrowest form and string-keyed maps are written in key order.
func Pack(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseCompactInts(true)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(normalizeInput(v)); err != nil {
		return nil, fmt.Errorf("pack: %w", err)
	}
	return buf.Bytes(), nil
}

// Unpack decodes one wire value into host values: int64 or uint64,
// float64, string, []any and map[any]any. data must hold exactly one
// valid value.
func Unpack(data []byte) (any, error) {
	if _, err := wire.Decode(data); err != nil {
		return nil, err
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)
	dec.SetMapDecoder(decodeMap)
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return nil, fmt.Errorf("unpack: %w", err)
	}
	return v, nil
}

// decodeMap decodes a map into map[any]any. Container keys, which Go
// maps cannot hold, are replaced by their fmt rendering.
func decodeMap(d *msgpack.Decoder) (any, error) {
	n, err := d.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	m := make(map[any]any, n)
	for i := 0; i < n; i++ {
		key, err := d.DecodeInterfaceLoose()
		if err != nil {
			return nil, err
		}
		switch key.(type) {
		case []any, map[any]any:
			key = fmt.Sprint(key)
		}
		val, err := d.DecodeInterfaceLoose()
		if err != nil {
			return nil, err
		}
		m[key] = val
	}
	return m, nil
}

// ToWire converts a payload in format f to wire bytes.
func ToWire(data []byte, f Format) ([]byte, error) {
	switch f {
	case MsgPack:
		if _, err := wire.Decode(data); err != nil {
			return nil, err
		}
		return data, nil
	case Hex:
		raw, err := hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
		if err != nil {
			return nil, fmt.Errorf("decode hex: %w", err)
		}
		return ToWire(raw, MsgPack)
	}

	v, err := decodeHost(data, f)
	if err != nil {
		return nil, err
	}
	return Pack(v)
}

// FromWire converts wire bytes to a payload in format f. JSON and YAML
// output is indented unless compact is set.
func FromWire(data []byte, f Format, compact bool) ([]byte, error) {
	switch f {
	case MsgPack:
		if _, err := wire.Decode(data); err != nil {
			return nil, err
		}
		return data, nil
	case Hex:
		if _, err := wire.Decode(data); err != nil {
			return nil, err
		}
		return []byte(hex.EncodeToString(data)), nil
	}

	v, err := Unpack(data)
	if err != nil {
		return nil, err
	}

	switch f {
	case JSON:
		v = normalizeOutput(v)
		if compact {
			return json.Marshal(v)
		}
		return json.MarshalIndent(v, "", "  ")
	case YAML:
		return yaml.Marshal(normalizeOutput(v))
	case CBOR:
		return cborEnc.Marshal(v)
	}
	return nil, fmt.Errorf("unsupported output format %q", f)
}

func decodeHost(data []byte, f Format) (any, error) {
	var v any
	switch f {
	case JSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
		if dec.More() {
			return nil, fmt.Errorf("decode JSON: more than one value")
		}
	case YAML:
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	case CBOR:
		if err := cborDec.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode CBOR: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported input format %q", f)
	}
	return v, nil
}

// normalizeInput turns decoder-specific types into ones the msgpack
// encoder writes the way the sandbox expects: JSON numbers become int64
// when integral, and maps whose keys are all strings become
// map[string]any so they can be written in sorted order.
func normalizeInput(v any) any {
	switch value := v.(type) {
	case json.Number:
		if i, err := value.Int64(); err == nil {
			return i
		}
		if f, err := value.Float64(); err == nil {
			return f
		}
		return value.String()

	case map[any]any:
		keys := make(map[string]any, len(value))
		for key, element := range value {
			s, ok := key.(string)
			if !ok {
				keys = nil
				break
			}
			keys[s] = element
		}
		if keys == nil {
			result := make(map[any]any, len(value))
			for key, element := range value {
				result[normalizeInput(key)] = normalizeInput(element)
			}
			return result
		}
		return normalizeInput(keys)

	case map[string]any:
		for key, element := range value {
			value[key] = normalizeInput(element)
		}
		return value

	case []any:
		for index, element := range value {
			value[index] = normalizeInput(element)
		}
		return value

	default:
		return v
	}
}

// normalizeOutput turns map[any]any into map[string]any so that JSON and
// YAML encoders accept it. Non-string keys are formatted with fmt.
func normalizeOutput(v any) any {
	switch value := v.(type) {
	case map[any]any:
		result := make(map[string]any, len(value))
		for key, element := range value {
			result[fmt.Sprint(key)] = normalizeOutput(element)
		}
		return result

	case []any:
		for index, element := range value {
			value[index] = normalizeOutput(element)
		}
		return value

	default:
		return v
	}
}
