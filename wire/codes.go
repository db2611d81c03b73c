package wire

// Tag bytes. Ranges that embed a value keep only their first byte here;
// the masks below recover the embedded part.
const (
	posFixintMax byte = 0x7f
	fixmapTag    byte = 0x80
	fixarrayTag  byte = 0x90
	fixstrTag    byte = 0xa0
	negFixintMin byte = 0xe0

	nilTag   byte = 0xc0
	neverTag byte = 0xc1
	falseTag byte = 0xc2
	trueTag  byte = 0xc3

	bin8Tag  byte = 0xc4
	bin16Tag byte = 0xc5
	bin32Tag byte = 0xc6

	ext8Tag  byte = 0xc7
	ext16Tag byte = 0xc8
	ext32Tag byte = 0xc9

	float32Tag byte = 0xca
	float64Tag byte = 0xcb

	uint8Tag  byte = 0xcc
	uint16Tag byte = 0xcd
	uint32Tag byte = 0xce
	uint64Tag byte = 0xcf

	int8Tag  byte = 0xd0
	int16Tag byte = 0xd1
	int32Tag byte = 0xd2
	int64Tag byte = 0xd3

	fixext1Tag  byte = 0xd4
	fixext16Tag byte = 0xd8

	str8Tag  byte = 0xd9
	str16Tag byte = 0xda
	str32Tag byte = 0xdb

	array16Tag byte = 0xdc
	array32Tag byte = 0xdd

	map16Tag byte = 0xde
	map32Tag byte = 0xdf
)

const (
	fixstrMask   byte = 0xe0 // top three bits select fixstr
	fixcountMask byte = 0xf0 // top four bits select fixmap/fixarray

	fixstrMaxLen   = 31
	fixcountMaxLen = 15
	negFixintLow   = -32
)

func isFixstr(tag byte) bool   { return tag&fixstrMask == fixstrTag }
func isFixarray(tag byte) bool { return tag&fixcountMask == fixarrayTag }
func isFixmap(tag byte) bool   { return tag&fixcountMask == fixmapTag }

func isExt(tag byte) bool {
	return (tag >= ext8Tag && tag <= ext32Tag) || (tag >= fixext1Tag && tag <= fixext16Tag)
}

// TagName returns a short name for the type a tag byte introduces. It is
// meant for diagnostics.
func TagName(tag byte) string {
	switch {
	case tag <= posFixintMax:
		return "positive fixint"
	case tag >= negFixintMin:
		return "negative fixint"
	case isFixmap(tag):
		return "fixmap"
	case isFixarray(tag):
		return "fixarray"
	case isFixstr(tag):
		return "fixstr"
	case isExt(tag):
		return "ext"
	}
	switch tag {
	case nilTag:
		return "nil"
	case falseTag, trueTag:
		return "bool"
	case bin8Tag, bin16Tag, bin32Tag:
		return "bin"
	case float32Tag:
		return "float32"
	case float64Tag:
		return "float64"
	case uint8Tag:
		return "uint8"
	case uint16Tag:
		return "uint16"
	case uint32Tag:
		return "uint32"
	case uint64Tag:
		return "uint64"
	case int8Tag:
		return "int8"
	case int16Tag:
		return "int16"
	case int32Tag:
		return "int32"
	case int64Tag:
		return "int64"
	case str8Tag, str16Tag, str32Tag:
		return "str"
	case array16Tag, array32Tag:
		return "array"
	case map16Tag, map32Tag:
		return "map"
	}
	return "unused"
}
