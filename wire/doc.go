// Package wire implements the binary value codec exchanged between a host
// and a sandboxed script.
//
// The format is MessagePack-compatible: every value starts with a tag byte
// that identifies its type and, for small integers, short strings and
// short containers, also carries the value, length or element count.
// There is no outer framing; a message is exactly one encoded value.
//
// # Decoding
//
//	v, err := wire.Decode(data)
//	if errors.Is(err, errors.DecodeTruncated) { ... }
//
// Decoding reads through a [Cursor] whose error flag is sticky: once a read
// runs past the end of the input every later read is a no-op, and the call
// fails with a truncation error instead of reading out of bounds. Container
// nesting is capped (see [DefaultMaxDepth] and [WithMaxDepth]).
//
// # Encoding
//
//	data, err := wire.Encode(wire.Array(wire.Int(1), wire.String("two")))
//
// Integers always use the narrowest tag that represents them losslessly.
// Floats are always written as 64-bit IEEE values and byte strings always
// use the str family of tags.
package wire
