package wire

import "encoding/binary"

const minBufferCap = 64

// Buffer is a growable, append-only byte sequence. Capacity doubles when
// an append does not fit, so appends are amortized O(1).
type Buffer struct {
	b []byte
}

// NewBuffer returns an empty buffer with at least the given capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{b: make([]byte, 0, max(capacity, minBufferCap))}
}

func (b *Buffer) Len() int { return len(b.b) }
func (b *Buffer) Cap() int { return cap(b.b) }

// Bytes returns the buffered bytes. The slice aliases the buffer until the
// next append or Reset.
func (b *Buffer) Bytes() []byte { return b.b }

// Reset empties the buffer and keeps its storage.
func (b *Buffer) Reset() { b.b = b.b[:0] }

// grow makes room for n more bytes.
func (b *Buffer) grow(n int) {
	need := len(b.b) + n
	if need <= cap(b.b) {
		return
	}
	newCap := max(cap(b.b)*2, minBufferCap)
	for newCap < need {
		newCap *= 2
	}
	nb := make([]byte, len(b.b), newCap)
	copy(nb, b.b)
	b.b = nb
}

func (b *Buffer) AppendByte(c byte) {
	b.grow(1)
	b.b = append(b.b, c)
}

func (b *Buffer) Append(p []byte) {
	b.grow(len(p))
	b.b = append(b.b, p...)
}

func (b *Buffer) AppendUint16(v uint16) {
	b.grow(2)
	b.b = binary.BigEndian.AppendUint16(b.b, v)
}

func (b *Buffer) AppendUint32(v uint32) {
	b.grow(4)
	b.b = binary.BigEndian.AppendUint32(b.b, v)
}

func (b *Buffer) AppendUint64(v uint64) {
	b.grow(8)
	b.b = binary.BigEndian.AppendUint64(b.b, v)
}
