package wire

import "encoding/binary"

// Cursor is a bounds-checked read position over an immutable byte slice.
//
// Reads never go past the end of the input. A read that would sets the
// failed flag, returns a zero value and leaves the position unchanged;
// every read after that is a no-op. The flag is never cleared.
type Cursor struct {
	data   []byte
	pos    int
	failed bool
}

// NewCursor returns a cursor positioned at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Pos returns the number of bytes consumed so far.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

// Failed reports whether any read ran past the end of the input.
func (c *Cursor) Failed() bool { return c.failed }

// Next consumes n bytes and returns them without copying.
func (c *Cursor) Next(n int) []byte {
	if c.failed || n < 0 || n > c.Remaining() {
		c.failed = true
		return nil
	}
	p := c.data[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return p
}

func (c *Cursor) Uint8() uint8 {
	p := c.Next(1)
	if p == nil {
		return 0
	}
	return p[0]
}

func (c *Cursor) Uint16() uint16 {
	p := c.Next(2)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint16(p)
}

func (c *Cursor) Uint32() uint32 {
	p := c.Next(4)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint32(p)
}

func (c *Cursor) Uint64() uint64 {
	p := c.Next(8)
	if p == nil {
		return 0
	}
	return binary.BigEndian.Uint64(p)
}
