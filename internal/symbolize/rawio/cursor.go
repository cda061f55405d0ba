// Package rawio provides the low-level byte-cursor primitives that every
// binary-format reader in symblaze is built on: endian-aware fixed-width
// reads, LEB128, C-string extraction and alignment, all with strict bounds
// checking and no partial advance on failure.
package rawio

import (
	"encoding/binary"

	"github.com/symblaze/symblaze/internal/symerr"
)

// Cursor reads sequentially from a borrowed byte slice. It never copies;
// all reads return sub-slices of (or values decoded from) the backing
// buffer, which must outlive the Cursor.
type Cursor struct {
	data []byte
	off  int
}

// NewCursor returns a Cursor starting at the beginning of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// Offset returns the current read position.
func (c *Cursor) Offset() int { return c.off }

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.data) - c.off }

// Seek moves the cursor to an absolute offset within the backing buffer.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.data) {
		return symerr.Wrap(symerr.InvalidInput, "seek offset %d out of bounds (len=%d)", off, len(c.data))
	}
	c.off = off
	return nil
}

func (c *Cursor) ensure(n int) error {
	if n < 0 || c.off+n > len(c.data) {
		return symerr.Wrap(symerr.UnexpectedEOF, "truncated read: need %d bytes at offset %d, have %d", n, c.off, len(c.data)-c.off)
	}
	return nil
}

// Bytes reads and returns an exact-size sub-slice, advancing the cursor.
// The returned slice aliases the backing buffer.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.ensure(n); err != nil {
		return nil, err
	}
	b := c.data[c.off : c.off+n]
	c.off += n
	return b, nil
}

// Uint8 reads one byte and advances.
func (c *Cursor) Uint8() (uint8, error) {
	if err := c.ensure(1); err != nil {
		return 0, err
	}
	v := c.data[c.off]
	c.off++
	return v, nil
}

// Uint16LE reads a little-endian uint16 and advances.
func (c *Cursor) Uint16LE() (uint16, error) {
	if err := c.ensure(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.data[c.off:])
	c.off += 2
	return v, nil
}

// Uint32LE reads a little-endian uint32 and advances.
func (c *Cursor) Uint32LE() (uint32, error) {
	if err := c.ensure(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return v, nil
}

// Uint64LE reads a little-endian uint64 and advances.
func (c *Cursor) Uint64LE() (uint64, error) {
	if err := c.ensure(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(c.data[c.off:])
	c.off += 8
	return v, nil
}

// CString reads a NUL-terminated string starting at the cursor and
// advances past the terminator. The terminator is not included.
func (c *Cursor) CString() (string, error) {
	end := c.off
	for end < len(c.data) && c.data[end] != 0 {
		end++
	}
	if end >= len(c.data) {
		return "", symerr.Wrap(symerr.UnexpectedEOF, "unterminated string at offset %d", c.off)
	}
	s := string(c.data[c.off:end])
	c.off = end + 1
	return s, nil
}

// Uleb128 decodes an unsigned LEB128 integer and advances.
func (c *Cursor) Uleb128() (uint64, error) {
	var result uint64
	var shift uint
	off := c.off
	for {
		if off >= len(c.data) {
			return 0, symerr.Wrap(symerr.UnexpectedEOF, "truncated uleb128 at offset %d", c.off)
		}
		b := c.data[off]
		off++
		if shift < 64 {
			result |= uint64(b&0x7f) << shift
		}
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	c.off = off
	return result, nil
}

// Sleb128 decodes a signed LEB128 integer and advances.
func (c *Cursor) Sleb128() (int64, error) {
	var result int64
	var shift uint
	var b byte
	off := c.off
	for {
		if off >= len(c.data) {
			return 0, symerr.Wrap(symerr.UnexpectedEOF, "truncated sleb128 at offset %d", c.off)
		}
		b = c.data[off]
		off++
		if shift < 64 {
			result |= int64(b&0x7f) << shift
		}
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	c.off = off
	return result, nil
}

// Align advances the cursor to the next n-byte boundary (n must be a power
// of two), padding with skipped bytes. It fails if the padding would read
// past the buffer.
func (c *Cursor) Align(n int) error {
	rem := c.off % n
	if rem == 0 {
		return nil
	}
	pad := n - rem
	if err := c.ensure(pad); err != nil {
		return err
	}
	c.off += pad
	return nil
}
